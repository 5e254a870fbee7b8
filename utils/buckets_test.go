package utils

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucketMap_CoversRangeExactlyOnce(t *testing.T) {
	for _, tc := range []struct{ degree, n int }{
		{1, 10}, {3, 10}, {4, 100}, {7, 5}, {16, 1}, {0, 33},
	} {
		bm := NewBucketMap(tc.degree, tc.n)
		seen := make([]int, tc.n)
		total := 0
		for np := 0; np < bm.ParallelDegree; np++ {
			kMin, kMax := bm.GetBucketRange(np)
			assert.Equal(t, kMax-kMin, bm.GetBucketDimension(np))
			for k := kMin; k < kMax; k++ {
				seen[k]++
			}
			total += kMax - kMin
		}
		assert.Equal(t, tc.n, total, "degree=%d n=%d", tc.degree, tc.n)
		for k, c := range seen {
			assert.Equalf(t, 1, c, "index %d visited %d times (degree=%d n=%d)", k, c, tc.degree, tc.n)
		}
	}
}

func TestBucketMap_DegreeCappedByItems(t *testing.T) {
	bm := NewBucketMap(8, 3)
	assert.Equal(t, 3, bm.ParallelDegree)
	bm = NewBucketMap(8, 0)
	assert.Equal(t, 1, bm.ParallelDegree)
}

func TestForEachBucket_WritesDisjointSlots(t *testing.T) {
	n := 1000
	out := make([]int, n)
	var calls int32
	ForEachBucket(4, n, func(np, kMin, kMax int) {
		atomic.AddInt32(&calls, 1)
		for k := kMin; k < kMax; k++ {
			out[k] = k * 2
		}
	})
	assert.Equal(t, int32(4), calls)
	for k, v := range out {
		if v != 2*k {
			t.Fatalf("slot %d = %d, want %d", k, v, 2*k)
		}
	}

	called := false
	ForEachBucket(4, 0, func(np, kMin, kMax int) { called = true })
	assert.False(t, called)
}
