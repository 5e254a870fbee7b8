package utils

import (
	"runtime"
	"sync"
)

// BucketMap divides the index range [0, N) into ParallelDegree contiguous
// buckets of nearly equal size
type BucketMap struct {
	ParallelDegree int
	N              int
}

// NewBucketMap returns a BucketMap for n items. A degree of 0 selects
// runtime.NumCPU(); the degree never exceeds n.
func NewBucketMap(degree, n int) *BucketMap {
	if degree <= 0 {
		degree = runtime.NumCPU()
	}
	if degree > n {
		degree = n
	}
	if degree < 1 {
		degree = 1
	}
	return &BucketMap{ParallelDegree: degree, N: n}
}

// GetBucketRange returns the half-open range [kMin, kMax) of bucket np
func (bm *BucketMap) GetBucketRange(np int) (kMin, kMax int) {
	base := bm.N / bm.ParallelDegree
	rem := bm.N % bm.ParallelDegree
	kMin = np*base + min(np, rem)
	kMax = kMin + base
	if np < rem {
		kMax++
	}
	return
}

// GetBucketDimension returns the number of items in bucket np
func (bm *BucketMap) GetBucketDimension(np int) int {
	kMin, kMax := bm.GetBucketRange(np)
	return kMax - kMin
}

// ForEachBucket runs fn once per bucket on its own goroutine and waits for all
// of them. Buckets never share indices, so fn may write to disjoint slots of a
// shared output without locking.
func ForEachBucket(degree, n int, fn func(np, kMin, kMax int)) {
	if n == 0 {
		return
	}
	bm := NewBucketMap(degree, n)
	if bm.ParallelDegree == 1 {
		fn(0, 0, n)
		return
	}
	var wg sync.WaitGroup
	for np := 0; np < bm.ParallelDegree; np++ {
		kMin, kMax := bm.GetBucketRange(np)
		wg.Add(1)
		go func(np, kMin, kMax int) {
			defer wg.Done()
			fn(np, kMin, kMax)
		}(np, kMin, kMax)
	}
	wg.Wait()
}
