// Package regrid maps Fields from one grid onto another. Overlap-based
// methods consume overlap.Records; point sampling works from cell centroids.
// Regridding never mutates its inputs and, for fixed inputs, always produces
// the same output.
package regrid

import (
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/notargets/gwgrid/grid"
	"github.com/notargets/gwgrid/overlap"
	"github.com/notargets/gwgrid/utils"
)

type Regridder struct {
	engine  *overlap.Engine
	log     *slog.Logger
	workers int
}

// New returns a Regridder computing overlaps with engine. A nil engine gets
// default options; a nil logger uses slog.Default. workers bounds the
// parallel target buckets, zero for one per CPU.
func New(engine *overlap.Engine, logger *slog.Logger, workers int) *Regridder {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = overlap.NewEngine(overlap.Options{Logger: logger, Workers: workers})
	}
	return &Regridder{engine: engine, log: logger, workers: workers}
}

func (r *Regridder) Engine() *overlap.Engine { return r.engine }

// Regrid returns src resampled onto target
func (r *Regridder) Regrid(src *grid.Field, target *grid.Grid, opts Options) (*grid.Field, error) {
	if opts.Method == PointSample {
		return r.Apply(nil, src, target, opts)
	}
	recs, err := r.engine.Compute(src.Grid(), target)
	if err != nil {
		return nil, fmt.Errorf("regrid %q: %w", src.Name(), err)
	}
	return r.Apply(recs, src, target, opts)
}

// Apply regrids src onto target using overlaps already computed between
// src's grid and target. PointSample ignores recs.
func (r *Regridder) Apply(recs []overlap.Record, src *grid.Field, target *grid.Grid, opts Options) (*grid.Field, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("regrid %q: %w", src.Name(), err)
	}
	for _, k := range src.Layers() {
		if k >= target.NumLayers() {
			return nil, fmt.Errorf("regrid %q: layer %d not in target grid with %d layers",
				src.Name(), k, target.NumLayers())
		}
	}
	out, err := grid.NewField(target, src.Name(), src.Layers(), src.NumComponents())
	if err != nil {
		return nil, err
	}

	if opts.Method == PointSample {
		if err = r.pointSample(src, out, opts); err != nil {
			return nil, err
		}
	} else {
		if err = overlap.Validate(recs, src.Grid(), target); err != nil {
			return nil, fmt.Errorf("regrid %q: %w", src.Name(), err)
		}
		r.aggregate(recs, src, out, opts)
	}

	var noData int
	for _, k := range out.LayerSet() {
		noData += len(out.Cells(k, grid.NoData))
	}
	r.log.Debug("field regridded",
		"field", src.Name(),
		"method", opts.Method.String(),
		"target_cells", target.NumCells(),
		"no_data", noData)
	return out, nil
}

// offsets returns, per target cell, the index range of its records
func offsets(recs []overlap.Record, n int) []int {
	off := make([]int, n+1)
	for _, rec := range recs {
		off[rec.Target+1]++
	}
	for t := 0; t < n; t++ {
		off[t+1] += off[t]
	}
	return off
}

func (r *Regridder) aggregate(recs []overlap.Record, src, out *grid.Field, opts Options) {
	sg, tg := src.Grid(), out.Grid()
	off := offsets(recs, tg.NumCells())
	ncomp := src.NumComponents()

	utils.ForEachBucket(r.workers, tg.NumCells(), func(_, tMin, tMax int) {
		acc := make([]float64, ncomp)
		for _, k := range out.LayerSet() {
			for t := tMin; t < tMax; t++ {
				if !out.IsActive(k, t) {
					out.SetNoData(k, t)
					continue
				}
				for c := range acc {
					acc[c] = 0
				}
				covered := false
				switch opts.Method {
				case Mean:
					var wsum float64
					for _, rec := range recs[off[t]:off[t+1]] {
						if src.State(k, rec.Source) != grid.Defined {
							continue
						}
						w := rec.Measure
						if opts.Weighting == Volume {
							w *= thickness(sg, k, rec.Source)
						}
						for c := range acc {
							v, _ := src.Component(k, rec.Source, c)
							acc[c] += v * w
						}
						wsum += w
					}
					if wsum > 0 {
						covered = true
						for c := range acc {
							acc[c] /= wsum
						}
					}
				case Conservative:
					for _, rec := range recs[off[t]:off[t+1]] {
						if src.State(k, rec.Source) != grid.Defined {
							continue
						}
						frac := rec.Measure / sg.Area(rec.Source)
						for c := range acc {
							v, _ := src.Component(k, rec.Source, c)
							acc[c] += v * frac
						}
						covered = true
					}
				case Majority:
					// Records are ordered by source id, so a strict comparison
					// resolves ties to the lowest id.
					best, bestM := -1, 0.0
					for _, rec := range recs[off[t]:off[t+1]] {
						if src.State(k, rec.Source) != grid.Defined {
							continue
						}
						if best < 0 || rec.Measure > bestM {
							best, bestM = rec.Source, rec.Measure
						}
					}
					if best >= 0 {
						covered = true
						for c := range acc {
							acc[c], _ = src.Component(k, best, c)
						}
					}
				}
				setOrFill(out, k, t, covered, acc, opts.Fill)
			}
		}
	})
}

func setOrFill(out *grid.Field, k, t int, covered bool, v []float64, fill *float64) {
	switch {
	case covered:
		out.Set(k, t, v...)
	case fill != nil:
		for c := range v {
			v[c] = *fill
		}
		out.Set(k, t, v...)
	default:
		out.SetNoData(k, t)
	}
}

func thickness(g *grid.Grid, k, id int) float64 {
	if k == grid.Planar {
		return g.TotalThickness(id)
	}
	return g.Thickness(k, id)
}

// RegridAll regrids several fields onto one target. Overlaps are computed
// once per distinct source grid and the fields are processed in parallel.
// opts is keyed by field name; the result keeps the order of fields.
func (r *Regridder) RegridAll(fields []*grid.Field, target *grid.Grid, opts map[string]Options) ([]*grid.Field, error) {
	recsBySource := make(map[*grid.Grid][]overlap.Record)
	for _, f := range fields {
		o, ok := opts[f.Name()]
		if !ok {
			return nil, fmt.Errorf("regrid %q: no options given", f.Name())
		}
		if o.Method == PointSample {
			continue
		}
		if _, done := recsBySource[f.Grid()]; done {
			continue
		}
		recs, err := r.engine.Compute(f.Grid(), target)
		if err != nil {
			return nil, fmt.Errorf("regrid %q: %w", f.Name(), err)
		}
		recsBySource[f.Grid()] = recs
	}

	out := make([]*grid.Field, len(fields))
	var eg errgroup.Group
	for i, f := range fields {
		eg.Go(func() error {
			res, err := r.Apply(recsBySource[f.Grid()], f, target, opts[f.Name()])
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	r.log.Info("fields regridded", "count", len(fields), "target_cells", target.NumCells())
	return out, nil
}
