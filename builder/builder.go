// Package builder assembles a model on a target grid: source fields are
// regridded and checked, then the grid is partitioned and every field is
// split into per-partition submodels, with validation after each stage.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/notargets/gwgrid/config"
	"github.com/notargets/gwgrid/ctxlog"
	"github.com/notargets/gwgrid/grid"
	"github.com/notargets/gwgrid/overlap"
	"github.com/notargets/gwgrid/partitions"
	"github.com/notargets/gwgrid/regrid"
	"github.com/notargets/gwgrid/validate"
)

// Model is the assembled, unpartitioned model
type Model struct {
	Grid   *grid.Grid
	Fields map[string]*grid.Field
}

// Names returns the field names in sorted order
func (m *Model) Names() []string {
	names := make([]string, 0, len(m.Fields))
	for n := range m.Fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Submodel is the part of the model owned by one partition
type Submodel struct {
	Index  int
	Grid   *grid.Grid
	Fields map[string]*grid.Field
}

// Output is the result of Build. Partition is nil when a single partition
// was requested without labels.
type Output struct {
	Model     *Model
	Partition *partitions.Result
	Submodels []Submodel
}

type ModelBuilder struct {
	cfg       *config.Config
	target    *grid.Grid
	log       *slog.Logger
	regridder *regrid.Regridder
	validator *validate.Validator

	fields map[string]*grid.Field
	labels []int
}

// NewModelBuilder prepares a build onto target. The logger is taken from ctx;
// a nil cfg uses the defaults.
func NewModelBuilder(ctx context.Context, cfg *config.Config, target *grid.Grid) (*ModelBuilder, error) {
	if target == nil {
		return nil, fmt.Errorf("model builder: nil target grid")
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)
	engine := overlap.NewEngine(cfg.EngineOptions(logger))
	return &ModelBuilder{
		cfg:       cfg,
		target:    target,
		log:       logger,
		regridder: regrid.New(engine, logger, cfg.Overlap.GetWorkers()),
		validator: &validate.Validator{
			ConservationTolerance: cfg.Checks.GetConservationTolerance(),
			Engine:                engine,
			Logger:                logger,
		},
		fields: make(map[string]*grid.Field),
	}, nil
}

func (b *ModelBuilder) Target() *grid.Grid { return b.target }

// Add registers a field already defined on the target grid
func (b *ModelBuilder) Add(f *grid.Field) error {
	if err := f.On(b.target); err != nil {
		return err
	}
	if _, dup := b.fields[f.Name()]; dup {
		return fmt.Errorf("field %q added twice", f.Name())
	}
	if err := b.validator.CheckField(f); err != nil {
		return err
	}
	b.fields[f.Name()] = f
	return nil
}

// Regrid resamples source fields onto the target grid with the options
// configured for each field name, and checks each result. Fields sharing a
// source grid share one overlap computation.
func (b *ModelBuilder) Regrid(fields ...*grid.Field) error {
	opts := make(map[string]regrid.Options, len(fields))
	for _, f := range fields {
		if _, dup := b.fields[f.Name()]; dup {
			return fmt.Errorf("field %q added twice", f.Name())
		}
		o, err := b.cfg.RegridFor(f.Name()).Options()
		if err != nil {
			return fmt.Errorf("field %q: %w", f.Name(), err)
		}
		opts[f.Name()] = o
	}
	out, err := b.regridder.RegridAll(fields, b.target, opts)
	if err != nil {
		return err
	}
	for i, f := range fields {
		if err := b.validator.AfterRegrid(f, out[i], opts[f.Name()].Method, nil); err != nil {
			return err
		}
	}
	for _, f := range out {
		b.fields[f.Name()] = f
	}
	b.log.Info("fields regridded onto target", "count", len(out), "total", len(b.fields))
	return nil
}

// SplitByLabels makes Build use caller-chosen partition labels, indexed by
// target cell, instead of the partitioner
func (b *ModelBuilder) SplitByLabels(labels []int) {
	b.labels = append([]int{}, labels...)
}

// Build validates the target mesh and every field, partitions the grid and
// splits the fields into submodels
func (b *ModelBuilder) Build() (*Output, error) {
	if err := b.validator.CheckMesh(b.target); err != nil {
		return nil, err
	}
	model := &Model{Grid: b.target, Fields: make(map[string]*grid.Field, len(b.fields))}
	for name, f := range b.fields {
		if err := b.validator.CheckField(f); err != nil {
			return nil, err
		}
		model.Fields[name] = f
	}
	out := &Output{Model: model}

	popts := b.cfg.Partition.Options(b.log)
	if b.labels != nil && (b.cfg.Partition == nil || b.cfg.Partition.Count == nil) {
		// the labels decide the partition count
		popts.NumPartitions = 0
	}
	if b.labels == nil && popts.NumPartitions <= 1 {
		out.Submodels = []Submodel{{Index: 0, Grid: b.target, Fields: model.Fields}}
		b.log.Info("model built", "cells", b.target.NumCells(), "fields", len(model.Fields))
		return out, nil
	}

	var (
		res *partitions.Result
		err error
	)
	p := partitions.NewPartitioner(popts)
	if b.labels != nil {
		res, err = p.SplitByLabels(b.target, b.labels)
	} else {
		res, err = p.Partition(b.target)
	}
	if err != nil {
		return nil, err
	}
	if err = b.validator.AfterPartition(b.target, res); err != nil {
		return nil, err
	}
	out.Partition = res

	out.Submodels = make([]Submodel, len(res.Subdomains))
	for i, sd := range res.Subdomains {
		out.Submodels[i] = Submodel{Index: i, Grid: sd.Grid, Fields: make(map[string]*grid.Field)}
	}
	for _, name := range model.Names() {
		parts, err := res.SplitField(model.Fields[name])
		if err != nil {
			return nil, fmt.Errorf("split field %q: %w", name, err)
		}
		for i, pf := range parts {
			if pf != nil {
				out.Submodels[i].Fields[name] = pf
			}
		}
	}
	b.log.Info("model built",
		"cells", b.target.NumCells(),
		"fields", len(model.Fields),
		"partitions", len(out.Submodels),
		"exchange_faces", res.Exchange.NumFaces(),
		"run_id", res.RunID)
	return out, nil
}
