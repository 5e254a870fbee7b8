// Package config reads the HCL file describing how a model is assembled:
// overlap tolerances, per-field regrid options, the partitioning and the
// validation tolerances. Every attribute is optional; the Get accessors
// supply the defaults.
//
//	overlap   { relative_tolerance = 1e-9  workers = 0 }
//	regrid "kh" { method = "mean"  weighting = "volume" }
//	partition { count = 4  tolerance = 0.05  seed = 7 }
//	validate  { conservation_tolerance = 1e-6 }
package config

import (
	"fmt"
	"log/slog"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/notargets/gwgrid/overlap"
	"github.com/notargets/gwgrid/partitions"
	"github.com/notargets/gwgrid/regrid"
	"github.com/notargets/gwgrid/validate"
)

type Config struct {
	Overlap   *Overlap   `hcl:"overlap,block"`
	Regrid    []*Regrid  `hcl:"regrid,block"`
	Partition *Partition `hcl:"partition,block"`
	Checks    *Checks    `hcl:"validate,block"`
}

type Overlap struct {
	RelativeTolerance *float64 `hcl:"relative_tolerance,optional"`
	Workers           *int     `hcl:"workers,optional"`
}

// Regrid holds the options for the field named by its label
type Regrid struct {
	Field         string   `hcl:"field,label"`
	Method        *string  `hcl:"method,optional"`
	Weighting     *string  `hcl:"weighting,optional"`
	Fill          *float64 `hcl:"fill,optional"`
	K             *int     `hcl:"k,optional"`
	Power         *float64 `hcl:"power,optional"`
	Interpolation *string  `hcl:"interpolation,optional"`
}

type Partition struct {
	Count        *int     `hcl:"count,optional"`
	Tolerance    *float64 `hcl:"tolerance,optional"`
	Seed         *int     `hcl:"seed,optional"`
	MaxAttempts  *int     `hcl:"max_attempts,optional"`
	RefinePasses *int     `hcl:"refine_passes,optional"`
	CoarsenTo    *int     `hcl:"coarsen_to,optional"`
	AllowEmpty   *bool    `hcl:"allow_empty,optional"`
}

type Checks struct {
	ConservationTolerance *float64 `hcl:"conservation_tolerance,optional"`
}

// Load reads and validates the configuration file at path
func Load(path string) (*Config, error) {
	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, diags)
	}
	return decode(file, path)
}

// Parse reads and validates configuration source; filename is used in
// diagnostics only
func Parse(src []byte, filename string) (*Config, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", filename, diags)
	}
	return decode(file, filename)
}

func decode(file *hcl.File, filename string) (*Config, error) {
	var c Config
	if diags := gohcl.DecodeBody(file.Body, nil, &c); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config %s: %w", filename, diags)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", filename, err)
	}
	return &c, nil
}

// Validate rejects out of range values and unknown method names
func (c *Config) Validate() error {
	if o := c.Overlap; o != nil {
		if o.RelativeTolerance != nil && (*o.RelativeTolerance < 0 || *o.RelativeTolerance >= 1) {
			return fmt.Errorf("overlap relative_tolerance %g outside [0,1)", *o.RelativeTolerance)
		}
		if o.Workers != nil && *o.Workers < 0 {
			return fmt.Errorf("overlap workers %d is negative", *o.Workers)
		}
	}
	seen := make(map[string]bool)
	for _, r := range c.Regrid {
		if seen[r.Field] {
			return fmt.Errorf("regrid %q defined twice", r.Field)
		}
		seen[r.Field] = true
		if _, err := r.Options(); err != nil {
			return fmt.Errorf("regrid %q: %w", r.Field, err)
		}
	}
	if p := c.Partition; p != nil {
		if p.Count != nil && *p.Count < 1 {
			return fmt.Errorf("partition count %d must be positive", *p.Count)
		}
		if p.Tolerance != nil && (*p.Tolerance <= 0 || *p.Tolerance >= 1) {
			return fmt.Errorf("partition tolerance %g outside (0,1)", *p.Tolerance)
		}
		if p.Seed != nil && *p.Seed < 0 {
			return fmt.Errorf("partition seed %d is negative", *p.Seed)
		}
		for name, v := range map[string]*int{
			"max_attempts":  p.MaxAttempts,
			"refine_passes": p.RefinePasses,
			"coarsen_to":    p.CoarsenTo,
		} {
			if v != nil && *v < 0 {
				return fmt.Errorf("partition %s %d is negative", name, *v)
			}
		}
	}
	if ch := c.Checks; ch != nil && ch.ConservationTolerance != nil && *ch.ConservationTolerance <= 0 {
		return fmt.Errorf("validate conservation_tolerance %g must be positive", *ch.ConservationTolerance)
	}
	return nil
}

func (o *Overlap) GetRelativeTolerance() float64 {
	if o == nil || o.RelativeTolerance == nil {
		return overlap.DefaultRelativeTolerance
	}
	return *o.RelativeTolerance
}

func (o *Overlap) GetWorkers() int {
	if o == nil || o.Workers == nil {
		return 0
	}
	return *o.Workers
}

// EngineOptions converts the overlap block
func (c *Config) EngineOptions(logger *slog.Logger) overlap.Options {
	return overlap.Options{
		RelativeTolerance: c.Overlap.GetRelativeTolerance(),
		Workers:           c.Overlap.GetWorkers(),
		Logger:            logger,
	}
}

// RegridFor returns the block for field, nil when there is none
func (c *Config) RegridFor(field string) *Regrid {
	for _, r := range c.Regrid {
		if r.Field == field {
			return r
		}
	}
	return nil
}

// RegridOptions returns the options per configured field
func (c *Config) RegridOptions() (map[string]regrid.Options, error) {
	out := make(map[string]regrid.Options, len(c.Regrid))
	for _, r := range c.Regrid {
		o, err := r.Options()
		if err != nil {
			return nil, fmt.Errorf("regrid %q: %w", r.Field, err)
		}
		out[r.Field] = o
	}
	return out, nil
}

// Options converts the block; unset attributes keep the regrid defaults.
// A nil block yields the mean method.
func (r *Regrid) Options() (regrid.Options, error) {
	var o regrid.Options
	if r == nil {
		return o, nil
	}
	var err error
	if r.Method != nil {
		if o.Method, err = regrid.ParseMethod(*r.Method); err != nil {
			return o, err
		}
	}
	if r.Weighting != nil {
		if o.Weighting, err = regrid.ParseWeighting(*r.Weighting); err != nil {
			return o, err
		}
	}
	if r.Interpolation != nil {
		if o.Interpolation, err = regrid.ParseInterpolation(*r.Interpolation); err != nil {
			return o, err
		}
	}
	if r.Fill != nil {
		fill := *r.Fill
		o.Fill = &fill
	}
	if r.K != nil {
		if *r.K < 1 {
			return o, fmt.Errorf("k %d must be positive", *r.K)
		}
		o.K = *r.K
	}
	if r.Power != nil {
		if *r.Power <= 0 {
			return o, fmt.Errorf("power %g must be positive", *r.Power)
		}
		o.Power = *r.Power
	}
	return o, nil
}

func (p *Partition) GetCount() int {
	if p == nil || p.Count == nil {
		return 1
	}
	return *p.Count
}

func (p *Partition) GetTolerance() float64 {
	if p == nil || p.Tolerance == nil {
		return partitions.DefaultTolerance
	}
	return *p.Tolerance
}

// GetSeed returns nil when no seed is configured
func (p *Partition) GetSeed() *uint64 {
	if p == nil || p.Seed == nil {
		return nil
	}
	s := uint64(*p.Seed)
	return &s
}

func (p *Partition) GetMaxAttempts() int {
	if p == nil || p.MaxAttempts == nil || *p.MaxAttempts == 0 {
		return partitions.DefaultMaxAttempts
	}
	return *p.MaxAttempts
}

func (p *Partition) GetRefinePasses() int {
	if p == nil || p.RefinePasses == nil || *p.RefinePasses == 0 {
		return partitions.DefaultRefinePasses
	}
	return *p.RefinePasses
}

func (p *Partition) GetAllowEmpty() bool {
	return p != nil && p.AllowEmpty != nil && *p.AllowEmpty
}

// Options converts the block
func (p *Partition) Options(logger *slog.Logger) partitions.Options {
	o := partitions.Options{
		NumPartitions: p.GetCount(),
		Tolerance:     p.GetTolerance(),
		Seed:          p.GetSeed(),
		MaxAttempts:   p.GetMaxAttempts(),
		RefinePasses:  p.GetRefinePasses(),
		AllowEmpty:    p.GetAllowEmpty(),
		Logger:        logger,
	}
	if p != nil && p.CoarsenTo != nil {
		o.CoarsenTo = *p.CoarsenTo
	}
	return o
}

func (ch *Checks) GetConservationTolerance() float64 {
	if ch == nil || ch.ConservationTolerance == nil {
		return validate.DefaultConservationTolerance
	}
	return *ch.ConservationTolerance
}
