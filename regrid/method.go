package regrid

import (
	"fmt"
	"strings"
)

// Method selects how source values are aggregated onto a target cell
type Method uint8

const (
	// Mean is the overlap-weighted average, for intensive quantities such
	// as heads, conductivities and concentrations.
	Mean Method = iota
	// Conservative distributes each source value by the fraction of the
	// source cell a target overlaps, preserving the domain total of
	// extensive quantities such as fluxes and volumes.
	Conservative
	// Majority takes the value of the source cell with the largest overlap,
	// for categorical codes.
	Majority
	// PointSample interpolates from the nearest source cell centroids.
	PointSample
)

func (m Method) String() string {
	switch m {
	case Mean:
		return "mean"
	case Conservative:
		return "conservative"
	case Majority:
		return "majority"
	case PointSample:
		return "point_sample"
	}
	return fmt.Sprintf("Method(%d)", uint8(m))
}

// ParseMethod accepts the String form of a Method and a few common aliases
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mean", "average", "weighted_mean":
		return Mean, nil
	case "conservative", "sum":
		return Conservative, nil
	case "majority", "mode", "nearest":
		return Majority, nil
	case "point_sample", "point", "idw", "barycentric":
		return PointSample, nil
	}
	return 0, fmt.Errorf("unknown regrid method %q", s)
}

// Weighting applies to Mean: Area weights by overlap area, Volume by overlap
// area times source layer thickness
type Weighting uint8

const (
	Area Weighting = iota
	Volume
)

func (w Weighting) String() string {
	if w == Volume {
		return "volume"
	}
	return "area"
}

func ParseWeighting(s string) (Weighting, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "area":
		return Area, nil
	case "volume":
		return Volume, nil
	}
	return 0, fmt.Errorf("unknown weighting %q", s)
}

// Interpolation applies to PointSample
type Interpolation uint8

const (
	InverseDistance Interpolation = iota
	// Linear fits a least-squares plane through the neighbors and falls back
	// to InverseDistance when they are collinear.
	Linear
)

func (i Interpolation) String() string {
	if i == Linear {
		return "linear"
	}
	return "inverse_distance"
}

func ParseInterpolation(s string) (Interpolation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "idw", "inverse_distance":
		return InverseDistance, nil
	case "linear":
		return Linear, nil
	}
	return 0, fmt.Errorf("unknown interpolation %q", s)
}

const (
	DefaultK     = 4
	DefaultPower = 2.0
)

type Options struct {
	Method    Method
	Weighting Weighting
	// Fill is assigned to active target cells no source value reaches.
	// Nil leaves them as no-data.
	Fill *float64

	K             int     // neighbors for PointSample, default 4
	Power         float64 // inverse distance exponent, default 2
	Interpolation Interpolation
}

func (o Options) withDefaults() Options {
	if o.K <= 0 {
		o.K = DefaultK
	}
	if o.Power <= 0 {
		o.Power = DefaultPower
	}
	return o
}

func (o Options) validate() error {
	if o.Method > PointSample {
		return fmt.Errorf("invalid regrid method %d", o.Method)
	}
	if o.Interpolation == Linear && o.K < 3 {
		return fmt.Errorf("linear interpolation needs k >= 3, have %d", o.K)
	}
	return nil
}
