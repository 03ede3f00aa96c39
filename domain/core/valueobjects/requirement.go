package valueobjects

import (
	"fmt"
	"math"

	"valuetree/domain/config"
	pkgerrors "valuetree/pkg/errors"
)

// RequirementKind selects how a leaf criterion maps an offered value to satisfaction
type RequirementKind string

const (
	// RequirementPreferHigh: Thresholds = [unacceptableBelow, satisfiedAbove]
	RequirementPreferHigh RequirementKind = "prefer_high"
	// RequirementPreferLow: Thresholds = [satisfiedBelow, unacceptableAbove]
	RequirementPreferLow RequirementKind = "prefer_low"
	// RequirementRange: Thresholds = [unacceptableBelow, satisfiedFrom, satisfiedTo, unacceptableAbove]
	RequirementRange RequirementKind = "range"
	// RequirementTable: Points is a scoring table with strictly increasing offered values
	RequirementTable RequirementKind = "table"
)

// ScorePoint is one row of a requirement table
type ScorePoint struct {
	Offered      float64 `json:"offered"`
	Satisfaction float64 `json:"satisfaction"`
}

// Requirement describes the elementary criterion of a leaf node.
// Satisfaction is expressed in percent.
type Requirement struct {
	Kind       RequirementKind `json:"kind"`
	Thresholds []float64       `json:"thresholds,omitempty"`
	Points     []ScorePoint    `json:"points,omitempty"`
}

// NewPreferHigh builds a requirement that is unacceptable below one value
// and fully satisfied above another
func NewPreferHigh(unacceptableBelow, satisfiedAbove float64) (*Requirement, error) {
	r := &Requirement{Kind: RequirementPreferHigh, Thresholds: []float64{unacceptableBelow, satisfiedAbove}}
	return r, r.Validate(nil)
}

// NewPreferLow builds a requirement that is fully satisfied below one value
// and unacceptable above another
func NewPreferLow(satisfiedBelow, unacceptableAbove float64) (*Requirement, error) {
	r := &Requirement{Kind: RequirementPreferLow, Thresholds: []float64{satisfiedBelow, unacceptableAbove}}
	return r, r.Validate(nil)
}

// NewRange builds a requirement that is fully satisfied inside [satisfiedFrom, satisfiedTo]
func NewRange(unacceptableBelow, satisfiedFrom, satisfiedTo, unacceptableAbove float64) (*Requirement, error) {
	r := &Requirement{
		Kind:       RequirementRange,
		Thresholds: []float64{unacceptableBelow, satisfiedFrom, satisfiedTo, unacceptableAbove},
	}
	return r, r.Validate(nil)
}

// NewTable builds a requirement from a scoring table
func NewTable(points []ScorePoint) (*Requirement, error) {
	r := &Requirement{Kind: RequirementTable, Points: append([]ScorePoint(nil), points...)}
	return r, r.Validate(nil)
}

// Validate checks the shape and ordering rules for the requirement kind
func (r *Requirement) Validate(cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	for _, v := range r.Thresholds {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return pkgerrors.NewValidationError("requirement values must be finite numbers")
		}
	}

	switch r.Kind {
	case RequirementPreferHigh, RequirementPreferLow:
		if len(r.Thresholds) != 2 || len(r.Points) != 0 {
			return pkgerrors.NewValidationError(fmt.Sprintf("%s requirement needs exactly two thresholds", r.Kind))
		}
		if r.Thresholds[0] >= r.Thresholds[1] {
			return pkgerrors.NewValidationError("first value must be less than second value")
		}
	case RequirementRange:
		if len(r.Thresholds) != 4 || len(r.Points) != 0 {
			return pkgerrors.NewValidationError("range requirement needs exactly four thresholds")
		}
		t := r.Thresholds
		if !(t[0] < t[1] && t[1] <= t[2] && t[2] < t[3]) {
			return pkgerrors.NewValidationError("range thresholds must satisfy lower < from <= to < upper")
		}
	case RequirementTable:
		if len(r.Thresholds) != 0 {
			return pkgerrors.NewValidationError("table requirement takes points, not thresholds")
		}
		if len(r.Points) < cfg.MinTablePoints || len(r.Points) > cfg.MaxTablePoints {
			return pkgerrors.NewValidationError(
				fmt.Sprintf("table requirement needs between %d and %d rows", cfg.MinTablePoints, cfg.MaxTablePoints))
		}
		for i, p := range r.Points {
			if math.IsNaN(p.Offered) || math.IsInf(p.Offered, 0) {
				return pkgerrors.NewValidationError("offered values must be finite numbers")
			}
			if math.IsNaN(p.Satisfaction) || p.Satisfaction < 0 || p.Satisfaction > cfg.MaxSatisfaction {
				return pkgerrors.NewValidationError(
					fmt.Sprintf("satisfaction must be between 0 and %g", cfg.MaxSatisfaction))
			}
			if i > 0 && r.Points[i-1].Offered >= p.Offered {
				return pkgerrors.NewValidationError("offered values must be in strictly increasing order")
			}
		}
	default:
		return pkgerrors.NewValidationError(fmt.Sprintf("unknown requirement kind %q", r.Kind))
	}

	return nil
}

// Satisfaction returns the degree of satisfaction (0-100) for an offered value.
// Between thresholds the score is interpolated linearly; outside a table the
// border rows apply. A NaN offer scores 0.
func (r *Requirement) Satisfaction(offered float64) float64 {
	const full = 100.0

	if math.IsNaN(offered) {
		return 0
	}

	switch r.Kind {
	case RequirementPreferHigh:
		return ramp(offered, r.Thresholds[0], r.Thresholds[1], 0, full)
	case RequirementPreferLow:
		return ramp(offered, r.Thresholds[0], r.Thresholds[1], full, 0)
	case RequirementRange:
		t := r.Thresholds
		if offered <= t[2] {
			return ramp(offered, t[0], t[1], 0, full)
		}
		return ramp(offered, t[2], t[3], full, 0)
	case RequirementTable:
		pts := r.Points
		if offered <= pts[0].Offered {
			return pts[0].Satisfaction
		}
		for i := 1; i < len(pts); i++ {
			if offered <= pts[i].Offered {
				return ramp(offered, pts[i-1].Offered, pts[i].Offered, pts[i-1].Satisfaction, pts[i].Satisfaction)
			}
		}
		return pts[len(pts)-1].Satisfaction
	}
	return 0
}

// Clone returns a deep copy
func (r *Requirement) Clone() *Requirement {
	if r == nil {
		return nil
	}
	return &Requirement{
		Kind:       r.Kind,
		Thresholds: append([]float64(nil), r.Thresholds...),
		Points:     append([]ScorePoint(nil), r.Points...),
	}
}

// ramp interpolates between (x0, y0) and (x1, y1), clamping outside the interval
func ramp(x, x0, x1, y0, y1 float64) float64 {
	switch {
	case x <= x0:
		return y0
	case x >= x1:
		return y1
	default:
		return y0 + (y1-y0)*(x-x0)/(x1-x0)
	}
}
