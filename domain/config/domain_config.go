package config

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Tree constraints
	MaxChildrenPerNode int
	MaxNameLength      int
	DefaultRootName    string

	// Attribute ranges (inclusive)
	MinRating int
	MaxRating int

	// Decomposition interview
	MinDecompositionCount  int
	MaxDecompositionCount  int
	DefaultDecisionProcess string
	DefaultObjectName      string

	// Requirement tables
	MinTablePoints  int
	MaxTablePoints  int
	MaxSatisfaction float64
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxChildrenPerNode: 5,
		MaxNameLength:      200,
		DefaultRootName:    "Root",

		MinRating: 1,
		MaxRating: 5,

		MinDecompositionCount:  2,
		MaxDecompositionCount:  5,
		DefaultDecisionProcess: "DEMA",
		DefaultObjectName:      "Untitled Object",

		MinTablePoints:  2,
		MaxTablePoints:  20,
		MaxSatisfaction: 100,
	}
}

// Validate checks that the configuration is internally consistent
func (c *DomainConfig) Validate() error {
	if c.MaxChildrenPerNode < 1 {
		return ErrInvalidConfig("MaxChildrenPerNode must be positive")
	}
	if c.MinRating > c.MaxRating {
		return ErrInvalidConfig("MinRating must not exceed MaxRating")
	}
	if c.MinDecompositionCount < 1 || c.MinDecompositionCount > c.MaxDecompositionCount {
		return ErrInvalidConfig("decomposition count bounds are inconsistent")
	}
	if c.MaxDecompositionCount > c.MaxChildrenPerNode {
		return ErrInvalidConfig("MaxDecompositionCount cannot exceed MaxChildrenPerNode")
	}
	if c.MinTablePoints < 2 || c.MinTablePoints > c.MaxTablePoints {
		return ErrInvalidConfig("requirement table bounds are inconsistent")
	}
	return nil
}

// ErrInvalidConfig represents a configuration validation error
type ErrInvalidConfig string

func (e ErrInvalidConfig) Error() string {
	return "invalid domain config: " + string(e)
}
