package nucleate

import (
	"fmt"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/nucleate/internal/candidate"
	"github.com/arloliu/nucleate/internal/geometry"
	"github.com/arloliu/nucleate/internal/refine"
	"github.com/arloliu/nucleate/internal/safety"
	"github.com/arloliu/nucleate/types"
)

// OrderParameterConfig describes one nucleating order parameter.
type OrderParameterConfig struct {
	// Index is the field variable index of the order parameter.
	Index int `yaml:"index"`

	// Periodic marks periodic axes. Empty means no periodic axis.
	Periodic []bool `yaml:"periodic"`

	// BorderThickness is the margin kept clear of every non-periodic domain edge.
	BorderThickness float64 `yaml:"borderThickness"`

	// Semiaxes is the seeded nucleus shape, one radius per axis.
	Semiaxes []float64 `yaml:"semiaxes"`

	// FreezeSemiaxes is the exclusion shape used for overlap checks and
	// refinement. Empty means Semiaxes.
	FreezeSemiaxes []float64 `yaml:"freezeSemiaxes"`

	// Rotation maps world axes onto principal axes. Empty means identity.
	Rotation [][]float64 `yaml:"rotation"`

	// RotationAngles builds Rotation with RotationFromAngles. Mutually
	// exclusive with Rotation.
	RotationAngles []float64 `yaml:"rotationAngles"`

	// HoldTime is how long the seeded nucleus is held fixed.
	HoldTime float64 `yaml:"holdTime"`
}

// Config is the nucleation configuration.
//
// The nucleating order parameter set is the set of OrderParameters[].Index.
type Config struct {
	// Dimension is the spatial dimension (1..3).
	Dimension int `yaml:"dimension"`

	// DomainSize is the physical extent per axis; the domain starts at the origin.
	DomainSize []float64 `yaml:"domainSize"`

	// Subdivisions is the number of coarse cells per axis, used for the
	// refinement cell diagonal.
	Subdivisions []int `yaml:"subdivisions"`

	// OrderParameters lists the nucleating order parameters.
	OrderParameters []OrderParameterConfig `yaml:"orderParameters"`

	// NeededVariables are averaged per cell and passed to the probability oracle.
	NeededVariables []int `yaml:"neededVariables"`

	// MultiplePerOrderParameter allows more than one nucleus per order parameter.
	MultiplePerOrderParameter bool `yaml:"multiplePerOrderParameter"`

	// OrderParameterCutoff is the summed order parameter value below which a
	// sample point counts as untransformed. Default 0.01.
	OrderParameterCutoff float64 `yaml:"orderParameterCutoff"`

	// ActivityThreshold is the summed order parameter value above which a
	// sample point counts as transformed in overlap checks. Default 0.1.
	ActivityThreshold float64 `yaml:"activityThreshold"`

	// MinDistance is the minimum center distance between any two new nuclei.
	MinDistance float64 `yaml:"minDistance"`

	// MinDistanceSameOrderParameter is the minimum center distance between new
	// nuclei of one order parameter.
	MinDistanceSameOrderParameter float64 `yaml:"minDistanceSameOrderParameter"`

	// MinRefinementDepth and MaxRefinementDepth bound adaptive refinement.
	MinRefinementDepth int `yaml:"minRefinementDepth"`
	MaxRefinementDepth int `yaml:"maxRefinementDepth"`

	// AdaptiveRefinement refines the mesh around accepted nuclei.
	AdaptiveRefinement bool `yaml:"adaptiveRefinement"`

	// AttemptInterval is the number of steps between nucleation attempts. Default 1.
	AttemptInterval int `yaml:"attemptInterval"`

	// TimeStep is the simulated time per step. Default 1.
	TimeStep float64 `yaml:"timeStep"`

	// StartTime and EndTime bound the nucleation window. EndTime zero means
	// no upper bound.
	StartTime float64 `yaml:"startTime"`
	EndTime   float64 `yaml:"endTime"`

	// Seed is the base seed of every partition's random stream.
	Seed uint64 `yaml:"seed"`
}

// DefaultConfig returns a 2D 100×100 configuration with no order parameters.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		Dimension:            2,
		DomainSize:           []float64{100, 100},
		Subdivisions:         []int{1, 1},
		OrderParameterCutoff: 0.01,
		ActivityThreshold:    safety.DefaultActivityThreshold,
		AttemptInterval:      1,
		TimeStep:             1,
		EndTime:              math.Inf(1),
	}
}

// SetDefaults fills in missing configuration values.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Dimension == 0 {
		cfg.Dimension = max(len(cfg.DomainSize), 1)
	}
	if len(cfg.Subdivisions) == 0 {
		cfg.Subdivisions = slices.Repeat([]int{1}, cfg.Dimension)
	}
	if cfg.OrderParameterCutoff == 0 {
		cfg.OrderParameterCutoff = defaults.OrderParameterCutoff
	}
	if cfg.ActivityThreshold == 0 {
		cfg.ActivityThreshold = defaults.ActivityThreshold
	}
	if cfg.AttemptInterval == 0 {
		cfg.AttemptInterval = defaults.AttemptInterval
	}
	if cfg.TimeStep == 0 {
		cfg.TimeStep = defaults.TimeStep
	}
	if cfg.EndTime == 0 {
		cfg.EndTime = defaults.EndTime
	}

	for i := range cfg.OrderParameters {
		op := &cfg.OrderParameters[i]
		if len(op.Periodic) == 0 {
			op.Periodic = make([]bool, cfg.Dimension)
		}
		if len(op.FreezeSemiaxes) == 0 {
			op.FreezeSemiaxes = slices.Clone(op.Semiaxes)
		}
	}
}

// Validate checks configuration constraints.
//
// Hard validation rules:
//   - Dimension in 1..3; DomainSize and Subdivisions have Dimension positive entries
//   - Order parameter indices are non-negative and unique
//   - Periodic, Semiaxes and FreezeSemiaxes have Dimension entries; radii are positive
//   - BorderThickness and HoldTime are non-negative
//   - Rotation is a proper rotation; Rotation and RotationAngles are exclusive
//   - Cutoff, threshold and distances are non-negative
//   - 0 <= MinRefinementDepth <= MaxRefinementDepth
//   - AttemptInterval >= 1, TimeStep > 0, EndTime >= StartTime
//
// Returns:
//   - error: ErrInvalidConfig wrapping the first violation, nil if valid
func (cfg *Config) Validate() error {
	if cfg.Dimension < 1 || cfg.Dimension > 3 {
		return fmt.Errorf("%w: dimension must be 1..3, got %d", ErrInvalidConfig, cfg.Dimension)
	}
	if err := positives("domainSize", cfg.DomainSize, cfg.Dimension); err != nil {
		return err
	}
	if len(cfg.Subdivisions) != cfg.Dimension {
		return fmt.Errorf("%w: subdivisions has %d entries, want %d", ErrInvalidConfig, len(cfg.Subdivisions), cfg.Dimension)
	}
	for a, s := range cfg.Subdivisions {
		if s < 1 {
			return fmt.Errorf("%w: subdivisions[%d] must be >= 1, got %d", ErrInvalidConfig, a, s)
		}
	}

	seen := make(map[int]bool, len(cfg.OrderParameters))
	for i := range cfg.OrderParameters {
		op := &cfg.OrderParameters[i]
		if op.Index < 0 {
			return fmt.Errorf("%w: order parameter index %d is negative", ErrInvalidConfig, op.Index)
		}
		if seen[op.Index] {
			return fmt.Errorf("%w: duplicate order parameter index %d", ErrInvalidConfig, op.Index)
		}
		seen[op.Index] = true

		if err := cfg.validateOrderParameter(op); err != nil {
			return err
		}
	}

	for _, v := range cfg.NeededVariables {
		if v < 0 {
			return fmt.Errorf("%w: needed variable index %d is negative", ErrInvalidConfig, v)
		}
	}

	switch {
	case cfg.OrderParameterCutoff < 0:
		return fmt.Errorf("%w: orderParameterCutoff must be >= 0, got %g", ErrInvalidConfig, cfg.OrderParameterCutoff)
	case cfg.ActivityThreshold < 0:
		return fmt.Errorf("%w: activityThreshold must be >= 0, got %g", ErrInvalidConfig, cfg.ActivityThreshold)
	case cfg.MinDistance < 0 || cfg.MinDistanceSameOrderParameter < 0:
		return fmt.Errorf("%w: minimum distances must be >= 0", ErrInvalidConfig)
	case cfg.MinRefinementDepth < 0 || cfg.MaxRefinementDepth < cfg.MinRefinementDepth:
		return fmt.Errorf("%w: refinement depth bounds [%d, %d] invalid",
			ErrInvalidConfig, cfg.MinRefinementDepth, cfg.MaxRefinementDepth)
	case cfg.AttemptInterval < 1:
		return fmt.Errorf("%w: attemptInterval must be >= 1, got %d", ErrInvalidConfig, cfg.AttemptInterval)
	case cfg.TimeStep <= 0:
		return fmt.Errorf("%w: timeStep must be > 0, got %g", ErrInvalidConfig, cfg.TimeStep)
	case cfg.EndTime < cfg.StartTime:
		return fmt.Errorf("%w: endTime (%g) before startTime (%g)", ErrInvalidConfig, cfg.EndTime, cfg.StartTime)
	}

	return nil
}

func (cfg *Config) validateOrderParameter(op *OrderParameterConfig) error {
	if len(op.Periodic) != 0 && len(op.Periodic) != cfg.Dimension {
		return fmt.Errorf("%w: order parameter %d: periodic has %d entries, want %d",
			ErrInvalidConfig, op.Index, len(op.Periodic), cfg.Dimension)
	}
	if op.BorderThickness < 0 {
		return fmt.Errorf("%w: order parameter %d: negative border thickness", ErrInvalidConfig, op.Index)
	}
	if op.HoldTime < 0 {
		return fmt.Errorf("%w: order parameter %d: negative hold time", ErrInvalidConfig, op.Index)
	}
	if err := positives(fmt.Sprintf("order parameter %d semiaxes", op.Index), op.Semiaxes, cfg.Dimension); err != nil {
		return err
	}
	if len(op.FreezeSemiaxes) != 0 {
		if err := positives(fmt.Sprintf("order parameter %d freezeSemiaxes", op.Index), op.FreezeSemiaxes, cfg.Dimension); err != nil {
			return err
		}
	}
	if len(op.Rotation) != 0 && len(op.RotationAngles) != 0 {
		return fmt.Errorf("%w: order parameter %d: rotation and rotationAngles are exclusive", ErrInvalidConfig, op.Index)
	}
	if len(op.RotationAngles) != 0 {
		if _, err := RotationFromAngles(cfg.Dimension, op.RotationAngles...); err != nil {
			return fmt.Errorf("order parameter %d: %w", op.Index, err)
		}
	}
	if err := ValidateRotation(op.Rotation, cfg.Dimension); err != nil {
		return fmt.Errorf("order parameter %d: %w", op.Index, err)
	}

	return nil
}

func positives(name string, values []float64, dim int) error {
	if len(values) != dim {
		return fmt.Errorf("%w: %s has %d entries, want %d", ErrInvalidConfig, name, len(values), dim)
	}
	for a, v := range values {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s[%d] must be positive and finite, got %g", ErrInvalidConfig, name, a, v)
		}
	}

	return nil
}

// ValidateWithWarnings logs non-fatal configuration concerns.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if len(cfg.OrderParameters) == 0 {
		logger.Warn("no nucleating order parameters configured, attempts will never produce nuclei")
	}
	if cfg.AdaptiveRefinement && cfg.MaxRefinementDepth == cfg.MinRefinementDepth {
		logger.Warn("adaptive refinement enabled with no depth budget",
			"min_refinement_depth", cfg.MinRefinementDepth,
			"max_refinement_depth", cfg.MaxRefinementDepth)
	}
	if cfg.MinDistanceSameOrderParameter > 0 && cfg.MinDistanceSameOrderParameter < cfg.MinDistance {
		logger.Warn("minDistanceSameOrderParameter below minDistance has no effect",
			"min_distance", cfg.MinDistance,
			"min_distance_same_order_parameter", cfg.MinDistanceSameOrderParameter)
	}
	for _, op := range cfg.OrderParameters {
		for axis, size := range cfg.DomainSize {
			if 2*op.BorderThickness >= size && !periodicAxis(op.Periodic, axis) {
				logger.Warn("border thickness leaves no room for nuclei",
					"order_parameter", op.Index, "axis", axis, "border_thickness", op.BorderThickness, "domain_size", size)
			}
		}
	}
}

func periodicAxis(periodic []bool, axis int) bool {
	return axis < len(periodic) && periodic[axis]
}

// TestConfig returns a small 2D configuration with one order parameter,
// suitable for tests and examples.
//
// Returns:
//   - Config: Valid configuration seeding order parameter 0
//
// Example:
//
//	cfg := nucleate.TestConfig()
//	cfg.OrderParameters[0].BorderThickness = 5
func TestConfig() Config {
	cfg := DefaultConfig()
	cfg.Subdivisions = []int{10, 10}
	cfg.OrderParameters = []OrderParameterConfig{{
		Index:           0,
		Periodic:        []bool{false, false},
		BorderThickness: 5,
		Semiaxes:        []float64{3, 3},
		FreezeSemiaxes:  []float64{4, 4},
		HoldTime:        1,
	}}
	cfg.MinDistance = 10
	cfg.MinDistanceSameOrderParameter = 10
	cfg.MaxRefinementDepth = 2
	cfg.Seed = 1

	return cfg
}

// ParseConfig decodes a YAML configuration, applies defaults and validates it.
//
// Parameters:
//   - data: YAML document
//
// Returns:
//   - *Config: Defaulted, validated configuration
//   - error: Decoding or validation failure
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
//
// Example:
//
//	cfg, err := nucleate.LoadConfig("nucleation.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return ParseConfig(data)
}

// shapes builds the order parameter lookup table of a validated config.
func (cfg *Config) shapes() (*geometry.Set, error) {
	ops := make([]geometry.OrderParameter, len(cfg.OrderParameters))
	for i, op := range cfg.OrderParameters {
		rotation := types.Rotation(op.Rotation).Clone()
		if len(op.RotationAngles) != 0 {
			var err error
			if rotation, err = RotationFromAngles(cfg.Dimension, op.RotationAngles...); err != nil {
				return nil, err
			}
		}
		freeze := op.FreezeSemiaxes
		if len(freeze) == 0 {
			freeze = op.Semiaxes
		}
		ops[i] = geometry.OrderParameter{
			Index:           op.Index,
			Periodic:        slices.Clone(op.Periodic),
			BorderThickness: op.BorderThickness,
			Semiaxes:        slices.Clone(op.Semiaxes),
			FreezeSemiaxes:  slices.Clone(freeze),
			Rotation:        rotation,
			HoldTime:        op.HoldTime,
		}
	}

	set, err := geometry.NewSet(cfg.DomainSize, ops)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return set, nil
}

func (cfg *Config) generatorConfig() candidate.Config {
	return candidate.Config{
		NeededVariables:           slices.Clone(cfg.NeededVariables),
		MultiplePerOrderParameter: cfg.MultiplePerOrderParameter,
		OrderParameterCutoff:      cfg.OrderParameterCutoff,
	}
}

func (cfg *Config) validatorConfig() safety.Config {
	return safety.Config{
		MultiplePerOrderParameter: cfg.MultiplePerOrderParameter,
		ActivityThreshold:         cfg.ActivityThreshold,
	}
}

func (cfg *Config) refineConfig() refine.Config {
	return refine.Config{
		Subdivisions: slices.Clone(cfg.Subdivisions),
		MinDepth:     cfg.MinRefinementDepth,
		MaxDepth:     cfg.MaxRefinementDepth,
	}
}
