package boxtree

import (
	"fmt"
	"math"
	"runtime"
)

// Particles is a set of points described by per-axis coordinate arrays.
// Coords has one array per dimension; all arrays must have equal length.
type Particles struct {
	// Coords[ax][i] is the position of particle i on axis ax.
	// len(Coords) is the dimensionality (1 to 4).
	Coords [][]float64

	// Radii optionally assigns each particle an extent radius (>= 0).
	// A particle whose inflated extent would straddle a child-box boundary
	// is retained in its current box as a non-child particle instead of
	// descending. Nil means all particles are points with zero extent.
	Radii []float64

	// RefineWeights optionally assigns each particle an integer cost used
	// in place of its unit count when deciding box overflow, e.g. to
	// account for per-particle quadrature cost. Nil means weight 1 each.
	RefineWeights []int32
}

func (p *Particles) n() int {
	if len(p.Coords) == 0 {
		return 0
	}
	return len(p.Coords[0])
}

// Config controls tree construction.
// Start with [DefaultConfig] and override the fields you need.
type Config struct {
	// MaxParticlesInBox is the leaf capacity in particles. A box whose
	// accumulated refine weight exceeds the capacity is subdivided.
	// Must be >= 1. Default: 40.
	MaxParticlesInBox int

	// MaxLeafRefineWeight is the leaf capacity in accumulated refine
	// weight, for use with Particles.RefineWeights. 0 means use
	// MaxParticlesInBox (with unit weights the two are identical).
	MaxLeafRefineWeight int32

	// NonAdaptive forces every non-empty box to keep subdividing until no
	// box anywhere is over capacity, producing a uniform tree in which all
	// leaves sit on the same level. The default (adaptive) subdivides only
	// over-capacity boxes, allowing underfull non-leaf boxes.
	NonAdaptive bool

	// StickOutFactor is the fraction of a child box's radius by which an
	// extent-bearing particle may cross the child's boundary before it is
	// retained in the parent as a non-child particle. Must be >= 0.
	// Only meaningful when Particles.Radii is set. Default: 0.
	StickOutFactor float64

	// MaxLevels bounds the subdivision depth. If the level loop reaches
	// this bound with an over-capacity box remaining, BuildTree fails with
	// a *ConvergenceError rather than looping forever on coincident
	// particles. Must be in [1, 52]. Default: 31.
	MaxLevels int

	// Workers controls the number of goroutines used by the scan and
	// elementwise passes. 0 means use runtime.NumCPU(). Default: 0 (auto).
	Workers int

	// BoundingBox optionally supplies an externally computed bounding box
	// of all particles. It must be non-degenerate (positive extent on
	// every axis) and enclose every particle. The builder still squares it
	// and inflates the top slightly so scaled coordinates stay below 1.
	// Nil means compute it with FindBoundingBox.
	BoundingBox *BBox
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		MaxParticlesInBox: 40,
		MaxLevels:         31,
	}
}

// applyDefaults fills in zero-valued config fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.MaxLevels == 0 {
		cfg.MaxLevels = 31
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
}

// validateConfig checks that cfg fields are valid and returns a descriptive error if not.
func validateConfig(cfg *Config) error {
	if cfg.MaxParticlesInBox < 1 {
		return fmt.Errorf("boxtree: MaxParticlesInBox must be >= 1, got %d", cfg.MaxParticlesInBox)
	}
	if cfg.MaxLeafRefineWeight < 0 {
		return fmt.Errorf("boxtree: MaxLeafRefineWeight must be >= 0 (0 means use MaxParticlesInBox), got %d",
			cfg.MaxLeafRefineWeight)
	}
	if cfg.StickOutFactor < 0 {
		return fmt.Errorf("boxtree: StickOutFactor must be >= 0, got %f", cfg.StickOutFactor)
	}
	if cfg.MaxLevels < 1 || cfg.MaxLevels > 52 {
		return fmt.Errorf("boxtree: MaxLevels must be in [1, 52], got %d", cfg.MaxLevels)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("boxtree: Workers must be >= 0, got %d", cfg.Workers)
	}
	return nil
}

// checkParticleCount validates the combined source and target count against
// the int32 id width used by the tree-order index arrays.
func checkParticleCount(nsources, ntargets int) error {
	total := int64(nsources) + int64(ntargets)
	if total == 0 {
		return fmt.Errorf("boxtree: no particles")
	}
	if total > math.MaxInt32 {
		return fmt.Errorf("boxtree: %d particles exceed the int32 particle id range", total)
	}
	return nil
}

// validateParticles checks one particle set for consistent shapes.
func validateParticles(p *Particles, dims int, role string) error {
	if len(p.Coords) != dims {
		return fmt.Errorf("boxtree: %s have %d coordinate axes, want %d", role, len(p.Coords), dims)
	}
	n := p.n()
	for ax := range p.Coords {
		if len(p.Coords[ax]) != n {
			return fmt.Errorf("boxtree: %s axis %s has %d coordinates, want %d",
				role, axisNames[ax], len(p.Coords[ax]), n)
		}
	}
	if p.Radii != nil && len(p.Radii) != n {
		return fmt.Errorf("boxtree: %s have %d radii for %d particles", role, len(p.Radii), n)
	}
	for _, r := range p.Radii {
		if r < 0 {
			return fmt.Errorf("boxtree: %s radii must be >= 0, got %g", role, r)
		}
	}
	if p.RefineWeights != nil && len(p.RefineWeights) != n {
		return fmt.Errorf("boxtree: %s have %d refine weights for %d particles",
			role, len(p.RefineWeights), n)
	}
	for _, w := range p.RefineWeights {
		if w < 0 {
			return fmt.Errorf("boxtree: %s refine weights must be >= 0, got %d", role, w)
		}
	}
	return nil
}

// BuildTree sorts the given particles into a tree of boxes and returns the
// resulting Tree. If targets is nil, the sources act as both sources and
// targets; otherwise the two sets are sorted into the same boxes and kept
// apart in the output. Returns an error if the config or input shapes are
// invalid, or with a *ConvergenceError/*CapacityError if construction
// cannot complete.
func BuildTree(sources Particles, targets *Particles, cfg Config) (*Tree, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	dims := len(sources.Coords)
	if dims < 1 || dims > maxDimensions {
		return nil, fmt.Errorf("boxtree: dimensionality must be in [1, %d], got %d", maxDimensions, dims)
	}
	if err := validateParticles(&sources, dims, "sources"); err != nil {
		return nil, err
	}
	if targets != nil {
		if err := validateParticles(targets, dims, "targets"); err != nil {
			return nil, err
		}
		if (sources.Radii != nil) != (targets.Radii != nil) {
			return nil, fmt.Errorf("boxtree: sources and targets must both have radii, or neither")
		}
		if (sources.RefineWeights != nil) != (targets.RefineWeights != nil) {
			return nil, fmt.Errorf("boxtree: sources and targets must both have refine weights, or neither")
		}
	}

	nsources := sources.n()
	ntargets := nsources
	if targets != nil {
		ntargets = targets.n()
	}
	if err := checkParticleCount(nsources, ntargets); err != nil {
		return nil, err
	}
	if cfg.BoundingBox != nil {
		if err := validateBBox(cfg.BoundingBox, dims); err != nil {
			return nil, err
		}
	}

	b := newBuilder(&sources, targets, &cfg)
	return b.build()
}
