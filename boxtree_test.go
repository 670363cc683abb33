package boxtree

import (
	"math"
	"math/rand"
	"strings"
	"testing"
)

func randomCoords(rng *rand.Rand, n, dims int) [][]float64 {
	coords := make([][]float64, dims)
	for ax := range coords {
		coords[ax] = make([]float64, n)
		for i := range coords[ax] {
			coords[ax][i] = rng.Float64()*100 - 50
		}
	}
	return coords
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxParticlesInBox != 40 {
		t.Errorf("MaxParticlesInBox: got %d, want 40", cfg.MaxParticlesInBox)
	}
	if cfg.MaxLeafRefineWeight != 0 {
		t.Errorf("MaxLeafRefineWeight: got %d, want 0", cfg.MaxLeafRefineWeight)
	}
	if cfg.NonAdaptive {
		t.Error("NonAdaptive: got true, want false")
	}
	if cfg.StickOutFactor != 0 {
		t.Errorf("StickOutFactor: got %f, want 0", cfg.StickOutFactor)
	}
	if cfg.MaxLevels != 31 {
		t.Errorf("MaxLevels: got %d, want 31", cfg.MaxLevels)
	}
	if cfg.Workers != 0 {
		t.Errorf("Workers: got %d, want 0 (auto)", cfg.Workers)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero MaxParticlesInBox", func(c *Config) { c.MaxParticlesInBox = 0 }},
		{"negative MaxParticlesInBox", func(c *Config) { c.MaxParticlesInBox = -3 }},
		{"negative MaxLeafRefineWeight", func(c *Config) { c.MaxLeafRefineWeight = -1 }},
		{"negative StickOutFactor", func(c *Config) { c.StickOutFactor = -0.1 }},
		{"negative MaxLevels", func(c *Config) { c.MaxLevels = -1 }},
		{"MaxLevels too large", func(c *Config) { c.MaxLevels = 53 }},
		{"negative Workers", func(c *Config) { c.Workers = -2 }},
	}

	rng := rand.New(rand.NewSource(42))
	sources := Particles{Coords: randomCoords(rng, 10, 2)}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := BuildTree(sources, nil, cfg); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestParticleCountLimit(t *testing.T) {
	if err := checkParticleCount(math.MaxInt32, 0); err != nil {
		t.Errorf("count at the id limit rejected: %v", err)
	}
	if err := checkParticleCount(math.MaxInt32, 1); err == nil {
		t.Error("expected an error for counts above the int32 id range")
	}
	if err := checkParticleCount(math.MaxInt32, math.MaxInt32); err == nil {
		t.Error("expected an error for counts above the int32 id range")
	}
	if err := checkParticleCount(0, 0); err == nil {
		t.Error("expected an error for zero particles")
	}
}

func TestBuildTreeInputValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	good := randomCoords(rng, 10, 2)

	tests := []struct {
		name    string
		sources Particles
		targets *Particles
		wantSub string
	}{
		{
			name:    "no axes",
			sources: Particles{},
			wantSub: "dimensionality",
		},
		{
			name:    "too many axes",
			sources: Particles{Coords: randomCoords(rng, 5, 5)},
			wantSub: "dimensionality",
		},
		{
			name: "ragged axes",
			sources: Particles{Coords: [][]float64{
				make([]float64, 10),
				make([]float64, 9),
			}},
			wantSub: "axis y",
		},
		{
			name:    "radii length mismatch",
			sources: Particles{Coords: good, Radii: make([]float64, 3)},
			wantSub: "radii",
		},
		{
			name: "negative radius",
			sources: Particles{Coords: good,
				Radii: append(make([]float64, 9), -1)},
			wantSub: "radii",
		},
		{
			name:    "weights length mismatch",
			sources: Particles{Coords: good, RefineWeights: make([]int32, 4)},
			wantSub: "refine weights",
		},
		{
			name:    "target dims mismatch",
			sources: Particles{Coords: good},
			targets: &Particles{Coords: randomCoords(rng, 5, 3)},
			wantSub: "targets",
		},
		{
			name:    "radii asymmetry",
			sources: Particles{Coords: good, Radii: make([]float64, 10)},
			targets: &Particles{Coords: randomCoords(rng, 5, 2)},
			wantSub: "both have radii",
		},
		{
			name:    "weight asymmetry",
			sources: Particles{Coords: good},
			targets: &Particles{Coords: randomCoords(rng, 5, 2), RefineWeights: make([]int32, 5)},
			wantSub: "refine weights",
		},
		{
			name:    "no particles",
			sources: Particles{Coords: [][]float64{{}, {}}},
			wantSub: "no particles",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildTree(tt.sources, tt.targets, DefaultConfig())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestBuildTreeRejectsBadBoundingBox(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	sources := Particles{Coords: randomCoords(rng, 10, 2)}

	cfg := DefaultConfig()
	cfg.BoundingBox = &BBox{Min: []float64{0, 0}, Max: []float64{0, 0}}
	if _, err := BuildTree(sources, nil, cfg); err == nil {
		t.Error("expected error for degenerate bounding box")
	}

	cfg.BoundingBox = &BBox{Min: []float64{0}, Max: []float64{1}}
	if _, err := BuildTree(sources, nil, cfg); err == nil {
		t.Error("expected error for wrong-dimensional bounding box")
	}
}

func TestBuildTreeWithSuppliedBoundingBox(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	coords := randomCoords(rng, 200, 2)

	cfg := DefaultConfig()
	cfg.MaxParticlesInBox = 10
	cfg.BoundingBox = &BBox{Min: []float64{-60, -60}, Max: []float64{60, 60}}

	tree, err := BuildTree(Particles{Coords: coords}, nil, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.RootExtent < 120 {
		t.Errorf("RootExtent = %g, want >= 120 from the supplied box", tree.RootExtent)
	}
	if tree.NSources() != 200 {
		t.Errorf("NSources = %d, want 200", tree.NSources())
	}
}
