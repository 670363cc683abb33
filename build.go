package boxtree

import (
	"math"
	"sync/atomic"
)

// builder owns all working state of one tree construction. The particle-id
// and box-id arrays are double-buffered: the read buffer is immutable
// during a level and the write buffer is written only by the realization
// pass; the buffers swap roles after every level and the final read buffer
// becomes the tree's canonical order. Coordinates are never moved during
// the level loop; they are addressed through the user-id permutation and
// materialized in tree order once, at the end.
type builder struct {
	cfg   *Config
	dims  int
	lanes int // 2^dims

	nsources, ntargets, n int
	sourcesAreTargets     bool
	haveExtent            bool

	// User-order particle data: sources first, then targets.
	coords        [][]float64
	radii         []float64
	refineWeights []int32
	maxLeafWeight int32

	bbox       BBox // square root box, top strictly above all coordinates
	rawBBox    BBox
	rootExtent float64

	// Per-particle arrays. mortonNrs, mortonBinCounts and splitBoxIDs are
	// only valid between the scans and the realization pass of one level.
	userIDs, newUserIDs []int32
	boxIDs, newBoxIDs   []int32
	mortonNrs           []int8
	mortonBinCounts     []mortonCounts
	boxStartFlags       []bool
	splitBoxIDs         []int64

	// Per-box arrays; grown between levels as the box count rises.
	boxMortonBinCounts []mortonCounts
	boxStarts          []int32
	boxCountsCumul     []int32
	boxCountsNonchild  []int32
	boxParents         []int32
	boxMortonNumbers   []int8
	boxLevels          []uint8
	boxHasChildren     []bool

	nboxes      int
	level       int
	levelStarts []int32

	// highestRecordedBox is the box count at the time of the most recent
	// Morton count scan: boxes created after that scan have no valid
	// per-box count record.
	highestRecordedBox int

	haveOversize atomic.Bool
}

func newBuilder(sources, targets *Particles, cfg *Config) *builder {
	b := &builder{
		cfg:               cfg,
		dims:              len(sources.Coords),
		lanes:             1 << len(sources.Coords),
		nsources:          sources.n(),
		sourcesAreTargets: targets == nil,
		haveExtent:        sources.Radii != nil,
	}
	if targets == nil {
		b.ntargets = b.nsources
		b.n = b.nsources
	} else {
		b.ntargets = targets.n()
		b.n = b.nsources + b.ntargets
	}

	// Assemble user-order srcntgt data: sources always precede targets in
	// the canonical numbering.
	b.coords = make([][]float64, b.dims)
	for ax := 0; ax < b.dims; ax++ {
		if targets == nil {
			b.coords[ax] = sources.Coords[ax]
		} else {
			c := make([]float64, b.n)
			copy(c, sources.Coords[ax])
			copy(c[b.nsources:], targets.Coords[ax])
			b.coords[ax] = c
		}
	}
	if b.haveExtent {
		if targets == nil {
			b.radii = sources.Radii
		} else {
			b.radii = make([]float64, b.n)
			copy(b.radii, sources.Radii)
			copy(b.radii[b.nsources:], targets.Radii)
		}
	}

	b.refineWeights = make([]int32, b.n)
	if sources.RefineWeights == nil {
		for i := range b.refineWeights {
			b.refineWeights[i] = 1
		}
	} else {
		copy(b.refineWeights, sources.RefineWeights)
		if targets != nil {
			copy(b.refineWeights[b.nsources:], targets.RefineWeights)
		}
	}

	b.maxLeafWeight = cfg.MaxLeafRefineWeight
	if b.maxLeafWeight == 0 {
		b.maxLeafWeight = int32(min(cfg.MaxParticlesInBox, math.MaxInt32))
	}

	return b
}

// grown extends a per-box array to hold at least n entries, at least
// doubling the allocation so growth stays amortized.
func grown[T any](s []T, n int) []T {
	if len(s) >= n {
		return s
	}
	newLen := 2 * len(s)
	if newLen < n {
		newLen = n
	}
	return append(s, make([]T, newLen-len(s))...)
}

// growBoxArrays makes room for n boxes. Called only between levels, after
// the split decision scan has announced the level's box demand and before
// the realization pass writes the new records; never inside a parallel
// pass.
func (b *builder) growBoxArrays(n int) {
	b.boxMortonBinCounts = grown(b.boxMortonBinCounts, n)
	b.boxStarts = grown(b.boxStarts, n)
	b.boxCountsCumul = grown(b.boxCountsCumul, n)
	b.boxParents = grown(b.boxParents, n)
	b.boxMortonNumbers = grown(b.boxMortonNumbers, n)
	b.boxLevels = grown(b.boxLevels, n)
	b.boxHasChildren = grown(b.boxHasChildren, n)
}

func (b *builder) allocate() {
	n := b.n
	b.userIDs = make([]int32, n)
	for i := range b.userIDs {
		b.userIDs[i] = int32(i)
	}
	b.newUserIDs = make([]int32, n)
	b.boxIDs = make([]int32, n)
	b.newBoxIDs = make([]int32, n)
	b.mortonNrs = make([]int8, n)
	b.mortonBinCounts = make([]mortonCounts, n)
	b.boxStartFlags = make([]bool, n)
	b.splitBoxIDs = make([]int64, n)

	guess := (n+b.cfg.MaxParticlesInBox-1)/b.cfg.MaxParticlesInBox*b.lanes + 1
	b.growBoxArrays(guess)

	// Box 0 is the root: it contains every particle, is its own parent
	// and sits at level 0.
	b.boxCountsCumul[0] = int32(n)
	b.nboxes = 1
	b.highestRecordedBox = 1

	// Level 0 always contains exactly the root box.
	b.levelStarts = []int32{0, 1}
}

// build runs the full construction pipeline: the level loop, non-child
// count extraction, empty-box pruning, source/target index finding and the
// box info pass.
func (b *builder) build() (*Tree, error) {
	if b.cfg.BoundingBox != nil {
		b.rawBBox = *b.cfg.BoundingBox
	} else {
		b.rawBBox = FindBoundingBox(b.coords, b.cfg.Workers)
	}
	b.bbox, b.rootExtent = rootBox(b.rawBBox)

	b.allocate()

	for level := 1; ; level++ {
		if level > b.cfg.MaxLevels {
			return nil, &ConvergenceError{Level: level, NumBoxes: b.nboxes}
		}
		b.level = level

		b.mortonCountScan()
		b.highestRecordedBox = b.nboxes

		nboxesNew := b.splitDecisionScan()
		if nboxesNew > math.MaxInt32 {
			return nil, &CapacityError{Level: level, NumBoxes: nboxesNew}
		}
		if int(nboxesNew) == b.nboxes {
			// No box split at this level. Box contents no longer
			// change, so no deeper level could split either.
			break
		}

		b.growBoxArrays(int(nboxesNew))

		b.haveOversize.Store(false)
		b.splitAndSort()

		b.nboxes = int(nboxesNew)
		b.levelStarts = append(b.levelStarts, int32(b.nboxes))
		b.userIDs, b.newUserIDs = b.newUserIDs, b.userIDs
		b.boxIDs, b.newBoxIDs = b.newBoxIDs, b.boxIDs

		if !b.haveOversize.Load() {
			break
		}
	}

	b.extractNonchildCounts()

	nboxesBeforePrune := b.nboxes
	b.pruneEmptyBoxes()

	st := b.findSourcesAndTargets()
	info := b.extractBoxInfo(st)

	return b.assembleTree(st, info, nboxesBeforePrune), nil
}

// extractNonchildCounts pulls each box's final non-child particle count out
// of the dense per-box Morton records. Boxes created after the last Morton
// scan, and boxes that never owned a particle, have no valid record and
// get zero.
func (b *builder) extractNonchildCounts() {
	b.boxCountsNonchild = make([]int32, b.nboxes)
	if !b.haveExtent {
		return
	}
	parallelFor(b.nboxes, b.cfg.Workers, func(start, end int) {
		for box := start; box < end; box++ {
			if box >= b.highestRecordedBox || b.boxCountsCumul[box] == 0 {
				continue
			}
			b.boxCountsNonchild[box] = b.boxMortonBinCounts[box].nonchild
		}
	})
}
