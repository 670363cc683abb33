package boxtree

import "math"

// Tree is the result of BuildTree: particle data in tree order plus the
// per-box structure arrays. All per-box arrays are indexed by box id; box 0
// is always the root. Source and target data are separate views even when
// sources and targets are the same particles, in which case both views
// alias the same backing arrays.
//
// A box's particles occupy the contiguous index range
// [BoxSourceStarts[b], BoxSourceStarts[b]+BoxSourceCounts[b]) of the
// tree-order source arrays, and likewise for targets. The leading
// BoxSourceCountsNonchild[b] entries of the range are the box's own
// sources, the ones that do not belong to any child; the remainder is the
// concatenation of the children's ranges in Morton order.
type Tree struct {
	Dimensions        int
	SourcesAreTargets bool

	// BoundingBox is the square root box: the user bounding box squared
	// up to the largest axis extent, slightly inflated, so that no
	// coordinate reaches its upper face.
	BoundingBox BBox
	RootExtent  float64

	// Coordinates and radii in tree order, one slice per axis. Radii are
	// nil when the particles carry no extent.
	Sources     [][]float64
	Targets     [][]float64
	SourceRadii []float64
	TargetRadii []float64

	UserSourceIDs   []int32 // tree source index -> user source index
	SortedSourceIDs []int32 // user source index -> tree source index
	SortedTargetIDs []int32 // user target index -> tree target index

	BoxSourceStarts         []int32
	BoxSourceCounts         []int32
	BoxSourceCountsNonchild []int32
	BoxTargetStarts         []int32
	BoxTargetCounts         []int32
	BoxTargetCountsNonchild []int32

	BoxParents       []int32
	BoxChildIDs      []int32 // 2^Dimensions slots per box, 0 = no child
	BoxCenters       [][]float64
	BoxLevels        []uint8
	BoxMortonNumbers []int8
	BoxFlags         []BoxFlags

	// LevelStarts[l] is the first box id of level l; level l occupies box
	// ids [LevelStarts[l], LevelStarts[l+1]). len(LevelStarts) is
	// NLevels()+1.
	LevelStarts []int32

	Stats BuildStats
}

// BuildStats reports construction-time figures of one BuildTree run.
type BuildStats struct {
	NLevels           int
	NBoxesBeforePrune int
	NBoxesPruned      int
}

func (b *builder) assembleTree(st srcTgt, info boxInfo, nboxesBeforePrune int) *Tree {
	return &Tree{
		Dimensions:        b.dims,
		SourcesAreTargets: b.sourcesAreTargets,

		BoundingBox: b.bbox,
		RootExtent:  b.rootExtent,

		Sources:     st.sourceCoords,
		Targets:     st.targetCoords,
		SourceRadii: st.sourceRadii,
		TargetRadii: st.targetRadii,

		UserSourceIDs:   st.userSourceIDs,
		SortedSourceIDs: st.sortedSourceIDs,
		SortedTargetIDs: st.sortedTargetIDs,

		BoxSourceStarts:         st.boxSourceStarts,
		BoxSourceCounts:         st.boxSourceCountsCumul,
		BoxSourceCountsNonchild: st.boxSourceCountsNonchild,
		BoxTargetStarts:         st.boxTargetStarts,
		BoxTargetCounts:         st.boxTargetCountsCumul,
		BoxTargetCountsNonchild: st.boxTargetCountsNonchild,

		BoxParents:       b.boxParents[:b.nboxes],
		BoxChildIDs:      info.childIDs,
		BoxCenters:       info.centers,
		BoxLevels:        b.boxLevels[:b.nboxes],
		BoxMortonNumbers: b.boxMortonNumbers[:b.nboxes],
		BoxFlags:         info.flags,

		LevelStarts: b.levelStarts,

		Stats: BuildStats{
			NLevels:           len(b.levelStarts) - 1,
			NBoxesBeforePrune: nboxesBeforePrune,
			NBoxesPruned:      nboxesBeforePrune - b.nboxes,
		},
	}
}

// NBoxes returns the number of boxes in the tree.
func (t *Tree) NBoxes() int {
	return len(t.BoxParents)
}

// NLevels returns the number of levels; the root alone is one level.
func (t *Tree) NLevels() int {
	return len(t.LevelStarts) - 1
}

// NSources returns the number of source particles.
func (t *Tree) NSources() int {
	return len(t.UserSourceIDs)
}

// NTargets returns the number of target particles.
func (t *Tree) NTargets() int {
	return len(t.SortedTargetIDs)
}

// BoxSize returns the edge length of a box at the given level.
func (t *Tree) BoxSize(level uint8) float64 {
	return math.Ldexp(t.RootExtent, -int(level))
}

// Children returns the box's child-id slots in Morton order. A zero entry
// means no child in that octant.
func (t *Tree) Children(box int32) []int32 {
	lanes := 1 << t.Dimensions
	return t.BoxChildIDs[int(box)*lanes : int(box+1)*lanes]
}

// ReorderSourcesToTree permutes a user-order per-source vector into tree
// order.
func (t *Tree) ReorderSourcesToTree(x []float64) []float64 {
	out := make([]float64, len(t.UserSourceIDs))
	for i, uid := range t.UserSourceIDs {
		out[i] = x[uid]
	}
	return out
}

// ReorderPotentialsToUser permutes a tree-order per-target vector (such as
// evaluated potentials) back into user order.
func (t *Tree) ReorderPotentialsToUser(x []float64) []float64 {
	out := make([]float64, len(t.SortedTargetIDs))
	for uid, i := range t.SortedTargetIDs {
		out[uid] = x[i]
	}
	return out
}

// OwningSourceBox returns the id of the box that owns the given user-order
// source: the deepest box whose own (non-child) range contains it, or the
// leaf it descended to.
func (t *Tree) OwningSourceBox(userSource int) int32 {
	return t.owningBox(t.BoxSourceStarts, t.BoxSourceCounts,
		t.BoxSourceCountsNonchild, t.SortedSourceIDs[userSource])
}

// OwningTargetBox is OwningSourceBox for a user-order target.
func (t *Tree) OwningTargetBox(userTarget int) int32 {
	return t.owningBox(t.BoxTargetStarts, t.BoxTargetCounts,
		t.BoxTargetCountsNonchild, t.SortedTargetIDs[userTarget])
}

func (t *Tree) owningBox(starts, counts, nonchild []int32, idx int32) int32 {
	box := int32(0)
	for {
		if t.BoxFlags[box]&BoxHasChildren == 0 {
			return box
		}
		if idx < starts[box]+nonchild[box] {
			// Within the box's own leading segment.
			return box
		}
		next := int32(-1)
		for _, child := range t.Children(box) {
			if child == 0 {
				continue
			}
			if idx >= starts[child] && idx < starts[child]+counts[child] {
				next = child
				break
			}
		}
		if next < 0 {
			return box
		}
		box = next
	}
}
