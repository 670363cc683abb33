package boxtree

import (
	"golang.org/x/sync/errgroup"
)

// pruneEmptyBoxes compacts the box-id space by removing boxes that ended up
// with zero particles (the unused siblings of each 2^d split batch). A scan
// over the box array produces the old→new and new→old id maps; every
// box-referencing array is then re-indexed through them. Parent pointers
// can never reference a pruned box, because boxes are only created with
// particles assigned from a non-empty parent; the root is always non-empty
// and keeps id 0. Pruning an already-compact tree is the identity.
func (b *builder) pruneEmptyBoxes() {
	nboxes := b.nboxes

	toBoxID := make([]int32, nboxes)
	fromBoxID := make([]int32, nboxes)
	nPostPrune := nboxes

	input := func(i int) int32 {
		if b.boxCountsCumul[i] == 0 {
			return 1
		}
		return 0
	}
	output := func(i int, item, prev int32) {
		toBoxID[i] = int32(i) - prev
		if b.boxCountsCumul[i] != 0 {
			fromBoxID[int32(i)-prev] = int32(i)
		}
		if i+1 == nboxes {
			nPostPrune = nboxes - int(item)
		}
	}
	inclusiveScan(nboxes, b.cfg.Workers, int32(0), input,
		func(a, acc int32, _ bool) int32 { return a + acc },
		nil, output)

	if nPostPrune == nboxes {
		return
	}

	// Compact all per-box arrays; the copies are independent, so they run
	// concurrently.
	var g errgroup.Group
	g.Go(func() error {
		b.boxStarts = gappyCopy(b.boxStarts, fromBoxID, nPostPrune)
		return nil
	})
	g.Go(func() error {
		b.boxCountsCumul = gappyCopy(b.boxCountsCumul, fromBoxID, nPostPrune)
		return nil
	})
	g.Go(func() error {
		b.boxCountsNonchild = gappyCopy(b.boxCountsNonchild, fromBoxID, nPostPrune)
		return nil
	})
	g.Go(func() error {
		// Parent pointers contain box ids and must be mapped as well as
		// compacted.
		out := make([]int32, nPostPrune)
		for i := 0; i < nPostPrune; i++ {
			out[i] = toBoxID[b.boxParents[fromBoxID[i]]]
		}
		b.boxParents = out
		return nil
	})
	g.Go(func() error {
		b.boxMortonNumbers = gappyCopy(b.boxMortonNumbers, fromBoxID, nPostPrune)
		return nil
	})
	g.Go(func() error {
		b.boxLevels = gappyCopy(b.boxLevels, fromBoxID, nPostPrune)
		return nil
	})
	g.Go(func() error {
		b.boxHasChildren = gappyCopy(b.boxHasChildren, fromBoxID, nPostPrune)
		return nil
	})
	g.Go(func() error {
		// Per-particle box assignments move to the new id space.
		parallelFor(b.n, b.cfg.Workers, func(start, end int) {
			for i := start; i < end; i++ {
				b.boxIDs[i] = toBoxID[b.boxIDs[i]]
			}
		})
		return nil
	})
	_ = g.Wait()

	for l := 0; l < len(b.levelStarts)-1; l++ {
		b.levelStarts[l] = toBoxID[b.levelStarts[l]]
	}
	b.levelStarts[len(b.levelStarts)-1] = int32(nPostPrune)

	b.nboxes = nPostPrune
}

// gappyCopy compacts ary to the surviving boxes listed in fromIndices.
func gappyCopy[T any](ary []T, fromIndices []int32, n int) []T {
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = ary[fromIndices[i]]
	}
	return out
}
