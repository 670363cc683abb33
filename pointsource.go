package boxtree

import (
	"fmt"
	"runtime"
)

// PointSourceLinkage extends a tree whose sources are expansion centers
// with the fine point sources behind each center. Point sources appear in
// tree source order, concatenated per source, so every box's point sources
// form one contiguous range just like its ordinary sources.
type PointSourceLinkage struct {
	// Point source coordinates in tree order, one slice per axis.
	PointSources [][]float64

	NPointSources int

	UserPointSourceIDs []int32 // tree point source index -> user index

	// TreeSourceStarts[i] is the first tree point source of tree source
	// i; it owns TreeSourceCounts[i] of them.
	TreeSourceStarts []int32
	TreeSourceCounts []int32

	BoxPointSourceStarts         []int32
	BoxPointSourceCounts         []int32
	BoxPointSourceCountsNonchild []int32
}

// LinkPointSources attaches point sources to the tree's sources.
// pointSourceStarts is a user-order offset table of length NSources()+1:
// user source s owns the user point sources
// [pointSourceStarts[s], pointSourceStarts[s+1]). pointSources holds the
// point source coordinates in user order, one slice per axis. workers <= 0
// selects one worker per CPU.
func (t *Tree) LinkPointSources(pointSources [][]float64, pointSourceStarts []int32, workers int) (*PointSourceLinkage, error) {
	nsources := t.NSources()
	if len(pointSourceStarts) != nsources+1 {
		return nil, fmt.Errorf("boxtree: pointSourceStarts must have %d entries, got %d",
			nsources+1, len(pointSourceStarts))
	}
	if pointSourceStarts[0] != 0 {
		return nil, fmt.Errorf("boxtree: pointSourceStarts must begin at 0")
	}
	for s := 0; s < nsources; s++ {
		if pointSourceStarts[s+1] < pointSourceStarts[s] {
			return nil, fmt.Errorf("boxtree: pointSourceStarts must be non-decreasing")
		}
	}
	npoint := int(pointSourceStarts[nsources])
	if len(pointSources) != t.Dimensions {
		return nil, fmt.Errorf("boxtree: point sources have %d dimensions, tree has %d",
			len(pointSources), t.Dimensions)
	}
	for ax := range pointSources {
		if len(pointSources[ax]) != npoint {
			return nil, fmt.Errorf("boxtree: point source axis %s has %d coordinates, offset table promises %d",
				axisNames[ax], len(pointSources[ax]), npoint)
		}
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	link := &PointSourceLinkage{
		NPointSources:    npoint,
		TreeSourceStarts: make([]int32, nsources),
		TreeSourceCounts: make([]int32, nsources),
	}

	// Scan over sources in tree order: each source contributes its point
	// source count, giving per-source tree-order ranges.
	inclusiveScan(nsources, workers, int32(0),
		func(i int) int32 {
			uid := t.UserSourceIDs[i]
			return pointSourceStarts[uid+1] - pointSourceStarts[uid]
		},
		func(a, acc int32, _ bool) int32 { return a + acc },
		nil,
		func(i int, item, prev int32) {
			link.TreeSourceStarts[i] = prev
			link.TreeSourceCounts[i] = item - prev
		},
	)

	// Each source owns a disjoint tree-order range, so the id fill is
	// race free.
	link.UserPointSourceIDs = make([]int32, npoint)
	parallelFor(nsources, workers, func(start, end int) {
		for i := start; i < end; i++ {
			userStart := pointSourceStarts[t.UserSourceIDs[i]]
			treeStart := link.TreeSourceStarts[i]
			for k := int32(0); k < link.TreeSourceCounts[i]; k++ {
				link.UserPointSourceIDs[treeStart+k] = userStart + k
			}
		}
	})

	link.PointSources = make([][]float64, t.Dimensions)
	for ax := 0; ax < t.Dimensions; ax++ {
		link.PointSources[ax] = permuteFloat64(pointSources[ax], link.UserPointSourceIDs, workers)
	}

	// Per-box point source ranges, derived from the box's ordinary source
	// range: the box's point sources run from its first source's range to
	// its last source's range.
	nboxes := t.NBoxes()
	link.BoxPointSourceStarts = make([]int32, nboxes)
	link.BoxPointSourceCounts = make([]int32, nboxes)
	link.BoxPointSourceCountsNonchild = make([]int32, nboxes)

	countFromRange := func(sStart, sCount, psStart int32) int32 {
		if sCount == 0 {
			return 0
		}
		last := sStart + sCount - 1
		beyond := link.TreeSourceStarts[last] + link.TreeSourceCounts[last]
		return beyond - psStart
	}

	parallelFor(nboxes, workers, func(start, end int) {
		for box := start; box < end; box++ {
			sStart := t.BoxSourceStarts[box]
			var psStart int32
			if int(sStart) < nsources {
				psStart = link.TreeSourceStarts[sStart]
			} else {
				psStart = int32(npoint)
			}
			link.BoxPointSourceStarts[box] = psStart
			link.BoxPointSourceCounts[box] =
				countFromRange(sStart, t.BoxSourceCounts[box], psStart)
			link.BoxPointSourceCountsNonchild[box] =
				countFromRange(sStart, t.BoxSourceCountsNonchild[box], psStart)
		}
	})

	return link, nil
}
