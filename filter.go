package boxtree

import (
	"fmt"
	"runtime"
)

// FilteredTargets restricts evaluation to a subset of the tree's targets.
// Filtered targets keep their tree order, so each box's filtered targets
// remain one contiguous range of the filtered numbering.
type FilteredTargets struct {
	NFilteredTargets int

	// FilteredFromUnfiltered[i] is the filtered index of tree target i,
	// valid only where the mask selected the target; elsewhere it holds
	// the filtered index the next selected target will get.
	FilteredFromUnfiltered []int32
	// UnfilteredFromFiltered[f] is the tree target index of filtered
	// target f.
	UnfilteredFromFiltered []int32

	BoxTargetStartsFiltered         []int32
	BoxTargetCountsNonchildFiltered []int32
}

// FilterTargets compacts the tree's target numbering down to the targets
// selected by mask, indexed in user target order. workers <= 0 selects one
// worker per CPU.
func (t *Tree) FilterTargets(mask []bool, workers int) (*FilteredTargets, error) {
	ntargets := t.NTargets()
	if len(mask) != ntargets {
		return nil, fmt.Errorf("boxtree: target mask has %d entries, tree has %d targets",
			len(mask), ntargets)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// The mask arrives in user order; the compaction scan runs in tree
	// order.
	treeFlags := make([]bool, ntargets)
	parallelFor(ntargets, workers, func(start, end int) {
		for uid := start; uid < end; uid++ {
			treeFlags[t.SortedTargetIDs[uid]] = mask[uid]
		}
	})

	f := &FilteredTargets{
		FilteredFromUnfiltered: make([]int32, ntargets),
	}
	unfilteredFromFiltered := make([]int32, ntargets)

	inclusiveScan(ntargets, workers, int32(0),
		func(i int) int32 {
			if treeFlags[i] {
				return 1
			}
			return 0
		},
		func(a, acc int32, _ bool) int32 { return a + acc },
		nil,
		func(i int, item, prev int32) {
			f.FilteredFromUnfiltered[i] = prev
			if item != prev {
				unfilteredFromFiltered[prev] = int32(i)
			}
			if i+1 == ntargets {
				f.NFilteredTargets = int(item)
			}
		},
	)
	f.UnfilteredFromFiltered = unfilteredFromFiltered[:f.NFilteredTargets]

	// Per-box filtered ranges cover only the box's own targets; child
	// target ranges are reachable through the child boxes.
	nboxes := t.NBoxes()
	f.BoxTargetStartsFiltered = make([]int32, nboxes)
	f.BoxTargetCountsNonchildFiltered = make([]int32, nboxes)

	parallelFor(nboxes, workers, func(start, end int) {
		for box := start; box < end; box++ {
			unfStart := t.BoxTargetStarts[box]
			unfCount := t.BoxTargetCountsNonchild[box]

			var filteredStart int32
			if int(unfStart) < ntargets {
				filteredStart = f.FilteredFromUnfiltered[unfStart]
			} else {
				filteredStart = int32(f.NFilteredTargets)
			}
			f.BoxTargetStartsFiltered[box] = filteredStart

			if unfCount > 0 {
				postLast := unfStart + unfCount
				var filteredPostLast int32
				if int(postLast) < ntargets {
					filteredPostLast = f.FilteredFromUnfiltered[postLast]
				} else {
					filteredPostLast = int32(f.NFilteredTargets)
				}
				f.BoxTargetCountsNonchildFiltered[box] = filteredPostLast - filteredStart
			}
		}
	})

	return f, nil
}
