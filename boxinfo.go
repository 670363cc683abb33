package boxtree

// BoxFlags describes a box's role in the tree: whether it carries sources
// or targets of its own (ones that do not propagate to a child) and whether
// sources or targets live in its descendants.
type BoxFlags uint8

const (
	BoxHasOwnSources BoxFlags = 1 << iota
	BoxHasOwnTargets
	BoxHasChildSources
	BoxHasChildTargets
	BoxHasChildren

	BoxHasSources = BoxHasOwnSources | BoxHasChildSources
	BoxHasTargets = BoxHasOwnTargets | BoxHasChildTargets
)

// boxInfo carries the outputs of the box info pass into tree assembly.
type boxInfo struct {
	childIDs []int32 // lanes per box, 0 = no child in that octant
	centers  [][]float64
	flags    []BoxFlags
}

// extractBoxInfo computes per-box flags, child links and centers. It also
// finishes the nonchild counts in st: every particle of a leaf box is its
// own, including ones the level loop still counted as potential
// child particles.
func (b *builder) extractBoxInfo(st srcTgt) boxInfo {
	nboxes := b.nboxes
	info := boxInfo{
		childIDs: make([]int32, nboxes*b.lanes),
		centers:  make([][]float64, b.dims),
		flags:    make([]BoxFlags, nboxes),
	}
	for ax := range info.centers {
		info.centers[ax] = make([]float64, nboxes)
	}

	parallelFor(nboxes, b.cfg.Workers, func(start, end int) {
		for box := start; box < end; box++ {
			count := b.boxCountsCumul[box]
			if count == 0 {
				// Only the unpruned tree has empty boxes; their other
				// fields are uninitialized, so leave them alone.
				continue
			}

			nonchildSources := st.boxSourceCountsNonchild[box]
			nonchildTargets := st.boxTargetCountsNonchild[box]

			var flags BoxFlags
			if b.boxHasChildren[box] {
				flags |= BoxHasChildren
				if b.sourcesAreTargets {
					if count-(nonchildSources+nonchildTargets) != 0 {
						flags |= BoxHasChildSources | BoxHasChildTargets
					}
				} else {
					if st.boxSourceCountsCumul[box]-nonchildSources != 0 {
						flags |= BoxHasChildSources
					}
					if st.boxTargetCountsCumul[box]-nonchildTargets != 0 {
						flags |= BoxHasChildTargets
					}
				}
				if nonchildSources != 0 {
					flags |= BoxHasOwnSources
				}
				if nonchildTargets != 0 {
					flags |= BoxHasOwnTargets
				}
			} else {
				// A leaf keeps all of its particles, including ones the
				// level loop still considered fit for a deeper level.
				if b.sourcesAreTargets {
					flags |= BoxHasOwnSources | BoxHasOwnTargets
					// Source and target nonchild counts alias the same
					// array here.
					st.boxSourceCountsNonchild[box] = count
				} else {
					sources := st.boxSourceCountsCumul[box]
					targets := count - sources
					if sources != 0 {
						flags |= BoxHasOwnSources
					}
					if targets != 0 {
						flags |= BoxHasOwnTargets
					}
					st.boxSourceCountsNonchild[box] = sources
					st.boxTargetCountsNonchild[box] = targets
				}
			}
			info.flags[box] = flags

			if box != 0 {
				parent := b.boxParents[box]
				mnr := b.boxMortonNumbers[box]
				info.childIDs[int(parent)*b.lanes+int(mnr)] = int32(box)
			}

			b.computeCenter(box, info.centers)
		}
	})

	return info
}

// computeCenter walks from the box up to the root, halving the center
// offset and shifting by the octant bit at every step, then maps the
// root-relative offset into the root box.
func (b *builder) computeCenter(box int, centers [][]float64) {
	var center [maxDimensions]float64

	current := int32(box)
	parent := b.boxParents[current]
	mnr := b.boxMortonNumbers[current]
	for parent != current {
		for ax := 0; ax < b.dims; ax++ {
			var bit float64
			if mnr&(1<<uint(b.dims-1-ax)) != 0 {
				bit = 1
			}
			center[ax] = 0.5 * (center[ax] - 0.5 + bit)
		}
		current = parent
		parent = b.boxParents[current]
		mnr = b.boxMortonNumbers[current]
	}

	for ax := 0; ax < b.dims; ax++ {
		centers[ax][box] = b.bbox.Min[ax] + b.rootExtent*(0.5+center[ax])
	}
}
