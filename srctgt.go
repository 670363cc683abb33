package boxtree

// srcTgt holds the tree-order particle data and the per-box source/target
// ranges derived from the interleaved srcntgt order once the level loop has
// finished. With shared sources and targets the source and target views
// alias the same backing arrays.
type srcTgt struct {
	sourceCoords [][]float64
	targetCoords [][]float64
	sourceRadii  []float64
	targetRadii  []float64

	userSourceIDs   []int32 // tree source index -> user source index
	sortedSourceIDs []int32 // user source index -> tree source index
	sortedTargetIDs []int32 // user target index -> tree target index

	boxSourceStarts         []int32
	boxSourceCountsCumul    []int32
	boxSourceCountsNonchild []int32
	boxTargetStarts         []int32
	boxTargetCountsCumul    []int32
	boxTargetCountsNonchild []int32
}

// findSourcesAndTargets separates the interleaved srcntgt ordering into
// tree-order source and target data. A particle is a source iff its user id
// is below nsources; sources keep their relative tree order among sources
// and likewise targets among targets, so per-box source and target ranges
// remain contiguous.
func (b *builder) findSourcesAndTargets() srcTgt {
	if b.sourcesAreTargets {
		return b.aliasSourcesAndTargets()
	}

	workers := b.cfg.Workers

	// sourceNumbers[i] is the number of sources strictly before tree
	// position i.
	sourceNumbers := make([]int32, b.n)
	inclusiveScan(b.n, workers, int32(0),
		func(i int) int32 {
			if b.userIDs[i] < int32(b.nsources) {
				return 1
			}
			return 0
		},
		func(a, acc int32, _ bool) int32 { return a + acc },
		nil,
		func(i int, _, prev int32) { sourceNumbers[i] = prev },
	)

	// The nonchild counts exist in every mode: without extents they stay
	// zero here and the box info pass fills in the leaf boxes' own counts.
	st := srcTgt{
		userSourceIDs:           make([]int32, b.nsources),
		sortedSourceIDs:         make([]int32, b.nsources),
		sortedTargetIDs:         make([]int32, b.ntargets),
		boxSourceStarts:         make([]int32, b.nboxes),
		boxSourceCountsCumul:    make([]int32, b.nboxes),
		boxSourceCountsNonchild: make([]int32, b.nboxes),
		boxTargetStarts:         make([]int32, b.nboxes),
		boxTargetCountsCumul:    make([]int32, b.nboxes),
		boxTargetCountsNonchild: make([]int32, b.nboxes),
	}

	// srcntgtTargetIDs[targetNr] is the srcntgt user id of the target, i.e.
	// nsources plus its user target index.
	srcntgtTargetIDs := make([]int32, b.ntargets)

	parallelFor(b.n, workers, func(start, end int) {
		for i := start; i < end; i++ {
			sourceNr := sourceNumbers[i]
			targetNr := int32(i) - sourceNr

			boxID := b.boxIDs[i]
			boxStart := b.boxStarts[boxID]
			userID := b.userIDs[i]
			isSource := userID < int32(b.nsources)

			// First particle of this box, and transitively of any
			// ancestor box sharing the same start? Record the range
			// starts.
			walkBox := boxID
			walkStart := boxStart
			for int32(i) == walkStart {
				st.boxSourceStarts[walkBox] = sourceNr
				st.boxTargetStarts[walkBox] = targetNr

				parent := b.boxParents[walkBox]
				if parent == walkBox {
					break
				}
				walkBox = parent
				walkStart = b.boxStarts[walkBox]
			}

			// Last particle of the box's leading nonchild segment?
			// Record the nonchild source/target split. (The first child
			// particle cannot be used here: the box may have none.)
			if b.haveExtent {
				nonchild := b.boxCountsNonchild[boxID]
				if int32(i)+1 == boxStart+nonchild {
					startSourceNr := sourceNumbers[boxStart]
					startTargetNr := boxStart - startSourceNr
					st.boxSourceCountsNonchild[boxID] =
						sourceNr + boolToI32(isSource) - startSourceNr
					st.boxTargetCountsNonchild[boxID] =
						targetNr + 1 - boolToI32(isSource) - startTargetNr
				}
			}

			// Last particle of this box, and transitively of ancestors
			// ending at the same position? Record the range counts.
			walkBox = boxID
			walkStart = boxStart
			walkCount := b.boxCountsCumul[boxID]
			for int32(i)+1 == walkStart+walkCount {
				startSourceNr := sourceNumbers[walkStart]
				startTargetNr := walkStart - startSourceNr
				st.boxSourceCountsCumul[walkBox] =
					sourceNr + boolToI32(isSource) - startSourceNr
				st.boxTargetCountsCumul[walkBox] =
					targetNr + 1 - boolToI32(isSource) - startTargetNr

				parent := b.boxParents[walkBox]
				if parent == walkBox {
					break
				}
				walkBox = parent
				walkStart = b.boxStarts[walkBox]
				walkCount = b.boxCountsCumul[walkBox]
			}

			if isSource {
				st.userSourceIDs[sourceNr] = userID
				st.sortedSourceIDs[userID] = sourceNr
			} else {
				srcntgtTargetIDs[targetNr] = userID
				st.sortedTargetIDs[userID-int32(b.nsources)] = targetNr
			}
		}
	})

	// Materialize tree-order coordinates (and radii). b.coords holds the
	// user-order concatenation of sources then targets, so both id arrays
	// index it directly.
	st.sourceCoords = make([][]float64, b.dims)
	st.targetCoords = make([][]float64, b.dims)
	for ax := 0; ax < b.dims; ax++ {
		st.sourceCoords[ax] = permuteFloat64(b.coords[ax], st.userSourceIDs, workers)
		st.targetCoords[ax] = permuteFloat64(b.coords[ax], srcntgtTargetIDs, workers)
	}
	if b.haveExtent {
		st.sourceRadii = permuteFloat64(b.radii, st.userSourceIDs, workers)
		st.targetRadii = permuteFloat64(b.radii, srcntgtTargetIDs, workers)
	}

	return st
}

// aliasSourcesAndTargets builds the shared-particle view: the srcntgt order
// is the source order and the target order, and the box particle ranges
// serve as both source and target ranges.
func (b *builder) aliasSourcesAndTargets() srcTgt {
	workers := b.cfg.Workers

	st := srcTgt{
		userSourceIDs:   b.userIDs,
		sortedTargetIDs: make([]int32, b.n),
		// sortedSourceIDs is filled below and aliased, since the source
		// and target orders coincide.

		boxSourceStarts:         b.boxStarts[:b.nboxes],
		boxSourceCountsCumul:    b.boxCountsCumul[:b.nboxes],
		boxSourceCountsNonchild: b.boxCountsNonchild[:b.nboxes],
		boxTargetStarts:         b.boxStarts[:b.nboxes],
		boxTargetCountsCumul:    b.boxCountsCumul[:b.nboxes],
		boxTargetCountsNonchild: b.boxCountsNonchild[:b.nboxes],
	}

	parallelFor(b.n, workers, func(start, end int) {
		for i := start; i < end; i++ {
			st.sortedTargetIDs[b.userIDs[i]] = int32(i)
		}
	})
	st.sortedSourceIDs = st.sortedTargetIDs

	st.sourceCoords = make([][]float64, b.dims)
	for ax := 0; ax < b.dims; ax++ {
		st.sourceCoords[ax] = permuteFloat64(b.coords[ax], b.userIDs, workers)
	}
	st.targetCoords = st.sourceCoords
	if b.haveExtent {
		st.sourceRadii = permuteFloat64(b.radii, b.userIDs, workers)
		st.targetRadii = st.sourceRadii
	}

	return st
}

func permuteFloat64(src []float64, idx []int32, workers int) []float64 {
	out := make([]float64, len(idx))
	parallelFor(len(idx), workers, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = src[idx[i]]
		}
	})
	return out
}

func boolToI32(v bool) int32 {
	if v {
		return 1
	}
	return 0
}
