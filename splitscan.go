package boxtree

// splitDecisionScan is the global (non-segmented) scan over particles whose
// running total is the number of boxes that will exist after this level.
// The first particle in the array seeds the total with the box count
// carried over from the previous level; the first particle of each
// splittable box adds 2^d, reserving a contiguous child-box id range, and
// marks the box as having children. Every particle records the inclusive
// total as its split box id; a splitting box's children then occupy ids
// [splitBoxID-2^d, splitBoxID), indexed by Morton number.
//
// Only boxes created on the immediately preceding level are tested: with
// extents enabled, boxes from earlier levels still hold their stuck
// non-child particles and would otherwise keep requesting child ids on
// every later level.
//
// The returned total is the running box count, on which the caller
// performs the representable-range check before any array is sized or
// indexed with it.
func (b *builder) splitDecisionScan() int64 {
	lanes := int64(b.lanes)

	input := func(i int) int64 {
		var r int64
		if i == 0 {
			r += int64(b.nboxes)
		}

		box := b.boxIDs[i]
		if i != int(b.boxStarts[box]) {
			return r
		}
		if b.haveExtent && int(b.boxLevels[box])+1 != b.level {
			return r
		}

		counts := &b.boxMortonBinCounts[box]
		overfull := false
		if !b.cfg.NonAdaptive {
			overfull = counts.refineWeight(b.lanes) > b.maxLeafWeight
		} else {
			// Refine weights may legitimately be zero, so the
			// non-adaptive test checks particle counts directly.
			overfull = b.boxCountsCumul[box]-counts.nonchild > 0
		}
		if overfull {
			r += lanes
			b.boxHasChildren[box] = true
		}
		return r
	}

	var total int64
	output := func(i int, item, _ int64) {
		b.splitBoxIDs[i] = item
		if i+1 == b.n {
			total = item
		}
	}

	inclusiveScan(b.n, b.cfg.Workers, int64(0), input,
		func(a, acc int64, _ bool) int64 { return a + acc },
		nil, output)

	return total
}
