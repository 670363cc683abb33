package boxtree

// splitAndSort is the elementwise realization pass for one level. For each
// particle of a splitting box it derives, purely from the scan outputs, the
// particle's new position inside the box's range and its new box id, and
// writes both into the next buffers. Particles of non-splitting boxes are
// copied through unchanged.
//
// Within a splitting box the new order is: non-child particles first, then
// the particles of octant 0, 1, ... in increasing Morton order. Positions
// are derived bijectively from the cumulative counts, so no two particles
// write the same output slot and the order is independent of scheduling.
//
// The unique particle whose local cumulative count equals its octant's
// total additionally materializes that child box's metadata record and
// tests whether the child is still over capacity, which keeps the level
// loop running.
func (b *builder) splitAndSort() {
	parallelFor(b.n, b.cfg.Workers, func(start, end int) {
		for i := start; i < end; i++ {
			b.realizeParticle(i)
		}
	})
}

func (b *builder) realizeParticle(i int) {
	ibox := b.boxIDs[i]

	doSplit := b.boxHasChildren[ibox]
	if b.haveExtent {
		// A box created two or more levels ago may still hold stuck
		// particles while being marked as split. Those particles were
		// already placed; never re-sort them.
		doSplit = doSplit && int(b.boxLevels[ibox])+1 == b.level
	}
	if !doSplit {
		b.newUserIDs[i] = b.userIDs[i]
		b.newBoxIDs[i] = ibox
		return
	}

	mnr := b.mortonNrs[i]
	boxCounts := &b.boxMortonBinCounts[ibox]
	myCount := b.mortonBinCounts[i].laneCount(mnr)

	boxStart := b.boxStarts[ibox]

	// New position: non-child block, then all lower octants, then my rank
	// within my octant.
	tgt := boxStart + myCount - 1
	if mnr >= 0 {
		tgt += boxCounts.nonchild
		for m := int8(0); m < mnr; m++ {
			tgt += boxCounts.pcnt[m]
		}
	}

	b.newUserIDs[tgt] = b.userIDs[i]

	var newBox int32
	if mnr < 0 {
		// Stuck particle: stays attached to its current box.
		newBox = ibox
	} else {
		newBox = int32(b.splitBoxIDs[i] - int64(b.lanes) + int64(mnr))
	}
	b.newBoxIDs[tgt] = newBox

	// Last particle of a non-empty octant writes the child box record.
	if mnr >= 0 && boxCounts.pcnt[mnr] == myCount {
		newStart := boxStart + boxCounts.nonchild
		for m := int8(0); m < mnr; m++ {
			newStart += boxCounts.pcnt[m]
		}

		b.boxStartFlags[newStart] = true
		b.boxStarts[newBox] = newStart
		b.boxParents[newBox] = ibox
		b.boxMortonNumbers[newBox] = mnr
		b.boxCountsCumul[newBox] = boxCounts.pcnt[mnr]
		b.boxLevels[newBox] = uint8(b.level)

		if boxCounts.pwt[mnr] > b.maxLeafWeight {
			b.haveOversize.Store(true)
		}
	}
}
