package boxtree

import "math"

// maxLanes is the widest child fan-out (2^maxDimensions). Count records are
// fixed-capacity value types so the scan merge stays allocation-free; only
// the first 2^dims lanes of each record are ever touched.
const maxLanes = 1 << maxDimensions

// nonChildMorton marks a particle that stays attached to its current box
// instead of descending into a child, because its inflated extent would
// cross a child-box boundary.
const nonChildMorton int8 = -1

// mortonCounts is the composite record pushed through the per-level
// segmented scan: a particle count and a refine-weight total per child
// octant, plus the count of non-child particles, all relative to the
// particle's current box. The merge below is associative and commutative in
// every field, so the scan may combine partial ranges in any decomposition.
type mortonCounts struct {
	nonchild int32
	pcnt     [maxLanes]int32
	pwt      [maxLanes]int32
}

// addSat32 adds two int32 values, saturating at math.MaxInt32 instead of
// wrapping. Refine-weight totals use this so pathological weights degrade
// to "very overfull" rather than overflowing into a negative total.
func addSat32(a, b int32) int32 {
	s := int64(a) + int64(b)
	if s > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(s)
}

// total returns the number of particles accounted for in the record.
func (mc *mortonCounts) total(lanes int) int32 {
	t := mc.nonchild
	for m := 0; m < lanes; m++ {
		t += mc.pcnt[m]
	}
	return t
}

// laneCount returns the count for the given Morton number, with
// nonChildMorton selecting the non-child count.
func (mc *mortonCounts) laneCount(mnr int8) int32 {
	if mnr < 0 {
		return mc.nonchild
	}
	return mc.pcnt[mnr]
}

// refineWeight returns the accumulated refine weight of all child-bound
// particles, saturating. Non-child particles do not count: they stay put,
// so their weight cannot be reduced by splitting.
func (mc *mortonCounts) refineWeight(lanes int) int32 {
	var w int32
	for m := 0; m < lanes; m++ {
		w = addSat32(w, mc.pwt[m])
	}
	return w
}

// mortonScanInput computes particle i's local Morton number for the level
// currently being built and returns the corresponding one-hot count record.
// The Morton number is the d-bit index formed by taking, per axis, bit
// `level` of the particle's scaled position: the root box top is strictly
// above every coordinate, so the scaled position is always < 1 and the bit
// is well defined. Side effect: the Morton number is stored for reuse by
// the realization pass.
func (b *builder) mortonScanInput(i int) mortonCounts {
	uid := b.userIDs[i]

	// Level 1 subdivides the root box in two per axis, so the scale factor
	// at the level being built is 2^level.
	scale := float64(uint64(1) << uint(b.level))
	childSizeFactor := 1 / scale

	var radius float64
	stopDescent := false
	if b.haveExtent {
		radius = b.radii[uid]
	}
	// Converts a child box diameter to its stick-out-inflated radius.
	boxRadiusFactor := (1 + b.cfg.StickOutFactor) / 2

	morton := int8(0)
	for ax := 0; ax < b.dims; ax++ {
		min := b.bbox.Min[ax]
		extent := b.bbox.Max[ax] - min
		c := b.coords[ax][uid]

		bits := uint64((c - min) / extent * scale)

		if b.haveExtent {
			childCenter := min + extent*(float64(bits)+0.5)*childSizeFactor
			stickOutRadius := boxRadiusFactor * extent * childSizeFactor
			if c+radius >= childCenter+stickOutRadius ||
				c-radius < childCenter-stickOutRadius {
				stopDescent = true
			}
		}

		morton |= int8(bits&1) << uint(b.dims-1-ax)
	}
	if stopDescent {
		morton = nonChildMorton
	}
	b.mortonNrs[i] = morton

	var r mortonCounts
	if morton < 0 {
		r.nonchild = 1
	} else {
		r.pcnt[morton] = 1
		r.pwt[morton] = b.refineWeights[uid]
	}
	return r
}

// mortonCountScan runs the per-level segmented scan over particles,
// segmented by box-start flags, accumulating per-octant counts and weights.
// Each particle's inclusive record is stored for the realization pass, and
// the last particle of every box captures the box's final aggregate into
// the dense per-box record. "Last" is decided by count equality, not by
// scheduling, so exactly one particle per box performs the capture.
func (b *builder) mortonCountScan() {
	lanes := b.lanes

	combine := func(a, acc mortonCounts, crossSeg bool) mortonCounts {
		if crossSeg {
			return acc
		}
		acc.nonchild += a.nonchild
		for m := 0; m < lanes; m++ {
			acc.pcnt[m] += a.pcnt[m]
			acc.pwt[m] = addSat32(a.pwt[m], acc.pwt[m])
		}
		return acc
	}

	segStart := func(i int) bool { return b.boxStartFlags[i] }

	output := func(i int, item, _ mortonCounts) {
		b.mortonBinCounts[i] = item

		box := b.boxIDs[i]
		myIDInMyBox := item.total(lanes) - 1
		if myIDInMyBox+1 == b.boxCountsCumul[box] {
			b.boxMortonBinCounts[box] = item
		}
	}

	inclusiveScan(b.n, b.cfg.Workers, mortonCounts{},
		b.mortonScanInput, combine, segStart, output)
}
