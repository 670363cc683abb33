package boxtree

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// axisNames names the supported coordinate axes; its length bounds the
// dimensionality the builder accepts.
var axisNames = [...]string{"x", "y", "z", "w"}

// maxDimensions is the highest supported dimensionality.
const maxDimensions = len(axisNames)

// BBox is an axis-aligned bounding box with per-axis minima and maxima.
// Min and Max have one entry per dimension.
type BBox struct {
	Min []float64
	Max []float64
}

// FindBoundingBox computes the axis-aligned bounding box of the given
// per-axis coordinate arrays using a parallel reduction. numWorkers <= 1
// falls back to a sequential pass over each axis.
func FindBoundingBox(coords [][]float64, numWorkers int) BBox {
	dims := len(coords)
	bb := BBox{
		Min: make([]float64, dims),
		Max: make([]float64, dims),
	}
	if dims == 0 || len(coords[0]) == 0 {
		return bb
	}

	if numWorkers <= 1 {
		for ax := 0; ax < dims; ax++ {
			bb.Min[ax] = floats.Min(coords[ax])
			bb.Max[ax] = floats.Max(coords[ax])
		}
		return bb
	}

	type axisBounds struct {
		min, max float64
	}
	for ax := 0; ax < dims; ax++ {
		c := coords[ax]
		agg := reduce(len(c), numWorkers,
			axisBounds{min: c[0], max: c[0]},
			func(i int) axisBounds {
				return axisBounds{min: c[i], max: c[i]}
			},
			func(a, b axisBounds) axisBounds {
				if b.min < a.min {
					a.min = b.min
				}
				if b.max > a.max {
					a.max = b.max
				}
				return a
			})
		bb.Min[ax] = agg.min
		bb.Max[ax] = agg.max
	}
	return bb
}

// rootBox turns a raw bounding box into the square root box used for
// subdivision: its extent is the largest axis extent inflated by a small
// factor, so that scaled coordinates never reach 1.0 exactly and the
// top-level Morton bit is always well defined. A box with zero extent on
// every axis (all particles coincident) gets a unit extent; subdivision
// then makes no progress and the level bound catches it.
func rootBox(bb BBox) (root BBox, extent float64) {
	dims := len(bb.Min)
	extent = 0
	for ax := 0; ax < dims; ax++ {
		if e := bb.Max[ax] - bb.Min[ax]; e > extent {
			extent = e
		}
	}
	extent *= 1 + 1e-4
	if extent == 0 {
		extent = 1
	}

	root = BBox{
		Min: make([]float64, dims),
		Max: make([]float64, dims),
	}
	copy(root.Min, bb.Min)
	for ax := 0; ax < dims; ax++ {
		root.Max[ax] = root.Min[ax] + extent
	}
	return root, extent
}

// validateBBox rejects externally supplied bounding boxes that cannot be
// subdivided: mismatched dimensionality or a zero or negative extent on
// some axis.
func validateBBox(bb *BBox, dims int) error {
	if len(bb.Min) != dims || len(bb.Max) != dims {
		return fmt.Errorf("boxtree: BoundingBox has %d/%d axes, want %d",
			len(bb.Min), len(bb.Max), dims)
	}
	for ax := 0; ax < dims; ax++ {
		if !(bb.Max[ax] > bb.Min[ax]) {
			return fmt.Errorf("boxtree: BoundingBox is degenerate on axis %s: [%g, %g]",
				axisNames[ax], bb.Min[ax], bb.Max[ax])
		}
	}
	return nil
}
