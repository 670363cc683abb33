package boxtree

import "fmt"

// ConvergenceError reports that the level loop hit Config.MaxLevels before
// every box dropped below its capacity. This is almost always caused by
// many coincident or near-coincident particles whose weight cannot be
// reduced by spatial subdivision. No partial tree is returned.
type ConvergenceError struct {
	// Level is the subdivision level the builder was about to construct.
	Level int
	// NumBoxes is the box count at the time of failure.
	NumBoxes int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("boxtree: level loop did not converge: level bound exceeded at level %d with %d boxes "+
		"(check for coincident particles or raise MaxLevels)", e.Level, e.NumBoxes)
}

// CapacityError reports that the running box count produced by a split
// decision pass exceeds the representable range of box ids. It is detected
// on the scan's running total before any memory is indexed with it.
type CapacityError struct {
	// Level is the subdivision level whose split decisions overflowed.
	Level int
	// NumBoxes is the box count the level would have required.
	NumBoxes int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("boxtree: box count overflow: level %d needs %d boxes, exceeding the box id range",
		e.Level, e.NumBoxes)
}
