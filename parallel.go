package boxtree

import (
	"sync"
)

// This file is the parallel execution substrate for tree construction: an
// elementwise map over an index range, an inclusive (optionally segmented)
// scan with a caller-supplied associative merge, and a whole-array
// reduction. All construction passes are built from these three primitives;
// nothing else in the package spawns goroutines on the hot path.
//
// Work is split into contiguous chunks, one per worker. Since chunk ranges
// don't overlap and every output slot is owned by exactly one element, no
// synchronization is needed for writes within a pass. Barriers fall at the
// end of each primitive call.

// parallelFor runs fn over contiguous sub-ranges of [0, n) using multiple
// goroutines. numWorkers controls the degree of parallelism; if <= 1, the
// whole range is processed on the calling goroutine.
func parallelFor(n, numWorkers int, fn func(start, end int)) {
	if n == 0 {
		return
	}
	if numWorkers <= 1 || n == 1 {
		fn(0, n)
		return
	}

	perWorker := (n + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		start := w * perWorker
		end := start + perWorker
		if end > n {
			end = n
		}
		if start >= n {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
}

// scanChunkSummary carries the per-chunk aggregate between the two passes of
// inclusiveScan: the inclusive value at the chunk's last element (assuming a
// neutral incoming prefix) and whether the chunk contains a segment start.
type scanChunkSummary[T any] struct {
	last        T
	hasSegStart bool
}

// inclusiveScan computes an inclusive prefix "sum" of the n elements
// produced by input, using the caller's combine operation, and hands each
// element's inclusive value (plus the preceding one) to output in array
// order within each chunk.
//
// combine(a, b, crossSeg) merges the aggregate a of some range immediately
// preceding the range of b; crossSeg reports whether b's range begins a new
// segment, in which case segment-local fields of a must not leak into b.
// combine must be associative under this flag convention. segStart may be
// nil for an unsegmented scan. prev passed to output is the inclusive value
// of the preceding element (neutral for the first element of a segmentless
// scan's chunk 0).
//
// input may be called up to twice per element (once per pass) and must be
// deterministic; side effects, if any, must be idempotent.
func inclusiveScan[T any](n, numWorkers int, neutral T,
	input func(i int) T,
	combine func(a, b T, crossSeg bool) T,
	segStart func(i int) bool,
	output func(i int, item, prev T),
) {
	if n == 0 {
		return
	}

	numChunks := numWorkers
	if numChunks < 1 {
		numChunks = 1
	}
	if numChunks > n {
		numChunks = n
	}
	perChunk := (n + numChunks - 1) / numChunks
	// Recompute: the last chunk must not be empty.
	numChunks = (n + perChunk - 1) / perChunk

	isSegStart := func(i int) bool {
		return segStart != nil && segStart(i)
	}

	rescan := func(chunk int, carry T, observe bool) scanChunkSummary[T] {
		start := chunk * perChunk
		end := start + perChunk
		if end > n {
			end = n
		}
		running := carry
		hasSeg := false
		for i := start; i < end; i++ {
			x := input(i)
			cross := isSegStart(i)
			if cross {
				hasSeg = true
			}
			prev := running
			running = combine(running, x, cross)
			if observe && output != nil {
				output(i, running, prev)
			}
		}
		return scanChunkSummary[T]{last: running, hasSegStart: hasSeg}
	}

	if numChunks == 1 {
		rescan(0, neutral, true)
		return
	}

	// Pass 1: per-chunk aggregates, assuming a neutral incoming prefix.
	summaries := make([]scanChunkSummary[T], numChunks)
	parallelFor(numChunks, numWorkers, func(cs, ce int) {
		for c := cs; c < ce; c++ {
			summaries[c] = rescan(c, neutral, false)
		}
	})

	// Combine chunk aggregates into per-chunk carries. This part is
	// sequential but touches only numChunks values.
	carries := make([]T, numChunks)
	carries[0] = neutral
	for c := 1; c < numChunks; c++ {
		carries[c] = combine(carries[c-1], summaries[c-1].last, summaries[c-1].hasSegStart)
	}

	// Pass 2: rescan each chunk with its true carry, emitting outputs.
	parallelFor(numChunks, numWorkers, func(cs, ce int) {
		for c := cs; c < ce; c++ {
			rescan(c, carries[c], true)
		}
	})
}

// reduce folds the n elements produced by input with merge. Per-chunk
// partial results are merged in chunk order, so the result is deterministic
// for any associative merge.
func reduce[T any](n, numWorkers int, neutral T,
	input func(i int) T,
	merge func(a, b T) T,
) T {
	if n == 0 {
		return neutral
	}

	numChunks := numWorkers
	if numChunks < 1 {
		numChunks = 1
	}
	if numChunks > n {
		numChunks = n
	}
	perChunk := (n + numChunks - 1) / numChunks
	numChunks = (n + perChunk - 1) / perChunk

	partials := make([]T, numChunks)
	parallelFor(numChunks, numWorkers, func(cs, ce int) {
		for c := cs; c < ce; c++ {
			start := c * perChunk
			end := start + perChunk
			if end > n {
				end = n
			}
			acc := input(start)
			for i := start + 1; i < end; i++ {
				acc = merge(acc, input(i))
			}
			partials[c] = acc
		}
	})

	result := partials[0]
	for c := 1; c < numChunks; c++ {
		result = merge(result, partials[c])
	}
	return result
}
