// Package boxtree builds hierarchical spatial partitions (quadtrees,
// octrees and their 1D/4D analogues) over large unordered point sets,
// subject to a maximum-occupancy constraint per leaf box.
//
// The resulting Tree is the spatial index consumed by multipole-expansion
// evaluators (such as Fast Multipole Method solvers) to turn all-pairs
// interactions into hierarchical near/far interaction lists. The tree is
// rebuilt from scratch on every call; construction is a data-parallel,
// level-by-level pipeline of scan and elementwise passes, so the same code
// path scales from thousands to millions of particles.
//
// Basic usage:
//
//	cfg := boxtree.DefaultConfig()
//	cfg.MaxParticlesInBox = 30
//	tree, err := boxtree.BuildTree(boxtree.Particles{Coords: coords}, nil, cfg)
//	// tree.BoxSourceStarts[b], tree.BoxSourceCounts[b] delimit the
//	// contiguous tree-order particle range owned by box b.
//	// tree.UserSourceIDs converts tree order back to input order.
//
// Sources and targets may be distinct point sets; pass the targets as the
// second argument and both are sorted into the same set of boxes. Particles
// may carry an extent radius, in which case a particle whose inflated extent
// would straddle a child-box boundary stays behind in its current box as a
// "non-child" particle instead of descending.
//
// # Construction algorithm
//
// Each level is realized by three passes over the particles: a segmented
// scan counts, per box, how many particles fall into each of the 2^d child
// octants; a global scan decides which boxes split and allocates contiguous
// child-box id ranges; an elementwise pass then moves every particle to its
// new position and materializes the child-box records. The loop runs until
// no box exceeds its capacity or Config.MaxLevels is hit. Empty boxes are
// pruned afterwards and per-box metadata (centers, flags, child pointers)
// is extracted in a final pass.
package boxtree
