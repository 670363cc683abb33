package boxtree

import (
	"math/rand"
	"testing"
)

func TestFilterTargets(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tree := buildRandom(t, rng, 1200, 2, func(c *Config) { c.MaxParticlesInBox = 9 }, false)

	mask := make([]bool, tree.NTargets())
	nselected := 0
	for i := range mask {
		mask[i] = rng.Intn(3) != 0
		if mask[i] {
			nselected++
		}
	}

	f, err := tree.FilterTargets(mask, 4)
	if err != nil {
		t.Fatalf("FilterTargets: %v", err)
	}
	if f.NFilteredTargets != nselected {
		t.Fatalf("NFilteredTargets = %d, want %d", f.NFilteredTargets, nselected)
	}
	if len(f.UnfilteredFromFiltered) != nselected {
		t.Fatalf("UnfilteredFromFiltered has %d entries, want %d",
			len(f.UnfilteredFromFiltered), nselected)
	}

	// The filtered order lists exactly the selected targets, ascending in
	// tree order.
	prev := int32(-1)
	for fi, ti := range f.UnfilteredFromFiltered {
		if ti <= prev {
			t.Fatalf("filtered index %d: tree index %d not ascending", fi, ti)
		}
		prev = ti
		uid := -1
		for u, sorted := range tree.SortedTargetIDs {
			if sorted == ti {
				uid = u
				break
			}
		}
		if uid < 0 || !mask[uid] {
			t.Fatalf("filtered index %d maps to unselected target", fi)
		}
		if f.FilteredFromUnfiltered[ti] != int32(fi) {
			t.Fatalf("FilteredFromUnfiltered[%d] = %d, want %d", ti, f.FilteredFromUnfiltered[ti], fi)
		}
	}

	// Per-box filtered counts match a direct count over the box's own
	// targets.
	treeFlags := make([]bool, tree.NTargets())
	for uid, ti := range tree.SortedTargetIDs {
		treeFlags[ti] = mask[uid]
	}
	for b := int32(0); b < int32(tree.NBoxes()); b++ {
		start := tree.BoxTargetStarts[b]
		count := tree.BoxTargetCountsNonchild[b]
		var want int32
		for i := start; i < start+count; i++ {
			if treeFlags[i] {
				want++
			}
		}
		if f.BoxTargetCountsNonchildFiltered[b] != want {
			t.Errorf("box %d: filtered nonchild count %d, want %d",
				b, f.BoxTargetCountsNonchildFiltered[b], want)
		}
	}
}

func TestFilterTargetsAllAndNone(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	tree := buildRandom(t, rng, 300, 2, func(c *Config) { c.MaxParticlesInBox = 10 }, false)

	all := make([]bool, tree.NTargets())
	for i := range all {
		all[i] = true
	}
	f, err := tree.FilterTargets(all, 0)
	if err != nil {
		t.Fatalf("FilterTargets: %v", err)
	}
	if f.NFilteredTargets != tree.NTargets() {
		t.Errorf("all selected: NFilteredTargets = %d, want %d", f.NFilteredTargets, tree.NTargets())
	}
	for b := int32(0); b < int32(tree.NBoxes()); b++ {
		if f.BoxTargetCountsNonchildFiltered[b] != tree.BoxTargetCountsNonchild[b] {
			t.Errorf("all selected: box %d filtered count %d, want %d",
				b, f.BoxTargetCountsNonchildFiltered[b], tree.BoxTargetCountsNonchild[b])
		}
		if f.BoxTargetStartsFiltered[b] != tree.BoxTargetStarts[b] {
			t.Errorf("all selected: box %d filtered start %d, want %d",
				b, f.BoxTargetStartsFiltered[b], tree.BoxTargetStarts[b])
		}
	}

	none := make([]bool, tree.NTargets())
	f, err = tree.FilterTargets(none, 0)
	if err != nil {
		t.Fatalf("FilterTargets: %v", err)
	}
	if f.NFilteredTargets != 0 {
		t.Errorf("none selected: NFilteredTargets = %d, want 0", f.NFilteredTargets)
	}
	for b := int32(0); b < int32(tree.NBoxes()); b++ {
		if f.BoxTargetCountsNonchildFiltered[b] != 0 {
			t.Errorf("none selected: box %d filtered count %d, want 0",
				b, f.BoxTargetCountsNonchildFiltered[b])
		}
	}
}

func TestFilterTargetsMaskLength(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	tree := buildRandom(t, rng, 100, 2, nil, false)
	if _, err := tree.FilterTargets(make([]bool, 99), 0); err == nil {
		t.Error("expected error for short mask")
	}
}
