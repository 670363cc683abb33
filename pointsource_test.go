package boxtree

import (
	"math/rand"
	"testing"
)

// pointSourceFixture builds a tree over expansion centers and a CSR table
// of per-center point sources scattered around each center.
func pointSourceFixture(t *testing.T, rng *rand.Rand, ncenters int) (*Tree, [][]float64, []int32) {
	t.Helper()

	centers := randomCoords(rng, ncenters, 2)
	cfg := DefaultConfig()
	cfg.MaxParticlesInBox = 8
	tree, err := BuildTree(Particles{Coords: centers}, nil, cfg)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	starts := make([]int32, ncenters+1)
	for s := 0; s < ncenters; s++ {
		starts[s+1] = starts[s] + int32(rng.Intn(4))
	}
	npoint := int(starts[ncenters])
	points := make([][]float64, 2)
	for ax := range points {
		points[ax] = make([]float64, npoint)
	}
	for s := 0; s < ncenters; s++ {
		for p := starts[s]; p < starts[s+1]; p++ {
			for ax := range points {
				points[ax][p] = centers[ax][s] + rng.NormFloat64()*0.01
			}
		}
	}
	return tree, points, starts
}

func TestLinkPointSources(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tree, points, starts := pointSourceFixture(t, rng, 500)

	link, err := tree.LinkPointSources(points, starts, 4)
	if err != nil {
		t.Fatalf("LinkPointSources: %v", err)
	}

	npoint := int(starts[len(starts)-1])
	if link.NPointSources != npoint {
		t.Fatalf("NPointSources = %d, want %d", link.NPointSources, npoint)
	}

	// Per-source ranges tile the point source order, in tree source order.
	var pos int32
	for i := 0; i < tree.NSources(); i++ {
		if link.TreeSourceStarts[i] != pos {
			t.Fatalf("source %d: start %d, want %d", i, link.TreeSourceStarts[i], pos)
		}
		uid := tree.UserSourceIDs[i]
		wantCount := starts[uid+1] - starts[uid]
		if link.TreeSourceCounts[i] != wantCount {
			t.Fatalf("source %d: count %d, want %d", i, link.TreeSourceCounts[i], wantCount)
		}
		// Each slot maps back to the owning center's user range, in order.
		for k := int32(0); k < wantCount; k++ {
			if link.UserPointSourceIDs[pos+k] != starts[uid]+k {
				t.Fatalf("source %d slot %d: user id %d, want %d",
					i, k, link.UserPointSourceIDs[pos+k], starts[uid]+k)
			}
		}
		pos += wantCount
	}
	if int(pos) != npoint {
		t.Fatalf("ranges cover %d point sources, want %d", pos, npoint)
	}

	// Tree-order coordinates are the user coordinates permuted.
	for ax := range points {
		for p := 0; p < npoint; p++ {
			if link.PointSources[ax][p] != points[ax][link.UserPointSourceIDs[p]] {
				t.Fatalf("axis %s: point source %d mispermuted", axisNames[ax], p)
			}
		}
	}

	// Box ranges are consistent with the ordinary source ranges.
	if int(link.BoxPointSourceCounts[0]) != npoint {
		t.Errorf("root point source count = %d, want %d", link.BoxPointSourceCounts[0], npoint)
	}
	for b := int32(0); b < int32(tree.NBoxes()); b++ {
		sStart, sCount := tree.BoxSourceStarts[b], tree.BoxSourceCounts[b]
		var want int32
		for i := sStart; i < sStart+sCount; i++ {
			want += link.TreeSourceCounts[i]
		}
		if link.BoxPointSourceCounts[b] != want {
			t.Errorf("box %d: point source count %d, want %d", b, link.BoxPointSourceCounts[b], want)
		}
		if sCount > 0 && link.BoxPointSourceStarts[b] != link.TreeSourceStarts[sStart] {
			t.Errorf("box %d: point source start %d, want %d",
				b, link.BoxPointSourceStarts[b], link.TreeSourceStarts[sStart])
		}
		if link.BoxPointSourceCountsNonchild[b] > link.BoxPointSourceCounts[b] {
			t.Errorf("box %d: nonchild point source count %d exceeds cumulative %d",
				b, link.BoxPointSourceCountsNonchild[b], link.BoxPointSourceCounts[b])
		}
	}
}

func TestLinkPointSourcesValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tree, points, starts := pointSourceFixture(t, rng, 50)

	if _, err := tree.LinkPointSources(points, starts[:len(starts)-1], 0); err == nil {
		t.Error("expected error for short offset table")
	}

	bad := make([]int32, len(starts))
	copy(bad, starts)
	bad[0] = 1
	if _, err := tree.LinkPointSources(points, bad, 0); err == nil {
		t.Error("expected error for nonzero first offset")
	}

	copy(bad, starts)
	if len(bad) > 2 {
		bad[1] = bad[len(bad)-1] + 5
		if _, err := tree.LinkPointSources(points, bad, 0); err == nil {
			t.Error("expected error for decreasing offsets")
		}
	}

	if _, err := tree.LinkPointSources(points[:1], starts, 0); err == nil {
		t.Error("expected error for wrong dimensionality")
	}

	short := [][]float64{points[0][:1], points[1][:1]}
	if _, err := tree.LinkPointSources(short, starts, 0); err == nil {
		t.Error("expected error for coordinate length mismatch")
	}
}
