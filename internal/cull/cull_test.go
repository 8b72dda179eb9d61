package cull

import (
	"sort"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func lookDownZ() Frustum {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 1000)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	return FrustumFromClip(proj.Mul4(view))
}

func TestFrustumAABB(t *testing.T) {
	f := lookDownZ()
	tests := []struct {
		name     string
		min, max mgl32.Vec3
		visible  bool
	}{
		{"in front of camera", mgl32.Vec3{-1, -1, -11}, mgl32.Vec3{1, 1, -9}, true},
		{"behind camera", mgl32.Vec3{-1, -1, 9}, mgl32.Vec3{1, 1, 11}, false},
		{"beyond far plane", mgl32.Vec3{-1, -1, -1200}, mgl32.Vec3{1, 1, -1100}, false},
		{"far off to the side", mgl32.Vec3{500, -1, -11}, mgl32.Vec3{502, 1, -9}, false},
		{"straddling a side plane", mgl32.Vec3{-100, -1, -11}, mgl32.Vec3{100, 1, -9}, true},
		{"surrounding the camera", mgl32.Vec3{-50, -50, -50}, mgl32.Vec3{50, 50, 50}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.AABBVisible(tt.min, tt.max); got != tt.visible {
				t.Errorf("AABBVisible = %v, want %v", got, tt.visible)
			}
		})
	}
}

func TestFrustumSphere(t *testing.T) {
	f := lookDownZ()
	if !f.SphereVisible(mgl32.Vec3{0, 0, -10}, 1) {
		t.Error("sphere ahead of camera should be visible")
	}
	if f.SphereVisible(mgl32.Vec3{0, 0, 10}, 1) {
		t.Error("sphere behind camera should be culled")
	}
	// A sphere whose center is outside but radius reaches in must pass.
	if !f.SphereVisible(mgl32.Vec3{0, 0, 2}, 5) {
		t.Error("sphere overlapping the near plane should be visible")
	}
}

func box(x, y, z float32) AABB {
	return AABB{Min: mgl32.Vec3{x, y, z}, Max: mgl32.Vec3{x + 1, y + 1, z + 1}}
}

func TestTreeInsertRemove(t *testing.T) {
	tr := NewTree(0.1)
	tr.Insert(1, box(0, 0, -10))
	tr.Insert(2, box(5, 0, -10))
	tr.Insert(3, box(0, 0, 50)) // behind camera
	if tr.Len() != 3 {
		t.Fatalf("tree has %d leaves, want 3", tr.Len())
	}

	f := lookDownZ()
	got := tr.CollectVisible(f, nil)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("visible = %v, want [1 2]", got)
	}

	tr.Remove(1)
	got = tr.CollectVisible(f, nil)
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("after remove, visible = %v, want [2]", got)
	}
}

func TestTreeUpdateMovesObject(t *testing.T) {
	tr := NewTree(0.5)
	tr.Insert(1, box(0, 0, -10))
	f := lookDownZ()

	if got := tr.CollectVisible(f, nil); len(got) != 1 {
		t.Fatalf("object should start visible, got %v", got)
	}

	// Move behind the camera.
	tr.Update(1, box(0, 0, 100))
	if got := tr.CollectVisible(f, nil); len(got) != 0 {
		t.Fatalf("moved object should be culled, got %v", got)
	}

	// Small jitter inside the margin must not lose the object.
	tr.Update(1, box(0, 0, -10))
	tr.Update(1, AABB{Min: mgl32.Vec3{0.1, 0, -10}, Max: mgl32.Vec3{1.1, 1, -9}})
	if got := tr.CollectVisible(f, nil); len(got) != 1 {
		t.Fatalf("jittered object should stay visible, got %v", got)
	}
}

func TestTreePrunesSubtrees(t *testing.T) {
	// A big cluster far outside the frustum collapses into one subtree;
	// visibility must still be exact.
	tr := NewTree(0)
	id := ObjectID(0)
	for i := 0; i < 64; i++ {
		tr.Insert(id, box(float32(1000+i), 0, 500))
		id++
	}
	visibleIDs := map[ObjectID]bool{}
	for i := 0; i < 8; i++ {
		tr.Insert(id, box(float32(i), 0, -20))
		visibleIDs[id] = true
		id++
	}

	got := tr.CollectVisible(lookDownZ(), nil)
	if len(got) != len(visibleIDs) {
		t.Fatalf("got %d visible, want %d", len(got), len(visibleIDs))
	}
	for _, g := range got {
		if !visibleIDs[g] {
			t.Fatalf("object %d should not be visible", g)
		}
	}
}

func TestCullerCachesPerFrameAndView(t *testing.T) {
	c := NewCuller(0.1)
	c.Upsert(1, box(0, 0, -10))
	f := lookDownZ()

	c.BeginFrame()
	a := c.Visible(ViewMain, f)
	b := c.Visible(ViewMain, f)
	if &a[0] != &b[0] {
		t.Error("same frame and view should return the cached slice")
	}

	// A different view recomputes even within the frame.
	side := FrustumFromClip(mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 1000).
		Mul4(mgl32.LookAtV(mgl32.Vec3{}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0})))
	if got := c.Visible(ViewCascade0, side); len(got) != 0 {
		t.Errorf("side view should cull the object, got %v", got)
	}

	// Next frame invalidates the cache; a moved object changes the result.
	c.Upsert(1, box(0, 0, 100))
	c.BeginFrame()
	if got := c.Visible(ViewMain, f); len(got) != 0 {
		t.Errorf("moved object should be culled next frame, got %v", got)
	}
}

func BenchmarkCollectVisible(b *testing.B) {
	tr := NewTree(0.5)
	id := ObjectID(0)
	for x := -32; x < 32; x++ {
		for z := -32; z < 32; z++ {
			tr.Insert(id, box(float32(x*16), 0, float32(z*16)))
			id++
		}
	}
	f := lookDownZ()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tr.CollectVisible(f, nil)
	}
}
