package batch

import (
	"math/rand"
	"testing"

	"voxren/internal/meshing"

	"github.com/go-gl/mathgl/mgl32"
)

func opaqueItem(mat MaterialID, pipe PipelineID, mesh MeshID) Item {
	return Item{
		Material:  mat,
		Pipeline:  pipe,
		Mesh:      mesh,
		Kind:      KindInstanced,
		Transform: mgl32.Ident4(),
	}
}

func TestBuildMergesSameKey(t *testing.T) {
	items := []Item{
		opaqueItem(1, 0, 7),
		opaqueItem(1, 0, 7),
		opaqueItem(1, 0, 7),
	}
	plan := Build(items)
	if len(plan.Opaque) != 1 {
		t.Fatalf("expected 1 group, got %d", len(plan.Opaque))
	}
	if got := len(plan.Opaque[0].Transforms); got != 3 {
		t.Fatalf("expected 3 instances, got %d", got)
	}
	if plan.DrawCalls() != 1 {
		t.Fatalf("expected 1 draw call, got %d", plan.DrawCalls())
	}
}

func TestBuildSeparatesByMaterialAndPipeline(t *testing.T) {
	items := []Item{
		opaqueItem(1, 0, 7),
		opaqueItem(2, 0, 7),
		opaqueItem(1, 1, 7),
	}
	plan := Build(items)
	if len(plan.Opaque) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(plan.Opaque))
	}
	// Sorted by pipeline first, then material.
	for i := 1; i < len(plan.Opaque); i++ {
		a, b := plan.Opaque[i-1].Key, plan.Opaque[i].Key
		if a.Pipeline > b.Pipeline {
			t.Fatalf("groups not pipeline-sorted: %v before %v", a, b)
		}
		if a.Pipeline == b.Pipeline && a.Material > b.Material {
			t.Fatalf("groups not material-sorted: %v before %v", a, b)
		}
	}
}

func TestIndirectGroupMixesMeshes(t *testing.T) {
	items := []Item{
		{Material: 1, Pipeline: 0, Kind: KindIndirect, Command: meshing.DrawCommand{VertexCount: 36}},
		{Material: 1, Pipeline: 0, Kind: KindIndirect, Command: meshing.DrawCommand{VertexCount: 72}},
		{Material: 1, Pipeline: 0, Kind: KindIndirect, Command: meshing.DrawCommand{VertexCount: 18}},
	}
	plan := Build(items)
	if len(plan.Opaque) != 1 {
		t.Fatalf("indirect items with one material should share a group, got %d", len(plan.Opaque))
	}
	if got := len(plan.Opaque[0].Commands); got != 3 {
		t.Fatalf("expected 3 commands in indirect group, got %d", got)
	}
}

func TestTransparentBackToFront(t *testing.T) {
	items := []Item{
		{Material: 1, Transparent: true, Depth: 5},
		{Material: 1, Transparent: true, Depth: 50},
		{Material: 2, Transparent: true, Depth: 20},
		{Material: 1, Transparent: true, Depth: 35},
	}
	plan := Build(items)
	if len(plan.Transparent) != 4 {
		t.Fatalf("expected 4 transparent items, got %d", len(plan.Transparent))
	}
	for i := 1; i < len(plan.Transparent); i++ {
		if plan.Transparent[i-1].Depth < plan.Transparent[i].Depth {
			t.Fatalf("transparent items not back-to-front at %d: %f then %f",
				i, plan.Transparent[i-1].Depth, plan.Transparent[i].Depth)
		}
	}
}

func TestTransparentNeverMerged(t *testing.T) {
	// Even identical keys stay separate draws when transparent.
	items := []Item{
		{Material: 3, Pipeline: 1, Mesh: 9, Kind: KindInstanced, Transparent: true, Depth: 10},
		{Material: 3, Pipeline: 1, Mesh: 9, Kind: KindInstanced, Transparent: true, Depth: 10},
	}
	plan := Build(items)
	if len(plan.Opaque) != 0 {
		t.Fatalf("transparent items leaked into opaque groups")
	}
	if plan.DrawCalls() != 2 {
		t.Fatalf("expected 2 draw calls, got %d", plan.DrawCalls())
	}
	// Equal depth keeps submission order (stable sort).
	if plan.Transparent[0].Depth != 10 || plan.Transparent[1].Depth != 10 {
		t.Fatalf("unexpected depths after sort")
	}
}

func TestDrawCallsMonotonicInStateCombos(t *testing.T) {
	// Draw calls for opaque geometry grow with the number of distinct
	// (material, pipeline, mesh) combinations, never with raw item count.
	rng := rand.New(rand.NewSource(11))
	combos := []struct {
		mat  MaterialID
		pipe PipelineID
		mesh MeshID
	}{
		{0, 0, 1}, {1, 0, 1}, {1, 1, 2}, {2, 1, 3}, {3, 0, 4},
	}
	prev := 0
	for n := 1; n <= len(combos); n++ {
		var items []Item
		for i := 0; i < 200; i++ {
			c := combos[rng.Intn(n)]
			items = append(items, opaqueItem(c.mat, c.pipe, c.mesh))
		}
		plan := Build(items)
		if plan.DrawCalls() > n {
			t.Fatalf("with %d combos got %d draw calls", n, plan.DrawCalls())
		}
		if plan.DrawCalls() < prev {
			t.Fatalf("draw calls decreased with more combos: %d then %d", prev, plan.DrawCalls())
		}
		prev = plan.DrawCalls()
	}
}

func TestBuildEmptyInput(t *testing.T) {
	plan := Build(nil)
	if plan.DrawCalls() != 0 {
		t.Fatalf("expected empty plan, got %d draw calls", plan.DrawCalls())
	}
}
