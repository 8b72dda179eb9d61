package batch

import (
	"sort"

	"voxren/internal/meshing"

	"github.com/go-gl/mathgl/mgl32"
)

// MaterialID selects surface shading parameters.
type MaterialID uint16

// PipelineID selects GPU pipeline state (shader program, blend, depth).
type PipelineID uint16

// MeshID identifies an LOD-resolved mesh variant.
type MeshID uint32

// Kind says how a group of items reaches the GPU.
type Kind uint8

const (
	// KindInstanced draws one mesh many times with per-instance transforms.
	KindInstanced Kind = iota
	// KindIndirect multi-draws per-chunk commands from the indirect buffer.
	KindIndirect
)

// Item is one culled, LOD-resolved renderable.
type Item struct {
	Material    MaterialID
	Pipeline    PipelineID
	Mesh        MeshID
	Kind        Kind
	Transform   mgl32.Mat4
	Command     meshing.DrawCommand
	Transparent bool
	// Depth is view-space depth, used only to order transparent items.
	Depth float32
}

// GroupKey is the batching identity: items sharing a key land in one draw.
type GroupKey struct {
	Material MaterialID
	Pipeline PipelineID
	Kind     Kind
	// Mesh participates for instanced groups only; indirect groups mix
	// distinct chunk meshes in a single multi-draw.
	Mesh MeshID
}

// Group is one draw call's worth of work.
type Group struct {
	Key        GroupKey
	Transforms []mgl32.Mat4          // instanced path
	Commands   []meshing.DrawCommand // indirect path
}

// Plan is the frame's draw schedule: opaque groups in state-sorted order,
// then transparent items strictly back-to-front.
type Plan struct {
	Opaque      []Group
	Transparent []Item
}

// DrawCalls returns the number of draw calls the plan will issue.
func (p *Plan) DrawCalls() int {
	return len(p.Opaque) + len(p.Transparent)
}

func keyFor(it *Item) GroupKey {
	k := GroupKey{Material: it.Material, Pipeline: it.Pipeline, Kind: it.Kind}
	if it.Kind == KindInstanced {
		k.Mesh = it.Mesh
	}
	return k
}

func keyLess(a, b GroupKey) bool {
	// Pipeline changes are the most expensive state switch, then material.
	if a.Pipeline != b.Pipeline {
		return a.Pipeline < b.Pipeline
	}
	if a.Material != b.Material {
		return a.Material < b.Material
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.Mesh < b.Mesh
}

// Build groups the visible items into the frame's draw plan. Opaque items
// merge by (material, pipeline, mesh variant) and are ordered to minimize
// state switches; their order is otherwise arbitrary. Transparent items are
// never merged across depth and keep exact back-to-front order: alpha
// compositing is order-dependent, so batching must not reorder them.
func Build(items []Item) Plan {
	var plan Plan
	groups := make(map[GroupKey]*Group)

	for i := range items {
		it := &items[i]
		if it.Transparent {
			plan.Transparent = append(plan.Transparent, *it)
			continue
		}
		key := keyFor(it)
		g, ok := groups[key]
		if !ok {
			g = &Group{Key: key}
			groups[key] = g
		}
		switch it.Kind {
		case KindInstanced:
			g.Transforms = append(g.Transforms, it.Transform)
		case KindIndirect:
			g.Commands = append(g.Commands, it.Command)
		}
	}

	plan.Opaque = make([]Group, 0, len(groups))
	for _, g := range groups {
		plan.Opaque = append(plan.Opaque, *g)
	}
	sort.Slice(plan.Opaque, func(i, j int) bool {
		return keyLess(plan.Opaque[i].Key, plan.Opaque[j].Key)
	})

	// Back-to-front, stable: equal depths keep submission order.
	sort.SliceStable(plan.Transparent, func(i, j int) bool {
		return plan.Transparent[i].Depth > plan.Transparent[j].Depth
	})
	return plan
}
