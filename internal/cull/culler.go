package cull

import (
	"voxren/internal/profiling"

	"github.com/go-gl/mathgl/mgl32"
)

// ViewID distinguishes the frustums culled against in one frame: the main
// camera and each shadow cascade get their own cached result set, since a
// light's frustum sees a different subset than the camera does.
type ViewID uint8

const (
	ViewMain ViewID = iota
	ViewCascade0
	ViewCascade1
	ViewCascade2
	ViewCascade3
)

type cacheKey struct {
	frame uint64
	view  ViewID
}

// Culler owns the spatial hierarchy and per-frame visibility results.
// Results are cached keyed by (frame counter, view) so multiple passes can
// reuse the main camera's culling within a frame while shadow passes redo
// culling against their own frustums.
type Culler struct {
	tree    *Tree
	bounds  map[ObjectID]AABB
	results map[cacheKey][]ObjectID
	frame   uint64
}

// NewCuller creates a culler with the given leaf margin.
func NewCuller(margin float32) *Culler {
	return &Culler{
		tree:    NewTree(margin),
		bounds:  make(map[ObjectID]AABB),
		results: make(map[cacheKey][]ObjectID),
	}
}

// Upsert registers or moves an object.
func (c *Culler) Upsert(id ObjectID, bounds AABB) {
	c.bounds[id] = bounds
	c.tree.Update(id, bounds)
}

// Remove unregisters an object.
func (c *Culler) Remove(id ObjectID) {
	delete(c.bounds, id)
	c.tree.Remove(id)
}

// Len returns the number of registered objects.
func (c *Culler) Len() int { return c.tree.Len() }

// Bounds returns an object's registered AABB.
func (c *Culler) Bounds(id ObjectID) (AABB, bool) {
	b, ok := c.bounds[id]
	return b, ok
}

// BeginFrame advances the frame counter and drops all cached results from
// prior frames.
func (c *Culler) BeginFrame() {
	c.frame++
	for k := range c.results {
		delete(c.results, k)
	}
}

// Visible returns the ids visible in the given view's frustum, computing
// them at most once per frame per view.
func (c *Culler) Visible(view ViewID, f Frustum) []ObjectID {
	key := cacheKey{frame: c.frame, view: view}
	if r, ok := c.results[key]; ok {
		return r
	}
	defer profiling.Track("cull.Visible")()
	r := c.tree.CollectVisible(f, nil)
	c.results[key] = r
	return r
}

// Frame returns the current frame counter.
func (c *Culler) Frame() uint64 { return c.frame }

// ChunkBounds is a convenience for registering chunk meshes: the AABB of a
// cubic chunk with the given origin and edge length.
func ChunkBounds(origin mgl32.Vec3, size float32) AABB {
	return AABB{
		Min: origin,
		Max: origin.Add(mgl32.Vec3{size, size, size}),
	}
}
