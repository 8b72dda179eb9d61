package voxel

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Coord addresses a chunk in chunk units.
type Coord struct {
	X, Y, Z int
}

// Chunk is a fixed-size cubic region of voxels, the unit of mesh
// regeneration and streaming. The chunk owns its voxel data; GPU mesh
// buffers derived from it are a replaceable cache, never a source of truth.
type Chunk struct {
	coord Coord
	size  int

	mu     sync.Mutex
	voxels []Voxel
	dirty  bool
	// generation increments on every write. Mesh jobs capture it at
	// submission; a result whose generation no longer matches is stale
	// and gets dropped instead of uploaded.
	generation uint64

	// Cached FullySolid answer; valid while solidGen == generation.
	solid      bool
	solidGen   uint64
	solidKnown bool
}

// NewChunk creates an all-air chunk of the given edge size at coord.
func NewChunk(coord Coord, size int) *Chunk {
	return &Chunk{
		coord:  coord,
		size:   size,
		voxels: make([]Voxel, size*size*size),
		dirty:  true,
	}
}

// Coord returns the chunk's position in chunk units.
func (c *Chunk) Coord() Coord { return c.coord }

// Size returns the chunk edge length in voxels.
func (c *Chunk) Size() int { return c.size }

// Origin returns the chunk's world-space origin.
func (c *Chunk) Origin() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(c.coord.X * c.size),
		float32(c.coord.Y * c.size),
		float32(c.coord.Z * c.size),
	}
}

func (c *Chunk) index(x, y, z int) int {
	return (x*c.size+y)*c.size + z
}

// At returns the voxel at local coordinates. Out-of-bounds reads are air.
func (c *Chunk) At(x, y, z int) Voxel {
	if x < 0 || x >= c.size || y < 0 || y >= c.size || z < 0 || z >= c.size {
		return Voxel{}
	}
	c.mu.Lock()
	v := c.voxels[c.index(x, y, z)]
	c.mu.Unlock()
	return v
}

// Set writes the voxel at local coordinates and marks the chunk dirty.
// Out-of-bounds writes are ignored.
func (c *Chunk) Set(x, y, z int, v Voxel) {
	if x < 0 || x >= c.size || y < 0 || y >= c.size || z < 0 || z >= c.size {
		return
	}
	c.mu.Lock()
	idx := c.index(x, y, z)
	if c.voxels[idx] != v {
		c.voxels[idx] = v
		c.dirty = true
		c.generation++
	}
	c.mu.Unlock()
}

// SetType is a convenience writer that fills material and light defaults.
func (c *Chunk) SetType(x, y, z int, t Type) {
	c.Set(x, y, z, Voxel{Type: t, Material: MaterialFor(t), Light: LightFor(t)})
}

// IsDirty reports whether the chunk's mesh needs regeneration.
func (c *Chunk) IsDirty() bool {
	c.mu.Lock()
	d := c.dirty
	c.mu.Unlock()
	return d
}

// MarkDirty forces mesh regeneration (used when a neighbor's border changes).
func (c *Chunk) MarkDirty() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

// BeginMesh clears the dirty flag and returns the generation plus a private
// copy of the voxel data for the mesh job, so meshing never races writers.
// If a write lands after BeginMesh, the chunk is dirty again and the job's
// generation is stale.
func (c *Chunk) BeginMesh() (gen uint64, voxels []Voxel) {
	c.mu.Lock()
	c.dirty = false
	gen = c.generation
	voxels = make([]Voxel, len(c.voxels))
	copy(voxels, c.voxels)
	c.mu.Unlock()
	return gen, voxels
}

// FullySolid reports whether every voxel in the chunk blocks light. Used by
// occlusion refinement: a chunk walled in by fully solid neighbors cannot be
// seen from outside them. The scan result is cached per generation.
func (c *Chunk) FullySolid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.solidKnown && c.solidGen == c.generation {
		return c.solid
	}
	solid := true
	for i := range c.voxels {
		if !c.voxels[i].Solid() {
			solid = false
			break
		}
	}
	c.solid, c.solidGen, c.solidKnown = solid, c.generation, true
	return solid
}

// Generation returns the current write generation.
func (c *Chunk) Generation() uint64 {
	c.mu.Lock()
	g := c.generation
	c.mu.Unlock()
	return g
}
