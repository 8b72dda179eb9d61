package meshing

import (
	"errors"
	"sync/atomic"
)

// ErrArenaFull reports that the shared output buffers had no room for a
// chunk's mesh. The caller leaves the chunk dirty and retries next frame.
var ErrArenaFull = errors.New("meshing: output arena full")

// Arena is the shared vertex/index output buffer for one mesh pass. Write
// positions are handed out by atomic fetch-and-add so every parallel mesh
// job gets an exclusive, contiguous region with no write collisions. Output
// ordering across jobs is non-deterministic, which is fine: render order
// within a mesh does not need to be stable.
type Arena struct {
	vertices []GPUVertex
	indices  []uint32

	vertexCursor atomic.Uint32
	indexCursor  atomic.Uint32

	// overflows counts failed reservations since the last Reset.
	overflows atomic.Uint32
}

// NewArena preallocates space for vertexCap vertices and indexCap indices.
func NewArena(vertexCap, indexCap int) *Arena {
	return &Arena{
		vertices: make([]GPUVertex, vertexCap),
		indices:  make([]uint32, indexCap),
	}
}

// Reserve claims an exclusive region for nv vertices and ni indices. The
// cursors only ever grow; when a reservation would cross the end of either
// buffer nothing is claimed and ok is false. Reservations never allow a
// write out of bounds.
func (a *Arena) Reserve(nv, ni uint32) (firstVertex, firstIndex uint32, ok bool) {
	firstVertex = a.vertexCursor.Add(nv) - nv
	firstIndex = a.indexCursor.Add(ni) - ni
	if firstVertex+nv > uint32(len(a.vertices)) || firstIndex+ni > uint32(len(a.indices)) {
		a.overflows.Add(1)
		return 0, 0, false
	}
	return firstVertex, firstIndex, true
}

// Vertices returns the writable region [first, first+n).
func (a *Arena) Vertices(first, n uint32) []GPUVertex {
	return a.vertices[first : first+n]
}

// Indices returns the writable region [first, first+n).
func (a *Arena) Indices(first, n uint32) []uint32 {
	return a.indices[first : first+n]
}

// Reset recycles the arena for the next pass. Must only be called once all
// regions handed out have been consumed.
func (a *Arena) Reset() {
	a.vertexCursor.Store(0)
	a.indexCursor.Store(0)
	a.overflows.Store(0)
}

// Overflows reports how many reservations failed since the last Reset.
func (a *Arena) Overflows() int {
	return int(a.overflows.Load())
}

// VertexCount returns the number of vertices claimed so far, clamped to
// capacity (the cursor may run past the end on overflow).
func (a *Arena) VertexCount() int {
	n := a.vertexCursor.Load()
	if n > uint32(len(a.vertices)) {
		n = uint32(len(a.vertices))
	}
	return int(n)
}

// IndexCount returns the number of indices claimed so far, clamped to
// capacity.
func (a *Arena) IndexCount() int {
	n := a.indexCursor.Load()
	if n > uint32(len(a.indices)) {
		n = uint32(len(a.indices))
	}
	return int(n)
}
