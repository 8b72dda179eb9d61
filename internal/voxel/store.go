package voxel

import (
	"sync"
)

// Store manages the storage and retrieval of chunks. It is the only mutable
// source of truth for geometry content; independent chunks may be written
// and meshed fully in parallel, while writes to a single chunk serialize on
// that chunk's own lock.
type Store struct {
	chunkSize int

	mu       sync.RWMutex
	chunks   map[Coord]*Chunk
	modCount uint64 // increases on any chunk add/remove
}

// NewStore creates a store for chunks of the given edge size.
func NewStore(chunkSize int) *Store {
	return &Store{
		chunkSize: chunkSize,
		chunks:    make(map[Coord]*Chunk),
	}
}

// ChunkSize returns the configured chunk edge length.
func (s *Store) ChunkSize() int { return s.chunkSize }

// Chunk returns the chunk at coord. If it doesn't exist and create is true,
// an all-air chunk is created.
func (s *Store) Chunk(coord Coord, create bool) *Chunk {
	s.mu.RLock()
	c, ok := s.chunks[coord]
	s.mu.RUnlock()
	if ok || !create {
		return c
	}

	s.mu.Lock()
	// Double-check locking: another goroutine might have created it while
	// we were waiting for the lock.
	if existing, ok := s.chunks[coord]; ok {
		s.mu.Unlock()
		return existing
	}
	c = NewChunk(coord, s.chunkSize)
	s.chunks[coord] = c
	s.modCount++
	s.mu.Unlock()
	return c
}

// Unload removes a chunk. In-flight mesh jobs for it become stale and their
// results are dropped on arrival.
func (s *Store) Unload(coord Coord) {
	s.mu.Lock()
	if _, ok := s.chunks[coord]; ok {
		delete(s.chunks, coord)
		s.modCount++
	}
	s.mu.Unlock()
}

// ModCount reports the chunk add/remove counter, used by callers caching
// per-store derived state.
func (s *Store) ModCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modCount
}

// Len returns the number of loaded chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *Store) splitWorld(x int) (chunk, local int) {
	chunk = floorDiv(x, s.chunkSize)
	local = mod(x, s.chunkSize)
	return
}

// At returns the voxel at world coordinates. Unloaded space is air.
func (s *Store) At(x, y, z int) Voxel {
	cx, lx := s.splitWorld(x)
	cy, ly := s.splitWorld(y)
	cz, lz := s.splitWorld(z)
	c := s.Chunk(Coord{cx, cy, cz}, false)
	if c == nil {
		return Voxel{}
	}
	return c.At(lx, ly, lz)
}

// Solid reports whether the voxel at world coordinates is solid.
func (s *Store) Solid(x, y, z int) bool {
	return s.At(x, y, z).Solid()
}

// Set writes the voxel at world coordinates, creating the chunk if needed,
// and dirties any neighbor chunk that shares the touched border so its mesh
// regenerates with the new face visibility.
func (s *Store) Set(x, y, z int, v Voxel) {
	cx, lx := s.splitWorld(x)
	cy, ly := s.splitWorld(y)
	cz, lz := s.splitWorld(z)
	c := s.Chunk(Coord{cx, cy, cz}, true)
	c.Set(lx, ly, lz, v)

	n := s.chunkSize - 1
	if lx == 0 {
		s.markDirtyAt(Coord{cx - 1, cy, cz})
	} else if lx == n {
		s.markDirtyAt(Coord{cx + 1, cy, cz})
	}
	if ly == 0 {
		s.markDirtyAt(Coord{cx, cy - 1, cz})
	} else if ly == n {
		s.markDirtyAt(Coord{cx, cy + 1, cz})
	}
	if lz == 0 {
		s.markDirtyAt(Coord{cx, cy, cz - 1})
	} else if lz == n {
		s.markDirtyAt(Coord{cx, cy, cz + 1})
	}
}

// SetType writes a voxel with material and light defaults for its type.
func (s *Store) SetType(x, y, z int, t Type) {
	s.Set(x, y, z, Voxel{Type: t, Material: MaterialFor(t), Light: LightFor(t)})
}

func (s *Store) markDirtyAt(coord Coord) {
	if c := s.Chunk(coord, false); c != nil {
		c.MarkDirty()
	}
}

// DirtyChunks collects up to max dirty chunks for remeshing this frame.
// With max <= 0 all dirty chunks are returned.
func (s *Store) DirtyChunks(max int) []*Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Chunk
	for _, c := range s.chunks {
		if c.IsDirty() {
			out = append(out, c)
			if max > 0 && len(out) >= max {
				break
			}
		}
	}
	return out
}

// Each calls fn for every loaded chunk.
func (s *Store) Each(fn func(*Chunk)) {
	s.mu.RLock()
	list := make([]*Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		list = append(list, c)
	}
	s.mu.RUnlock()
	for _, c := range list {
		fn(c)
	}
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// mod returns a non-negative remainder.
func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
