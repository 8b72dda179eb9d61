package graphics

import (
	"errors"
	"unsafe"

	"github.com/go-gl/gl/v4.6-core/gl"
)

// ErrPoolExhausted is returned when no slot is free. Callers degrade by
// keeping the previous contents of whatever they wanted to replace.
var ErrPoolExhausted = errors.New("graphics: buffer pool exhausted")

// BufferPool manages one large GL buffer carved into fixed-size slots. All
// chunk meshes share a pool, so a single VAO and a single indirect draw can
// cover every resident chunk.
type BufferPool struct {
	id        uint32
	target    uint32
	slotSize  int
	slotCount int
	free      []int32
}

// NewBufferPool allocates GPU storage for slotCount slots of slotSize bytes.
func NewBufferPool(target uint32, slotSize, slotCount int) *BufferPool {
	p := &BufferPool{
		target:    target,
		slotSize:  slotSize,
		slotCount: slotCount,
		free:      make([]int32, 0, slotCount),
	}
	// Stack of free slots, low indices handed out first.
	for i := slotCount - 1; i >= 0; i-- {
		p.free = append(p.free, int32(i))
	}

	gl.CreateBuffers(1, &p.id)
	gl.NamedBufferStorage(p.id, slotSize*slotCount, nil, gl.DYNAMIC_STORAGE_BIT)
	return p
}

// Acquire reserves a slot. Returns ErrPoolExhausted when full.
func (p *BufferPool) Acquire() (int32, error) {
	if len(p.free) == 0 {
		return 0, ErrPoolExhausted
	}
	slot := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return slot, nil
}

// Release returns a slot to the pool.
func (p *BufferPool) Release(slot int32) {
	p.free = append(p.free, slot)
}

// Upload writes data into a slot. Data longer than the slot is an error the
// caller must prevent by sizing meshes to the slot budget.
func (p *BufferPool) Upload(slot int32, data unsafe.Pointer, size int) {
	if size > p.slotSize {
		panic("graphics: upload exceeds slot size")
	}
	gl.NamedBufferSubData(p.id, p.Offset(slot), size, data)
}

// Offset returns the byte offset of a slot within the buffer.
func (p *BufferPool) Offset(slot int32) int {
	return int(slot) * p.slotSize
}

// SlotSize returns the per-slot byte capacity.
func (p *BufferPool) SlotSize() int { return p.slotSize }

// FreeSlots returns how many slots remain.
func (p *BufferPool) FreeSlots() int { return len(p.free) }

// ID returns the GL buffer name.
func (p *BufferPool) ID() uint32 { return p.id }

// Bind binds the pool's buffer to its target.
func (p *BufferPool) Bind() {
	gl.BindBuffer(p.target, p.id)
}

// BindBase binds the pool's buffer to an indexed SSBO binding point.
func (p *BufferPool) BindBase(index uint32) {
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, index, p.id)
}

// Delete frees the GPU storage.
func (p *BufferPool) Delete() {
	gl.DeleteBuffers(1, &p.id)
	p.id = 0
}

// SSBO is a standalone shader storage buffer with whole-buffer uploads,
// used for the per-frame tables (lights, clusters, LOD entries).
type SSBO struct {
	id   uint32
	size int
}

// NewSSBO allocates an SSBO of the given byte size.
func NewSSBO(size int) *SSBO {
	s := &SSBO{size: size}
	gl.CreateBuffers(1, &s.id)
	gl.NamedBufferStorage(s.id, size, nil, gl.DYNAMIC_STORAGE_BIT)
	return s
}

// Upload replaces the buffer's head with data.
func (s *SSBO) Upload(data unsafe.Pointer, size int) {
	if size > s.size {
		panic("graphics: upload exceeds SSBO size")
	}
	gl.NamedBufferSubData(s.id, 0, size, data)
}

// BindBase binds the buffer to an indexed SSBO binding point.
func (s *SSBO) BindBase(index uint32) {
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, index, s.id)
}

// ID returns the GL buffer name.
func (s *SSBO) ID() uint32 { return s.id }

// Delete frees the GPU storage.
func (s *SSBO) Delete() {
	gl.DeleteBuffers(1, &s.id)
	s.id = 0
}
