package blocks

import (
	"unsafe"

	"voxren/internal/graphics"
	"voxren/internal/lod"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

// gpuLODSelector batches LOD selection through the compute pass. It mirrors
// lod.Select; the remesh scheduler runs it over all dirty chunks at once
// instead of calling the CPU path per chunk.
type gpuLODSelector struct {
	shader  *graphics.Shader
	entries *graphics.SSBO
	levels  *graphics.SSBO
	cap     int

	in  []float32
	out []int32
}

func newGPULODSelector(capacity int) (*gpuLODSelector, error) {
	shader, err := graphics.NewComputeShader(lod.ComputeShaderSource)
	if err != nil {
		return nil, err
	}
	return &gpuLODSelector{
		shader:  shader,
		entries: graphics.NewSSBO(capacity * 16),
		levels:  graphics.NewSSBO(capacity * 4),
		cap:     capacity,
		in:      make([]float32, 0, capacity*4),
		out:     make([]int32, capacity),
	}, nil
}

// Select computes a level for every entry. Frustum culling stays off here:
// a chunk behind the camera still needs a mesh for the shadow passes.
func (s *gpuLODSelector) Select(entries []lod.Entry, cameraPos mgl32.Vec3, p lod.Params) []int32 {
	n := len(entries)
	if n == 0 {
		return nil
	}
	if n > s.cap {
		n = s.cap
	}

	s.in = s.in[:0]
	for _, e := range entries[:n] {
		s.in = append(s.in, e.Position.X(), e.Position.Y(), e.Position.Z(), e.Radius)
	}
	s.entries.Upload(unsafe.Pointer(&s.in[0]), n*16)

	s.entries.BindBase(0)
	s.levels.BindBase(1)
	s.shader.Use()
	s.shader.SetVector3("uCameraPos", cameraPos.X(), cameraPos.Y(), cameraPos.Z())
	s.shader.SetFloat("uBaseDistance", p.BaseDistance)
	s.shader.SetFloat("uDistanceMultiplier", p.DistanceMultiplier)
	s.shader.SetFloat("uQualityBias", p.QualityBias)
	s.shader.SetInt("uMaxLevel", int32(p.MaxLevel))
	s.shader.SetInt("uEntryCount", int32(n))
	s.shader.SetBool("uFrustumCull", false)
	s.shader.Dispatch(uint32((n+63)/64), 1, 1)
	gl.MemoryBarrier(gl.BUFFER_UPDATE_BARRIER_BIT)

	gl.GetNamedBufferSubData(s.levels.ID(), 0, n*4, unsafe.Pointer(&s.out[0]))
	return s.out[:n]
}

func (s *gpuLODSelector) Dispose() {
	s.entries.Delete()
	s.levels.Delete()
}
