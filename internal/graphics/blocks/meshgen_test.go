package blocks

import (
	"strings"
	"testing"
	"unsafe"

	"voxren/internal/meshing"
	"voxren/internal/voxel"
)

// The kernel decodes the packed voxel buffer with the same linear index the
// chunk encodes it with: z fastest, then y, then x.
func TestKernelIndexMatchesChunkLayout(t *testing.T) {
	const size = 16
	chunk := voxel.NewChunk(voxel.Coord{}, size)
	coords := [][3]int{{1, 2, 3}, {0, 0, 0}, {size - 1, size - 1, size - 1}, {7, 0, 9}}
	for _, c := range coords {
		chunk.SetType(c[0], c[1], c[2], voxel.TypeStone)
	}

	_, voxels := chunk.BeginMesh()
	packed := make([]uint32, len(voxels))
	packVoxels(voxels, packed)

	for _, c := range coords {
		idx := c[2] + c[1]*size + c[0]*size*size
		if got := voxel.Type(packed[idx] & 0xFF); got != voxel.TypeStone {
			t.Fatalf("voxel written at %v decodes as %v at kernel index %d", c, got, idx)
		}
	}
}

// The vertex SSBO struct must keep the 48-byte stride the CPU vertex, the
// VAO attribute offsets, and the pool slot sizing all assume. Under std430 a
// vec3 member pads the struct out to 64 bytes, so the shader declares
// scalars only.
func TestKernelVertexLayoutMatchesCPU(t *testing.T) {
	var v meshing.GPUVertex
	if got := unsafe.Sizeof(v); got != meshing.GPUVertexSize {
		t.Fatalf("GPUVertex is %d bytes, want %d", got, meshing.GPUVertexSize)
	}
	offsets := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"Position", unsafe.Offsetof(v.Position), 0},
		{"Normal", unsafe.Offsetof(v.Normal), 12},
		{"UV", unsafe.Offsetof(v.UV), 24},
		{"Material", unsafe.Offsetof(v.Material), 32},
		{"AO", unsafe.Offsetof(v.AO), 36},
	}
	for _, o := range offsets {
		if o.got != o.want {
			t.Fatalf("GPUVertex.%s at offset %d, want %d", o.name, o.got, o.want)
		}
	}

	if strings.Contains(MeshGenComputeSource, "vec3 position") {
		t.Fatalf("kernel vertex struct declares a vec3 member; std430 would pad the stride past %d",
			meshing.GPUVertexSize)
	}
	if !strings.Contains(MeshGenComputeSource, "float px, py, pz;") {
		t.Fatalf("kernel vertex struct does not declare scalar position members")
	}
}

// Vertex and index space is reserved with a single face cursor, so counts
// read back from it can never cover a partially reserved face.
func TestKernelReservesWholeFaces(t *testing.T) {
	if !strings.Contains(MeshGenComputeSource, "atomicAdd(faceCursor, 1u)") {
		t.Fatalf("kernel does not reserve with a single face cursor")
	}
	for _, stale := range []string{"vertexCursor", "indexCursor"} {
		if strings.Contains(MeshGenComputeSource, stale) {
			t.Fatalf("kernel still uses independent cursor %q", stale)
		}
	}
}
