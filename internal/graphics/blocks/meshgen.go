package blocks

import (
	"unsafe"

	"voxren/internal/graphics"
	"voxren/internal/meshing"
	"voxren/internal/voxel"

	"github.com/go-gl/gl/v4.6-core/gl"
)

// MeshGenComputeSource is the GPU meshing path: one invocation per voxel
// emits that voxel's visible faces, reserving arena space with one atomic
// face cursor so a face's four vertices and six indices always land as a
// paired, contiguous block. Face rules and the ring-sample ambient occlusion
// match the CPU mesher; the one difference is that the kernel sees only its
// own chunk, so faces on chunk borders always render. Reservations at or
// past the face budget bump the overflow counter and write nothing, matching
// the CPU arena's truncation rule.
const MeshGenComputeSource = `#version 460 core

layout(local_size_x = 8, local_size_y = 8, local_size_z = 8) in;

struct Voxel {
    uint packed; // type | material << 8 | ao << 16 | light << 24
};

// Scalar members only: under std430 a vec3 member would pad the struct out
// to a 64-byte stride, while the CPU-side vertex and the VAO use 48.
struct Vertex {
    float px, py, pz;
    float nx, ny, nz;
    float u, v;
    uint material;
    float ao;
    uint pad0, pad1;
};

layout(std430, binding = 0) readonly buffer Voxels {
    Voxel voxels[];
};

layout(std430, binding = 1) writeonly buffer Vertices {
    Vertex vertices[];
};

layout(std430, binding = 2) writeonly buffer Indices {
    uint indices[];
};

layout(std430, binding = 3) buffer Cursors {
    uint faceCursor;
    uint overflowCount;
};

uniform int uChunkSize;
uniform vec3 uOrigin;
uniform uint uFaceCapacity;
// First vertex of this chunk's slot in the pooled vertex buffer; emitted
// indices are absolute so the draw path matches the CPU upload path.
uniform uint uVertexBase;

const ivec3 FACE_DIRS[6] = ivec3[](
    ivec3( 1, 0, 0), ivec3(-1, 0, 0),
    ivec3( 0, 1, 0), ivec3( 0,-1, 0),
    ivec3( 0, 0, 1), ivec3( 0, 0,-1)
);

// Linear index with z fastest, matching the chunk's packed voxel layout:
// idx = (x*size + y)*size + z.
int voxelIndex(ivec3 p) {
    return p.z + p.y * uChunkSize + p.x * uChunkSize * uChunkSize;
}

uint voxelType(ivec3 p) {
    if (any(lessThan(p, ivec3(0))) || any(greaterThanEqual(p, ivec3(uChunkSize)))) {
        return 0u; // beyond the chunk reads as air
    }
    return voxels[voxelIndex(p)].packed & 0xFFu;
}

bool solid(ivec3 p) {
    uint t = voxelType(p);
    return t != 0u && t != 3u; // air and water are non-solid
}

// corner offsets per face, counter-clockwise seen from outside
void faceCorners(int face, out vec3 corners[4], out ivec3 uAxis, out ivec3 vAxis) {
    switch (face) {
    case 0: // +X
        corners = vec3[](vec3(1,0,1), vec3(1,0,0), vec3(1,1,0), vec3(1,1,1));
        uAxis = ivec3(0,0,1); vAxis = ivec3(0,1,0);
        break;
    case 1: // -X
        corners = vec3[](vec3(0,0,0), vec3(0,0,1), vec3(0,1,1), vec3(0,1,0));
        uAxis = ivec3(0,0,1); vAxis = ivec3(0,1,0);
        break;
    case 2: // +Y
        corners = vec3[](vec3(0,1,1), vec3(1,1,1), vec3(1,1,0), vec3(0,1,0));
        uAxis = ivec3(1,0,0); vAxis = ivec3(0,0,1);
        break;
    case 3: // -Y
        corners = vec3[](vec3(0,0,0), vec3(1,0,0), vec3(1,0,1), vec3(0,0,1));
        uAxis = ivec3(1,0,0); vAxis = ivec3(0,0,1);
        break;
    case 4: // +Z
        corners = vec3[](vec3(0,0,1), vec3(1,0,1), vec3(1,1,1), vec3(0,1,1));
        uAxis = ivec3(1,0,0); vAxis = ivec3(0,1,0);
        break;
    default: // -Z
        corners = vec3[](vec3(1,0,0), vec3(0,0,0), vec3(0,1,0), vec3(1,1,0));
        uAxis = ivec3(1,0,0); vAxis = ivec3(0,1,0);
        break;
    }
}

float faceAO(ivec3 outward, ivec3 uAxis, ivec3 vAxis) {
    int count = 0;
    for (int dv = -1; dv <= 1; dv++) {
        for (int du = -1; du <= 1; du++) {
            if (du == 0 && dv == 0) {
                continue;
            }
            if (solid(outward + uAxis * du + vAxis * dv)) {
                count++;
            }
        }
    }
    return 1.0 - 0.125 * float(count);
}

void main() {
    ivec3 cell = ivec3(gl_GlobalInvocationID);
    if (any(greaterThanEqual(cell, ivec3(uChunkSize)))) {
        return;
    }
    uint t = voxelType(cell);
    if (t == 0u) {
        return;
    }
    uint material = (voxels[voxelIndex(cell)].packed >> 8) & 0xFFu;

    for (int face = 0; face < 6; face++) {
        ivec3 dir = FACE_DIRS[face];
        if (solid(cell + dir)) {
            continue;
        }

        uint slot = atomicAdd(faceCursor, 1u);
        if (slot >= uFaceCapacity) {
            atomicAdd(overflowCount, 1u);
            continue; // budget exhausted, never write out of bounds
        }
        uint vbase = slot * 4u;
        uint ibase = slot * 6u;

        vec3 corners[4];
        ivec3 uAxis, vAxis;
        faceCorners(face, corners, uAxis, vAxis);
        float ao = faceAO(cell + dir, uAxis, vAxis);

        const vec2 uvs[4] = vec2[](vec2(0,0), vec2(1,0), vec2(1,1), vec2(0,1));
        for (int i = 0; i < 4; i++) {
            vec3 pos = uOrigin + vec3(cell) + corners[i];
            Vertex v;
            v.px = pos.x; v.py = pos.y; v.pz = pos.z;
            v.nx = float(dir.x); v.ny = float(dir.y); v.nz = float(dir.z);
            v.u = uvs[i].x; v.v = uvs[i].y;
            v.material = material;
            v.ao = ao;
            v.pad0 = 0u; v.pad1 = 0u;
            vertices[vbase + uint(i)] = v;
        }

        const uint quad[6] = uint[](0u, 1u, 2u, 2u, 3u, 0u);
        for (int i = 0; i < 6; i++) {
            indices[ibase + uint(i)] = uVertexBase + vbase + quad[i];
        }
    }
}
`

// GPUMesher drives the compute meshing path. The CPU worker pool remains
// the default; this path exists for chunks already resident in GPU memory,
// where round-tripping voxels through the CPU would waste bandwidth.
type GPUMesher struct {
	shader  *graphics.Shader
	voxels  *graphics.SSBO
	cursors *graphics.SSBO
	size    int
}

// gpuCursors mirrors the Cursors SSBO.
type gpuCursors struct {
	FaceCursor    uint32
	OverflowCount uint32
}

// NewGPUMesher compiles the meshing kernel and allocates the voxel staging
// buffer for one chunk volume.
func NewGPUMesher(chunkSize int) (*GPUMesher, error) {
	shader, err := graphics.NewComputeShader(MeshGenComputeSource)
	if err != nil {
		return nil, err
	}
	volume := chunkSize * chunkSize * chunkSize
	return &GPUMesher{
		shader:  shader,
		voxels:  graphics.NewSSBO(volume * 4),
		cursors: graphics.NewSSBO(int(unsafe.Sizeof(gpuCursors{}))),
		size:    chunkSize,
	}, nil
}

// packVoxels converts chunk voxels to the shader's packed word layout.
func packVoxels(voxels []voxel.Voxel, out []uint32) {
	for i, v := range voxels {
		out[i] = uint32(v.Type) | uint32(v.Material)<<8 |
			uint32(v.AOBits)<<16 | uint32(v.Light)<<24
	}
}

// Mesh runs the kernel over one chunk's voxels, writing into the given pool
// slots. Returns the vertex and index counts the kernel produced, and
// whether the face budget overflowed. Counts derive from the single face
// cursor, so they never cover a partially reserved face.
func (m *GPUMesher) Mesh(voxels []voxel.Voxel, origin [3]float32,
	vertexPool, indexPool *graphics.BufferPool, slot int32) (verts, idx uint32, overflow bool) {

	packed := make([]uint32, len(voxels))
	packVoxels(voxels, packed)
	m.voxels.Upload(unsafe.Pointer(&packed[0]), len(packed)*4)

	var cursors gpuCursors
	m.cursors.Upload(unsafe.Pointer(&cursors), int(unsafe.Sizeof(cursors)))

	vertexCap := uint32(vertexPool.SlotSize() / meshing.GPUVertexSize)
	faceCap := vertexCap / 4
	if ic := uint32(indexPool.SlotSize()/4) / 6; ic < faceCap {
		faceCap = ic
	}

	m.voxels.BindBase(0)
	gl.BindBufferRange(gl.SHADER_STORAGE_BUFFER, 1, vertexPool.ID(),
		vertexPool.Offset(slot), vertexPool.SlotSize())
	gl.BindBufferRange(gl.SHADER_STORAGE_BUFFER, 2, indexPool.ID(),
		indexPool.Offset(slot), indexPool.SlotSize())
	m.cursors.BindBase(3)

	m.shader.Use()
	m.shader.SetInt("uChunkSize", int32(m.size))
	m.shader.SetVector3("uOrigin", origin[0], origin[1], origin[2])
	m.shader.SetUint("uFaceCapacity", faceCap)
	m.shader.SetUint("uVertexBase", uint32(slot)*vertexCap)

	groups := uint32((m.size + 7) / 8)
	m.shader.Dispatch(groups, groups, groups)
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT | gl.VERTEX_ATTRIB_ARRAY_BARRIER_BIT |
		gl.ELEMENT_ARRAY_BARRIER_BIT)

	gl.GetNamedBufferSubData(m.cursors.ID(), 0, int(unsafe.Sizeof(cursors)),
		unsafe.Pointer(&cursors))

	faces := cursors.FaceCursor
	if faces > faceCap {
		faces = faceCap
	}
	return faces * 4, faces * 6, cursors.OverflowCount > 0
}

// Dispose frees GPU resources.
func (m *GPUMesher) Dispose() {
	m.voxels.Delete()
	m.cursors.Delete()
}
