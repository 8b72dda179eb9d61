package meshing

// GPUVertex is the vertex layout produced by mesh emission and consumed
// read-only by the rendering passes. The layout is mirrored byte-for-byte
// by the shader declarations; graphics.VerifyGPULayouts checks the size at
// startup and a mismatch is fatal.
type GPUVertex struct {
	Position [3]float32
	Normal   [3]float32
	UV       [2]float32
	Material uint32
	AO       float32
	_        [2]uint32 // std430 padding, keeps the stride at 48 bytes
}

// GPUVertexSize is the expected byte stride of GPUVertex on the GPU.
const GPUVertexSize = 48

// DrawCommand is the GPU-readable indirect draw descriptor: written by the
// mesh pass, consumed directly by the indirect draw call. VertexCount holds
// the number of indices consumed when the geometry is drawn indexed.
type DrawCommand struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}
