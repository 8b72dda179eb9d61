package graphics

import (
	"fmt"
	"unsafe"

	"voxren/internal/lighting"
	"voxren/internal/meshing"
	"voxren/internal/shadow"
)

// VerifyGPULayouts checks that the CPU-side structs uploaded to GPU buffers
// have the exact sizes the shader declarations assume. Struct layout is the
// renderer's only bit-exact compatibility surface; a silent mismatch would
// corrupt every draw, so startup fails loudly instead.
func VerifyGPULayouts() error {
	checks := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"meshing.GPUVertex", unsafe.Sizeof(meshing.GPUVertex{}), meshing.GPUVertexSize},
		{"meshing.DrawCommand", unsafe.Sizeof(meshing.DrawCommand{}), 16},
		{"lighting.GPULight", unsafe.Sizeof(lighting.GPULight{}), lighting.GPULightSize},
		{"lighting.ClusterAABB", unsafe.Sizeof(lighting.ClusterAABB{}), lighting.ClusterAABBSize},
		{"shadow.GPUCascade", unsafe.Sizeof(shadow.GPUCascade{}), shadow.GPUCascadeSize},
		{"DrawElementsIndirectCommand", unsafe.Sizeof(DrawElementsIndirectCommand{}), 20},
	}
	for _, c := range checks {
		if c.got != c.want {
			return fmt.Errorf("GPU layout mismatch: %s is %d bytes, shader expects %d",
				c.name, c.got, c.want)
		}
	}
	return nil
}

// DrawElementsIndirectCommand is the GL indirect draw record consumed by
// MultiDrawElementsIndirect. Field order is mandated by the GL spec.
type DrawElementsIndirectCommand struct {
	Count         uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    uint32
	BaseInstance  uint32
}

// ToIndirect converts the renderer's DrawCommand into the GL wire format.
// DrawCommand stores absolute indices, so BaseVertex stays zero.
func ToIndirect(cmd meshing.DrawCommand) DrawElementsIndirectCommand {
	return DrawElementsIndirectCommand{
		Count:         cmd.VertexCount,
		InstanceCount: cmd.InstanceCount,
		FirstIndex:    cmd.FirstVertex,
		BaseVertex:    0,
		BaseInstance:  cmd.FirstInstance,
	}
}
