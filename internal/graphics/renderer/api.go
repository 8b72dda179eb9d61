package renderer

import (
	"voxren/internal/cull"
	"voxren/internal/graphics"
	"voxren/internal/shadow"
	"voxren/internal/voxel"

	"github.com/go-gl/mathgl/mgl32"
)

// RenderContext provides shared per-frame context for all renderables
type RenderContext struct {
	Camera *graphics.Camera
	Store  *voxel.Store
	Culler *cull.Culler
	DT     float64

	View mgl32.Mat4
	Proj mgl32.Mat4
	// JitteredProj carries the TAA sub-pixel offset; geometry passes render
	// with it, reprojection math uses the unjittered Proj.
	JitteredProj mgl32.Mat4
	Frustum      cull.Frustum

	Cascades      []shadow.CascadeData
	CascadeSplits []float32
	SunDirection  mgl32.Vec3
	SunColor      mgl32.Vec3
}

// Renderable interface defines the lifecycle for renderable features
type Renderable interface {
	Init() error
	Render(ctx RenderContext)
	Dispose()
	SetViewport(width, height int)
}

// DepthRenderable is implemented by renderables that contribute shadow
// casters. RenderDepth draws depth-only geometry culled against the given
// cascade's light frustum.
type DepthRenderable interface {
	RenderDepth(ctx RenderContext, cascade int, lightViewProj mgl32.Mat4)
}

// MeshUpdater is implemented by renderables that maintain GPU meshes from
// mutable scene data. The renderer calls ScheduleRemesh and DrainResults once
// per frame before any pass runs.
type MeshUpdater interface {
	ScheduleRemesh(ctx RenderContext, max int)
	DrainResults(ctx RenderContext)
}
