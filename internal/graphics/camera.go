package graphics

import (
	"voxren/internal/post"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera handles the view and projection matrices. It keeps the previous
// frame's unjittered view-projection for TAA reprojection and motion
// vectors.
type Camera struct {
	Position    mgl32.Vec3
	Front       mgl32.Vec3
	Up          mgl32.Vec3
	AspectRatio float32
	FOV         float32
	NearPlane   float32
	FarPlane    float32

	width, height int
	jitterSeq     []mgl32.Vec2
	frame         uint64
	prevViewProj  mgl32.Mat4
	havePrev      bool
}

func NewCamera(width, height int) *Camera {
	return &Camera{
		Position:    mgl32.Vec3{0, 0, 0},
		Front:       mgl32.Vec3{0, 0, -1},
		Up:          mgl32.Vec3{0, 1, 0},
		AspectRatio: float32(width) / float32(height),
		FOV:         70.0,
		NearPlane:   0.1,
		FarPlane:    1000.0,
		width:       width,
		height:      height,
		jitterSeq:   post.JitterSequence(post.DefaultTAAConfig().JitterCount),
	}
}

// Resize updates the aspect ratio for a new framebuffer size.
func (c *Camera) Resize(width, height int) {
	c.width, c.height = width, height
	c.AspectRatio = float32(width) / float32(height)
}

func (c *Camera) GetProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FOV), c.AspectRatio, c.NearPlane, c.FarPlane)
}

// GetJitteredProjectionMatrix returns the projection with this frame's
// sub-pixel TAA jitter applied. Depth and color passes render with this;
// reprojection math uses the unjittered matrices.
func (c *Camera) GetJitteredProjectionMatrix() mgl32.Mat4 {
	jitter := c.jitterSeq[c.frame%uint64(len(c.jitterSeq))]
	return post.JitterProjection(c.GetProjectionMatrix(), jitter, c.width, c.height)
}

func (c *Camera) GetViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Position.Add(c.Front), c.Up)
}

// GetViewProjectionMatrix returns the unjittered combined matrix.
func (c *Camera) GetViewProjectionMatrix() mgl32.Mat4 {
	return c.GetProjectionMatrix().Mul4(c.GetViewMatrix())
}

// PrevViewProjectionMatrix returns last frame's unjittered view-projection.
// On the first frame there is no history; the current matrix is returned so
// motion vectors come out zero.
func (c *Camera) PrevViewProjectionMatrix() mgl32.Mat4 {
	if !c.havePrev {
		return c.GetViewProjectionMatrix()
	}
	return c.prevViewProj
}

// EndFrame records this frame's matrices for next frame's reprojection and
// advances the jitter sequence.
func (c *Camera) EndFrame() {
	c.prevViewProj = c.GetViewProjectionMatrix()
	c.havePrev = true
	c.frame++
}

// Frame returns the camera's frame counter, shared with culling caches.
func (c *Camera) Frame() uint64 { return c.frame }
