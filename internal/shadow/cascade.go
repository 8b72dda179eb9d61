package shadow

import (
	"math"

	"voxren/internal/profiling"

	"github.com/go-gl/mathgl/mgl32"
)

// SplitLambda blends logarithmic and linear split distributions. Pure log
// over-allocates resolution near the camera, pure linear wastes it far away.
const SplitLambda = 0.9

// CascadeData is the per-cascade output consumed by the depth pass and the
// shading shader's cascade lookup.
type CascadeData struct {
	ViewProj mgl32.Mat4
	FarPlane float32
}

// GPUCascade mirrors the std140 cascade struct: a mat4 plus a padded vec4
// carrying the far split.
type GPUCascade struct {
	ViewProj [16]float32
	Far      [4]float32
}

// GPUCascadeSize is the shader-side struct stride.
const GPUCascadeSize = 80

// SplitDistances returns the far split distance of each of count cascades,
// blending logarithmic and linear distributions by lambda. The result is
// strictly increasing and its last element equals far, so cascades cover the
// near-to-far range contiguously with no gaps.
func SplitDistances(near, far float32, count int, lambda float32) []float32 {
	splits := make([]float32, count)
	ratio := float64(far) / float64(near)
	for i := 1; i <= count; i++ {
		t := float64(i) / float64(count)
		logSplit := float64(near) * math.Pow(ratio, t)
		linSplit := float64(near) + (float64(far)-float64(near))*t
		splits[i-1] = float32(float64(lambda)*logSplit + float64(1-lambda)*linSplit)
	}
	splits[count-1] = far
	return splits
}

// SelectCascade returns the first cascade whose far split exceeds the
// point's view-space depth. Depths beyond the last split land in the last
// cascade.
func SelectCascade(splits []float32, depth float32) int {
	for i, s := range splits {
		if depth < s {
			return i
		}
	}
	return len(splits) - 1
}

// Camera carries the camera parameters cascade fitting needs.
type Camera struct {
	Position mgl32.Vec3
	Dir      mgl32.Vec3
	Up       mgl32.Vec3
	FovYDeg  float32
	Aspect   float32
	Near     float32
	Far      float32
}

// Manager fits cascade light-space matrices each frame.
type Manager struct {
	Count   int
	MapSize int
	Lambda  float32

	splits []float32
}

// NewManager returns a manager with the standard split blend.
func NewManager(count, mapSize int) *Manager {
	return &Manager{Count: count, MapSize: mapSize, Lambda: SplitLambda}
}

// Splits returns the split distances computed by the last Update.
func (m *Manager) Splits() []float32 { return m.splits }

// Update recomputes split distances and per-cascade light matrices. Each
// cascade's sub-frustum is bounded by a sphere, and the sphere's center is
// snapped to the shadow-texel grid in light space so the shadow map does
// not shimmer as the camera moves. The snapping invariant holds for any
// MapSize.
func (m *Manager) Update(cam Camera, lightDir mgl32.Vec3) []CascadeData {
	defer profiling.Track("shadow.Update")()

	m.splits = SplitDistances(cam.Near, cam.Far, m.Count, m.Lambda)
	out := make([]CascadeData, m.Count)

	ld := lightDir.Normalize()
	near := cam.Near
	for i := 0; i < m.Count; i++ {
		far := m.splits[i]
		center, radius := boundingSphere(cam, near, far)
		center = m.snapToTexelGrid(center, radius, ld)

		up := mgl32.Vec3{0, 1, 0}
		if absf(ld.Dot(up)) > 0.99 {
			up = mgl32.Vec3{0, 0, 1}
		}
		lightView := mgl32.LookAtV(center.Sub(ld.Mul(radius)), center, up)
		lightProj := mgl32.Ortho(-radius, radius, -radius, radius, 0, 2*radius)

		out[i] = CascadeData{ViewProj: lightProj.Mul4(lightView), FarPlane: far}
		near = far
	}
	return out
}

// boundingSphere bounds the camera sub-frustum between the near and far
// depths: corners in world space from the inverse view-projection, center
// as their mean, radius as the max corner distance.
func boundingSphere(cam Camera, near, far float32) (mgl32.Vec3, float32) {
	proj := mgl32.Perspective(mgl32.DegToRad(cam.FovYDeg), cam.Aspect, near, far)
	view := mgl32.LookAtV(cam.Position, cam.Position.Add(cam.Dir), cam.Up)
	invVP := proj.Mul4(view).Inv()

	var corners [8]mgl32.Vec3
	idx := 0
	var center mgl32.Vec3
	for _, z := range [2]float32{-1, 1} {
		for _, y := range [2]float32{-1, 1} {
			for _, x := range [2]float32{-1, 1} {
				c := invVP.Mul4x1(mgl32.Vec4{x, y, z, 1})
				p := mgl32.Vec3{c.X() / c.W(), c.Y() / c.W(), c.Z() / c.W()}
				corners[idx] = p
				center = center.Add(p.Mul(1.0 / 8.0))
				idx++
			}
		}
	}
	var radius float32
	for _, p := range corners {
		if d := p.Sub(center).Len(); d > radius {
			radius = d
		}
	}
	return center, radius
}

// snapToTexelGrid quantizes the sphere center to whole shadow texels in
// light space. Without this the ortho projection slides in sub-texel steps
// as the camera moves, making shadow edges shimmer.
func (m *Manager) snapToTexelGrid(center mgl32.Vec3, radius float32, lightDir mgl32.Vec3) mgl32.Vec3 {
	up := mgl32.Vec3{0, 1, 0}
	if absf(lightDir.Dot(up)) > 0.99 {
		up = mgl32.Vec3{0, 0, 1}
	}
	// Origin-anchored light basis: snapping in this space is stable across
	// frames because the basis does not depend on the camera.
	lightView := mgl32.LookAtV(mgl32.Vec3{}, lightDir, up)

	texel := 2 * radius / float32(m.MapSize)
	ls := lightView.Mul4x1(center.Vec4(1))
	snapped := mgl32.Vec4{
		float32(math.Floor(float64(ls.X()/texel))) * texel,
		float32(math.Floor(float64(ls.Y()/texel))) * texel,
		ls.Z(),
		1,
	}
	ws := lightView.Inv().Mul4x1(snapped)
	return mgl32.Vec3{ws.X(), ws.Y(), ws.Z()}
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// PoissonDisk is the 16-tap PCF sampling pattern, unit-disk coordinates.
var PoissonDisk = [16][2]float32{
	{-0.94201624, -0.39906216},
	{0.94558609, -0.76890725},
	{-0.09418410, -0.92938870},
	{0.34495938, 0.29387760},
	{-0.91588581, 0.45771432},
	{-0.81544232, -0.87912464},
	{-0.38277543, 0.27676845},
	{0.97484398, 0.75648379},
	{0.44323325, -0.97511554},
	{0.53742981, -0.47373420},
	{-0.26496911, -0.41893023},
	{0.79197514, 0.19090188},
	{-0.24188840, 0.99706507},
	{-0.81409955, 0.91437590},
	{0.19984126, 0.78641367},
	{0.14383161, -0.14100790},
}

// ToGPU packs cascade data for the uniform buffer.
func ToGPU(cascades []CascadeData) []GPUCascade {
	out := make([]GPUCascade, len(cascades))
	for i, c := range cascades {
		copy(out[i].ViewProj[:], c.ViewProj[:])
		out[i].Far[0] = c.FarPlane
	}
	return out
}
