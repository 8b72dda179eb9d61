package cull

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type plane struct {
	a, b, c, d float32
}

func normalizePlane(p plane) plane {
	len := float32(math.Sqrt(float64(p.a*p.a + p.b*p.b + p.c*p.c)))
	if len == 0 {
		return p
	}
	return plane{p.a / len, p.b / len, p.c / len, p.d / len}
}

// Frustum holds the six clip planes of a camera or light.
type Frustum struct {
	planes [6]plane
}

// FrustumFromClip builds six planes from the combined projection*view
// matrix. Planes are ordered left, right, bottom, top, near, far.
func FrustumFromClip(clip mgl32.Mat4) Frustum {
	// Matrix is in column-major order in mgl32
	m00, m01, m02, m03 := clip[0], clip[4], clip[8], clip[12]
	m10, m11, m12, m13 := clip[1], clip[5], clip[9], clip[13]
	m20, m21, m22, m23 := clip[2], clip[6], clip[10], clip[14]
	m30, m31, m32, m33 := clip[3], clip[7], clip[11], clip[15]

	var f Frustum
	// Left  = m3 + m0
	f.planes[0] = normalizePlane(plane{m30 + m00, m31 + m01, m32 + m02, m33 + m03})
	// Right = m3 - m0
	f.planes[1] = normalizePlane(plane{m30 - m00, m31 - m01, m32 - m02, m33 - m03})
	// Bottom = m3 + m1
	f.planes[2] = normalizePlane(plane{m30 + m10, m31 + m11, m32 + m12, m33 + m13})
	// Top = m3 - m1
	f.planes[3] = normalizePlane(plane{m30 - m10, m31 - m11, m32 - m12, m33 - m13})
	// Near = m3 + m2
	f.planes[4] = normalizePlane(plane{m30 + m20, m31 + m21, m32 + m22, m33 + m23})
	// Far = m3 - m2
	f.planes[5] = normalizePlane(plane{m30 - m20, m31 - m21, m32 - m22, m33 - m23})
	return f
}

// Planes returns the six planes as (a,b,c,d) vectors for shader upload.
func (f Frustum) Planes() [6]mgl32.Vec4 {
	var out [6]mgl32.Vec4
	for i, p := range f.planes {
		out[i] = mgl32.Vec4{p.a, p.b, p.c, p.d}
	}
	return out
}

// AABBVisible tests an AABB against the planes using the positive vertex:
// if the corner furthest along a plane normal is outside, the box is out.
func (f Frustum) AABBVisible(min, max mgl32.Vec3) bool {
	for i := 0; i < 6; i++ {
		p := f.planes[i]
		px := max.X()
		if p.a < 0 {
			px = min.X()
		}
		py := max.Y()
		if p.b < 0 {
			py = min.Y()
		}
		pz := max.Z()
		if p.c < 0 {
			pz = min.Z()
		}
		if p.a*px+p.b*py+p.c*pz+p.d < 0 {
			return false
		}
	}
	return true
}

// SphereVisible tests a bounding sphere against the planes.
func (f Frustum) SphereVisible(center mgl32.Vec3, radius float32) bool {
	for i := 0; i < 6; i++ {
		p := f.planes[i]
		if p.a*center.X()+p.b*center.Y()+p.c*center.Z()+p.d < -radius {
			return false
		}
	}
	return true
}
