package lod

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Culled is the sentinel level for objects rejected before LOD selection
// (entirely outside the view frustum).
const Culled = -1

// Entry is one object's LOD input: world position and bounding radius.
type Entry struct {
	Position mgl32.Vec3
	Radius   float32
}

// Params are the global selection knobs. BaseDistance is the distance of
// the first LOD step; each further level doubles it (log2 falloff matches
// how screen-space error grows with distance). QualityBias shifts the whole
// curve toward finer (positive) or coarser (negative) levels.
type Params struct {
	BaseDistance       float32
	DistanceMultiplier float32
	QualityBias        float32
	MaxLevel           int
}

// Select maps camera distance to a discrete detail level.
func Select(e Entry, cameraPos mgl32.Vec3, p Params) int {
	dist := e.Position.Sub(cameraPos).Len() - e.Radius
	if dist < 0 {
		dist = 0
	}
	scaled := float64(dist / p.BaseDistance * p.DistanceMultiplier)
	if scaled < 1 {
		scaled = 1
	}
	level := int(math.Floor(math.Log2(scaled) - float64(p.QualityBias)))
	if level < 0 {
		level = 0
	}
	if level > p.MaxLevel {
		level = p.MaxLevel
	}
	return level
}

// FrustumTest reports whether a bounding sphere intersects the frustum.
// Supplied by the culling package; kept as a small interface here so LOD
// selection stays independent of the hierarchy implementation.
type FrustumTest interface {
	SphereVisible(center mgl32.Vec3, radius float32) bool
}

// SelectVisible culls first, then selects: an object entirely outside the
// frustum returns Culled without paying for the LOD math.
func SelectVisible(e Entry, cameraPos mgl32.Vec3, p Params, f FrustumTest) int {
	if f != nil && !f.SphereVisible(e.Position, e.Radius) {
		return Culled
	}
	return Select(e, cameraPos, p)
}

// SelectAll classifies a batch of entries, writing one level (or Culled)
// per entry. levels must be len(entries) long.
func SelectAll(entries []Entry, levels []int, cameraPos mgl32.Vec3, p Params, f FrustumTest) {
	for i, e := range entries {
		levels[i] = SelectVisible(e, cameraPos, p, f)
	}
}
