package blocks

import (
	"math"

	"voxren/internal/cull"
	"voxren/internal/voxel"

	"github.com/go-gl/mathgl/mgl32"
)

// burialTester refines frustum results: a chunk walled in on all six sides
// by fully solid chunks cannot be seen unless the camera is inside the wall.
// Conservative by construction, a missing or partially empty neighbor always
// passes the chunk through.
type burialTester struct {
	store     *voxel.Store
	cameraPos mgl32.Vec3
	size      float32
}

var neighborOffsets = [6]voxel.Coord{
	{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
}

func (t burialTester) Occluded(bounds cull.AABB) bool {
	// Camera inside or adjacent to the chunk sees it regardless.
	margin := t.size
	inside := true
	for i := 0; i < 3; i++ {
		if t.cameraPos[i] < bounds.Min[i]-margin || t.cameraPos[i] > bounds.Max[i]+margin {
			inside = false
			break
		}
	}
	if inside {
		return false
	}

	coord := voxel.Coord{
		X: int(math.Floor(float64(bounds.Min.X() / t.size))),
		Y: int(math.Floor(float64(bounds.Min.Y() / t.size))),
		Z: int(math.Floor(float64(bounds.Min.Z() / t.size))),
	}
	for _, off := range neighborOffsets {
		n := t.store.Chunk(voxel.Coord{X: coord.X + off.X, Y: coord.Y + off.Y, Z: coord.Z + off.Z}, false)
		if n == nil || !n.FullySolid() {
			return false
		}
	}
	return true
}
