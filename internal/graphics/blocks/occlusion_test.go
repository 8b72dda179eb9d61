package blocks

import (
	"testing"

	"voxren/internal/cull"
	"voxren/internal/voxel"

	"github.com/go-gl/mathgl/mgl32"
)

func fillChunkSolid(store *voxel.Store, coord voxel.Coord, size int) {
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			for z := 0; z < size; z++ {
				store.SetType(coord.X*size+x, coord.Y*size+y, coord.Z*size+z, voxel.TypeStone)
			}
		}
	}
}

func TestBurialTesterOccludesWalledInChunk(t *testing.T) {
	const size = 16
	store := voxel.NewStore(size)
	center := voxel.Coord{X: 0, Y: 0, Z: 0}
	fillChunkSolid(store, center, size)
	for _, off := range neighborOffsets {
		fillChunkSolid(store, voxel.Coord{X: off.X, Y: off.Y, Z: off.Z}, size)
	}

	tester := burialTester{
		store:     store,
		cameraPos: mgl32.Vec3{100, 100, 100},
		size:      size,
	}
	bounds := cull.ChunkBounds(mgl32.Vec3{0, 0, 0}, size)
	if !tester.Occluded(bounds) {
		t.Fatal("chunk walled in by solid neighbors should be occluded")
	}
}

func TestBurialTesterPassesWithMissingNeighbor(t *testing.T) {
	const size = 16
	store := voxel.NewStore(size)
	fillChunkSolid(store, voxel.Coord{}, size)
	// Only five of six neighbors exist.
	for _, off := range neighborOffsets[:5] {
		fillChunkSolid(store, voxel.Coord{X: off.X, Y: off.Y, Z: off.Z}, size)
	}

	tester := burialTester{store: store, cameraPos: mgl32.Vec3{100, 100, 100}, size: size}
	if tester.Occluded(cull.ChunkBounds(mgl32.Vec3{0, 0, 0}, size)) {
		t.Fatal("missing neighbor must pass the chunk through")
	}
}

func TestBurialTesterPassesWithAirInNeighbor(t *testing.T) {
	const size = 16
	store := voxel.NewStore(size)
	fillChunkSolid(store, voxel.Coord{}, size)
	for _, off := range neighborOffsets {
		fillChunkSolid(store, voxel.Coord{X: off.X, Y: off.Y, Z: off.Z}, size)
	}
	// Punch a hole in one wall.
	store.SetType(size+2, 3, 4, voxel.TypeAir)

	tester := burialTester{store: store, cameraPos: mgl32.Vec3{100, 100, 100}, size: size}
	if tester.Occluded(cull.ChunkBounds(mgl32.Vec3{0, 0, 0}, size)) {
		t.Fatal("neighbor with air must pass the chunk through")
	}
}

func TestBurialTesterNeverOccludesCameraChunk(t *testing.T) {
	const size = 16
	store := voxel.NewStore(size)
	fillChunkSolid(store, voxel.Coord{}, size)
	for _, off := range neighborOffsets {
		fillChunkSolid(store, voxel.Coord{X: off.X, Y: off.Y, Z: off.Z}, size)
	}

	tester := burialTester{store: store, cameraPos: mgl32.Vec3{8, 8, 8}, size: size}
	if tester.Occluded(cull.ChunkBounds(mgl32.Vec3{0, 0, 0}, size)) {
		t.Fatal("camera inside the chunk must never be occluded from it")
	}
}
