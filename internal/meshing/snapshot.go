package meshing

import (
	"voxren/internal/voxel"
)

// Snapshot captures a chunk for meshing: a private copy of its voxels plus
// a cross-chunk solidity sampler backed by the store. The chunk's dirty
// flag is cleared and the returned generation tags the job for staleness
// detection. Neighbor cells of unloaded chunks read as air, so faces at a
// loaded/unloaded seam always render rather than silently dropping.
func Snapshot(store *voxel.Store, c *voxel.Chunk, faceCulling bool, lod int) (*Input, uint64) {
	gen, voxels := c.BeginMesh()
	size := c.Size()
	coord := c.Coord()
	baseX := coord.X * size
	baseY := coord.Y * size
	baseZ := coord.Z * size
	in := &Input{
		Size:   size,
		Origin: c.Origin(),
		Voxels: voxels,
		NeighborSolid: func(x, y, z int) bool {
			return store.Solid(baseX+x, baseY+y, baseZ+z)
		},
		FaceCulling: faceCulling,
		LOD:         lod,
	}
	return in, gen
}
