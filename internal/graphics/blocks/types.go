package blocks

import (
	"voxren/internal/meshing"
	"voxren/internal/voxel"
)

// chunkMesh tracks one chunk's GPU residency: its pool slot, the draw
// command for the uploaded geometry, and the write generation the mesh was
// built from.
type chunkMesh struct {
	coord voxel.Coord
	slot  int32
	cmd   meshing.DrawCommand
	gen   uint64
	lod   int
}
