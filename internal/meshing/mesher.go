package meshing

import (
	"voxren/internal/voxel"

	"github.com/go-gl/mathgl/mgl32"
)

// Input is an immutable snapshot of everything one mesh job needs: a private
// copy of the chunk's voxels plus a solidity sampler for cells outside the
// chunk. Snapshotting keeps meshing race-free against concurrent writers.
type Input struct {
	Size   int
	Origin mgl32.Vec3
	Voxels []voxel.Voxel

	// NeighborSolid answers solidity for local coordinates outside
	// [0,Size)³, i.e. edge cells of adjacent chunks. When nil, everything
	// beyond the chunk is treated as air, so boundary faces always render;
	// seams are never silently dropped.
	NeighborSolid func(x, y, z int) bool

	// FaceCulling suppresses faces against solid neighbors. Disabled it
	// emits all six faces of every solid voxel (debug visualization).
	FaceCulling bool

	// LOD is the target detail level: the grid is sampled at 2^LOD voxel
	// steps and faces are emitted at that coarser cell size.
	LOD int
}

func (in *Input) at(x, y, z int) voxel.Voxel {
	return in.Voxels[(x*in.Size+y)*in.Size+z]
}

// solid reports solidity at local coordinates, deferring to the neighbor
// sampler outside the chunk.
func (in *Input) solid(x, y, z int) bool {
	if x < 0 || x >= in.Size || y < 0 || y >= in.Size || z < 0 || z >= in.Size {
		if in.NeighborSolid == nil {
			return false
		}
		return in.NeighborSolid(x, y, z)
	}
	return in.at(x, y, z).Solid()
}

// cellSolid reports whether the LOD cell anchored at (x,y,z) with edge
// length step contains any solid voxel. For step 1 it is a plain lookup.
func (in *Input) cellSolid(x, y, z, step int) bool {
	if step == 1 {
		return in.solid(x, y, z)
	}
	if x < 0 || x >= in.Size || y < 0 || y >= in.Size || z < 0 || z >= in.Size {
		// Coarse cells outside the chunk degrade to a single corner sample.
		return in.solid(x, y, z)
	}
	for dx := 0; dx < step; dx++ {
		for dy := 0; dy < step; dy++ {
			for dz := 0; dz < step; dz++ {
				if in.solid(x+dx, y+dy, z+dz) {
					return true
				}
			}
		}
	}
	return false
}

// cellVoxel returns a representative voxel for the LOD cell (the first solid
// one found, scanning in index order).
func (in *Input) cellVoxel(x, y, z, step int) voxel.Voxel {
	if step == 1 {
		return in.at(x, y, z)
	}
	for dx := 0; dx < step; dx++ {
		for dy := 0; dy < step; dy++ {
			for dz := 0; dz < step; dz++ {
				if v := in.at(x+dx, y+dy, z+dz); v.Solid() {
					return v
				}
			}
		}
	}
	return in.at(x, y, z)
}

// direction tables: normal, in-plane axes u/v for AO sampling, and the four
// face corners (unit cube, CCW from outside).
type faceDir struct {
	n       [3]int
	u, v    [3]int
	corners [4][3]float32
}

var faceDirs = [6]faceDir{
	{ // +X
		n: [3]int{1, 0, 0}, u: [3]int{0, 1, 0}, v: [3]int{0, 0, 1},
		corners: [4][3]float32{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}},
	},
	{ // -X
		n: [3]int{-1, 0, 0}, u: [3]int{0, 1, 0}, v: [3]int{0, 0, 1},
		corners: [4][3]float32{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}},
	},
	{ // +Y
		n: [3]int{0, 1, 0}, u: [3]int{1, 0, 0}, v: [3]int{0, 0, 1},
		corners: [4][3]float32{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}},
	},
	{ // -Y
		n: [3]int{0, -1, 0}, u: [3]int{1, 0, 0}, v: [3]int{0, 0, 1},
		corners: [4][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}},
	},
	{ // +Z
		n: [3]int{0, 0, 1}, u: [3]int{1, 0, 0}, v: [3]int{0, 1, 0},
		corners: [4][3]float32{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}},
	},
	{ // -Z
		n: [3]int{0, 0, -1}, u: [3]int{1, 0, 0}, v: [3]int{0, 1, 0},
		corners: [4][3]float32{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}},
	},
}

var faceUVs = [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

// quadIndexPattern expands one quad's 4 vertices into 2 CCW triangles.
var quadIndexPattern = [6]uint32{0, 1, 2, 2, 3, 0}

// faceVisible applies the culling rule: a face is emitted only if the cell
// it faces is non-solid or out of chunk bounds.
func (in *Input) faceVisible(x, y, z, step int, d *faceDir) bool {
	if !in.FaceCulling {
		return true
	}
	return !in.cellSolid(x+d.n[0]*step, y+d.n[1]*step, z+d.n[2]*step, step)
}

// faceAO computes per-face ambient occlusion as 1 − 0.125 × the number of
// solid voxels among the 8 cells ringing the face's outward neighbor.
func (in *Input) faceAO(x, y, z, step int, d *faceDir) float32 {
	nx := x + d.n[0]*step
	ny := y + d.n[1]*step
	nz := z + d.n[2]*step
	count := 0
	for du := -1; du <= 1; du++ {
		for dv := -1; dv <= 1; dv++ {
			if du == 0 && dv == 0 {
				continue
			}
			sx := nx + (d.u[0]*du+d.v[0]*dv)*step
			sy := ny + (d.u[1]*du+d.v[1]*dv)*step
			sz := nz + (d.u[2]*du+d.v[2]*dv)*step
			if in.cellSolid(sx, sy, sz, step) {
				count++
			}
		}
	}
	return 1.0 - 0.125*float32(count)
}

// CountFaces is the analysis pass: it walks the chunk and returns exactly
// how many faces emission will produce, so the output region can be sized
// precisely before any vertex is written.
func CountFaces(in *Input) int {
	step := 1 << in.LOD
	faces := 0
	for x := 0; x < in.Size; x += step {
		for y := 0; y < in.Size; y += step {
			for z := 0; z < in.Size; z += step {
				if !in.cellSolid(x, y, z, step) {
					continue
				}
				for i := range faceDirs {
					if in.faceVisible(x, y, z, step, &faceDirs[i]) {
						faces++
					}
				}
			}
		}
	}
	return faces
}

// Result describes the arena regions one chunk's mesh occupies, and the
// matching indirect draw command.
type Result struct {
	FirstVertex uint32
	VertexCount uint32
	FirstIndex  uint32
	IndexCount  uint32
	FaceCount   uint32
}

// Command builds the indirect draw descriptor for this mesh. VertexCount in
// the command is the element count consumed by the indexed draw; the counts
// always match what emission actually wrote.
func (r Result) Command(instanceSlot uint32) DrawCommand {
	return DrawCommand{
		VertexCount:   r.IndexCount,
		InstanceCount: 1,
		FirstVertex:   r.FirstVertex,
		FirstInstance: instanceSlot,
	}
}

// Emit runs the two mesh passes against the shared arena: CountFaces sizes
// the reservation exactly, then the emission pass fills it. Indices are
// absolute into the shared index buffer. Returns ErrArenaFull when the
// arena cannot hold the mesh; nothing is written in that case.
func Emit(in *Input, arena *Arena) (Result, error) {
	faces := CountFaces(in)
	if faces == 0 {
		return Result{}, nil
	}
	nv := uint32(faces * 4)
	ni := uint32(faces * 6)
	firstVertex, firstIndex, ok := arena.Reserve(nv, ni)
	if !ok {
		return Result{}, ErrArenaFull
	}

	verts := arena.Vertices(firstVertex, nv)
	idx := arena.Indices(firstIndex, ni)
	step := 1 << in.LOD
	fstep := float32(step)

	face := 0
	for x := 0; x < in.Size; x += step {
		for y := 0; y < in.Size; y += step {
			for z := 0; z < in.Size; z += step {
				if !in.cellSolid(x, y, z, step) {
					continue
				}
				v := in.cellVoxel(x, y, z, step)
				for i := range faceDirs {
					d := &faceDirs[i]
					if !in.faceVisible(x, y, z, step, d) {
						continue
					}
					ao := in.faceAO(x, y, z, step, d)
					n := [3]float32{float32(d.n[0]), float32(d.n[1]), float32(d.n[2])}
					vbase := uint32(face * 4)
					for c := 0; c < 4; c++ {
						verts[vbase+uint32(c)] = GPUVertex{
							Position: [3]float32{
								in.Origin.X() + float32(x) + d.corners[c][0]*fstep,
								in.Origin.Y() + float32(y) + d.corners[c][1]*fstep,
								in.Origin.Z() + float32(z) + d.corners[c][2]*fstep,
							},
							Normal:   n,
							UV:       faceUVs[c],
							Material: uint32(v.Material),
							AO:       ao,
						}
					}
					ibase := face * 6
					for c, p := range quadIndexPattern {
						idx[ibase+c] = firstVertex + vbase + p
					}
					face++
				}
			}
		}
	}

	return Result{
		FirstVertex: firstVertex,
		VertexCount: nv,
		FirstIndex:  firstIndex,
		IndexCount:  ni,
		FaceCount:   uint32(faces),
	}, nil
}
