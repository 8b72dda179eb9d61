package meshing

// EmitGenerous is the single-pass alternative to Emit: it reserves a fixed
// face budget up front instead of counting first, then emits until the
// region runs out. When the chunk needs more faces than the budget the mesh
// is truncated — the tail faces are dropped, never written out of bounds —
// and truncated=true tells the caller to log and retry with the chunk still
// dirty. Unused tail capacity inside the reservation is wasted until the
// next arena reset, which is the price of skipping the counting pass.
func EmitGenerous(in *Input, arena *Arena, budgetFaces int) (res Result, truncated bool, err error) {
	if budgetFaces <= 0 {
		return Result{}, false, nil
	}
	nv := uint32(budgetFaces * 4)
	ni := uint32(budgetFaces * 6)
	firstVertex, firstIndex, ok := arena.Reserve(nv, ni)
	if !ok {
		return Result{}, false, ErrArenaFull
	}

	verts := arena.Vertices(firstVertex, nv)
	idx := arena.Indices(firstIndex, ni)
	step := 1 << in.LOD
	fstep := float32(step)

	face := 0
emit:
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
					if face >= budgetFaces {
						truncated = true
						break emit
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
		VertexCount: uint32(face * 4),
		FirstIndex:  firstIndex,
		IndexCount:  uint32(face * 6),
		FaceCount:   uint32(face),
	}, truncated, nil
}
