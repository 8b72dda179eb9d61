package meshing

import (
	"math"
	"sync"
	"testing"

	"voxren/internal/voxel"

	"github.com/go-gl/mathgl/mgl32"
)

func solidInput(size int, fill func(x, y, z int) voxel.Type) *Input {
	voxels := make([]voxel.Voxel, size*size*size)
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			for z := 0; z < size; z++ {
				t := fill(x, y, z)
				voxels[(x*size+y)*size+z] = voxel.Voxel{
					Type:     t,
					Material: voxel.MaterialFor(t),
					Light:    voxel.LightFor(t),
				}
			}
		}
	}
	return &Input{Size: size, Origin: mgl32.Vec3{}, Voxels: voxels, FaceCulling: true}
}

func TestSingleVoxelEmitsSixFaces(t *testing.T) {
	in := solidInput(16, func(x, y, z int) voxel.Type {
		if x == 5 && y == 5 && z == 5 {
			return voxel.TypeStone
		}
		return voxel.TypeAir
	})
	arena := NewArena(1024, 2048)
	res, err := Emit(in, arena)
	if err != nil {
		t.Fatal(err)
	}
	if res.FaceCount != 6 {
		t.Fatalf("single voxel: got %d faces, want 6", res.FaceCount)
	}
	if res.VertexCount != 24 || res.IndexCount != 36 {
		t.Fatalf("single voxel: got %d verts / %d indices, want 24/36", res.VertexCount, res.IndexCount)
	}
}

func TestSolidCubeSuppressesInternalFaces(t *testing.T) {
	// 2x2x2 solid sub-cube surrounded by air: the convex hull has 24 faces
	// (6 per corner voxel), every internal shared face suppressed.
	in := solidInput(16, func(x, y, z int) voxel.Type {
		if x >= 4 && x < 6 && y >= 4 && y < 6 && z >= 4 && z < 6 {
			return voxel.TypeEarth
		}
		return voxel.TypeAir
	})
	if got := CountFaces(in); got != 24 {
		t.Fatalf("2x2x2 cube: got %d faces, want 24", got)
	}
}

func TestFullChunkEmitsOnlyBoundaryFaces(t *testing.T) {
	// A fully solid 16^3 chunk with no neighbors: zero internal faces,
	// exactly 6*16*16 = 1536 boundary faces.
	in := solidInput(16, func(x, y, z int) voxel.Type { return voxel.TypeStone })
	arena := NewArena(1536*4, 1536*6)
	res, err := Emit(in, arena)
	if err != nil {
		t.Fatal(err)
	}
	if res.FaceCount != 1536 {
		t.Fatalf("full chunk: got %d faces, want 1536", res.FaceCount)
	}
}

func TestNeighborSolidSuppressesFace(t *testing.T) {
	// Voxel at the +X chunk boundary with a solid neighbor in the adjacent
	// chunk: the +X face must not be emitted. The same neighbor absent
	// (nil sampler): the face must be emitted.
	fill := func(x, y, z int) voxel.Type {
		if x == 15 && y == 0 && z == 0 {
			return voxel.TypeGrass
		}
		return voxel.TypeAir
	}

	in := solidInput(16, fill)
	if got := CountFaces(in); got != 6 {
		t.Fatalf("boundary voxel without neighbor: got %d faces, want 6", got)
	}

	in = solidInput(16, fill)
	in.NeighborSolid = func(x, y, z int) bool { return x == 16 && y == 0 && z == 0 }
	if got := CountFaces(in); got != 5 {
		t.Fatalf("boundary voxel with solid neighbor: got %d faces, want 5", got)
	}
}

func TestFaceCullingDisabledEmitsAll(t *testing.T) {
	in := solidInput(4, func(x, y, z int) voxel.Type { return voxel.TypeStone })
	in.FaceCulling = false
	want := 4 * 4 * 4 * 6
	if got := CountFaces(in); got != want {
		t.Fatalf("culling disabled: got %d faces, want %d", got, want)
	}
}

func TestEmitCountsMatchCountFaces(t *testing.T) {
	// Checkerboard fill: the worst case for face counts. Emission must
	// write exactly what the analysis pass predicted.
	in := solidInput(16, func(x, y, z int) voxel.Type {
		if (x+y+z)%2 == 0 {
			return voxel.TypeSand
		}
		return voxel.TypeAir
	})
	want := CountFaces(in)
	arena := NewArena(want*4, want*6)
	res, err := Emit(in, arena)
	if err != nil {
		t.Fatal(err)
	}
	if int(res.FaceCount) != want {
		t.Fatalf("emit wrote %d faces, analysis predicted %d", res.FaceCount, want)
	}
	if res.VertexCount != uint32(want*4) || res.IndexCount != uint32(want*6) {
		t.Fatalf("emit wrote %d verts / %d indices, want %d/%d",
			res.VertexCount, res.IndexCount, want*4, want*6)
	}
	if arena.VertexCount() != want*4 || arena.IndexCount() != want*6 {
		t.Fatalf("arena cursors %d/%d disagree with result %d/%d",
			arena.VertexCount(), arena.IndexCount(), want*4, want*6)
	}
}

func TestDrawCommandMatchesWrittenData(t *testing.T) {
	in := solidInput(8, func(x, y, z int) voxel.Type {
		if y < 3 {
			return voxel.TypeEarth
		}
		return voxel.TypeAir
	})
	arena := NewArena(8192, 16384)
	res, err := Emit(in, arena)
	if err != nil {
		t.Fatal(err)
	}
	cmd := res.Command(7)
	if cmd.VertexCount != res.IndexCount {
		t.Errorf("command element count %d != indices written %d", cmd.VertexCount, res.IndexCount)
	}
	if cmd.FirstVertex != res.FirstVertex {
		t.Errorf("command first vertex %d != region start %d", cmd.FirstVertex, res.FirstVertex)
	}
	if cmd.InstanceCount != 1 || cmd.FirstInstance != 7 {
		t.Errorf("command instancing fields wrong: %+v", cmd)
	}

	// Every emitted index must point inside the chunk's vertex region.
	for _, i := range arena.Indices(res.FirstIndex, res.IndexCount) {
		if i < res.FirstVertex || i >= res.FirstVertex+res.VertexCount {
			t.Fatalf("index %d outside vertex region [%d,%d)", i, res.FirstVertex, res.FirstVertex+res.VertexCount)
		}
	}
}

func TestArenaOverflowTruncatesSafely(t *testing.T) {
	in := solidInput(16, func(x, y, z int) voxel.Type { return voxel.TypeStone })

	// Arena too small for the 1536-face mesh: exact emission refuses.
	arena := NewArena(100, 150)
	if _, err := Emit(in, arena); err != ErrArenaFull {
		t.Fatalf("expected ErrArenaFull, got %v", err)
	}
	if arena.Overflows() == 0 {
		t.Error("overflow should be recorded")
	}

	// Generous emission into a budget smaller than the mesh truncates but
	// stays inside its reservation.
	arena = NewArena(4096, 8192)
	res, truncated, err := EmitGenerous(in, arena, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if !truncated {
		t.Fatal("expected truncation with a 1000-face budget for a 1536-face mesh")
	}
	if res.FaceCount != 1000 {
		t.Fatalf("truncated mesh should hold exactly the budget, got %d faces", res.FaceCount)
	}
}

func TestGenerousMatchesExactWhenBudgetSuffices(t *testing.T) {
	in := solidInput(16, func(x, y, z int) voxel.Type {
		if y <= x%4 {
			return voxel.TypeGrass
		}
		return voxel.TypeAir
	})
	want := CountFaces(in)

	arena := NewArena(want*4+6144*4, want*6+6144*6)
	res, truncated, err := EmitGenerous(in, arena, 6144)
	if err != nil || truncated {
		t.Fatalf("generous emission failed: err=%v truncated=%v", err, truncated)
	}
	if int(res.FaceCount) != want {
		t.Fatalf("generous emitted %d faces, exact analysis says %d", res.FaceCount, want)
	}
}

func TestFaceAO(t *testing.T) {
	// A voxel at (5,5,5) with one solid diagonal neighbor ringing its +Y
	// face gets AO 1 - 0.125*1 = 0.875 on top; an unoccluded -Y face stays
	// at 1.0.
	in := solidInput(16, func(x, y, z int) voxel.Type {
		switch {
		case x == 5 && y == 5 && z == 5:
			return voxel.TypeStone
		case x == 6 && y == 6 && z == 5: // diagonal above
			return voxel.TypeStone
		default:
			return voxel.TypeAir
		}
	})
	top := in.faceAO(5, 5, 5, 1, &faceDirs[2])
	if math.Abs(float64(top)-0.875) > 1e-6 {
		t.Errorf("top face AO = %v, want 0.875", top)
	}
	bottom := in.faceAO(5, 5, 5, 1, &faceDirs[3])
	if bottom != 1.0 {
		t.Errorf("bottom face AO = %v, want 1.0", bottom)
	}
}

func TestParallelEmissionRegionsAreDisjoint(t *testing.T) {
	// Many goroutines emitting concurrently must get exclusive regions:
	// total cursors equal the sum of all regions and no regions overlap.
	const jobs = 32
	in := solidInput(8, func(x, y, z int) voxel.Type { return voxel.TypeStone })
	perJob := CountFaces(in)
	arena := NewArena(jobs*perJob*4, jobs*perJob*6)

	results := make([]Result, jobs)
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			res, err := Emit(in, arena)
			if err != nil {
				t.Error(err)
				return
			}
			results[slot] = res
		}(i)
	}
	wg.Wait()

	type span struct{ lo, hi uint32 }
	var spans []span
	for _, r := range results {
		spans = append(spans, span{r.FirstVertex, r.FirstVertex + r.VertexCount})
	}
	for i := range spans {
		for j := i + 1; j < len(spans); j++ {
			a, b := spans[i], spans[j]
			if a.lo < b.hi && b.lo < a.hi {
				t.Fatalf("vertex regions overlap: [%d,%d) and [%d,%d)", a.lo, a.hi, b.lo, b.hi)
			}
		}
	}
	if arena.VertexCount() != jobs*perJob*4 {
		t.Fatalf("arena vertex cursor %d, want %d", arena.VertexCount(), jobs*perJob*4)
	}
}

func TestLODCoarsening(t *testing.T) {
	// A fully solid 16^3 chunk at LOD 1 is an 8^3 grid of coarse cells:
	// 6*8*8 = 384 boundary faces.
	in := solidInput(16, func(x, y, z int) voxel.Type { return voxel.TypeStone })
	in.LOD = 1
	if got := CountFaces(in); got != 384 {
		t.Fatalf("LOD1 full chunk: got %d faces, want 384", got)
	}
}

func BenchmarkEmitFullChunk(b *testing.B) {
	in := solidInput(16, func(x, y, z int) voxel.Type { return voxel.TypeStone })
	arena := NewArena(1536*4, 1536*6)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		arena.Reset()
		if _, err := Emit(in, arena); err != nil {
			b.Fatal(err)
		}
	}
}
