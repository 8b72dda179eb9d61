package lighting

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func testGrid() Grid {
	return Grid{DimX: 16, DimY: 9, DimZ: 24, Near: 0.1, Far: 1000}
}

func testProj() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(70), 16.0/9.0, 0.1, 1000)
}

func TestSliceDepthsCoverNearToFar(t *testing.T) {
	g := testGrid()
	if got := g.SliceDepth(0); math.Abs(float64(got-g.Near)) > 1e-5 {
		t.Fatalf("slice 0 = %f, want near %f", got, g.Near)
	}
	if got := g.SliceDepth(g.DimZ); math.Abs(float64(got-g.Far)) > 0.5 {
		t.Fatalf("slice %d = %f, want far %f", g.DimZ, got, g.Far)
	}
	for z := 1; z <= g.DimZ; z++ {
		if g.SliceDepth(z) <= g.SliceDepth(z-1) {
			t.Fatalf("slice depths not strictly increasing at %d", z)
		}
	}
}

func TestSliceForDepthInvertsSliceDepth(t *testing.T) {
	g := testGrid()
	for z := 0; z < g.DimZ; z++ {
		mid := (g.SliceDepth(z) + g.SliceDepth(z+1)) / 2
		if got := g.SliceForDepth(mid); got != z {
			t.Fatalf("depth %f mapped to slice %d, want %d", mid, got, z)
		}
	}
	if got := g.SliceForDepth(0.001); got != 0 {
		t.Fatalf("depth before near mapped to %d, want 0", got)
	}
	if got := g.SliceForDepth(1e6); got != g.DimZ-1 {
		t.Fatalf("depth past far mapped to %d, want %d", got, g.DimZ-1)
	}
}

func TestComputeAABBsContiguousInZ(t *testing.T) {
	g := testGrid()
	aabbs := g.ComputeAABBs(testProj())
	if len(aabbs) != g.ClusterCount() {
		t.Fatalf("got %d AABBs, want %d", len(aabbs), g.ClusterCount())
	}
	// View space looks down -Z: a cluster in slice z spans
	// [-SliceDepth(z+1), -SliceDepth(z)].
	perSlice := g.DimX * g.DimY
	for z := 0; z < g.DimZ; z++ {
		box := aabbs[z*perSlice]
		wantMax := -g.SliceDepth(z)
		wantMin := -g.SliceDepth(z + 1)
		if math.Abs(float64(box.Max[2]-wantMax)) > 1e-3*math.Abs(float64(wantMax)) {
			t.Fatalf("slice %d max z = %f, want %f", z, box.Max[2], wantMax)
		}
		if math.Abs(float64(box.Min[2]-wantMin)) > 1e-3*math.Abs(float64(wantMin)) {
			t.Fatalf("slice %d min z = %f, want %f", z, box.Min[2], wantMin)
		}
	}
}

func TestAssignDirectionalReachesEveryCluster(t *testing.T) {
	g := testGrid()
	a := &Assigner{Grid: g, MaxLights: 64, MaxPerCluster: 256}
	aabbs := g.ComputeAABBs(testProj())
	lights := []Light{{
		Kind:      Directional,
		Direction: mgl32.Vec3{0, -1, 0},
		Color:     mgl32.Vec3{1, 1, 1},
		Intensity: 1,
		Enabled:   true,
	}}
	asn := a.Assign(lights, mgl32.Ident4(), aabbs)
	for c, count := range asn.Counts {
		if count != 1 {
			t.Fatalf("cluster %d has %d lights, want 1", c, count)
		}
	}
}

func TestAssignPointLightIsLocal(t *testing.T) {
	g := testGrid()
	a := &Assigner{Grid: g, MaxLights: 64, MaxPerCluster: 256}
	aabbs := g.ComputeAABBs(testProj())
	// Small light in front of the camera, identity view.
	lights := []Light{{
		Kind:      Point,
		Position:  mgl32.Vec3{0, 0, -10},
		Intensity: 1,
		Range:     2,
		Enabled:   true,
	}}
	asn := a.Assign(lights, mgl32.Ident4(), aabbs)
	hit := 0
	for _, count := range asn.Counts {
		hit += int(count)
	}
	if hit == 0 {
		t.Fatalf("point light assigned to no clusters")
	}
	if hit == g.ClusterCount() {
		t.Fatalf("short-range point light assigned to every cluster")
	}
}

func TestAssignSupersetOfBruteForce(t *testing.T) {
	g := testGrid()
	a := &Assigner{Grid: g, MaxLights: 64, MaxPerCluster: 256}
	aabbs := g.ComputeAABBs(testProj())
	view := mgl32.Ident4()

	lights := []Light{
		{Kind: Directional, Intensity: 2, Enabled: true},
		{Kind: Point, Position: mgl32.Vec3{3, 1, -20}, Range: 15, Intensity: 1, Enabled: true},
		{Kind: Point, Position: mgl32.Vec3{-8, 0, -80}, Range: 40, Intensity: 0.5, Enabled: true},
		{Kind: Spot, Position: mgl32.Vec3{0, 4, -5}, Direction: mgl32.Vec3{0, -1, 0},
			Range: 12, Intensity: 3, OuterAngle: 45, Enabled: true},
	}
	asn := a.Assign(lights, view, aabbs)

	centers := make([]mgl32.Vec3, len(asn.Lights))
	for i, gl := range asn.Lights {
		p := view.Mul4x1(mgl32.Vec4{gl.Position[0], gl.Position[1], gl.Position[2], 1})
		centers[i] = mgl32.Vec3{p.X(), p.Y(), p.Z()}
	}

	for c := range aabbs {
		want := BruteForceReference(asn.Lights, centers, aabbs[c])
		got := make(map[uint32]bool, asn.Counts[c])
		base := c * a.MaxPerCluster
		for i := uint32(0); i < asn.Counts[c]; i++ {
			got[asn.Indices[base+int(i)]] = true
		}
		for _, idx := range want {
			if !got[idx] {
				t.Fatalf("cluster %d missing light %d present in reference", c, idx)
			}
		}
	}
	if asn.Dropped != 0 {
		t.Fatalf("unexpected drops with %d lights", len(lights))
	}
}

func TestAssignClusterCapDropsLowestPriority(t *testing.T) {
	g := Grid{DimX: 2, DimY: 2, DimZ: 2, Near: 0.1, Far: 100}
	a := &Assigner{Grid: g, MaxLights: 16, MaxPerCluster: 4}
	aabbs := g.ComputeAABBs(testProj())

	lights := []Light{
		{Kind: Directional, Intensity: 1, Enabled: true},
	}
	// Huge-range point lights hit every cluster; intensities 1..8.
	for i := 0; i < 8; i++ {
		lights = append(lights, Light{
			Kind:      Point,
			Position:  mgl32.Vec3{0, 0, -10},
			Range:     1000,
			Intensity: float32(i + 1),
			Enabled:   true,
		})
	}
	asn := a.Assign(lights, mgl32.Ident4(), aabbs)
	if asn.Dropped == 0 {
		t.Fatalf("expected overflow drops")
	}
	for c := range asn.Counts {
		if asn.Counts[c] != uint32(a.MaxPerCluster) {
			t.Fatalf("cluster %d count %d, want cap %d", c, asn.Counts[c], a.MaxPerCluster)
		}
		// The directional light must survive the cap.
		base := c * a.MaxPerCluster
		foundSun := false
		for i := 0; i < a.MaxPerCluster; i++ {
			li := asn.Indices[base+i]
			if Kind(asn.Lights[li].Position[3]) == Directional {
				foundSun = true
			}
		}
		if !foundSun {
			t.Fatalf("cluster %d dropped the directional light", c)
		}
	}
}

func TestPackLightsRespectsFrameCap(t *testing.T) {
	var lights []Light
	for i := 0; i < 100; i++ {
		lights = append(lights, Light{
			Kind:      Point,
			Intensity: float32(i),
			Range:     5,
			Enabled:   true,
		})
	}
	lights = append(lights, Light{Kind: Point, Intensity: 1000, Enabled: false})

	packed := packLights(lights, 64)
	if len(packed) != 64 {
		t.Fatalf("packed %d lights, want 64", len(packed))
	}
	for _, l := range packed {
		if !l.Enabled {
			t.Fatalf("disabled light survived packing")
		}
		if l.Intensity < 36 {
			t.Fatalf("dim light %f kept while brighter ones dropped", l.Intensity)
		}
	}
}

func TestPackOrdersByPriority(t *testing.T) {
	lights := []Light{
		{Kind: Point, Intensity: 2, Range: 5, Enabled: true},
		{Kind: Point, Intensity: 9, Range: 5, Enabled: true},
		{Kind: Directional, Intensity: 1, Enabled: true},
		{Kind: Point, Intensity: 5, Range: 5, Enabled: true},
	}
	packed := Pack(lights, 64)
	if len(packed) != 4 {
		t.Fatalf("packed %d lights, want 4", len(packed))
	}
	if Kind(packed[0].Position[3]) != Directional {
		t.Fatalf("directional light not first: kind %v", packed[0].Position[3])
	}
	for i := 2; i < len(packed); i++ {
		if packed[i].Color[3] > packed[i-1].Color[3] {
			t.Fatalf("intensity order broken at %d: %f > %f",
				i, packed[i].Color[3], packed[i-1].Color[3])
		}
	}

	// The assigner packs with the same ordering, so GPU-culled indices refer
	// to the same lights as the CPU tables.
	g := testGrid()
	a := &Assigner{Grid: g, MaxLights: 64, MaxPerCluster: 256}
	asn := a.Assign(lights, mgl32.Ident4(), g.ComputeAABBs(testProj()))
	if len(asn.Lights) != len(packed) {
		t.Fatalf("Assign packed %d lights, Pack %d", len(asn.Lights), len(packed))
	}
	for i := range packed {
		if asn.Lights[i] != packed[i] {
			t.Fatalf("light %d differs between Pack and Assign", i)
		}
	}
}

func TestGPULightPacking(t *testing.T) {
	l := Light{
		Kind:       Spot,
		Position:   mgl32.Vec3{1, 2, 3},
		Direction:  mgl32.Vec3{0, -1, 0},
		Color:      mgl32.Vec3{1, 0.5, 0.25},
		Intensity:  4,
		Range:      20,
		InnerAngle: 30,
		OuterAngle: 45,
		Enabled:    true,
	}
	g := l.ToGPU()
	if Kind(g.Position[3]) != Spot {
		t.Fatalf("kind not packed into position.w")
	}
	if g.Direction[3] != 20 {
		t.Fatalf("range not packed into direction.w")
	}
	if g.Color[3] != 4 {
		t.Fatalf("intensity not packed into color.w")
	}
	if g.Params[0] != 30 || g.Params[1] != 45 || g.Params[3] != 1 {
		t.Fatalf("spot params mispacked: %v", g.Params)
	}
}
