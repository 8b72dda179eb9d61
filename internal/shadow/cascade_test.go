package shadow

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func testCamera() Camera {
	return Camera{
		Position: mgl32.Vec3{10, 50, -30},
		Dir:      mgl32.Vec3{0, 0, -1},
		Up:       mgl32.Vec3{0, 1, 0},
		FovYDeg:  70,
		Aspect:   16.0 / 9.0,
		Near:     0.1,
		Far:      1000,
	}
}

func TestSplitDistancesCoverRange(t *testing.T) {
	splits := SplitDistances(0.1, 1000, 4, SplitLambda)
	if len(splits) != 4 {
		t.Fatalf("got %d splits, want 4", len(splits))
	}
	prev := float32(0.1)
	for i, s := range splits {
		if s <= prev {
			t.Fatalf("split %d = %f not greater than %f", i, s, prev)
		}
		prev = s
	}
	if splits[3] != 1000 {
		t.Fatalf("last split %f != far plane", splits[3])
	}
}

func TestSplitDistancesLambdaExtremes(t *testing.T) {
	near, far := float32(1), float32(256)

	lin := SplitDistances(near, far, 4, 0)
	for i, want := range []float32{64.75, 128.5, 192.25, 256} {
		if math.Abs(float64(lin[i]-want)) > 1e-3 {
			t.Fatalf("linear split %d = %f, want %f", i, lin[i], want)
		}
	}

	log := SplitDistances(near, far, 4, 1)
	for i, want := range []float32{4, 16, 64, 256} {
		if math.Abs(float64(log[i]-want)) > 1e-2 {
			t.Fatalf("log split %d = %f, want %f", i, log[i], want)
		}
	}
}

func TestSelectCascadeFirstExceedingSplit(t *testing.T) {
	splits := []float32{10, 50, 200, 1000}
	cases := []struct {
		depth float32
		want  int
	}{
		{0.5, 0}, {9.9, 0}, {10, 1}, {49, 1}, {120, 2}, {500, 3}, {5000, 3},
	}
	for _, c := range cases {
		if got := SelectCascade(splits, c.depth); got != c.want {
			t.Errorf("SelectCascade(%f) = %d, want %d", c.depth, got, c.want)
		}
	}
}

func TestUpdateProducesContiguousCascades(t *testing.T) {
	m := NewManager(4, 2048)
	cam := testCamera()
	cascades := m.Update(cam, mgl32.Vec3{-0.3, -1, -0.2})
	if len(cascades) != 4 {
		t.Fatalf("got %d cascades, want 4", len(cascades))
	}
	splits := m.Splits()
	for i, c := range cascades {
		if c.FarPlane != splits[i] {
			t.Fatalf("cascade %d far %f != split %f", i, c.FarPlane, splits[i])
		}
	}
	if cascades[3].FarPlane != cam.Far {
		t.Fatalf("last cascade far %f != camera far", cascades[3].FarPlane)
	}
}

func TestCascadeContainsItsSubFrustum(t *testing.T) {
	m := NewManager(4, 2048)
	cam := testCamera()
	lightDir := mgl32.Vec3{-0.3, -1, -0.2}.Normalize()
	cascades := m.Update(cam, lightDir)

	// Points along the view axis inside each cascade's depth range must
	// project inside the cascade's clip volume.
	near := cam.Near
	for i, c := range cascades {
		mid := (near + c.FarPlane) / 2
		world := cam.Position.Add(cam.Dir.Mul(mid))
		clip := c.ViewProj.Mul4x1(world.Vec4(1))
		for axis := 0; axis < 3; axis++ {
			v := clip[axis] / clip.W()
			if v < -1.01 || v > 1.01 {
				t.Fatalf("cascade %d: point at depth %f outside clip (%f on axis %d)",
					i, mid, v, axis)
			}
		}
		near = c.FarPlane
	}
}

func TestTexelSnappingStableUnderSmallCameraMotion(t *testing.T) {
	m := NewManager(4, 2048)
	lightDir := mgl32.Vec3{-0.3, -1, -0.2}.Normalize()

	cam := testCamera()
	a := m.Update(cam, lightDir)

	// Move the camera by a fraction of a shadow texel. The snapped cascade
	// matrices must translate a fixed world point by whole texels only
	// (here: not at all, since the sphere radius is unchanged).
	probe := mgl32.Vec3{0, 0, -100}
	cam.Position = cam.Position.Add(mgl32.Vec3{0.0001, 0, 0.0001})
	b := m.Update(cam, lightDir)

	for i := range a {
		pa := a[i].ViewProj.Mul4x1(probe.Vec4(1))
		pb := b[i].ViewProj.Mul4x1(probe.Vec4(1))
		// NDC -> texel units.
		texels := float32(m.MapSize) / 2
		dx := (pa.X()/pa.W() - pb.X()/pb.W()) * texels
		dy := (pa.Y()/pa.W() - pb.Y()/pb.W()) * texels
		if frac(dx) > 0.01 || frac(dy) > 0.01 {
			t.Fatalf("cascade %d shifted by sub-texel amount (%f, %f)", i, dx, dy)
		}
	}
}

func frac(v float32) float64 {
	f := math.Abs(float64(v))
	return math.Abs(f - math.Round(f))
}

func TestPoissonDiskInsideUnitDisk(t *testing.T) {
	for i, p := range PoissonDisk {
		if r := math.Hypot(float64(p[0]), float64(p[1])); r > math.Sqrt2 {
			t.Fatalf("tap %d radius %f out of range", i, r)
		}
	}
}

func TestToGPUPacksFarPlane(t *testing.T) {
	cascades := []CascadeData{
		{ViewProj: mgl32.Ident4(), FarPlane: 42},
	}
	g := ToGPU(cascades)
	if g[0].Far[0] != 42 {
		t.Fatalf("far plane not packed")
	}
	if g[0].ViewProj[0] != 1 || g[0].ViewProj[5] != 1 {
		t.Fatalf("matrix not packed")
	}
}

func TestSampleShaderBakesCascadeCount(t *testing.T) {
	want := fmt.Sprintf("const int CASCADE_COUNT = %d;", ShaderCascadeCount)
	if !strings.Contains(SampleFunctionSource, want) {
		t.Fatalf("shadow sampling shader does not bake %q", want)
	}
}
