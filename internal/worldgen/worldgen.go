package worldgen

import (
	"log"
	"math"

	"voxren/internal/voxel"
)

// Generator produces deterministic demo terrain from seeded value noise:
// an octaved 2D heightfield with a water table, carved by 3D noise caves.
type Generator struct {
	Seed       int64
	SeaLevel   int
	BaseHeight int
	Amplitude  float64
	// CaveThreshold is the 3D noise cutoff below which a cell is carved
	// hollow. Raise it for more caves.
	CaveThreshold float64
}

// NewGenerator returns a generator with the demo tuning.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		Seed:          seed,
		SeaLevel:      22,
		BaseHeight:    20,
		Amplitude:     18,
		CaveThreshold: 0.24,
	}
}

// HeightAt returns the terrain surface height at a world column.
func (g *Generator) HeightAt(x, z int) int {
	n := octaveNoise2D(float64(x)*0.012, float64(z)*0.012, g.Seed, 5, 0.5, 2.0)
	return g.BaseHeight + int(n*g.Amplitude)
}

// Fill populates the store with terrain covering the square [-extent,
// extent) on both horizontal axes.
func (g *Generator) Fill(store *voxel.Store, extent int) {
	for x := -extent; x < extent; x++ {
		for z := -extent; z < extent; z++ {
			g.fillColumn(store, x, z)
		}
	}
	log.Printf("[worldgen] seed=%d extent=%d chunks=%d", g.Seed, extent, store.Len())
}

func (g *Generator) fillColumn(store *voxel.Store, x, z int) {
	height := g.HeightAt(x, z)
	for y := 0; y <= height; y++ {
		if y > 0 && g.carved(x, y, z) {
			continue
		}
		store.SetType(x, y, z, g.typeAt(y, height))
	}
	for y := height + 1; y <= g.SeaLevel; y++ {
		store.SetType(x, y, z, voxel.TypeWater)
	}
}

// carved reports whether 3D noise hollows out this cell. Cave density is
// tapered near the surface so entrances stay rare.
func (g *Generator) carved(x, y, z int) bool {
	n := octaveNoise3D(float64(x)*0.06, float64(y)*0.09, float64(z)*0.06, g.Seed+7919, 3, 0.5, 2.0)
	depth := float64(g.BaseHeight - y)
	taper := math.Min(1, math.Max(0, depth/8))
	return n < g.CaveThreshold*taper
}

func (g *Generator) typeAt(y, height int) voxel.Type {
	switch {
	case y == height && y > g.SeaLevel+1:
		return voxel.TypeGrass
	case y == height:
		return voxel.TypeSand
	case y > height-4:
		return voxel.TypeEarth
	default:
		return voxel.TypeStone
	}
}

// fade is the smoothstep-like 6t^5 - 15t^4 + 10t^3 interpolation curve.
func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// hash2 is a SplitMix64-style integer hash, stable across runs for the same
// inputs.
func hash2(x, z, seed int64) uint64 {
	v := uint64(x) + (uint64(z) << 1) + uint64(seed)*0x9E3779B97F4A7C15
	v += 0x9E3779B97F4A7C15
	v = (v ^ (v >> 30)) * 0xBF58476D1CE4E5B9
	v = (v ^ (v >> 27)) * 0x94D049BB133111EB
	return v ^ (v >> 31)
}

func hash3(x, y, z, seed int64) uint64 {
	// Separate golden ratio variants per axis for better distribution.
	v := uint64(x)*0x9E3779B97F4A7C15 + uint64(y)*0x517CC1B727220A95 + uint64(z)*0x6C62272E07BB0142 + uint64(seed)
	v += 0x9E3779B97F4A7C15
	v = (v ^ (v >> 30)) * 0xBF58476D1CE4E5B9
	v = (v ^ (v >> 27)) * 0x94D049BB133111EB
	return v ^ (v >> 31)
}

func latticeValue2D(x, z, seed int64) float64 {
	return float64(hash2(x, z, seed)&0xFFFFFFFF) / float64(0xFFFFFFFF)
}

func latticeValue3D(x, y, z, seed int64) float64 {
	return float64(hash3(x, y, z, seed)&0xFFFFFFFF) / float64(0xFFFFFFFF)
}

// valueNoise2D interpolates hashed lattice values bilinearly, in [0,1].
func valueNoise2D(x, z float64, seed int64) float64 {
	x0, z0 := math.Floor(x), math.Floor(z)
	fx, fz := fade(x-x0), fade(z-z0)

	v00 := latticeValue2D(int64(x0), int64(z0), seed)
	v10 := latticeValue2D(int64(x0)+1, int64(z0), seed)
	v01 := latticeValue2D(int64(x0), int64(z0)+1, seed)
	v11 := latticeValue2D(int64(x0)+1, int64(z0)+1, seed)

	return lerp(lerp(v00, v10, fx), lerp(v01, v11, fx), fz)
}

// valueNoise3D interpolates the eight cube corners trilinearly, in [0,1].
func valueNoise3D(x, y, z float64, seed int64) float64 {
	x0, y0, z0 := math.Floor(x), math.Floor(y), math.Floor(z)
	fx, fy, fz := fade(x-x0), fade(y-y0), fade(z-z0)
	ix, iy, iz := int64(x0), int64(y0), int64(z0)

	v000 := latticeValue3D(ix, iy, iz, seed)
	v100 := latticeValue3D(ix+1, iy, iz, seed)
	v010 := latticeValue3D(ix, iy+1, iz, seed)
	v110 := latticeValue3D(ix+1, iy+1, iz, seed)
	v001 := latticeValue3D(ix, iy, iz+1, seed)
	v101 := latticeValue3D(ix+1, iy, iz+1, seed)
	v011 := latticeValue3D(ix, iy+1, iz+1, seed)
	v111 := latticeValue3D(ix+1, iy+1, iz+1, seed)

	i00 := lerp(v000, v100, fx)
	i10 := lerp(v010, v110, fx)
	i01 := lerp(v001, v101, fx)
	i11 := lerp(v011, v111, fx)
	return lerp(lerp(i00, i10, fy), lerp(i01, i11, fy), fz)
}

func octaveNoise2D(x, z float64, seed int64, octaves int, persistence, lacunarity float64) float64 {
	amplitude, frequency := 1.0, 1.0
	sum, norm := 0.0, 0.0
	for i := 0; i < octaves; i++ {
		sum += valueNoise2D(x*frequency, z*frequency, seed+int64(i*131)) * amplitude
		norm += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

func octaveNoise3D(x, y, z float64, seed int64, octaves int, persistence, lacunarity float64) float64 {
	amplitude, frequency := 1.0, 1.0
	sum, norm := 0.0, 0.0
	for i := 0; i < octaves; i++ {
		sum += valueNoise3D(x*frequency, y*frequency, z*frequency, seed+int64(i*131)) * amplitude
		norm += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}
