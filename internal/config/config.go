package config

import (
	"fmt"
	"sync"
)

// RenderConfig is the immutable frame-pipeline configuration, fixed at
// startup. Anything here that the GPU shaders also bake in as a constant
// must pass Validate before the first frame; a CPU/GPU mismatch is fatal.
type RenderConfig struct {
	// ChunkSize is the edge length of a cubic voxel chunk. Must match the
	// compute shader's local workgroup sizing (16 or 32).
	ChunkSize int

	// CascadeCount is the number of shadow cascades. The shading and fog
	// shaders bake shadow.ShaderCascadeCount; the renderer rejects any other
	// value at init.
	CascadeCount int
	// ShadowMapSize is the per-cascade depth texture resolution.
	ShadowMapSize int

	// Cluster grid dimensions for light assignment.
	ClusterDimX int
	ClusterDimY int
	ClusterDimZ int

	// MaxLights is the per-frame cap on lights uploaded to the GPU.
	MaxLights int
	// MaxLightsPerCluster caps each cluster's light index list.
	MaxLightsPerCluster int

	// MaxChunks bounds the GPU mesh buffer pool.
	MaxChunks int
	// MaxFacesPerChunk sizes the per-chunk vertex/index arena region.
	// A chunk can never need more than ChunkSize^3 * 3 visible faces
	// (checkerboard worst case), but meshing degrades gracefully before
	// that, so this is a budget rather than a hard bound.
	MaxFacesPerChunk int

	// GPUMeshing routes chunk meshing through the compute kernel instead of
	// the CPU worker pool.
	GPUMeshing bool

	// GPULightCull assigns lights to clusters on the GPU instead of the CPU
	// assigner. Lights upload in descending priority order, so under the
	// per-cluster cap both paths keep directional lights and the brightest
	// emitters; only within-cluster ordering differs.
	GPULightCull bool

	// LOD selection parameters.
	LODBaseDistance       float32
	LODDistanceMultiplier float32
	LODQualityBias        float32
	LODMaxLevel           int

	// Camera planes; also bound the cluster Z slicing and cascade range.
	NearPlane float32
	FarPlane  float32
}

// Default returns the baseline configuration used by the demo binary.
func Default() RenderConfig {
	return RenderConfig{
		ChunkSize:             16,
		CascadeCount:          4,
		ShadowMapSize:         2048,
		ClusterDimX:           16,
		ClusterDimY:           9,
		ClusterDimZ:           24,
		MaxLights:             64,
		MaxLightsPerCluster:   256,
		MaxChunks:             4096,
		MaxFacesPerChunk:      6144,
		LODBaseDistance:       32,
		LODDistanceMultiplier: 1,
		LODQualityBias:        0,
		LODMaxLevel:           4,
		NearPlane:             0.1,
		FarPlane:              1000,
	}
}

// Validate reports the first fatal configuration error. The renderer calls
// this before creating any GPU resources; an error here must abort startup.
func (c RenderConfig) Validate() error {
	if c.ChunkSize != 16 && c.ChunkSize != 32 {
		return fmt.Errorf("config: chunk size must be 16 or 32, got %d", c.ChunkSize)
	}
	if c.CascadeCount < 1 || c.CascadeCount > 4 {
		return fmt.Errorf("config: cascade count must be 1..4, got %d", c.CascadeCount)
	}
	if c.ShadowMapSize < 256 || c.ShadowMapSize&(c.ShadowMapSize-1) != 0 {
		return fmt.Errorf("config: shadow map size must be a power of two >= 256, got %d", c.ShadowMapSize)
	}
	if c.ClusterDimX <= 0 || c.ClusterDimY <= 0 || c.ClusterDimZ <= 0 {
		return fmt.Errorf("config: cluster grid dims must be positive, got %dx%dx%d",
			c.ClusterDimX, c.ClusterDimY, c.ClusterDimZ)
	}
	if c.MaxLights <= 0 || c.MaxLights > 64 {
		return fmt.Errorf("config: max lights must be 1..64, got %d", c.MaxLights)
	}
	if c.MaxLightsPerCluster <= 0 || c.MaxLightsPerCluster > 256 {
		return fmt.Errorf("config: max lights per cluster must be 1..256, got %d", c.MaxLightsPerCluster)
	}
	if c.MaxChunks <= 0 {
		return fmt.Errorf("config: max chunks must be positive, got %d", c.MaxChunks)
	}
	if c.MaxFacesPerChunk <= 0 {
		return fmt.Errorf("config: max faces per chunk must be positive, got %d", c.MaxFacesPerChunk)
	}
	if c.LODMaxLevel < 0 {
		return fmt.Errorf("config: LOD max level must be >= 0, got %d", c.LODMaxLevel)
	}
	if c.LODBaseDistance <= 0 {
		return fmt.Errorf("config: LOD base distance must be positive, got %v", c.LODBaseDistance)
	}
	if c.LODDistanceMultiplier <= 0 {
		return fmt.Errorf("config: LOD distance multiplier must be positive, got %v", c.LODDistanceMultiplier)
	}
	if !(c.NearPlane > 0) || !(c.FarPlane > c.NearPlane) {
		return fmt.Errorf("config: need 0 < near < far, got near=%v far=%v", c.NearPlane, c.FarPlane)
	}
	return nil
}

// ClusterCount returns the total number of clusters in the grid.
func (c RenderConfig) ClusterCount() int {
	return c.ClusterDimX * c.ClusterDimY * c.ClusterDimZ
}

// ChunkVolume returns the number of voxels in one chunk.
func (c RenderConfig) ChunkVolume() int {
	return c.ChunkSize * c.ChunkSize * c.ChunkSize
}

// RenderSettings holds the knobs adjustable while the renderer runs, unlike
// RenderConfig which is fixed at startup. Currently that is the render
// distance, consumed by the chunk renderable's main-view visibility pass.
type RenderSettings struct {
	mu             sync.RWMutex
	renderDistance int // in chunks
}

var globalRenderSettings = &RenderSettings{
	renderDistance: 25,
}

// GetRenderDistance returns the current render distance in chunks.
func GetRenderDistance() int {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.renderDistance
}

// SetRenderDistance sets the render distance in chunks, clamped to 5..50.
func SetRenderDistance(distance int) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()

	if distance < 5 {
		distance = 5
	}
	if distance > 50 {
		distance = 50
	}
	globalRenderSettings.renderDistance = distance
}
