package config

import "testing"

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RenderConfig)
	}{
		{"odd chunk size", func(c *RenderConfig) { c.ChunkSize = 24 }},
		{"zero chunk size", func(c *RenderConfig) { c.ChunkSize = 0 }},
		{"too many cascades", func(c *RenderConfig) { c.CascadeCount = 5 }},
		{"non-pow2 shadow map", func(c *RenderConfig) { c.ShadowMapSize = 1000 }},
		{"zero cluster dim", func(c *RenderConfig) { c.ClusterDimY = 0 }},
		{"light cap over GPU layout", func(c *RenderConfig) { c.MaxLights = 65 }},
		{"cluster cap over GPU layout", func(c *RenderConfig) { c.MaxLightsPerCluster = 300 }},
		{"negative LOD level", func(c *RenderConfig) { c.LODMaxLevel = -1 }},
		{"zero base distance", func(c *RenderConfig) { c.LODBaseDistance = 0 }},
		{"far before near", func(c *RenderConfig) { c.FarPlane = 0.05 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestRenderDistanceClamping(t *testing.T) {
	defer SetRenderDistance(25)

	SetRenderDistance(1)
	if got := GetRenderDistance(); got != 5 {
		t.Errorf("render distance should clamp low to 5, got %d", got)
	}
	SetRenderDistance(100)
	if got := GetRenderDistance(); got != 50 {
		t.Errorf("render distance should clamp high to 50, got %d", got)
	}
}
