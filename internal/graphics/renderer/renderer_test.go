package renderer

import (
	"testing"

	"voxren/internal/config"
)

// A cascade count the shaders do not bake must fail before any GPU resource
// is created, not misrender.
func TestNewRendererRejectsShaderCascadeMismatch(t *testing.T) {
	cfg := config.Default()
	cfg.CascadeCount = 2
	if _, err := NewRenderer(&cfg, 640, 360); err == nil {
		t.Fatalf("expected an error for cascade count %d", cfg.CascadeCount)
	}
}
