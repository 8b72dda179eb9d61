package lighting

import "github.com/go-gl/mathgl/mgl32"

// Kind discriminates the light union.
type Kind uint8

const (
	Directional Kind = iota
	Point
	Spot
)

// Light is the CPU-side light description. A separate system owns light
// lifecycle; during a frame these are read-only.
type Light struct {
	Kind      Kind
	Position  mgl32.Vec3
	Direction mgl32.Vec3
	Color     mgl32.Vec3
	Intensity float32
	Range     float32
	// Spot cone parameters, degrees. Outer must be >= inner.
	InnerAngle float32
	OuterAngle float32
	Enabled    bool
}

// GPULight mirrors the std430 light struct in the shading shaders.
// Four vec4s, 64 bytes:
//
//	position.w  = kind (0 directional, 1 point, 2 spot)
//	direction.w = range
//	color.w     = intensity
//	params      = inner angle, outer angle, shadow bias, enabled
type GPULight struct {
	Position  [4]float32
	Direction [4]float32
	Color     [4]float32
	Params    [4]float32
}

// GPULightSize must match the shader-side struct stride.
const GPULightSize = 64

// ToGPU packs a light for upload.
func (l *Light) ToGPU() GPULight {
	enabled := float32(0)
	if l.Enabled {
		enabled = 1
	}
	return GPULight{
		Position:  [4]float32{l.Position.X(), l.Position.Y(), l.Position.Z(), float32(l.Kind)},
		Direction: [4]float32{l.Direction.X(), l.Direction.Y(), l.Direction.Z(), l.Range},
		Color:     [4]float32{l.Color.X(), l.Color.Y(), l.Color.Z(), l.Intensity},
		Params:    [4]float32{l.InnerAngle, l.OuterAngle, 0.001, enabled},
	}
}

// boundingRadius is the radius the assigner tests against cluster AABBs.
// Spots are approximated by their range sphere.
func (l *Light) boundingRadius() float32 {
	return l.Range
}
