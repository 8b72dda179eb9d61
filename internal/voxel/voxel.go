package voxel

// Type identifies the kind of voxel in a cell. Zero is always air.
type Type uint8

const (
	TypeAir Type = iota
	TypeEarth
	TypeStone
	TypeWater
	TypeGrass
	TypeSand
)

// Voxel is one cell of a chunk. Authored by world generation, mutated only
// through Store/Chunk write operations so dirty tracking stays correct.
type Voxel struct {
	Type     Type
	Material uint8
	// AOBits carries baked occlusion hints from the generator; the mesher
	// recomputes per-face AO from neighborhood solidity regardless.
	AOBits uint8
	Light  uint8
}

// Solid reports whether the voxel blocks light and suppresses neighboring
// faces. Water is translucent: faces against it still render.
func (v Voxel) Solid() bool {
	return v.Type != TypeAir && v.Type != TypeWater
}

// MaterialFor returns the default material for a voxel type.
func MaterialFor(t Type) uint8 {
	return uint8(t)
}

// LightFor returns the default emissive light level for a voxel type.
func LightFor(t Type) uint8 {
	switch t {
	case TypeAir:
		return 0
	case TypeWater:
		return 128
	default:
		return 255
	}
}
