package blocks

import (
	"hash/fnv"
	"image"
	"image/color"
	"log"

	"voxren/internal/voxel"

	"github.com/go-gl/gl/v4.6-core/gl"
	"golang.org/x/image/draw"
)

// atlasTileSize is the edge length of one material tile.
const atlasTileSize = 64

// Atlas holds the material texture array sampled by the main shader.
// Material IDs index layers directly.
type Atlas struct {
	TextureID uint32
	Layers    int
}

// materialColors are the base tints per voxel material, indexed by
// voxel.MaterialFor.
var materialColors = []color.RGBA{
	{0, 0, 0, 0},         // air, never sampled
	{134, 96, 67, 255},   // earth
	{128, 128, 128, 255}, // stone
	{52, 108, 202, 180},  // water
	{96, 160, 60, 255},   // grass
	{218, 205, 158, 255}, // sand
}

// BuildAtlas generates the material tiles, downsamples the full mip chain
// on the CPU with Catmull-Rom filtering, and uploads every level. CPU-side
// mips keep tile borders from bleeding into each other the way a plain
// GenerateMipmap over an atlas would.
func BuildAtlas() (*Atlas, error) {
	layers := len(materialColors)
	mipLevels := mipCount(atlasTileSize)

	var texture uint32
	gl.CreateTextures(gl.TEXTURE_2D_ARRAY, 1, &texture)
	gl.TextureStorage3D(texture, int32(mipLevels), gl.RGBA8, atlasTileSize, atlasTileSize, int32(layers))

	for layer := 0; layer < layers; layer++ {
		tile := renderTile(uint8(layer))
		for level := 0; level < mipLevels; level++ {
			size := atlasTileSize >> level
			mip := tile
			if level > 0 {
				mip = image.NewRGBA(image.Rect(0, 0, size, size))
				draw.CatmullRom.Scale(mip, mip.Bounds(), tile, tile.Bounds(), draw.Src, nil)
			}
			gl.TextureSubImage3D(texture, int32(level),
				0, 0, int32(layer),
				int32(size), int32(size), 1,
				gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(mip.Pix))
		}
	}

	gl.TextureParameteri(texture, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TextureParameteri(texture, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TextureParameteri(texture, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TextureParameteri(texture, gl.TEXTURE_WRAP_T, gl.REPEAT)

	var maxAnisotropy float32
	gl.GetFloatv(gl.MAX_TEXTURE_MAX_ANISOTROPY, &maxAnisotropy)
	if maxAnisotropy > 0 {
		gl.TextureParameterf(texture, gl.TEXTURE_MAX_ANISOTROPY, maxAnisotropy)
	}

	log.Printf("[atlas] built %d material layers (%dx%d, %d mips)",
		layers, atlasTileSize, atlasTileSize, mipLevels)
	return &Atlas{TextureID: texture, Layers: layers}, nil
}

// renderTile draws one material's tile: the base color with deterministic
// per-pixel brightness noise so flat surfaces read as textured.
func renderTile(material uint8) *image.RGBA {
	base := materialColors[material]
	img := image.NewRGBA(image.Rect(0, 0, atlasTileSize, atlasTileSize))
	for y := 0; y < atlasTileSize; y++ {
		for x := 0; x < atlasTileSize; x++ {
			n := pixelNoise(material, x, y)
			img.SetRGBA(x, y, color.RGBA{
				R: scaleChannel(base.R, n),
				G: scaleChannel(base.G, n),
				B: scaleChannel(base.B, n),
				A: base.A,
			})
		}
	}
	return img
}

// pixelNoise returns a brightness factor in [0.85, 1.15].
func pixelNoise(material uint8, x, y int) float32 {
	h := fnv.New32a()
	h.Write([]byte{material, byte(x), byte(y), byte(x >> 8), byte(y >> 8)})
	return 0.85 + float32(h.Sum32()%1000)/1000*0.3
}

func scaleChannel(c uint8, f float32) uint8 {
	v := float32(c) * f
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

func mipCount(size int) int {
	n := 1
	for size > 1 {
		size >>= 1
		n++
	}
	return n
}

// LayerFor maps a voxel type to its atlas layer.
func LayerFor(t voxel.Type) int {
	return int(voxel.MaterialFor(t))
}

// Delete frees the texture.
func (a *Atlas) Delete() {
	if a.TextureID != 0 {
		gl.DeleteTextures(1, &a.TextureID)
		a.TextureID = 0
	}
}
