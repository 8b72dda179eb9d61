package post

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// SSAOConfig tunes the ambient occlusion pass.
type SSAOConfig struct {
	Radius      float32
	Bias        float32
	SampleCount int
	NoiseDim    int
	Power       float32
}

// DefaultSSAOConfig returns the tuning used by the renderer.
func DefaultSSAOConfig() SSAOConfig {
	return SSAOConfig{
		Radius:      1.0,
		Bias:        0.025,
		SampleCount: 64,
		NoiseDim:    4,
		Power:       2.0,
	}
}

// kernelSeed makes the kernel reproducible across runs so AO output is
// stable for a given scene.
const kernelSeed = 42

// HemisphereKernel generates n sample offsets inside the +Z hemisphere.
// Samples are scaled toward the origin with an accelerating curve so most
// taps probe close to the shaded point, where occlusion matters most.
func HemisphereKernel(n int) []mgl32.Vec3 {
	rng := rand.New(rand.NewSource(kernelSeed))
	samples := make([]mgl32.Vec3, n)
	for i := range samples {
		s := mgl32.Vec3{
			rng.Float32()*2 - 1,
			rng.Float32()*2 - 1,
			rng.Float32(),
		}.Normalize()
		t := float32(i) / float32(n)
		scale := 0.1 + t*t*0.9
		samples[i] = s.Mul(scale)
	}
	return samples
}

// RotationNoise generates dim*dim random rotation vectors for the tiled
// noise texture. Vectors lie in the XY plane; the shader builds a TBN basis
// from them to rotate the kernel per pixel.
func RotationNoise(dim int) []mgl32.Vec4 {
	rng := rand.New(rand.NewSource(kernelSeed + 1))
	noise := make([]mgl32.Vec4, dim*dim)
	for i := range noise {
		noise[i] = mgl32.Vec4{
			rng.Float32()*2 - 1,
			rng.Float32()*2 - 1,
			0,
			0,
		}
	}
	return noise
}

// BilateralWeight is the blur weight for a neighbor sample: Gaussian in
// screen distance, Gaussian in AO-value difference. Close AO values blur
// together; a big difference (usually a depth edge) kills the weight so the
// blur never bleeds occlusion across edges.
func BilateralWeight(spatialDist, aoDelta, sigmaSpatial, sigmaValue float32) float32 {
	s := float64(spatialDist) / float64(sigmaSpatial)
	v := float64(aoDelta) / float64(sigmaValue)
	return float32(math.Exp(-0.5 * (s*s + v*v)))
}

// SSAOFragmentSource computes raw occlusion from depth and normals.
const SSAOFragmentSource = `#version 460 core

in vec2 vUV;
out float oAO;

uniform sampler2D uDepth;
uniform sampler2D uNormal;
uniform sampler2D uNoise;
uniform mat4 uProj;
uniform mat4 uInvProj;
uniform vec2 uNoiseScale;
uniform float uRadius;
uniform float uBias;
uniform float uPower;

const int KERNEL_SIZE = 64;
uniform vec3 uKernel[KERNEL_SIZE];

vec3 viewPosAt(vec2 uv) {
    float depth = texture(uDepth, uv).r;
    vec4 clip = vec4(uv * 2.0 - 1.0, depth * 2.0 - 1.0, 1.0);
    vec4 view = uInvProj * clip;
    return view.xyz / view.w;
}

void main() {
    vec3 pos = viewPosAt(vUV);
    vec3 normal = normalize(texture(uNormal, vUV).xyz * 2.0 - 1.0);
    vec3 random = normalize(texture(uNoise, vUV * uNoiseScale).xyz);

    // Gram-Schmidt TBN from the per-pixel random rotation.
    vec3 tangent = normalize(random - normal * dot(random, normal));
    vec3 bitangent = cross(normal, tangent);
    mat3 tbn = mat3(tangent, bitangent, normal);

    float occlusion = 0.0;
    for (int i = 0; i < KERNEL_SIZE; i++) {
        vec3 samplePos = pos + tbn * uKernel[i] * uRadius;

        vec4 offset = uProj * vec4(samplePos, 1.0);
        offset.xyz /= offset.w;
        offset.xyz = offset.xyz * 0.5 + 0.5;

        float sampleDepth = viewPosAt(offset.xy).z;

        // Range check: geometry far outside the sampling radius must not
        // occlude, or distant silhouettes would darken foreground objects.
        float rangeCheck = smoothstep(0.0, 1.0, uRadius / abs(pos.z - sampleDepth));
        occlusion += (sampleDepth >= samplePos.z + uBias ? 1.0 : 0.0) * rangeCheck;
    }
    occlusion = 1.0 - occlusion / float(KERNEL_SIZE);
    oAO = pow(occlusion, uPower);
}
`

// SSAOBlurFragmentSource is the edge-preserving denoise pass.
const SSAOBlurFragmentSource = `#version 460 core

in vec2 vUV;
out float oAO;

uniform sampler2D uAO;
uniform float uSigmaSpatial;
uniform float uSigmaValue;

void main() {
    vec2 texel = 1.0 / vec2(textureSize(uAO, 0));
    float center = texture(uAO, vUV).r;
    float sum = 0.0;
    float weight = 0.0;
    for (int y = -2; y <= 2; y++) {
        for (int x = -2; x <= 2; x++) {
            vec2 off = vec2(x, y);
            float ao = texture(uAO, vUV + off * texel).r;
            float s = length(off) / uSigmaSpatial;
            float v = (ao - center) / uSigmaValue;
            float w = exp(-0.5 * (s * s + v * v));
            sum += ao * w;
            weight += w;
        }
    }
    oAO = sum / weight;
}
`
