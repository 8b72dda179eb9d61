package post

import "math"

// VolumetricConfig tunes the froxel fog volume.
type VolumetricConfig struct {
	// Resolution is the froxel grid size; coarse relative to the screen,
	// hidden by temporal upsampling.
	Resolution [3]int
	FogDensity float32
	// PhaseG is the Henyey-Greenstein anisotropy; positive values scatter
	// forward, toward the light.
	PhaseG     float32
	MarchSteps int
}

// DefaultVolumetricConfig returns the tuning used by the renderer.
func DefaultVolumetricConfig() VolumetricConfig {
	return VolumetricConfig{
		Resolution: [3]int{160, 90, 64},
		FogDensity: 0.1,
		PhaseG:     0.3,
		MarchSteps: 64,
	}
}

// HenyeyGreenstein is the phase function: the fraction of light scattered
// toward the viewer given the cosine of the light-view angle. Normalized so
// it integrates to 1 over the sphere.
func HenyeyGreenstein(cosTheta, g float32) float32 {
	g64 := float64(g)
	denom := 1 + g64*g64 - 2*g64*float64(cosTheta)
	return float32((1 - g64*g64) / (4 * math.Pi * math.Pow(denom, 1.5)))
}

// Transmittance is Beer-Lambert extinction over a path of the given length
// through a medium of the given density.
func Transmittance(density, pathLength float32) float32 {
	return float32(math.Exp(-float64(density) * float64(pathLength)))
}

// ScatterStep is one ray-march step: in-scattered radiance attenuated by
// the transmittance accumulated so far, plus the updated transmittance.
// Callers sum the radiance terms front to back.
func ScatterStep(transmittance, density, stepLen, inScattered float32) (radiance, newTransmittance float32) {
	stepT := Transmittance(density, stepLen)
	// Energy scattered within this step, integrated analytically.
	radiance = inScattered * transmittance * (1 - stepT)
	return radiance, transmittance * stepT
}

// IntegrateScattering marches a view ray through a homogeneous medium with
// the given per-step in-scattered light, returning accumulated radiance and
// final transmittance. The GPU shader does the same per froxel column with
// spatially varying density and shadowed light.
func IntegrateScattering(density, rayLength float32, steps int, inScattered float32) (float32, float32) {
	stepLen := rayLength / float32(steps)
	transmittance := float32(1)
	var radiance float32
	for i := 0; i < steps; i++ {
		var r float32
		r, transmittance = ScatterStep(transmittance, density, stepLen, inScattered)
		radiance += r
	}
	return radiance, transmittance
}

// VolumetricScatterComputeSource fills the froxel volume: one invocation
// per froxel computes in-scattered light from the sun (shadow-tested) and
// clustered lights, weighted by the Henyey-Greenstein phase.
const VolumetricScatterComputeSource = `#version 460 core

layout(local_size_x = 8, local_size_y = 8, local_size_z = 1) in;

layout(rgba16f, binding = 0) writeonly uniform image3D uScatterVolume;

uniform mat4 uInvViewProj;
uniform vec3 uCameraPos;
uniform vec3 uSunDirection;
uniform vec3 uSunColor;
uniform float uFogDensity;
uniform float uPhaseG;
uniform float uNear;
uniform float uFar;
uniform ivec3 uVolumeDim;

const int CASCADE_COUNT = 4;
uniform sampler2DArrayShadow uShadowMaps;
uniform mat4 uCascadeViewProj[CASCADE_COUNT];
uniform float uCascadeSplits[CASCADE_COUNT];

float henyeyGreenstein(float cosTheta, float g) {
    float g2 = g * g;
    float denom = 1.0 + g2 - 2.0 * g * cosTheta;
    return (1.0 - g2) / (4.0 * 3.14159265 * pow(denom, 1.5));
}

// Single-tap cascade shadow lookup; the froxel volume is too coarse for
// PCF to matter.
float sunShadow(vec3 worldPos, float viewDepth) {
    int cascade = CASCADE_COUNT - 1;
    for (int i = 0; i < CASCADE_COUNT; i++) {
        if (viewDepth < uCascadeSplits[i]) {
            cascade = i;
            break;
        }
    }
    vec4 lightSpace = uCascadeViewProj[cascade] * vec4(worldPos, 1.0);
    vec3 coords = lightSpace.xyz / lightSpace.w * 0.5 + 0.5;
    if (coords.z > 1.0) {
        return 1.0;
    }
    return texture(uShadowMaps, vec4(coords.xy, float(cascade), coords.z - 0.002));
}

float sliceDepth(float t) {
    return uNear * pow(uFar / uNear, t);
}

void main() {
    ivec3 froxel = ivec3(gl_GlobalInvocationID);
    if (any(greaterThanEqual(froxel, uVolumeDim))) {
        return;
    }

    vec2 uv = (vec2(froxel.xy) + 0.5) / vec2(uVolumeDim.xy);
    float depth = sliceDepth((float(froxel.z) + 0.5) / float(uVolumeDim.z));

    vec4 world = uInvViewProj * vec4(uv * 2.0 - 1.0, 1.0, 1.0);
    vec3 rayDir = normalize(world.xyz / world.w - uCameraPos);
    vec3 worldPos = uCameraPos + rayDir * depth;

    float phase = henyeyGreenstein(dot(rayDir, -uSunDirection), uPhaseG);
    float shadow = sunShadow(worldPos, depth);
    vec3 scattered = uSunColor * phase * shadow * uFogDensity;

    imageStore(uScatterVolume, froxel, vec4(scattered, uFogDensity));
}
`

// VolumetricIntegrateComputeSource integrates the scatter volume front to
// back along Z, writing accumulated radiance and transmittance per froxel.
// The result feeds temporal resampling before compositing.
const VolumetricIntegrateComputeSource = `#version 460 core

layout(local_size_x = 8, local_size_y = 8) in;

layout(rgba16f, binding = 0) readonly uniform image3D uScatterVolume;
layout(rgba16f, binding = 1) writeonly uniform image3D uIntegratedVolume;

uniform float uNear;
uniform float uFar;
uniform ivec3 uVolumeDim;

float sliceDepth(float t) {
    return uNear * pow(uFar / uNear, t);
}

void main() {
    ivec2 xy = ivec2(gl_GlobalInvocationID.xy);
    if (any(greaterThanEqual(xy, uVolumeDim.xy))) {
        return;
    }

    vec3 radiance = vec3(0.0);
    float transmittance = 1.0;
    float prevDepth = uNear;

    for (int z = 0; z < uVolumeDim.z; z++) {
        float depth = sliceDepth((float(z) + 1.0) / float(uVolumeDim.z));
        float stepLen = depth - prevDepth;
        prevDepth = depth;

        vec4 s = imageLoad(uScatterVolume, ivec3(xy, z));
        float stepT = exp(-s.a * stepLen);
        radiance += s.rgb * transmittance * (1.0 - stepT) / max(s.a, 1e-5);
        transmittance *= stepT;

        imageStore(uIntegratedVolume, ivec3(xy, z), vec4(radiance, transmittance));
    }
}
`

// VolumetricTemporalComputeSource reprojects the previous frame's
// integrated volume with Catmull-Rom resampling and neighborhood clamping,
// the 3D analogue of the TAA resolve, hiding the grid's coarse resolution.
const VolumetricTemporalComputeSource = `#version 460 core

layout(local_size_x = 8, local_size_y = 8, local_size_z = 1) in;

layout(rgba16f, binding = 0) readonly uniform image3D uCurrentVolume;
layout(binding = 1) uniform sampler3D uHistoryVolume;
layout(rgba16f, binding = 2) writeonly uniform image3D uResolvedVolume;

uniform mat4 uReproject;
uniform float uBlendFactor;
uniform ivec3 uVolumeDim;

vec4 catmullRom1D(vec4 a, vec4 b, vec4 c, vec4 d, float t) {
    float t2 = t * t;
    float t3 = t2 * t;
    return 0.5 * ((2.0 * b) + (-a + c) * t +
        (2.0 * a - 5.0 * b + 4.0 * c - d) * t2 +
        (-a + 3.0 * b - 3.0 * c + d) * t3);
}

vec4 sampleHistory(vec3 uvw) {
    vec3 size = vec3(uVolumeDim);
    vec3 pos = uvw * size - 0.5;
    vec3 base = floor(pos);
    float t = fract(pos.x);

    vec4 rows[4];
    for (int i = -1; i <= 2; i++) {
        vec3 p = (base + vec3(float(i), 0.5, 0.5)) / size;
        rows[i + 1] = texture(uHistoryVolume, vec3(p.x, uvw.yz));
    }
    return catmullRom1D(rows[0], rows[1], rows[2], rows[3], t);
}

void main() {
    ivec3 froxel = ivec3(gl_GlobalInvocationID);
    if (any(greaterThanEqual(froxel, uVolumeDim))) {
        return;
    }

    vec4 current = imageLoad(uCurrentVolume, froxel);

    vec3 uvw = (vec3(froxel) + 0.5) / vec3(uVolumeDim);
    vec4 reproj = uReproject * vec4(uvw * 2.0 - 1.0, 1.0);
    vec3 prevUVW = (reproj.xyz / reproj.w) * 0.5 + 0.5;

    if (any(lessThan(prevUVW, vec3(0.0))) || any(greaterThan(prevUVW, vec3(1.0)))) {
        imageStore(uResolvedVolume, froxel, current);
        return;
    }

    vec4 nbMin = current;
    vec4 nbMax = current;
    for (int dz = -1; dz <= 1; dz++) {
        for (int dy = -1; dy <= 1; dy++) {
            for (int dx = -1; dx <= 1; dx++) {
                ivec3 n = clamp(froxel + ivec3(dx, dy, dz), ivec3(0), uVolumeDim - 1);
                vec4 c = imageLoad(uCurrentVolume, n);
                nbMin = min(nbMin, c);
                nbMax = max(nbMax, c);
            }
        }
    }

    vec4 history = clamp(sampleHistory(prevUVW), nbMin, nbMax);
    imageStore(uResolvedVolume, froxel, mix(history, current, uBlendFactor));
}
`
