package post

import "github.com/go-gl/mathgl/mgl32"

// TAAConfig tunes temporal anti-aliasing.
type TAAConfig struct {
	// BlendFactor is the per-frame weight of the current frame; history
	// keeps the rest.
	BlendFactor float32
	Sharpness   float32
	JitterCount int
}

// DefaultTAAConfig returns the tuning used by the renderer.
func DefaultTAAConfig() TAAConfig {
	return TAAConfig{
		BlendFactor: 0.1,
		Sharpness:   0.2,
		JitterCount: 16,
	}
}

// Halton returns element i (1-based) of the Halton low-discrepancy sequence
// for the given base, in [0, 1).
func Halton(i, base int) float32 {
	f := 1.0
	r := 0.0
	for i > 0 {
		f /= float64(base)
		r += f * float64(i%base)
		i /= base
	}
	return float32(r)
}

// JitterSequence returns n sub-pixel offsets in [-0.5, 0.5] from the
// Halton(2,3) sequence. Low discrepancy keeps samples well spread, so the
// accumulated history converges to a supersampled image.
func JitterSequence(n int) []mgl32.Vec2 {
	seq := make([]mgl32.Vec2, n)
	for i := range seq {
		seq[i] = mgl32.Vec2{
			Halton(i+1, 2) - 0.5,
			Halton(i+1, 3) - 0.5,
		}
	}
	return seq
}

// JitterNDC converts a pixel-space jitter to an NDC projection offset for
// the given render target size. Added to the projection matrix's third
// column translation terms.
func JitterNDC(jitter mgl32.Vec2, width, height int) mgl32.Vec2 {
	return mgl32.Vec2{
		jitter.X() * 2 / float32(width),
		jitter.Y() * 2 / float32(height),
	}
}

// JitterProjection returns proj with the sub-pixel jitter applied.
func JitterProjection(proj mgl32.Mat4, jitter mgl32.Vec2, width, height int) mgl32.Mat4 {
	ndc := JitterNDC(jitter, width, height)
	out := proj
	out[8] += ndc.X()
	out[9] += ndc.Y()
	return out
}

// ClampToNeighborhood bounds a history color to the min/max of the current
// frame's local 3x3 neighborhood. This is the anti-ghosting mechanism:
// history that disagrees with everything nearby is stale and gets pulled
// into the plausible range instead of smearing.
func ClampToNeighborhood(history, nbMin, nbMax mgl32.Vec3) mgl32.Vec3 {
	clamp := func(v, lo, hi float32) float32 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	return mgl32.Vec3{
		clamp(history.X(), nbMin.X(), nbMax.X()),
		clamp(history.Y(), nbMin.Y(), nbMax.Y()),
		clamp(history.Z(), nbMin.Z(), nbMax.Z()),
	}
}

// Resolve blends the current sample with clamped history. blend is the
// current frame's weight after motion/luminance adjustment.
func Resolve(current, history, nbMin, nbMax mgl32.Vec3, blend float32) mgl32.Vec3 {
	h := ClampToNeighborhood(history, nbMin, nbMax)
	return h.Mul(1 - blend).Add(current.Mul(blend))
}

// MotionAdjustedBlend raises the current-frame weight under fast motion or
// large luminance change, trading noise for less ghosting.
func MotionAdjustedBlend(base, motionPixels, lumaDelta float32) float32 {
	blend := base + motionPixels*0.02 + lumaDelta*0.5
	if blend > 1 {
		blend = 1
	}
	return blend
}

// TAAResolveFragmentSource blends the jittered current frame with
// reprojected history.
const TAAResolveFragmentSource = `#version 460 core

in vec2 vUV;
out vec4 oColor;

uniform sampler2D uCurrent;
uniform sampler2D uHistory;
uniform sampler2D uDepth;
uniform mat4 uInvViewProj;
uniform mat4 uPrevViewProj;
uniform float uBlendFactor;

vec2 motionVector(vec2 uv) {
    float depth = texture(uDepth, uv).r;
    vec4 clip = vec4(uv * 2.0 - 1.0, depth * 2.0 - 1.0, 1.0);
    vec4 world = uInvViewProj * clip;
    world /= world.w;
    vec4 prevClip = uPrevViewProj * world;
    vec2 prevUV = (prevClip.xy / prevClip.w) * 0.5 + 0.5;
    return uv - prevUV;
}

float luma(vec3 c) {
    return dot(c, vec3(0.2126, 0.7152, 0.0722));
}

void main() {
    vec2 texel = 1.0 / vec2(textureSize(uCurrent, 0));
    vec3 current = texture(uCurrent, vUV).rgb;

    vec2 motion = motionVector(vUV);
    vec2 prevUV = vUV - motion;

    if (any(lessThan(prevUV, vec2(0.0))) || any(greaterThan(prevUV, vec2(1.0)))) {
        oColor = vec4(current, 1.0);
        return;
    }

    vec3 nbMin = current;
    vec3 nbMax = current;
    for (int y = -1; y <= 1; y++) {
        for (int x = -1; x <= 1; x++) {
            vec3 c = texture(uCurrent, vUV + vec2(x, y) * texel).rgb;
            nbMin = min(nbMin, c);
            nbMax = max(nbMax, c);
        }
    }

    vec3 history = clamp(texture(uHistory, prevUV).rgb, nbMin, nbMax);

    float motionPixels = length(motion / texel);
    float lumaDelta = abs(luma(current) - luma(history));
    float blend = min(1.0, uBlendFactor + motionPixels * 0.02 + lumaDelta * 0.5);

    oColor = vec4(mix(history, current, blend), 1.0);
}
`

// TAASharpenFragmentSource compensates for the blur the temporal filter
// introduces.
const TAASharpenFragmentSource = `#version 460 core

in vec2 vUV;
out vec4 oColor;

uniform sampler2D uColor;
uniform float uSharpness;

void main() {
    vec2 texel = 1.0 / vec2(textureSize(uColor, 0));
    vec3 center = texture(uColor, vUV).rgb;
    vec3 blur = vec3(0.0);
    blur += texture(uColor, vUV + vec2( texel.x, 0.0)).rgb;
    blur += texture(uColor, vUV + vec2(-texel.x, 0.0)).rgb;
    blur += texture(uColor, vUV + vec2(0.0,  texel.y)).rgb;
    blur += texture(uColor, vUV + vec2(0.0, -texel.y)).rgb;
    blur *= 0.25;
    oColor = vec4(max(center + (center - blur) * uSharpness, 0.0), 1.0);
}
`
