package shadow

// DepthVertexSource renders geometry into a cascade's depth map. The
// fragment stage is empty; only depth is written.
const DepthVertexSource = `#version 460 core

layout(location = 0) in vec3 aPosition;

uniform mat4 uLightViewProj;
uniform mat4 uModel;

void main() {
    gl_Position = uLightViewProj * uModel * vec4(aPosition, 1.0);
}
`

// DepthFragmentSource is intentionally empty; depth writes come from the
// fixed-function stage.
const DepthFragmentSource = `#version 460 core

void main() {
}
`

// ShaderCascadeCount is the cascade count baked into the GLSL uniform array
// declarations here and in the fog scattering shader. RenderConfig values
// that disagree fail at renderer init rather than sampling undefined splits.
const ShaderCascadeCount = 4

// SampleFunctionSource is the cascade lookup and Poisson PCF filter shared
// by shading shaders. Cascade selection picks the first cascade whose far
// split exceeds the fragment's view-space depth.
const SampleFunctionSource = `
const int CASCADE_COUNT = 4;
const int PCF_TAPS = 16;

uniform sampler2DArrayShadow uShadowMaps;
uniform mat4 uCascadeViewProj[CASCADE_COUNT];
uniform float uCascadeSplits[CASCADE_COUNT];
uniform float uShadowBias;
uniform float uPCFRadius;

const vec2 POISSON[PCF_TAPS] = vec2[](
    vec2(-0.94201624, -0.39906216),
    vec2( 0.94558609, -0.76890725),
    vec2(-0.09418410, -0.92938870),
    vec2( 0.34495938,  0.29387760),
    vec2(-0.91588581,  0.45771432),
    vec2(-0.81544232, -0.87912464),
    vec2(-0.38277543,  0.27676845),
    vec2( 0.97484398,  0.75648379),
    vec2( 0.44323325, -0.97511554),
    vec2( 0.53742981, -0.47373420),
    vec2(-0.26496911, -0.41893023),
    vec2( 0.79197514,  0.19090188),
    vec2(-0.24188840,  0.99706507),
    vec2(-0.81409955,  0.91437590),
    vec2( 0.19984126,  0.78641367),
    vec2( 0.14383161, -0.14100790)
);

int selectCascade(float viewDepth) {
    for (int i = 0; i < CASCADE_COUNT; i++) {
        if (viewDepth < uCascadeSplits[i]) {
            return i;
        }
    }
    return CASCADE_COUNT - 1;
}

float sampleShadow(vec3 worldPos, float viewDepth) {
    int cascade = selectCascade(viewDepth);
    vec4 lightSpace = uCascadeViewProj[cascade] * vec4(worldPos, 1.0);
    vec3 coords = lightSpace.xyz / lightSpace.w * 0.5 + 0.5;
    if (coords.z > 1.0) {
        return 1.0;
    }
    float texel = 1.0 / float(textureSize(uShadowMaps, 0).x);
    float lit = 0.0;
    for (int i = 0; i < PCF_TAPS; i++) {
        vec2 offset = POISSON[i] * uPCFRadius * texel;
        lit += texture(uShadowMaps,
            vec4(coords.xy + offset, float(cascade), coords.z - uShadowBias));
    }
    return lit / float(PCF_TAPS);
}
`
