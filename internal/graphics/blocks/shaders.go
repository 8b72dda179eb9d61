package blocks

import "voxren/internal/shadow"

// MainVertShader transforms chunk geometry. Positions are emitted in world
// space, so no per-chunk model matrix is needed.
const MainVertShader = `#version 460 core

layout(location = 0) in vec3 aPosition;
layout(location = 1) in vec3 aNormal;
layout(location = 2) in vec2 aUV;
layout(location = 3) in uint aMaterial;
layout(location = 4) in float aAO;

uniform mat4 proj;
uniform mat4 view;

out vec3 vWorldPos;
out vec3 vNormal;
out vec2 vUV;
flat out uint vMaterial;
out float vAO;
out float vViewDepth;

void main() {
    vWorldPos = aPosition;
    vNormal = aNormal;
    vUV = aUV;
    vMaterial = aMaterial;
    vAO = aAO;

    vec4 viewPos = view * vec4(aPosition, 1.0);
    vViewDepth = -viewPos.z;
    gl_Position = proj * viewPos;
}
`

// MainFragShader shades chunk geometry: material albedo from the atlas,
// per-face baked AO, clustered point/spot lights, and cascade-shadowed
// sunlight. The shadow sampling block is shared with the other lit shaders.
const MainFragShader = mainFragHeader + shadow.SampleFunctionSource + mainFragBody

const mainFragHeader = `#version 460 core

in vec3 vWorldPos;
in vec3 vNormal;
in vec2 vUV;
flat in uint vMaterial;
in float vAO;
in float vViewDepth;

out vec4 oColor;

struct Light {
    vec4 position;  // w = kind: 0 directional, 1 point, 2 spot
    vec4 direction; // w = range
    vec4 color;     // w = intensity
    vec4 params;    // inner angle, outer angle, shadow bias, enabled
};

layout(std430, binding = 0) readonly buffer Lights {
    Light lights[];
};

layout(std430, binding = 2) readonly buffer LightCounts {
    uint lightCounts[];
};

layout(std430, binding = 3) readonly buffer LightIndices {
    uint lightIndices[];
};

uniform sampler2DArray uAtlas;
uniform vec3 sunDirection;
uniform vec3 sunColor;
uniform vec3 cameraPos;
uniform float nearPlane;
uniform float farPlane;
uniform ivec3 uClusterDims;
uniform vec2 uScreenSize;
uniform uint uMaxLightsPerCluster;
`

const mainFragBody = `
uint clusterIndex() {
    uvec2 xy = uvec2(gl_FragCoord.xy / uScreenSize * vec2(uClusterDims.xy));
    xy = min(xy, uvec2(uClusterDims.xy) - 1u);
    float slice = log(vViewDepth / nearPlane) / log(farPlane / nearPlane);
    uint z = uint(clamp(slice, 0.0, 0.999) * float(uClusterDims.z));
    return xy.x + xy.y * uint(uClusterDims.x) +
        z * uint(uClusterDims.x) * uint(uClusterDims.y);
}

vec3 shadePointSpot(Light light, vec3 normal, vec3 albedo) {
    uint kind = uint(light.position.w);
    vec3 toLight = light.position.xyz - vWorldPos;
    float dist = length(toLight);
    if (dist > light.direction.w) {
        return vec3(0.0);
    }
    vec3 l = toLight / dist;
    float atten = 1.0 / (1.0 + dist * dist);
    atten *= clamp(1.0 - dist / light.direction.w, 0.0, 1.0);

    if (kind == 2u) {
        float cosAngle = dot(-l, normalize(light.direction.xyz));
        float outer = cos(radians(light.params.y));
        float inner = cos(radians(light.params.x));
        atten *= clamp((cosAngle - outer) / max(inner - outer, 1e-4), 0.0, 1.0);
    }

    float ndotl = max(dot(normal, l), 0.0);
    return albedo * light.color.rgb * light.color.a * ndotl * atten;
}

void main() {
    vec4 albedo = texture(uAtlas, vec3(vUV, float(vMaterial)));
    vec3 normal = normalize(vNormal);

    // Sun with cascade shadows.
    float shadowTerm = sampleShadow(vWorldPos, vViewDepth);
    float sunNdotL = max(dot(normal, -normalize(sunDirection)), 0.0);
    vec3 color = albedo.rgb * sunColor * sunNdotL * shadowTerm;

    // Clustered point and spot lights.
    uint cluster = clusterIndex();
    uint count = lightCounts[cluster];
    for (uint i = 0u; i < count; i++) {
        Light light = lights[lightIndices[cluster * uMaxLightsPerCluster + i]];
        if (uint(light.position.w) == 0u) {
            continue; // directional handled as the sun above
        }
        color += shadePointSpot(light, normal, albedo.rgb);
    }

    // Ambient floor scaled by the meshed per-face occlusion.
    color += albedo.rgb * 0.15 * vAO;
    color *= mix(0.6, 1.0, vAO);

    oColor = vec4(color, albedo.a);
}
`
