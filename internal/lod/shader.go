package lod

// ComputeShaderSource is the per-object GPU selection pass. It mirrors
// Select exactly; the CPU path is the reference the tests pin down.
// Entries outside the frustum write the culled sentinel without running
// the LOD math.
const ComputeShaderSource = `
#version 460 core

layout(local_size_x = 64) in;

struct LODEntry {
    vec4 positionRadius; // xyz = world position, w = bounding radius
};

layout(std430, binding = 0) readonly buffer Entries {
    LODEntry entries[];
};

layout(std430, binding = 1) writeonly buffer Levels {
    int levels[];
};

uniform vec3 uCameraPos;
uniform float uBaseDistance;
uniform float uDistanceMultiplier;
uniform float uQualityBias;
uniform int uMaxLevel;
uniform int uEntryCount;
uniform vec4 uFrustumPlanes[6];
uniform bool uFrustumCull;

const int LOD_CULLED = -1;

bool sphereVisible(vec3 center, float radius) {
    for (int i = 0; i < 6; i++) {
        if (dot(uFrustumPlanes[i].xyz, center) + uFrustumPlanes[i].w < -radius) {
            return false;
        }
    }
    return true;
}

void main() {
    uint id = gl_GlobalInvocationID.x;
    if (id >= uint(uEntryCount)) {
        return;
    }
    vec3 pos = entries[id].positionRadius.xyz;
    float radius = entries[id].positionRadius.w;

    if (uFrustumCull && !sphereVisible(pos, radius)) {
        levels[id] = LOD_CULLED;
        return;
    }

    float dist = max(0.0, distance(pos, uCameraPos) - radius);
    float scaled = max(1.0, dist / uBaseDistance * uDistanceMultiplier);
    int level = int(floor(log2(scaled) - uQualityBias));
    levels[id] = clamp(level, 0, uMaxLevel);
}
`
