package lighting

// CullComputeSource is the light-to-cluster culling compute shader. One
// invocation per cluster. Buffer layouts mirror GPULight, ClusterAABB and
// the Assignment index table; graphics.VerifyGPULayouts checks the CPU side.
const CullComputeSource = `#version 460 core

layout(local_size_x = 64) in;

const uint LIGHT_DIRECTIONAL = 0u;

struct Light {
    vec4 position;  // w = kind
    vec4 direction; // w = range
    vec4 color;     // w = intensity
    vec4 params;    // inner angle, outer angle, shadow bias, enabled
};

struct ClusterAABB {
    vec4 minBounds;
    vec4 maxBounds;
};

layout(std430, binding = 0) readonly buffer Lights {
    Light lights[];
};

layout(std430, binding = 1) readonly buffer Clusters {
    ClusterAABB clusters[];
};

layout(std430, binding = 2) writeonly buffer LightCounts {
    uint counts[];
};

layout(std430, binding = 3) writeonly buffer LightIndices {
    uint indices[];
};

uniform mat4 uView;
uniform uint uNumLights;
uniform uint uNumClusters;
uniform uint uMaxPerCluster;

bool sphereIntersectsAABB(vec3 center, float radius, vec3 lo, vec3 hi) {
    vec3 closest = clamp(center, lo, hi);
    vec3 d = center - closest;
    return dot(d, d) <= radius * radius;
}

void main() {
    uint cluster = gl_GlobalInvocationID.x;
    if (cluster >= uNumClusters) {
        return;
    }

    vec3 lo = clusters[cluster].minBounds.xyz;
    vec3 hi = clusters[cluster].maxBounds.xyz;

    // Lights arrive sorted by descending priority (directional first, then
    // intensity), so stopping at the cap keeps the dominant lights.
    uint count = 0u;
    for (uint i = 0u; i < uNumLights && count < uMaxPerCluster; i++) {
        uint kind = uint(lights[i].position.w);
        bool hit;
        if (kind == LIGHT_DIRECTIONAL) {
            hit = true;
        } else {
            vec3 viewPos = (uView * vec4(lights[i].position.xyz, 1.0)).xyz;
            hit = sphereIntersectsAABB(viewPos, lights[i].direction.w, lo, hi);
        }
        if (hit) {
            indices[cluster * uMaxPerCluster + count] = i;
            count++;
        }
    }
    counts[cluster] = count;
}
`
