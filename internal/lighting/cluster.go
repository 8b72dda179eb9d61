package lighting

import (
	"math"
	"sort"

	"voxren/internal/profiling"

	"github.com/go-gl/mathgl/mgl32"
)

// Grid describes the frustum partition: a regular X*Y split in screen space
// and logarithmic Z slices between the near and far planes. Fine slices sit
// near the camera where depth precision matters.
type Grid struct {
	DimX, DimY, DimZ int
	Near, Far        float32
}

// ClusterCount returns the total cell count.
func (g Grid) ClusterCount() int { return g.DimX * g.DimY * g.DimZ }

// SliceDepth returns the view-space depth where slice boundary z begins.
// Boundary 0 is the near plane, boundary DimZ is the far plane.
func (g Grid) SliceDepth(z int) float32 {
	t := float64(z) / float64(g.DimZ)
	return float32(float64(g.Near) * math.Pow(float64(g.Far)/float64(g.Near), t))
}

// SliceForDepth inverts SliceDepth: the slice index containing a positive
// view-space depth. Depths outside [Near, Far] clamp to the edge slices.
func (g Grid) SliceForDepth(depth float32) int {
	if depth <= g.Near {
		return 0
	}
	if depth >= g.Far {
		return g.DimZ - 1
	}
	logRatio := math.Log(float64(g.Far) / float64(g.Near))
	s := int(math.Log(float64(depth)/float64(g.Near)) / logRatio * float64(g.DimZ))
	if s >= g.DimZ {
		s = g.DimZ - 1
	}
	return s
}

// ClusterAABB is the view-space bounding box of one cluster, padded to two
// vec4s for direct SSBO upload.
type ClusterAABB struct {
	Min [4]float32
	Max [4]float32
}

// ClusterAABBSize is the shader-side struct stride.
const ClusterAABBSize = 32

// ComputeAABBs builds the per-cluster view-space AABBs for the given
// projection. Each cluster's screen rectangle is unprojected to the near
// plane, then the corner rays are scaled out to the slice's near and far
// depths. Ordering is x-major within y within z, matching cluster IDs:
// id = x + y*DimX + z*DimX*DimY.
func (g Grid) ComputeAABBs(proj mgl32.Mat4) []ClusterAABB {
	defer profiling.Track("lighting.ComputeAABBs")()

	invProj := proj.Inv()
	out := make([]ClusterAABB, 0, g.ClusterCount())

	for z := 0; z < g.DimZ; z++ {
		zNear := g.SliceDepth(z)
		zFar := g.SliceDepth(z + 1)
		for y := 0; y < g.DimY; y++ {
			yMin := float32(y)/float32(g.DimY)*2 - 1
			yMax := float32(y+1)/float32(g.DimY)*2 - 1
			for x := 0; x < g.DimX; x++ {
				xMin := float32(x)/float32(g.DimX)*2 - 1
				xMax := float32(x+1)/float32(g.DimX)*2 - 1

				lo := mgl32.Vec3{
					float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1)),
				}
				hi := mgl32.Vec3{
					float32(math.Inf(-1)), float32(math.Inf(-1)), float32(math.Inf(-1)),
				}
				corners := [4][2]float32{
					{xMin, yMin}, {xMax, yMin}, {xMin, yMax}, {xMax, yMax},
				}
				for _, c := range corners {
					ray := unprojectToNear(invProj, c[0], c[1])
					for _, depth := range [2]float32{zNear, zFar} {
						// Scale the near-plane point along its ray to the
						// slice depth plane z = -depth.
						p := ray.Mul(depth / -ray.Z())
						lo = vecMin(lo, p)
						hi = vecMax(hi, p)
					}
				}
				out = append(out, ClusterAABB{
					Min: [4]float32{lo.X(), lo.Y(), lo.Z(), 0},
					Max: [4]float32{hi.X(), hi.Y(), hi.Z(), 0},
				})
			}
		}
	}
	return out
}

func unprojectToNear(invProj mgl32.Mat4, ndcX, ndcY float32) mgl32.Vec3 {
	v := invProj.Mul4x1(mgl32.Vec4{ndcX, ndcY, -1, 1})
	return mgl32.Vec3{v.X() / v.W(), v.Y() / v.W(), v.Z() / v.W()}
}

func vecMin(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{minf(a.X(), b.X()), minf(a.Y(), b.Y()), minf(a.Z(), b.Z())}
}

func vecMax(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{maxf(a.X(), b.X()), maxf(a.Y(), b.Y()), maxf(a.Z(), b.Z())}
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func sphereIntersectsAABB(center mgl32.Vec3, radius float32, box ClusterAABB) bool {
	var d2 float32
	for i := 0; i < 3; i++ {
		c := center[i]
		if c < box.Min[i] {
			d := box.Min[i] - c
			d2 += d * d
		} else if c > box.Max[i] {
			d := c - box.Max[i]
			d2 += d * d
		}
	}
	return d2 <= radius*radius
}

// Assignment is the per-frame light-to-cluster table. Clusters index into
// Lights, the frame's packed light array.
type Assignment struct {
	Lights []GPULight
	// Counts[c] is the number of indices for cluster c; Indices holds
	// MaxPerCluster slots per cluster, the first Counts[c] of which are
	// valid.
	Counts  []uint32
	Indices []uint32
	// Dropped counts lights discarded by the per-cluster cap this frame.
	Dropped int
}

// Assigner builds the clustered light tables each frame.
type Assigner struct {
	Grid          Grid
	MaxLights     int
	MaxPerCluster int
}

// Assign packs the frame's lights and computes per-cluster index lists.
// Disabled lights are skipped. If more than MaxLights are enabled, the
// lowest-intensity lights are dropped for the frame. Within a cluster,
// overflow beyond MaxPerCluster drops the lowest-priority lights, priority
// being intensity scaled by inverse distance to the cluster; this keeps the
// visually dominant lights and degrades gracefully instead of failing.
func (a *Assigner) Assign(lights []Light, view mgl32.Mat4, aabbs []ClusterAABB) Assignment {
	defer profiling.Track("lighting.Assign")()

	packed := packLights(lights, a.MaxLights)
	n := a.Grid.ClusterCount()
	asn := Assignment{
		Lights:  make([]GPULight, len(packed)),
		Counts:  make([]uint32, n),
		Indices: make([]uint32, n*a.MaxPerCluster),
	}

	type viewLight struct {
		center mgl32.Vec3
		radius float32
		kind   Kind
	}
	vls := make([]viewLight, len(packed))
	for i, l := range packed {
		asn.Lights[i] = l.ToGPU()
		p := view.Mul4x1(l.Position.Vec4(1))
		vls[i] = viewLight{
			center: mgl32.Vec3{p.X(), p.Y(), p.Z()},
			radius: l.boundingRadius(),
			kind:   l.Kind,
		}
	}

	type candidate struct {
		index    uint32
		priority float32
	}
	cands := make([]candidate, 0, len(packed))

	for c := 0; c < n; c++ {
		box := aabbs[c]
		clusterCenter := mgl32.Vec3{
			(box.Min[0] + box.Max[0]) * 0.5,
			(box.Min[1] + box.Max[1]) * 0.5,
			(box.Min[2] + box.Max[2]) * 0.5,
		}
		cands = cands[:0]
		for i, vl := range vls {
			switch vl.kind {
			case Directional:
				// Directional lights affect every cluster.
			case Point, Spot:
				if !sphereIntersectsAABB(vl.center, vl.radius, box) {
					continue
				}
			}
			dist := vl.center.Sub(clusterCenter).Len()
			prio := packed[i].Intensity / (1 + dist)
			if vl.kind == Directional {
				// Never drop the sun in favor of a point light.
				prio = float32(math.Inf(1))
			}
			cands = append(cands, candidate{index: uint32(i), priority: prio})
		}
		if len(cands) > a.MaxPerCluster {
			sort.Slice(cands, func(i, j int) bool {
				return cands[i].priority > cands[j].priority
			})
			asn.Dropped += len(cands) - a.MaxPerCluster
			cands = cands[:a.MaxPerCluster]
		}
		base := c * a.MaxPerCluster
		for i, cd := range cands {
			asn.Indices[base+i] = cd.index
		}
		asn.Counts[c] = uint32(len(cands))
	}
	profiling.Count("lighting.dropped", int64(asn.Dropped))
	return asn
}

// Pack filters and caps the frame's lights and converts them for upload.
// It applies the same ordering as Assign — directional first, then by
// descending intensity — so the GPU culling pass, which fills each cluster
// in array order and truncates at the cap, keeps the same dominant lights
// the CPU assigner's priority drop keeps.
func Pack(lights []Light, max int) []GPULight {
	packed := packLights(lights, max)
	out := make([]GPULight, len(packed))
	for i, l := range packed {
		out[i] = l.ToGPU()
	}
	return out
}

// packLights filters disabled lights, orders the rest by priority —
// directional first, then descending intensity — and enforces the frame
// light cap. The ordering is load-bearing for the GPU culling path: its
// per-cluster truncation keeps the first lights in array order.
func packLights(lights []Light, max int) []Light {
	packed := make([]Light, 0, len(lights))
	for _, l := range lights {
		if l.Enabled {
			packed = append(packed, l)
		}
	}
	sort.SliceStable(packed, func(i, j int) bool {
		if (packed[i].Kind == Directional) != (packed[j].Kind == Directional) {
			return packed[i].Kind == Directional
		}
		return packed[i].Intensity > packed[j].Intensity
	})
	if len(packed) > max {
		packed = packed[:max]
	}
	return packed
}

// BruteForceReference computes, for one cluster, the full set of light
// indices that intersect it with no cap applied. Used to validate that the
// assigner never misses a light.
func BruteForceReference(lights []GPULight, viewCenters []mgl32.Vec3, box ClusterAABB) []uint32 {
	var out []uint32
	for i := range lights {
		kind := Kind(lights[i].Position[3])
		if kind == Directional {
			out = append(out, uint32(i))
			continue
		}
		if sphereIntersectsAABB(viewCenters[i], lights[i].Direction[3], box) {
			out = append(out, uint32(i))
		}
	}
	return out
}
