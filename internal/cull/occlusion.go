package cull

// OcclusionTester is the optional refinement over frustum culling: given an
// object's bounds, it reports whether previously rendered depth fully hides
// it. Frustum culling is the mandatory baseline; occlusion is a performance
// refinement and a nil or partial tester is always correct.
type OcclusionTester interface {
	Occluded(bounds AABB) bool
}

// RefineOcclusion filters frustum-visible ids through an occlusion tester.
// With a nil tester the input is returned unchanged.
func (c *Culler) RefineOcclusion(ids []ObjectID, tester OcclusionTester) []ObjectID {
	if tester == nil {
		return ids
	}
	out := ids[:0]
	for _, id := range ids {
		b, ok := c.bounds[id]
		if !ok || !tester.Occluded(b) {
			out = append(out, id)
		}
	}
	return out
}
