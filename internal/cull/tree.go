package cull

import (
	"github.com/go-gl/mathgl/mgl32"
)

// AABB is a world-space axis-aligned bounding box.
type AABB struct {
	Min, Max mgl32.Vec3
}

func (b AABB) union(o AABB) AABB {
	return AABB{
		Min: mgl32.Vec3{
			min32(b.Min.X(), o.Min.X()),
			min32(b.Min.Y(), o.Min.Y()),
			min32(b.Min.Z(), o.Min.Z()),
		},
		Max: mgl32.Vec3{
			max32(b.Max.X(), o.Max.X()),
			max32(b.Max.Y(), o.Max.Y()),
			max32(b.Max.Z(), o.Max.Z()),
		},
	}
}

// surface is proportional to the box's surface area, the growth metric for
// choosing insertion subtrees.
func (b AABB) surface() float32 {
	d := b.Max.Sub(b.Min)
	return d.X()*d.Y() + d.Y()*d.Z() + d.Z()*d.X()
}

func (b AABB) contains(o AABB) bool {
	return b.Min.X() <= o.Min.X() && b.Min.Y() <= o.Min.Y() && b.Min.Z() <= o.Min.Z() &&
		b.Max.X() >= o.Max.X() && b.Max.Y() >= o.Max.Y() && b.Max.Z() >= o.Max.Z()
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

type treeNode struct {
	bounds AABB
	parent *treeNode
	left   *treeNode
	right  *treeNode
	// id is set on leaves only.
	id ObjectID
}

func (n *treeNode) isLeaf() bool { return n.left == nil }

// ObjectID identifies a renderable object in the hierarchy.
type ObjectID uint32

// Tree is a dynamic bounding-volume hierarchy over object AABBs, rebuilt
// incrementally as objects move or load/unload. Leaf bounds carry a small
// margin so jittering objects don't force a reinsert every frame.
type Tree struct {
	root   *treeNode
	leaves map[ObjectID]*treeNode
	margin float32
}

// NewTree creates an empty hierarchy. margin inflates stored leaf bounds.
func NewTree(margin float32) *Tree {
	return &Tree{
		leaves: make(map[ObjectID]*treeNode),
		margin: margin,
	}
}

// Len returns the number of objects in the tree.
func (t *Tree) Len() int { return len(t.leaves) }

func (t *Tree) inflate(b AABB) AABB {
	m := mgl32.Vec3{t.margin, t.margin, t.margin}
	return AABB{Min: b.Min.Sub(m), Max: b.Max.Add(m)}
}

// Insert adds an object. Inserting an existing id is an update.
func (t *Tree) Insert(id ObjectID, bounds AABB) {
	if leaf, ok := t.leaves[id]; ok {
		t.update(leaf, bounds)
		return
	}
	leaf := &treeNode{bounds: t.inflate(bounds), id: id}
	t.leaves[id] = leaf
	t.insertLeaf(leaf)
}

// Remove drops an object from the hierarchy.
func (t *Tree) Remove(id ObjectID) {
	leaf, ok := t.leaves[id]
	if !ok {
		return
	}
	delete(t.leaves, id)
	t.removeLeaf(leaf)
}

// Update moves an object. The tree is only restructured when the new
// bounds escape the stored, margin-inflated leaf bounds.
func (t *Tree) Update(id ObjectID, bounds AABB) {
	if leaf, ok := t.leaves[id]; ok {
		t.update(leaf, bounds)
	} else {
		t.Insert(id, bounds)
	}
}

func (t *Tree) update(leaf *treeNode, bounds AABB) {
	if leaf.bounds.contains(bounds) {
		return
	}
	t.removeLeaf(leaf)
	leaf.bounds = t.inflate(bounds)
	leaf.parent, leaf.left, leaf.right = nil, nil, nil
	t.insertLeaf(leaf)
}

func (t *Tree) insertLeaf(leaf *treeNode) {
	if t.root == nil {
		t.root = leaf
		return
	}

	// Descend toward the child whose bounds grow least.
	node := t.root
	for !node.isLeaf() {
		growLeft := node.left.bounds.union(leaf.bounds).surface() - node.left.bounds.surface()
		growRight := node.right.bounds.union(leaf.bounds).surface() - node.right.bounds.surface()
		if growLeft <= growRight {
			node = node.left
		} else {
			node = node.right
		}
	}

	// Split the reached leaf with a new internal node.
	oldParent := node.parent
	internal := &treeNode{
		bounds: node.bounds.union(leaf.bounds),
		parent: oldParent,
		left:   node,
		right:  leaf,
	}
	node.parent = internal
	leaf.parent = internal
	if oldParent == nil {
		t.root = internal
	} else if oldParent.left == node {
		oldParent.left = internal
	} else {
		oldParent.right = internal
	}
	t.refitUp(internal)
}

func (t *Tree) removeLeaf(leaf *treeNode) {
	if leaf == t.root {
		t.root = nil
		return
	}
	parent := leaf.parent
	sibling := parent.left
	if sibling == leaf {
		sibling = parent.right
	}
	grand := parent.parent
	sibling.parent = grand
	if grand == nil {
		t.root = sibling
	} else if grand.left == parent {
		grand.left = sibling
	} else {
		grand.right = sibling
	}
	t.refitUp(grand)
}

func (t *Tree) refitUp(n *treeNode) {
	for n != nil {
		if !n.isLeaf() {
			n.bounds = n.left.bounds.union(n.right.bounds)
		}
		n = n.parent
	}
}

// CollectVisible walks the hierarchy against the frustum, pruning whole
// subtrees whose bounds fail the plane test, and appends visible object ids
// to out.
func (t *Tree) CollectVisible(f Frustum, out []ObjectID) []ObjectID {
	return collect(t.root, f, out)
}

func collect(n *treeNode, f Frustum, out []ObjectID) []ObjectID {
	if n == nil || !f.AABBVisible(n.bounds.Min, n.bounds.Max) {
		return out
	}
	if n.isLeaf() {
		return append(out, n.id)
	}
	out = collect(n.left, f, out)
	return collect(n.right, f, out)
}
