package slam

// kdNode owns its two child slots; the tree is a strict ownership DAG with
// no back-pointers.
type kdNode struct {
	point Point
	left  *kdNode
	right *kdNode
}

// KDTree is a k-dimensional binary partition tree over points. Comparisons
// at depth d use dimension d mod N. Coordinate ties — including exact
// duplicate points — descend right and are inserted, so the tree size always
// equals the number of inserts; duplicates are never rejected.
//
// The tree holds references to the inserted points; callers must not mutate
// them except through TraverseUpdate.
type KDTree struct {
	root *kdNode
	dim  int
}

// NewKDTree builds a tree over the given cloud by sequential insertion.
// Registration rebuilds the index from the target cloud on every call, so
// there is no rebalancing.
func NewKDTree(dim int, points PointCloud) *KDTree {
	t := &KDTree{dim: dim}
	for _, p := range points {
		t.Insert(p)
	}
	return t
}

// Insert descends by cycling dimensions and places the point in the first
// empty branch slot.
func (t *KDTree) Insert(p Point) {
	if t.root == nil {
		t.root = &kdNode{point: p}
		return
	}
	t.root.insert(p, 0, t.dim)
}

func (n *kdNode) insert(p Point, depth, dim int) {
	axis := depth % dim
	branch := &n.right
	if p[axis] < n.point[axis] {
		branch = &n.left
	}
	if *branch != nil {
		(*branch).insert(p, depth+1, dim)
		return
	}
	*branch = &kdNode{point: p}
}

// Nearest returns the stored point closest to target, or false when the
// tree is empty.
func (t *KDTree) Nearest(target Point) (Point, bool) {
	if t.root == nil {
		return nil, false
	}
	return t.root.nearest(target, 0, t.dim), true
}

func (n *kdNode) nearest(target Point, depth, dim int) Point {
	axis := depth % dim
	next, opposite := n.right, n.left
	if target[axis] < n.point[axis] {
		next, opposite = n.left, n.right
	}

	// Descend the same side as the splitting test first; fall back to this
	// node's point when that branch is empty.
	best := n.point
	if next != nil {
		best = next.nearest(target, depth+1, dim)
	}
	if DistanceSquared(n.point, target) < DistanceSquared(best, target) {
		best = n.point
	}

	// Only backtrack into the far branch when the splitting plane is closer
	// than the best candidate; skipping this check returns wrong answers
	// for off-axis queries.
	axisDist := target[axis] - n.point[axis]
	if axisDist*axisDist < DistanceSquared(best, target) && opposite != nil {
		if candidate := opposite.nearest(target, depth+1, dim); DistanceSquared(candidate, target) < DistanceSquared(best, target) {
			best = candidate
		}
	}
	return best
}

// Traverse visits every stored point in-order (left, node, right). The
// visitor must not mutate the points.
func (t *KDTree) Traverse(visit func(Point)) {
	t.root.traverse(visit)
}

func (n *kdNode) traverse(visit func(Point)) {
	if n == nil {
		return
	}
	n.left.traverse(visit)
	visit(n.point)
	n.right.traverse(visit)
}

// TraverseUpdate visits every stored point in-order and allows the visitor
// to mutate coordinates in place. Mutations that change a point's ordering
// relative to its ancestors invalidate subsequent Nearest queries; callers
// that reorder coordinates must rebuild the tree.
func (t *KDTree) TraverseUpdate(visit func(Point)) {
	t.root.traverse(visit)
}
