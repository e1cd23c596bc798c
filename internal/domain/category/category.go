// Package category models the read-only category forest.
package category

// Node is one category row.
type Node struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	ParentID *int64 `json:"parent_id"`
}

// IsRoot reports whether the node has no parent.
func (n Node) IsRoot() bool { return n.ParentID == nil }

// Ref is the id+name view of a node returned for sub-category prompts.
type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Tree indexes nodes by parent. Immutable after NewTree.
type Tree struct {
	nodes    []Node
	byID     map[int64]int
	children map[int64][]int
}

// NewTree builds the children-by-parent map. Child order follows input order.
func NewTree(nodes []Node) *Tree {
	t := &Tree{
		nodes:    nodes,
		byID:     make(map[int64]int, len(nodes)),
		children: make(map[int64][]int),
	}
	for i, n := range nodes {
		t.byID[n.ID] = i
		if n.ParentID != nil {
			t.children[*n.ParentID] = append(t.children[*n.ParentID], i)
		}
	}
	return t
}

// Nodes returns all nodes in source order.
func (t *Tree) Nodes() []Node { return t.nodes }

// Len returns the node count.
func (t *Tree) Len() int { return len(t.nodes) }

// Node looks a category up by id.
func (t *Tree) Node(id int64) (Node, bool) {
	i, ok := t.byID[id]
	if !ok {
		return Node{}, false
	}
	return t.nodes[i], true
}

// HasChildren reports whether any node names id as its parent.
func (t *Tree) HasChildren(id int64) bool {
	return len(t.children[id]) > 0
}

// Children returns the direct children of id.
func (t *Tree) Children(id int64) []Ref {
	idx := t.children[id]
	out := make([]Ref, 0, len(idx))
	for _, i := range idx {
		out = append(out, Ref{ID: t.nodes[i].ID, Name: t.nodes[i].Name})
	}
	return out
}

// DescendantIDs returns id followed by every id reachable through child links.
// Traversal is depth-first with an explicit stack; a malformed cycle is cut at the first revisit.
func (t *Tree) DescendantIDs(id int64) []int64 {
	out := []int64{id}
	seen := map[int64]bool{id: true}
	stack := []int64{id}
	for len(stack) > 0 {
		pid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, i := range t.children[pid] {
			cid := t.nodes[i].ID
			if seen[cid] {
				continue
			}
			seen[cid] = true
			out = append(out, cid)
			stack = append(stack, cid)
		}
	}
	return out
}
