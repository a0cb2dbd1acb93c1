package tree

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("node not found")
	// ErrUnknownWindow is returned by tab hosts for a window they do not know.
	ErrUnknownWindow = errors.New("unknown window")
)

// Tree holds the nodes of one window in document (tab) order.
type Tree struct {
	WindowID int

	nodes []*Node
	byID  map[string]*Node
}

// New builds a tree from nodes already in tab order.
func New(windowID int, nodes ...*Node) *Tree {
	t := &Tree{WindowID: windowID, byID: make(map[string]*Node, len(nodes))}
	for _, n := range nodes {
		t.Append(n)
	}
	return t
}

// FromTabs builds a flat tree: every tab becomes a root.
func FromTabs(windowID int, tabs []Tab) *Tree {
	t := New(windowID)
	for _, tab := range tabs {
		t.Append(NewNode(tab))
	}
	return t
}

// Append adds a node at the end. A node with an id already present replaces
// the old one in place.
func (t *Tree) Append(n *Node) {
	if old, ok := t.byID[n.ID]; ok {
		for i, cur := range t.nodes {
			if cur == old {
				t.nodes[i] = n
				break
			}
		}
		t.byID[n.ID] = n
		return
	}
	t.nodes = append(t.nodes, n)
	t.byID[n.ID] = n
}

// Reindex rebuilds the id index after node ids were rewritten in place.
func (t *Tree) Reindex() {
	t.byID = make(map[string]*Node, len(t.nodes))
	for _, n := range t.nodes {
		t.byID[n.ID] = n
	}
}

// Get returns the node with the given id or nil.
func (t *Tree) Get(id string) *Node {
	if t == nil || id == "" {
		return nil
	}
	return t.byID[id]
}

// ByTabID finds the node bound to a live tab id.
func (t *Tree) ByTabID(tabID int) *Node {
	for _, n := range t.nodes {
		if n.TabID == tabID {
			return n
		}
	}
	return nil
}

// Index returns the document position of id, or -1.
func (t *Tree) Index(id string) int {
	for i, n := range t.nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// Nodes returns the nodes in document order. The slice must not be modified.
func (t *Tree) Nodes() []*Node {
	if t == nil {
		return nil
	}
	return t.nodes
}

func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

// Roots returns nodes without a parent, in document order.
func (t *Tree) Roots() []*Node {
	var roots []*Node
	for _, n := range t.nodes {
		if n.ParentID == "" || t.byID[n.ParentID] == nil {
			roots = append(roots, n)
		}
	}
	return roots
}

// Depth returns how many ancestors a node has.
func (t *Tree) Depth(n *Node) int {
	depth := 0
	seen := map[string]bool{n.ID: true}
	for p := t.Get(n.ParentID); p != nil && !seen[p.ID]; p = t.Get(p.ParentID) {
		seen[p.ID] = true
		depth++
	}
	return depth
}

// Descendants returns all descendants of id depth first, children in order.
func (t *Tree) Descendants(id string) []*Node {
	var out []*Node
	seen := map[string]bool{id: true}
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, cid := range n.Children {
			c := t.byID[cid]
			if c == nil || seen[cid] {
				continue
			}
			seen[cid] = true
			out = append(out, c)
			walk(c)
		}
	}
	if n := t.Get(id); n != nil {
		walk(n)
	}
	return out
}

// Active returns the active node, if any.
func (t *Tree) Active() *Node {
	for _, n := range t.nodes {
		if n.Active {
			return n
		}
	}
	return nil
}

// SetActive marks id active and clears every other node.
func (t *Tree) SetActive(id string) error {
	target := t.Get(id)
	if target == nil {
		return fmt.Errorf("set active %s: %w", id, ErrNotFound)
	}
	for _, n := range t.nodes {
		n.Active = n == target
	}
	return nil
}

// Adopt makes childID a child of parentID, detaching it from its previous
// parent.
func (t *Tree) Adopt(parentID, childID string) error {
	parent, child := t.Get(parentID), t.Get(childID)
	if parent == nil || child == nil {
		return fmt.Errorf("adopt %s under %s: %w", childID, parentID, ErrNotFound)
	}
	if parentID == childID {
		return fmt.Errorf("adopt %s under itself", childID)
	}
	for _, d := range t.Descendants(childID) {
		if d.ID == parentID {
			return fmt.Errorf("adopt %s under its descendant %s", childID, parentID)
		}
	}
	if old := t.Get(child.ParentID); old != nil {
		old.Children = removeID(old.Children, childID)
	}
	child.ParentID = parentID
	if !parent.HasChild(childID) {
		parent.Children = append(parent.Children, childID)
	}
	return nil
}

// Remove detaches a node. Its children are promoted to its parent.
func (t *Tree) Remove(id string) error {
	n := t.Get(id)
	if n == nil {
		return fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	parent := t.Get(n.ParentID)
	if parent != nil {
		parent.Children = removeID(parent.Children, id)
	}
	for _, cid := range n.Children {
		c := t.Get(cid)
		if c == nil {
			continue
		}
		c.ParentID = n.ParentID
		if parent != nil {
			parent.Children = append(parent.Children, cid)
		}
	}
	for i, cur := range t.nodes {
		if cur == n {
			t.nodes = append(t.nodes[:i], t.nodes[i+1:]...)
			break
		}
	}
	delete(t.byID, id)
	n.Attached = false
	return nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Folded reports whether n sits under a collapsed ancestor.
func (t *Tree) Folded(n *Node) bool {
	seen := map[string]bool{n.ID: true}
	for p := t.Get(n.ParentID); p != nil && !seen[p.ID]; p = t.Get(p.ParentID) {
		if p.Collapsed {
			return true
		}
		seen[p.ID] = true
	}
	return false
}

// Visible returns the nodes drawn in the panel: not hidden and not folded.
func (t *Tree) Visible() []*Node {
	var out []*Node
	for _, n := range t.nodes {
		if !n.Hidden && !t.Folded(n) {
			out = append(out, n)
		}
	}
	return out
}

// Detach makes id a root, keeping its own children.
func (t *Tree) Detach(id string) error {
	n := t.Get(id)
	if n == nil {
		return fmt.Errorf("detach %s: %w", id, ErrNotFound)
	}
	if p := t.Get(n.ParentID); p != nil {
		p.Children = removeID(p.Children, id)
	}
	n.ParentID = ""
	return nil
}

// Sync brings the tree in line with the live tabs of its window: nodes of
// closed tabs are removed, nodes of new tabs are appended as roots, and the
// order follows the tabs.
func (t *Tree) Sync(tabs []Tab) (added, removed []*Node) {
	live := make(map[string]bool, len(tabs))
	for _, tab := range tabs {
		live[MakeTabID(tab)] = true
	}
	for _, n := range append([]*Node(nil), t.nodes...) {
		if !live[n.ID] {
			_ = t.Remove(n.ID)
			removed = append(removed, n)
		}
	}
	nodes := make([]*Node, 0, len(tabs))
	for _, tab := range tabs {
		n := t.byID[MakeTabID(tab)]
		if n == nil {
			n = NewNode(tab)
			added = append(added, n)
		} else {
			n.Apply(tab)
			rec := tab
			n.Tab = &rec
		}
		nodes = append(nodes, n)
	}
	t.nodes = nodes
	t.Reindex()
	return added, removed
}
