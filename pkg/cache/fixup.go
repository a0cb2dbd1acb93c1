package cache

import (
	"errors"
	"fmt"

	"github.com/b/tmux-tabtree/pkg/tree"
)

// ErrCountMismatch reports a cache whose node count differs from the live tab
// count. The cache is treated as corrupt.
var ErrCountMismatch = errors.New("mismatched number of tabs restored from cache")

// MismatchError carries both counts of a failed reconciliation.
type MismatchError struct {
	Nodes int
	Tabs  int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%v: elements=%d, tabs=%d", ErrCountMismatch, e.Nodes, e.Tabs)
}

func (e *MismatchError) Unwrap() error { return ErrCountMismatch }

// IDMap maps cached node ids to the ids derived from live tabs.
type IDMap map[string]string

// FixupOptions controls how reconciled nodes are refreshed.
type FixupOptions struct {
	// Dirty forces a full re-render from the live records instead of only
	// refreshing the debug tooltip.
	Dirty bool
}

// Fixup reconciles cached nodes with the live tabs of the same window, index
// by index. Nodes get ids derived from their live tab and every parent/child
// reference is rewritten through the resulting IDMap; references that do not
// resolve are dropped. Nothing is modified when the lengths differ.
//
// Callers refresh focus afterwards (see RefreshFocus).
func Fixup(nodes []*tree.Node, tabs []tree.Tab, opts FixupOptions) (IDMap, error) {
	if len(nodes) != len(tabs) {
		return nil, &MismatchError{Nodes: len(nodes), Tabs: len(tabs)}
	}

	idMap := make(IDMap, len(nodes))
	restored := make(map[string]*tree.Node, len(nodes))
	for i, n := range nodes {
		oldID := n.ID
		tab := tabs[i]
		n.ID = tree.MakeTabID(tab)
		n.TabID = tab.ID
		n.WindowID = tab.WindowID
		idMap[oldID] = n.ID
		restored[n.ID] = n
	}

	for i, n := range nodes {
		fixupNode(n, tabs[i], idMap, restored, opts)
	}
	return idMap, nil
}

func fixupNode(n *tree.Node, tab tree.Tab, idMap IDMap, restored map[string]*tree.Node, opts FixupOptions) {
	live := tab
	n.Tab = &live
	n.Attached = true

	var children []string
	seen := make(map[string]bool, len(n.Children))
	for _, oldID := range n.Children {
		newID, ok := idMap[oldID]
		if !ok || restored[newID] == nil || seen[newID] || newID == n.ID {
			continue
		}
		seen[newID] = true
		children = append(children, newID)
	}
	n.Children = children

	if newID, ok := idMap[n.ParentID]; ok && restored[newID] != nil && newID != n.ID {
		n.ParentID = newID
	} else {
		n.ParentID = ""
	}

	if opts.Dirty {
		n.Apply(tab)
		n.Dirty = true
	}
	n.Tooltip = n.DebugLabel()
}

// RefreshFocus marks the node of the active live tab as active.
func RefreshFocus(t *tree.Tree, activeTabID int) error {
	n := t.ByTabID(activeTabID)
	if n == nil {
		return fmt.Errorf("refresh focus for tab %d: %w", activeTabID, tree.ErrNotFound)
	}
	return t.SetActive(n.ID)
}
