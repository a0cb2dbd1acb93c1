package tree

import (
	"fmt"
	"strconv"
	"strings"
)

// Tab is a live tab record as reported by the host (tmux, browser).
type Tab struct {
	ID       int
	WindowID int
	Active   bool
	Pinned   bool
	Hidden   bool
	Title    string
	URL      string
}

// State is the transient expand/collapse animation state of a node.
type State int

const (
	StateNone State = iota
	StateExpanding
	StateCollapsing
)

func (s State) String() string {
	switch s {
	case StateExpanding:
		return "expanding"
	case StateCollapsing:
		return "collapsing"
	default:
		return ""
	}
}

// Attribute names used by the presentation projection and the cache markup.
const (
	AttrID       = "id"
	AttrTabID    = "data-tab-id"
	AttrWindowID = "data-window-id"
	AttrParent   = "data-parent"
	AttrChildren = "data-children"
	AttrClass    = "class"
)

// Class names carried in the class attribute.
const (
	ClassTab        = "tab"
	ClassPinned     = "pinned"
	ClassHidden     = "hidden"
	ClassCollapsed  = "collapsed"
	ClassActive     = "active"
	ClassExpanding  = "expanding"
	ClassCollapsing = "collapsing"
)

// Node is the presentation node for one tab. Relations are typed fields; the
// attribute view (Attrs, Attr, SetAttr) is derived from them.
type Node struct {
	ID       string
	TabID    int
	WindowID int
	ParentID string
	Children []string

	Pinned    bool
	Hidden    bool
	Collapsed bool
	Active    bool
	State     State

	Title   string
	Tooltip string

	// Dirty marks the node for a forced full re-render.
	Dirty bool
	// Attached is false once the node has been removed from the panel.
	Attached bool

	// Tab is the live record once the node has been reconciled.
	Tab *Tab
}

// MakeTabID returns the presentation id for a live tab.
func MakeTabID(tab Tab) string {
	return fmt.Sprintf("tab-%d-%d", tab.WindowID, tab.ID)
}

// NewNode builds an attached node from a live tab.
func NewNode(tab Tab) *Node {
	t := tab
	n := &Node{
		ID:       MakeTabID(tab),
		TabID:    tab.ID,
		WindowID: tab.WindowID,
		Attached: true,
		Tab:      &t,
	}
	n.Apply(tab)
	return n
}

// Apply copies the displayed fields of a live tab onto the node.
func (n *Node) Apply(tab Tab) {
	n.Pinned = tab.Pinned
	n.Hidden = tab.Hidden
	n.Active = tab.Active
	if tab.Title != "" {
		n.Title = tab.Title
	}
}

// Normal reports whether the node lives in the scrollable area.
func (n *Node) Normal() bool {
	return !n.Pinned && !n.Hidden
}

// HasChild reports whether id is one of the node's children.
func (n *Node) HasChild(id string) bool {
	for _, c := range n.Children {
		if c == id {
			return true
		}
	}
	return false
}

// DebugLabel is the tooltip shown in debug builds of the sidebar.
func (n *Node) DebugLabel() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n tab=%d window=%d", n.Title, n.TabID, n.WindowID)
	if n.ParentID != "" {
		fmt.Fprintf(&b, "\n parent=%s", n.ParentID)
	}
	if len(n.Children) > 0 {
		fmt.Fprintf(&b, "\n children=%s", strings.Join(n.Children, ","))
	}
	return b.String()
}

// Classes returns the class list in a stable order.
func (n *Node) Classes() []string {
	classes := []string{ClassTab}
	if n.Pinned {
		classes = append(classes, ClassPinned)
	}
	if n.Hidden {
		classes = append(classes, ClassHidden)
	}
	if n.Collapsed {
		classes = append(classes, ClassCollapsed)
	}
	if n.Active {
		classes = append(classes, ClassActive)
	}
	if s := n.State.String(); s != "" {
		classes = append(classes, s)
	}
	return classes
}

// Attrs projects the node to named string attributes. A relation with no
// target is left out entirely.
func (n *Node) Attrs() map[string]string {
	attrs := map[string]string{
		AttrID:       n.ID,
		AttrTabID:    strconv.Itoa(n.TabID),
		AttrWindowID: strconv.Itoa(n.WindowID),
		AttrClass:    strings.Join(n.Classes(), " "),
	}
	if n.ParentID != "" {
		attrs[AttrParent] = n.ParentID
	}
	if len(n.Children) > 0 {
		attrs[AttrChildren] = JoinChildren(n.Children)
	}
	return attrs
}

// Attr returns a projected attribute and whether it is present.
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.Attrs()[name]
	return v, ok
}

// SetAttr writes a named attribute back into the typed fields.
func (n *Node) SetAttr(name, value string) error {
	switch name {
	case AttrID:
		n.ID = value
	case AttrTabID:
		id, err := parseIntAttr(name, value)
		if err != nil {
			return err
		}
		n.TabID = id
	case AttrWindowID:
		id, err := parseIntAttr(name, value)
		if err != nil {
			return err
		}
		n.WindowID = id
	case AttrParent:
		n.ParentID = value
	case AttrChildren:
		n.Children = SplitChildren(value)
	case AttrClass:
		n.setClasses(strings.Fields(value))
	default:
		return fmt.Errorf("unknown attribute %q", name)
	}
	return nil
}

// RemoveAttr clears the typed field behind a named attribute.
func (n *Node) RemoveAttr(name string) {
	switch name {
	case AttrParent:
		n.ParentID = ""
	case AttrChildren:
		n.Children = nil
	case AttrClass:
		n.setClasses(nil)
	}
}

func (n *Node) setClasses(classes []string) {
	n.Pinned, n.Hidden, n.Collapsed, n.Active = false, false, false, false
	n.State = StateNone
	for _, c := range classes {
		switch c {
		case ClassPinned:
			n.Pinned = true
		case ClassHidden:
			n.Hidden = true
		case ClassCollapsed:
			n.Collapsed = true
		case ClassActive:
			n.Active = true
		case ClassExpanding:
			n.State = StateExpanding
		case ClassCollapsing:
			n.State = StateCollapsing
		}
	}
}

// JoinChildren encodes child ids as "|a|b|".
func JoinChildren(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return "|" + strings.Join(ids, "|") + "|"
}

// SplitChildren decodes "|a|b|" into ids, skipping empty segments.
func SplitChildren(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, "|") {
		if part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

func parseIntAttr(name, value string) (int, error) {
	if value == "" {
		return -1, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("attribute %s: %w", name, err)
	}
	return v, nil
}
