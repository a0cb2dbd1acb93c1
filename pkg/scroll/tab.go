package scroll

import (
	"context"
	"fmt"

	"github.com/b/tmux-tabtree/pkg/tree"
)

// TabOptions tune a scroll towards a tab.
type TabOptions struct {
	JustNow bool
}

// PlanTab returns the scroll that brings n into view. When another tab is
// active and visible, the scroll is shortened so the active tab stays on
// screen as long as both fit.
func (s *Scroller) PlanTab(n *tree.Node, opts TabOptions) Params {
	direct := Params{Node: n, JustNow: opts.JustNow}
	doc := s.document()
	if doc == nil {
		return direct
	}
	active := doc.Active()
	if active == nil || active == n || !s.InViewport(active) {
		return direct
	}
	target, ok := s.layout.Bounds(n.ID)
	if !ok {
		return direct
	}
	act, ok := s.layout.Bounds(active.ID)
	if !ok {
		return direct
	}

	delta := s.CalculateDelta(n)
	if delta == 0 {
		return direct
	}
	container := s.view.Bounds()
	offset := s.AnimatingOffset(n)
	if delta > 0 {
		over := target.Bottom - act.Top + offset - container.Height()
		if over > 0 {
			delta -= over
		}
	} else {
		over := act.Bottom - target.Top + offset - container.Height()
		if over > 0 {
			delta += over
		}
	}
	return Params{Position: s.view.ScrollTop() + delta, JustNow: opts.JustNow}
}

// ScrollToTab brings n into view, one tick after the call so pending layout
// changes settle first. Nothing happens for hidden or already visible tabs.
func (s *Scroller) ScrollToTab(ctx context.Context, n *tree.Node, opts TabOptions) error {
	if !s.CanScrollTo(n) || s.InViewport(n) {
		return nil
	}
	if err := s.nextTick(ctx); err != nil {
		return err
	}
	if !s.CanScrollTo(n) || s.InViewport(n) {
		return nil
	}
	return s.ScrollTo(ctx, s.PlanTab(n, opts))
}

// PlanNewTab returns the scroll following a newly opened tab, false when none
// is due. In if-possible mode the active tab is kept in view; in always mode
// the new tab wins.
func (s *Scroller) PlanNewTab(n *tree.Node) (Params, bool) {
	if !s.CanScrollTo(n) || s.InViewport(n) {
		return Params{}, false
	}
	switch s.Options().NewTabMode {
	case NewTabIfPossible:
		return s.PlanTab(n, TabOptions{}), true
	case NewTabAlways:
		return Params{Node: n}, true
	default:
		return Params{}, false
	}
}

// ScrollToNewTab follows a newly opened tab, one tick after the call.
func (s *Scroller) ScrollToNewTab(ctx context.Context, n *tree.Node) error {
	if _, ok := s.PlanNewTab(n); !ok {
		return nil
	}
	if err := s.nextTick(ctx); err != nil {
		return err
	}
	p, ok := s.PlanNewTab(n)
	if !ok {
		return nil
	}
	return s.ScrollTo(ctx, p)
}

// ScrollToTabSubtree scrolls so n and as many of its descendants as fit are
// visible. Nothing happens when n itself cannot be scrolled to.
func (s *Scroller) ScrollToTabSubtree(ctx context.Context, n *tree.Node) error {
	if !s.CanScrollTo(n) {
		return nil
	}
	nodes := []*tree.Node{n}
	if doc := s.document(); doc != nil {
		nodes = append(nodes, doc.Descendants(n.ID)...)
	}
	return s.ScrollToTabs(ctx, nodes)
}

// PlanTabs picks the scroll that shows the first of nodes and as many of the
// following ones as fit. It returns false when no scroll is needed or the
// first node cannot be scrolled to.
func (s *Scroller) PlanTabs(nodes []*tree.Node) (Params, bool) {
	if len(nodes) == 0 || !s.CanScrollTo(nodes[0]) {
		return Params{}, false
	}
	var shown []*tree.Node
	for _, n := range nodes {
		if s.CanScrollTo(n) && !n.Pinned {
			shown = append(shown, n)
		}
	}
	if len(shown) == 0 {
		return Params{}, false
	}
	first := shown[0]
	firstRect, ok := s.layout.Bounds(first.ID)
	if !ok {
		return Params{}, false
	}
	container := s.view.Bounds()

	lastVisible := first
	for _, n := range shown[1:] {
		r, ok := s.layout.Bounds(n.ID)
		if !ok {
			// folded under a collapsed ancestor
			continue
		}
		if r.Bottom-firstRect.Top > container.Height() {
			break
		}
		lastVisible = n
	}

	firstIn, lastIn := s.InViewport(first), s.InViewport(lastVisible)
	switch {
	case firstIn && lastIn:
		return Params{}, false
	case lastIn:
		return Params{Node: first}, true
	case firstIn:
		return Params{Node: lastVisible}, true
	case firstRect.Top < container.Top:
		return Params{Position: s.view.ScrollTop() + firstRect.Top - container.Top}, true
	default:
		return Params{Node: lastVisible}, true
	}
}

// ScrollToTabs scrolls so the first of nodes and as many of the following
// ones as fit are visible.
func (s *Scroller) ScrollToTabs(ctx context.Context, nodes []*tree.Node) error {
	if len(nodes) == 0 || !s.CanScrollTo(nodes[0]) {
		return nil
	}
	if err := s.nextTick(ctx); err != nil {
		return err
	}
	p, ok := s.PlanTabs(nodes)
	if !ok {
		return nil
	}
	return s.ScrollTo(ctx, p)
}

// nextTick waits one frame so layout changes made by the caller apply first.
func (s *Scroller) nextTick(ctx context.Context) error {
	interval := s.Options().FrameInterval
	if interval <= 0 {
		interval = DefaultOptions().FrameInterval
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	case <-s.clock.After(interval):
		return nil
	}
}
