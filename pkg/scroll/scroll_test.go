package scroll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/b/tmux-tabtree/pkg/tree"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After advances the clock by d and fires at once.
func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

type fakeView struct {
	top     int
	bounds  Rect
	history []int
}

func (v *fakeView) ScrollTop() int { return v.top }
func (v *fakeView) Bounds() Rect   { return v.bounds }
func (v *fakeView) SetScrollTop(top int) {
	v.top = top
	v.history = append(v.history, top)
}

type mapLayout map[string]Rect

func (m mapLayout) Bounds(id string) (Rect, bool) {
	r, ok := m[id]
	return r, ok
}

func node(id string) *tree.Node {
	return &tree.Node{ID: id, Attached: true}
}

func instant() Options {
	o := DefaultOptions()
	o.Smooth = false
	return o
}

func TestCalculateDeltaScrollsDown(t *testing.T) {
	n := node("t")
	view := &fakeView{bounds: Rect{Top: 0, Bottom: 400}}
	s := New(view, mapLayout{"t": {Top: 500, Bottom: 540}}, tree.New(1, n), instant())
	if got := s.CalculateDelta(n); got != 140 {
		t.Fatalf("CalculateDelta() = %d, want 140", got)
	}
	if s.InViewport(n) {
		t.Fatalf("InViewport() = true for a tab below the container")
	}
}

func TestCalculateDeltaScrollsUp(t *testing.T) {
	n := node("t")
	view := &fakeView{bounds: Rect{Top: 0, Bottom: 400}}
	s := New(view, mapLayout{"t": {Top: -30, Bottom: -10}}, tree.New(1, n), instant())
	if got := s.CalculateDelta(n); got != -30 {
		t.Fatalf("CalculateDelta() = %d, want -30", got)
	}
}

func TestCalculateDeltaZeroInsideContainer(t *testing.T) {
	n := node("t")
	view := &fakeView{bounds: Rect{Top: 10, Bottom: 110}}
	for _, r := range []Rect{{10, 30}, {90, 110}, {40, 60}, {10, 110}} {
		s := New(view, mapLayout{"t": r}, tree.New(1, n), instant())
		if got := s.CalculateDelta(n); got != 0 {
			t.Fatalf("CalculateDelta(%+v) = %d, want 0", r, got)
		}
		if !s.InViewport(n) {
			t.Fatalf("InViewport(%+v) = false, want true", r)
		}
	}
}

func TestInViewportPinnedAndDetached(t *testing.T) {
	pinned := node("p")
	pinned.Pinned = true
	detached := node("d")
	detached.Attached = false
	layout := mapLayout{"p": {Top: 900, Bottom: 920}, "d": {Top: 0, Bottom: 10}}
	s := New(&fakeView{bounds: Rect{0, 100}}, layout, tree.New(1, pinned, detached), instant())
	if !s.InViewport(pinned) {
		t.Fatalf("pinned tab should always be in viewport")
	}
	if s.InViewport(detached) || s.InViewport(nil) {
		t.Fatalf("detached or nil tab should not be in viewport")
	}
	hidden := node("h")
	hidden.Hidden = true
	if s.CanScrollTo(hidden) || s.CanScrollTo(detached) || !s.CanScrollTo(pinned) {
		t.Fatalf("CanScrollTo() mismatch")
	}
}

func TestAnimatingOffset(t *testing.T) {
	a, b, c, target := node("a"), node("b"), node("c"), node("t")
	a.State = tree.StateExpanding
	b.State = tree.StateCollapsing
	b.Pinned = true
	c.State = tree.StateExpanding
	after := node("z")
	after.State = tree.StateCollapsing

	opts := instant()
	opts.TabHeight = 20
	view := &fakeView{bounds: Rect{0, 400}}
	s := New(view, mapLayout{"t": {Top: 380, Bottom: 400}}, tree.New(1, a, b, c, target, after), opts)
	if got := s.AnimatingOffset(target); got != 40 {
		t.Fatalf("AnimatingOffset() = %d, want 40", got)
	}
	if got := s.CalculateDelta(target); got != 40 {
		t.Fatalf("CalculateDelta() = %d, want 40", got)
	}
	target.State = tree.StateCollapsing
	if got := s.AnimatingOffset(target); got != 20 {
		t.Fatalf("AnimatingOffset() = %d, want 20", got)
	}
}

func TestScrollToJumps(t *testing.T) {
	n := node("t")
	view := &fakeView{bounds: Rect{0, 400}}
	s := New(view, mapLayout{"t": {Top: 500, Bottom: 540}}, tree.New(1, n), DefaultOptions())
	if err := s.ScrollTo(context.Background(), Params{Node: n, JustNow: true}); err != nil {
		t.Fatalf("ScrollTo() error = %v", err)
	}
	if view.top != 140 || len(view.history) != 1 {
		t.Fatalf("ScrollTop = %d after %d writes, want 140 after 1", view.top, len(view.history))
	}
	if err := s.ScrollTo(context.Background(), Params{Position: 7, JustNow: true}); err != nil {
		t.Fatalf("ScrollTo() error = %v", err)
	}
	if view.top != 7 {
		t.Fatalf("ScrollTop = %d, want 7", view.top)
	}
}

func TestSmoothScrollReachesExactTarget(t *testing.T) {
	view := &fakeView{bounds: Rect{0, 400}}
	s := New(view, mapLayout{}, tree.New(1), DefaultOptions(), WithClock(newFakeClock()))

	if err := s.ScrollTo(context.Background(), Params{Position: 333}); err != nil {
		t.Fatalf("ScrollTo() error = %v", err)
	}
	if view.top != 333 {
		t.Fatalf("ScrollTop = %d, want 333", view.top)
	}
	if len(view.history) < 2 {
		t.Fatalf("expected several frames, got %v", view.history)
	}
	for i := 1; i < len(view.history); i++ {
		if view.history[i] < view.history[i-1] {
			t.Fatalf("frames not monotonic: %v", view.history)
		}
	}
	if s.State() != Stopped || s.IsSmoothScrolling() {
		t.Fatalf("State() = %v, want stopped", s.State())
	}
}

func TestStartSupersedesPreviousAnimation(t *testing.T) {
	clock := newFakeClock()
	view := &fakeView{bounds: Rect{0, 400}}
	s := New(view, mapLayout{}, tree.New(1), DefaultOptions(), WithClock(clock))

	first := s.Start(Params{Position: 100})
	second := s.Start(Params{Position: 200})
	if first.ID() == second.ID() {
		t.Fatalf("animations share id %d", first.ID())
	}
	if _, err := s.Step(first, clock.Now()); !errors.Is(err, ErrCancelled) {
		t.Fatalf("Step(first) error = %v, want ErrCancelled", err)
	}
	if !s.IsSmoothScrolling() {
		t.Fatalf("superseded step must not stop the current animation")
	}
	done, err := s.Step(second, clock.Now().Add(time.Second))
	if err != nil || !done {
		t.Fatalf("Step(second) = %v, %v", done, err)
	}
	if view.top != 200 || second.End() != 200 {
		t.Fatalf("ScrollTop = %d, want 200", view.top)
	}
}

func TestStopCancelsAnimation(t *testing.T) {
	clock := newFakeClock()
	view := &fakeView{bounds: Rect{0, 400}}
	s := New(view, mapLayout{}, tree.New(1), DefaultOptions(), WithClock(clock))

	a := s.Start(Params{Position: 100})
	if s.State() != Running {
		t.Fatalf("State() = %v, want running", s.State())
	}
	s.Stop()
	if _, err := s.Step(a, clock.Now()); !errors.Is(err, ErrCancelled) {
		t.Fatalf("Step() error = %v, want ErrCancelled", err)
	}
	if s.State() != Stopped || len(view.history) != 0 {
		t.Fatalf("State() = %v, writes = %v", s.State(), view.history)
	}
}

func TestSmoothScrollHonoursContext(t *testing.T) {
	view := &fakeView{bounds: Rect{0, 400}}
	s := New(view, mapLayout{}, tree.New(1), DefaultOptions(), WithClock(newFakeClock()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.SmoothScrollTo(ctx, Params{Position: 50})
	if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("SmoothScrollTo() error = %v", err)
	}
	if s.IsSmoothScrolling() {
		t.Fatalf("animation still running after cancellation")
	}
}

func TestAnimationPositionEases(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &Animation{start: 0, end: 100, delta: 100, startTime: start, duration: 100 * time.Millisecond}
	if pos, done := a.Position(start.Add(-time.Second)); pos != 0 || done {
		t.Fatalf("Position(before start) = %d, %v", pos, done)
	}
	if pos, _ := a.Position(start.Add(50 * time.Millisecond)); pos != 70 {
		t.Fatalf("Position(half) = %d, want 70", pos)
	}
	if pos, done := a.Position(start.Add(100 * time.Millisecond)); pos != 100 || !done {
		t.Fatalf("Position(end) = %d, %v", pos, done)
	}
}

func TestPlanTabKeepsActiveVisible(t *testing.T) {
	active, target := node("a"), node("t")
	active.Active = true
	view := &fakeView{bounds: Rect{0, 100}}

	down := New(view, mapLayout{"a": {10, 30}, "t": {120, 140}}, tree.New(1, active, target), instant())
	p := down.PlanTab(target, TabOptions{})
	if p.Node != nil || p.Position != 10 {
		t.Fatalf("PlanTab(down) = %+v, want position 10", p)
	}

	up := New(view, mapLayout{"a": {70, 90}, "t": {-40, -20}}, tree.New(1, target, active), instant())
	p = up.PlanTab(target, TabOptions{})
	if p.Node != nil || p.Position != -10 {
		t.Fatalf("PlanTab(up) = %+v, want position -10", p)
	}

	fits := New(view, mapLayout{"a": {40, 60}, "t": {100, 120}}, tree.New(1, active, target), instant())
	p = fits.PlanTab(target, TabOptions{})
	if p.Position != 20 {
		t.Fatalf("PlanTab(fits) = %+v, want position 20", p)
	}
}

func TestPlanTabDirectWhenActiveHidden(t *testing.T) {
	active, target := node("a"), node("t")
	active.Active = true
	view := &fakeView{bounds: Rect{0, 100}}
	s := New(view, mapLayout{"a": {-50, -30}, "t": {120, 140}}, tree.New(1, active, target), instant())
	if p := s.PlanTab(target, TabOptions{JustNow: true}); p.Node != target || !p.JustNow {
		t.Fatalf("PlanTab() = %+v, want direct node target", p)
	}
	if p := s.PlanTab(active, TabOptions{}); p.Node != active {
		t.Fatalf("PlanTab(active) = %+v, want direct node target", p)
	}
}

// rows builds a tree of n tabs drawn one per row on a panel showing height rows.
func rows(n, height int) (*tree.Tree, *fakeView, *RowLayout) {
	tabs := make([]tree.Tab, n)
	for i := range tabs {
		tabs[i] = tree.Tab{ID: i + 1, WindowID: 1}
	}
	tr := tree.FromTabs(1, tabs)
	view := &fakeView{bounds: Rect{0, height}}
	layout := NewRowLayout(view, 1)
	var ids []string
	for _, nd := range tr.Visible() {
		ids = append(ids, nd.ID)
	}
	layout.SetRows(ids)
	return tr, view, layout
}

func TestRowLayoutBounds(t *testing.T) {
	_, view, layout := rows(10, 5)
	view.top = 3
	r, ok := layout.Bounds("tab-1-5")
	if !ok || r != (Rect{Top: 1, Bottom: 2}) {
		t.Fatalf("Bounds() = %+v, %v", r, ok)
	}
	if _, ok := layout.Bounds("nope"); ok {
		t.Fatalf("Bounds() found unknown row")
	}
	if layout.ContentHeight() != 10 {
		t.Fatalf("ContentHeight() = %d, want 10", layout.ContentHeight())
	}
}

func TestScrollToTab(t *testing.T) {
	tr, view, layout := rows(10, 5)
	s := New(view, layout, tr, instant(), WithClock(newFakeClock()))
	ctx := context.Background()

	if err := s.ScrollToTab(ctx, tr.Get("tab-1-8"), TabOptions{}); err != nil {
		t.Fatalf("ScrollToTab() error = %v", err)
	}
	if view.top != 3 {
		t.Fatalf("ScrollTop = %d, want 3", view.top)
	}

	tr.Get("tab-1-10").Hidden = true
	if err := s.ScrollToTab(ctx, tr.Get("tab-1-10"), TabOptions{}); err != nil {
		t.Fatalf("ScrollToTab(hidden) error = %v", err)
	}
	if err := s.ScrollToTab(ctx, tr.Get("tab-1-5"), TabOptions{}); err != nil {
		t.Fatalf("ScrollToTab(visible) error = %v", err)
	}
	if view.top != 3 || len(view.history) != 1 {
		t.Fatalf("unexpected scrolls: %v", view.history)
	}
}

func TestScrollToTabSmooth(t *testing.T) {
	tr, view, layout := rows(40, 10)
	s := New(view, layout, tr, DefaultOptions(), WithClock(newFakeClock()))
	if err := s.ScrollToTab(context.Background(), tr.Get("tab-1-30"), TabOptions{}); err != nil {
		t.Fatalf("ScrollToTab() error = %v", err)
	}
	if view.top != 20 {
		t.Fatalf("ScrollTop = %d, want 20", view.top)
	}
}

func TestScrollToNewTabModes(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		mode NewTabMode
		want int
	}{
		{NewTabNever, 0},
		{NewTabIfPossible, 0},
		{NewTabAlways, 5},
	} {
		tr, view, layout := rows(10, 5)
		_ = tr.SetActive("tab-1-1")
		opts := instant()
		opts.NewTabMode = tc.mode
		s := New(view, layout, tr, opts, WithClock(newFakeClock()))
		if err := s.ScrollToNewTab(ctx, tr.Get("tab-1-10")); err != nil {
			t.Fatalf("ScrollToNewTab(%s) error = %v", tc.mode, err)
		}
		if view.top != tc.want {
			t.Fatalf("ScrollToNewTab(%s) ScrollTop = %d, want %d", tc.mode, view.top, tc.want)
		}
	}
}

func TestScrollToNewTabIfPossibleScrollsWhenBothFit(t *testing.T) {
	tr, view, layout := rows(10, 5)
	_ = tr.SetActive("tab-1-3")
	s := New(view, layout, tr, instant(), WithClock(newFakeClock()))
	if err := s.ScrollToNewTab(context.Background(), tr.Get("tab-1-7")); err != nil {
		t.Fatalf("ScrollToNewTab() error = %v", err)
	}
	if view.top != 2 {
		t.Fatalf("ScrollTop = %d, want 2", view.top)
	}
}

func TestScrollToTabSubtree(t *testing.T) {
	ctx := context.Background()

	t.Run("below", func(t *testing.T) {
		tr, view, layout := rows(10, 5)
		_ = tr.Adopt("tab-1-7", "tab-1-8")
		_ = tr.Adopt("tab-1-7", "tab-1-9")
		s := New(view, layout, tr, instant(), WithClock(newFakeClock()))
		if err := s.ScrollToTabSubtree(ctx, tr.Get("tab-1-7")); err != nil {
			t.Fatalf("ScrollToTabSubtree() error = %v", err)
		}
		if view.top != 4 {
			t.Fatalf("ScrollTop = %d, want 4", view.top)
		}
	})

	t.Run("taller than panel", func(t *testing.T) {
		tr, view, layout := rows(10, 5)
		for _, id := range []string{"tab-1-4", "tab-1-5", "tab-1-6", "tab-1-7", "tab-1-8", "tab-1-9", "tab-1-10"} {
			_ = tr.Adopt("tab-1-3", id)
		}
		s := New(view, layout, tr, instant(), WithClock(newFakeClock()))
		if err := s.ScrollToTabSubtree(ctx, tr.Get("tab-1-3")); err != nil {
			t.Fatalf("ScrollToTabSubtree() error = %v", err)
		}
		if view.top != 2 {
			t.Fatalf("ScrollTop = %d, want 2", view.top)
		}
	})

	t.Run("above", func(t *testing.T) {
		tr, view, layout := rows(12, 5)
		_ = tr.Adopt("tab-1-2", "tab-1-3")
		view.top = 8
		s := New(view, layout, tr, instant(), WithClock(newFakeClock()))
		if err := s.ScrollToTabSubtree(ctx, tr.Get("tab-1-2")); err != nil {
			t.Fatalf("ScrollToTabSubtree() error = %v", err)
		}
		if view.top != 1 {
			t.Fatalf("ScrollTop = %d, want 1", view.top)
		}
	})

	for _, tc := range []struct {
		name  string
		unfit func(n *tree.Node)
	}{
		{"hidden top", func(n *tree.Node) { n.Hidden = true }},
		{"detached top", func(n *tree.Node) { n.Attached = false }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tr, view, layout := rows(10, 5)
			_ = tr.Adopt("tab-1-7", "tab-1-8")
			_ = tr.Adopt("tab-1-7", "tab-1-9")
			top := tr.Get("tab-1-7")
			tc.unfit(top)
			s := New(view, layout, tr, instant(), WithClock(newFakeClock()))
			if err := s.ScrollToTabSubtree(ctx, top); err != nil {
				t.Fatalf("ScrollToTabSubtree() error = %v", err)
			}
			nodes := append([]*tree.Node{top}, tr.Descendants(top.ID)...)
			if err := s.ScrollToTabs(ctx, nodes); err != nil {
				t.Fatalf("ScrollToTabs() error = %v", err)
			}
			if p, ok := s.PlanTabs(nodes); ok {
				t.Fatalf("PlanTabs() = %+v, want no scroll", p)
			}
			if len(view.history) != 0 {
				t.Fatalf("unexpected scrolls: %v", view.history)
			}
		})
	}

	t.Run("already visible", func(t *testing.T) {
		tr, view, layout := rows(10, 5)
		_ = tr.Adopt("tab-1-1", "tab-1-2")
		s := New(view, layout, tr, instant(), WithClock(newFakeClock()))
		if err := s.ScrollToTabSubtree(ctx, tr.Get("tab-1-1")); err != nil {
			t.Fatalf("ScrollToTabSubtree() error = %v", err)
		}
		if len(view.history) != 0 {
			t.Fatalf("unexpected scrolls: %v", view.history)
		}
	})
}
