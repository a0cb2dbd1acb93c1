// Package scroll keeps tabs of the sidebar panel in view.
//
// Geometry follows screen coordinates: Top grows downwards and every Rect
// handed out by a Layout is relative to the same origin as the Viewport's
// Bounds, so a row above the visible area has a Top smaller than the
// container's.
//
// Smooth scrolls are frame driven. Start registers an Animation and Step
// advances it by one frame; a host either drives the frames itself (a
// bubbletea program ticking through Update) or calls the blocking
// SmoothScrollTo, which waits on a Clock between frames. Each Animation is its
// own cancellation token: starting a new one or calling Stop cancels the
// previous one at its next Step.
package scroll

import (
	"log/slog"
	"sync"
	"time"

	"github.com/b/tmux-tabtree/pkg/tree"
)

// Rect is the vertical extent of a node or of the container.
type Rect struct {
	Top    int
	Bottom int
}

func (r Rect) Height() int { return r.Bottom - r.Top }

// Viewport is the scrollable container of the panel.
type Viewport interface {
	ScrollTop() int
	SetScrollTop(int)
	Bounds() Rect
}

// Layout reports where a node is currently drawn.
type Layout interface {
	Bounds(id string) (Rect, bool)
}

// Document is the ordered set of nodes shown in the panel. *tree.Tree
// implements it.
type Document interface {
	Nodes() []*tree.Node
	Active() *tree.Node
	Descendants(id string) []*tree.Node
}

// NewTabMode decides whether newly opened tabs are scrolled to.
type NewTabMode string

const (
	NewTabAlways     NewTabMode = "always"
	NewTabIfPossible NewTabMode = "if-possible"
	NewTabNever      NewTabMode = "never"
)

// Options mirror the user configuration consumed by the scroller.
type Options struct {
	Animation     bool
	Smooth        bool
	Duration      time.Duration
	FrameInterval time.Duration
	NewTabMode    NewTabMode
	TabHeight     int
}

func DefaultOptions() Options {
	return Options{
		Animation:     true,
		Smooth:        true,
		Duration:      150 * time.Millisecond,
		FrameInterval: time.Second / 60,
		NewTabMode:    NewTabIfPossible,
		TabHeight:     1,
	}
}

// Clock schedules animation frames.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Scroller computes and applies scroll positions for one panel.
type Scroller struct {
	mu      sync.Mutex
	view    Viewport
	layout  Layout
	doc     Document
	opts    Options
	clock   Clock
	log     *slog.Logger
	current *Animation
	nextID  uint64
	state   State
}

type Option func(*Scroller)

// WithClock replaces the wall clock used between frames.
func WithClock(c Clock) Option {
	return func(s *Scroller) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scroller) { s.log = l }
}

func New(view Viewport, layout Layout, doc Document, opts Options, options ...Option) *Scroller {
	s := &Scroller{
		view:   view,
		layout: layout,
		doc:    doc,
		opts:   opts,
		clock:  realClock{},
		log:    slog.Default(),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// SetOptions applies reloaded configuration. Running animations keep their
// duration.
func (s *Scroller) SetOptions(opts Options) {
	s.mu.Lock()
	s.opts = opts
	s.mu.Unlock()
}

func (s *Scroller) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// SetDocument swaps the node set, e.g. after the tree was rebuilt.
func (s *Scroller) SetDocument(doc Document) {
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
}

func (s *Scroller) document() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Smooth reports whether ScrollTo animates by default.
func (s *Scroller) Smooth() bool {
	o := s.Options()
	return o.Animation && o.Smooth
}

// AnimatingOffset is the shift, in rows of TabHeight, that running
// expand/collapse animations above n (and n itself) will apply: expanding
// tabs push n down, collapsing ones pull it up.
func (s *Scroller) AnimatingOffset(n *tree.Node) int {
	doc := s.document()
	if doc == nil || n == nil {
		return 0
	}
	expanding, collapsing := 0, 0
	count := func(m *tree.Node) {
		switch m.State {
		case tree.StateExpanding:
			expanding++
		case tree.StateCollapsing:
			collapsing++
		}
	}
	count(n)
	for _, m := range doc.Nodes() {
		if m == n {
			break
		}
		if m.Normal() {
			count(m)
		}
	}
	h := s.Options().TabHeight
	return expanding*h - collapsing*h
}

// CalculateDelta returns the smallest scroll change that brings n fully into
// the container, 0 when it already is.
func (s *Scroller) CalculateDelta(n *tree.Node) int {
	if n == nil {
		return 0
	}
	tabRect, ok := s.layout.Bounds(n.ID)
	if !ok {
		return 0
	}
	container := s.view.Bounds()
	offset := s.AnimatingOffset(n)
	switch {
	case container.Bottom < tabRect.Bottom+offset: // should scroll down
		return tabRect.Bottom - container.Bottom + offset
	case container.Top > tabRect.Top+offset: // should scroll up
		return tabRect.Top - container.Top + offset
	default:
		return 0
	}
}

// InViewport reports whether n is fully visible. Pinned nodes live outside
// the scrollable area and always are.
func (s *Scroller) InViewport(n *tree.Node) bool {
	if n == nil || !n.Attached {
		return false
	}
	if n.Pinned {
		return true
	}
	return s.CalculateDelta(n) == 0
}

// CanScrollTo reports whether n is attached and shown.
func (s *Scroller) CanScrollTo(n *tree.Node) bool {
	return n != nil && n.Attached && !n.Hidden
}
