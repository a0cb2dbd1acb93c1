package scroll

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/b/tmux-tabtree/pkg/tree"
)

// ErrCancelled is returned for a smooth scroll that was stopped or
// superseded before reaching its target. The panel stays where the last
// frame put it.
var ErrCancelled = errors.New("smooth scroll cancelled")

// State of the smooth scroll machinery.
type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Params describe one scroll request. With a Node the scroll brings that node
// into view; otherwise it goes to Position.
type Params struct {
	Node     *tree.Node
	Position int
	// JustNow skips the animation.
	JustNow bool
	// Duration overrides the configured smooth scroll duration.
	Duration time.Duration
}

// Animation is one smooth scroll in flight.
type Animation struct {
	id        uint64
	start     int
	end       int
	delta     int
	startTime time.Time
	duration  time.Duration
	cancelled bool
}

func (a *Animation) ID() uint64 { return a.id }

// End is the exact position the animation finishes on.
func (a *Animation) End() int { return a.end }

// Position eases from start to end along a quarter sine wave. Once the
// duration has elapsed it returns the exact end position and true.
func (a *Animation) Position(now time.Time) (int, bool) {
	spent := now.Sub(a.startTime)
	if spent >= a.duration {
		return a.end, true
	}
	if spent < 0 {
		spent = 0
	}
	power := math.Sin(float64(spent) / float64(a.duration) * math.Pi / 2)
	return a.start + int(float64(a.delta)*power), false
}

// target resolves the end position of p against the current scroll position.
func (s *Scroller) target(p Params) (start, end int) {
	start = s.view.ScrollTop()
	if p.Node != nil {
		return start, start + s.CalculateDelta(p.Node)
	}
	return start, p.Position
}

// Jump applies p immediately and cancels any smooth scroll in flight.
func (s *Scroller) Jump(p Params) {
	s.Stop()
	s.jump(p)
}

func (s *Scroller) jump(p Params) {
	if p.Node != nil {
		s.view.SetScrollTop(s.view.ScrollTop() + s.CalculateDelta(p.Node))
		return
	}
	s.view.SetScrollTop(p.Position)
}

// ScrollTo scrolls immediately when p.JustNow is set or smooth scrolling is
// disabled, and animates otherwise.
func (s *Scroller) ScrollTo(ctx context.Context, p Params) error {
	s.log.Debug("scrollTo", "node", nodeID(p.Node), "position", p.Position, "just_now", p.JustNow)
	if !p.JustNow && s.Smooth() {
		return s.SmoothScrollTo(ctx, p)
	}
	s.Jump(p)
	return nil
}

// Start registers a new smooth scroll and makes it the current one. A
// previous animation is cancelled and fails at its next Step.
func (s *Scroller) Start(p Params) *Animation {
	start, end := s.target(p)

	s.mu.Lock()
	defer s.mu.Unlock()
	duration := p.Duration
	if duration <= 0 {
		duration = s.opts.Duration
	}
	if s.current != nil {
		s.current.cancelled = true
	}
	s.nextID++
	a := &Animation{
		id:        s.nextID,
		start:     start,
		end:       end,
		delta:     end - start,
		startTime: s.clock.Now(),
		duration:  duration,
	}
	s.current = a
	s.state = Running
	return a
}

// Step advances a by one frame at time now. It returns true once the target
// position has been applied, ErrCancelled when a was stopped or superseded.
func (s *Scroller) Step(a *Animation, now time.Time) (bool, error) {
	s.mu.Lock()
	if a.cancelled || s.current != a {
		if s.current == a {
			s.current = nil
			s.state = Stopped
		}
		s.mu.Unlock()
		return false, ErrCancelled
	}
	pos, done := a.Position(now)
	if done {
		s.current = nil
		s.state = Stopped
	}
	s.mu.Unlock()

	s.view.SetScrollTop(pos)
	return done, nil
}

// SmoothScrollTo animates to the target of p, one frame per FrameInterval,
// and returns when the target is reached. It fails with ErrCancelled when
// stopped, superseded, or when ctx ends.
func (s *Scroller) SmoothScrollTo(ctx context.Context, p Params) error {
	a := s.Start(p)
	interval := s.Options().FrameInterval
	if interval <= 0 {
		interval = DefaultOptions().FrameInterval
	}
	for {
		if err := ctx.Err(); err != nil {
			s.cancel(a)
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		select {
		case <-ctx.Done():
			s.cancel(a)
			return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		case now := <-s.clock.After(interval):
			done, err := s.Step(a, now)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

func (s *Scroller) cancel(a *Animation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.cancelled = true
	if s.current == a {
		s.current = nil
		s.state = Stopped
	}
}

// Stop cancels the current smooth scroll, if any.
func (s *Scroller) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.cancelled = true
		s.current = nil
	}
	if s.state == Running {
		s.state = Stopped
	}
}

func (s *Scroller) IsSmoothScrolling() bool {
	return s.State() == Running
}

func (s *Scroller) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func nodeID(n *tree.Node) string {
	if n == nil {
		return ""
	}
	return n.ID
}
