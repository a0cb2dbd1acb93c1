package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/b/tmux-tabtree/pkg/cache"
	"github.com/b/tmux-tabtree/pkg/config"
	"github.com/b/tmux-tabtree/pkg/scroll"
	"github.com/b/tmux-tabtree/pkg/tree"
)

const refreshInterval = time.Second

// panel adapts the bubbles viewport to the scroller.
type panel struct {
	vp viewport.Model
}

func (p *panel) ScrollTop() int       { return p.vp.YOffset }
func (p *panel) SetScrollTop(top int) { p.vp.SetYOffset(top) }
func (p *panel) Bounds() scroll.Rect  { return scroll.Rect{Top: 0, Bottom: p.vp.Height} }

// sidebarModel draws the tab tree of one window.
type sidebarModel struct {
	ctx      context.Context
	cfg      *config.Config
	host     host
	restorer *cache.Restorer
	windowID int
	log      *slog.Logger

	tree     *tree.Tree
	panel    *panel
	layout   *scroll.RowLayout
	scroller *scroll.Scroller
	styles   styles

	cursor string
	width  int
	height int
	ready  bool
	dirty  bool
	status string
}

type restoredMsg struct {
	tree *tree.Tree
	res  cache.Result
	err  error
}

type tabsMsg struct {
	tabs []tree.Tab
	err  error
}

type refreshTickMsg time.Time

// frameMsg advances one smooth scroll by a frame.
type frameMsg struct {
	anim *scroll.Animation
	at   time.Time
}

type scrollKind int

const (
	scrollTab scrollKind = iota
	scrollCursor
	scrollNewTab
	scrollSubtree
)

// scrollMsg arrives one tick after a scroll was requested, once the rows of
// the request have been laid out.
type scrollMsg struct {
	kind    scrollKind
	id      string
	justNow bool
}

type configMsg struct {
	cfg *config.Config
	err error
}

type statusMsg string

func newSidebarModel(ctx context.Context, cfg *config.Config, h host, r *cache.Restorer, windowID int, log *slog.Logger) sidebarModel {
	p := &panel{vp: viewport.New(30, 10)}
	layout := scroll.NewRowLayout(p, cfg.TabHeight)
	return sidebarModel{
		ctx:      ctx,
		cfg:      cfg,
		host:     h,
		restorer: r,
		windowID: windowID,
		log:      log,
		panel:    p,
		layout:   layout,
		scroller: scroll.New(p, layout, nil, cfg.ScrollOptions(), scroll.WithLogger(log)),
		styles:   newStyles(cfg),
		width:    30,
		height:   12,
	}
}

func (m sidebarModel) Init() tea.Cmd {
	return tea.Batch(m.restoreCmd(), refreshTick())
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

func (m sidebarModel) restoreCmd() tea.Cmd {
	return func() tea.Msg {
		if err := m.host.EnsureIDs(m.ctx, m.windowID); err != nil {
			m.log.Warn("tagging tabs failed", "window", m.windowID, "error", err)
		}
		opts := cache.RestoreOptions{Skip: m.cfg.Cache.Skip, Dirty: m.cfg.Cache.DirtyOnRestore}
		t, res, err := m.restorer.Restore(m.ctx, m.windowID, opts)
		if errors.Is(err, cache.ErrCountMismatch) && m.restorer.Store != nil {
			m.log.Warn("dropping corrupt cache", "window", m.windowID, "error", err)
			if derr := m.restorer.Store.Delete(m.ctx, m.windowID); derr != nil {
				return restoredMsg{err: errors.Join(err, derr)}
			}
			t, res, err = m.restorer.Restore(m.ctx, m.windowID, opts)
		}
		return restoredMsg{tree: t, res: res, err: err}
	}
}

func (m sidebarModel) queryCmd() tea.Cmd {
	return func() tea.Msg {
		tabs, err := m.host.QueryTabs(m.ctx, m.windowID)
		return tabsMsg{tabs: tabs, err: err}
	}
}

func (m sidebarModel) ensureIDsCmd() tea.Cmd {
	return func() tea.Msg {
		if err := m.host.EnsureIDs(m.ctx, m.windowID); err != nil {
			m.log.Warn("tagging new tabs failed", "window", m.windowID, "error", err)
		}
		return nil
	}
}

func (m sidebarModel) activateCmd(tabID int) tea.Cmd {
	return func() tea.Msg {
		if err := m.host.Activate(m.ctx, tabID); err != nil {
			return statusMsg(fmt.Sprintf("activate: %v", err))
		}
		tabs, err := m.host.QueryTabs(m.ctx, m.windowID)
		return tabsMsg{tabs: tabs, err: err}
	}
}

func (m sidebarModel) pinCmd(tabID int, pinned bool) tea.Cmd {
	p, ok := m.host.(pinner)
	if !ok {
		return func() tea.Msg { return statusMsg("pinning is not supported by this source") }
	}
	return func() tea.Msg {
		if err := p.SetPinned(m.ctx, tabID, pinned); err != nil {
			return statusMsg(fmt.Sprintf("pin: %v", err))
		}
		tabs, err := m.host.QueryTabs(m.ctx, m.windowID)
		return tabsMsg{tabs: tabs, err: err}
	}
}

// afterTick delivers a scroll request on the next frame.
func (m sidebarModel) afterTick(req scrollMsg) tea.Cmd {
	return tea.Tick(m.scroller.Options().FrameInterval, func(time.Time) tea.Msg {
		return req
	})
}

func (m sidebarModel) frameCmd(a *scroll.Animation) tea.Cmd {
	return tea.Tick(m.scroller.Options().FrameInterval, func(t time.Time) tea.Msg {
		return frameMsg{anim: a, at: t}
	})
}

// scrollTo applies p at once or starts a smooth scroll driven by frameMsg.
func (m sidebarModel) scrollTo(p scroll.Params) tea.Cmd {
	if p.JustNow || !m.scroller.Smooth() {
		m.scroller.Jump(p)
		return nil
	}
	return m.frameCmd(m.scroller.Start(p))
}

func (m sidebarModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case restoredMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			m.log.Error("restore failed", "window", m.windowID, "error", msg.err)
			return m, nil
		}
		m.tree = msg.tree
		m.scroller.SetDocument(m.tree)
		m.ready = true
		m.status = restoreStatus(msg.res)
		if a := m.tree.Active(); a != nil {
			m.cursor = a.ID
		} else if nodes := m.tree.Nodes(); len(nodes) > 0 {
			m.cursor = nodes[0].ID
		}
		m.relayout()
		return m, m.afterTick(scrollMsg{kind: scrollTab, id: m.cursor, justNow: true})

	case refreshTickMsg:
		if !m.ready {
			return m, refreshTick()
		}
		return m, tea.Batch(m.queryCmd(), refreshTick())

	case tabsMsg:
		return m.applyTabs(msg)

	case scrollMsg:
		return m, m.handleScroll(msg)

	case frameMsg:
		done, err := m.scroller.Step(msg.anim, msg.at)
		if err != nil || done {
			return m, nil
		}
		return m, m.frameCmd(msg.anim)

	case configMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("config: %v", msg.err)
			m.log.Warn("config reload failed", "error", msg.err)
			return m, nil
		}
		m.cfg = msg.cfg
		m.scroller.SetOptions(m.cfg.ScrollOptions())
		m.layout.SetRowHeight(m.cfg.TabHeight)
		m.styles = newStyles(m.cfg)
		m.status = "config reloaded"
		m.relayout()
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.relayout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.scroller.Jump(scroll.Params{Position: m.panel.ScrollTop() - 3})
		case tea.MouseButtonWheelDown:
			m.scroller.Jump(scroll.Params{Position: m.panel.ScrollTop() + 3})
		}
		return m, nil
	}
	return m, nil
}

func restoreStatus(res cache.Result) string {
	if res.FromCache {
		return fmt.Sprintf("restored %d from cache, %d new", res.Restored, res.Added)
	}
	return fmt.Sprintf("%d tabs (%s)", res.Added, res.Reason)
}

// applyTabs syncs the tree with a fresh tab listing and follows new and newly
// activated tabs.
func (m sidebarModel) applyTabs(msg tabsMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.status = msg.err.Error()
		m.log.Warn("tab query failed", "window", m.windowID, "error", msg.err)
		return m, nil
	}
	if m.tree == nil {
		return m, nil
	}
	prevActive := ""
	if a := m.tree.Active(); a != nil {
		prevActive = a.ID
	}
	added, removed := m.tree.Sync(msg.tabs)
	if m.tree.Get(m.cursor) == nil {
		m.cursor = ""
		if a := m.tree.Active(); a != nil {
			m.cursor = a.ID
		}
	}
	m.relayout()

	var cmds []tea.Cmd
	if len(added) > 0 || len(removed) > 0 {
		m.dirty = true
	}
	if len(added) > 0 {
		cmds = append(cmds, m.ensureIDsCmd())
		last := added[len(added)-1]
		cmds = append(cmds, m.afterTick(scrollMsg{kind: scrollNewTab, id: last.ID}))
	}
	if a := m.tree.Active(); a != nil && a.ID != prevActive {
		m.cursor = a.ID
		cmds = append(cmds, m.afterTick(scrollMsg{kind: scrollTab, id: a.ID}))
	}
	if m.dirty {
		if err := m.save(); err != nil {
			m.log.Warn("saving cache failed", "window", m.windowID, "error", err)
		} else {
			m.dirty = false
		}
	}
	return m, tea.Batch(cmds...)
}

func (m sidebarModel) handleScroll(msg scrollMsg) tea.Cmd {
	if m.tree == nil {
		return nil
	}
	n := m.tree.Get(msg.id)
	if n == nil {
		return nil
	}
	switch msg.kind {
	case scrollNewTab:
		if p, ok := m.scroller.PlanNewTab(n); ok {
			return m.scrollTo(p)
		}
	case scrollCursor:
		if m.scroller.CanScrollTo(n) && !m.scroller.InViewport(n) {
			return m.scrollTo(scroll.Params{Node: n})
		}
	case scrollSubtree:
		nodes := append([]*tree.Node{n}, m.tree.Descendants(n.ID)...)
		if p, ok := m.scroller.PlanTabs(nodes); ok {
			return m.scrollTo(p)
		}
	default:
		if m.scroller.CanScrollTo(n) && !m.scroller.InViewport(n) {
			return m.scrollTo(m.scroller.PlanTab(n, scroll.TabOptions{JustNow: msg.justNow}))
		}
	}
	return nil
}

func (m sidebarModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	if m.tree == nil {
		return m, nil
	}
	order := m.order()
	idx := indexOf(order, m.cursor)

	switch msg.String() {
	case "up", "k":
		if idx > 0 {
			return m.moveCursor(order[idx-1].ID)
		}
	case "down", "j":
		if idx+1 < len(order) {
			return m.moveCursor(order[idx+1].ID)
		}
	case "home", "g":
		if len(order) > 0 {
			return m.moveCursor(order[0].ID)
		}
	case "end", "G":
		if len(order) > 0 {
			return m.moveCursor(order[len(order)-1].ID)
		}
	case "pgup", "ctrl+u":
		m.scroller.Jump(scroll.Params{Position: m.panel.ScrollTop() - m.panel.vp.Height/2})
	case "pgdown", "ctrl+d":
		m.scroller.Jump(scroll.Params{Position: m.panel.ScrollTop() + m.panel.vp.Height/2})
	case "enter":
		if n := m.tree.Get(m.cursor); n != nil {
			return m, m.activateCmd(n.TabID)
		}
	case " ", "space", "tab":
		return m.toggleCollapsed()
	case "s":
		if m.cursor != "" {
			return m, m.afterTick(scrollMsg{kind: scrollSubtree, id: m.cursor})
		}
	case "]":
		return m.indent()
	case "[":
		return m.outdent()
	case "p":
		if n := m.tree.Get(m.cursor); n != nil {
			return m, m.pinCmd(n.TabID, !n.Pinned)
		}
	case "r":
		return m, m.queryCmd()
	}
	return m, nil
}

func (m sidebarModel) moveCursor(id string) (tea.Model, tea.Cmd) {
	m.cursor = id
	m.relayout()
	return m, m.afterTick(scrollMsg{kind: scrollCursor, id: id})
}

func (m sidebarModel) toggleCollapsed() (tea.Model, tea.Cmd) {
	n := m.tree.Get(m.cursor)
	if n == nil || len(n.Children) == 0 {
		return m, nil
	}
	n.Collapsed = !n.Collapsed
	m.structureChanged()
	if !n.Collapsed {
		return m, m.afterTick(scrollMsg{kind: scrollSubtree, id: n.ID})
	}
	return m, nil
}

// indent moves the cursor tab under the previous tab shown at its level.
func (m sidebarModel) indent() (tea.Model, tea.Cmd) {
	n := m.tree.Get(m.cursor)
	if n == nil {
		return m, nil
	}
	var prev *tree.Node
	for _, o := range m.order() {
		if o == n {
			break
		}
		if o.ParentID == n.ParentID {
			prev = o
		}
	}
	if prev == nil {
		return m, nil
	}
	if err := m.tree.Adopt(prev.ID, n.ID); err != nil {
		m.status = err.Error()
		return m, nil
	}
	prev.Collapsed = false
	m.structureChanged()
	return m, nil
}

// outdent moves the cursor tab up one level.
func (m sidebarModel) outdent() (tea.Model, tea.Cmd) {
	n := m.tree.Get(m.cursor)
	if n == nil || n.ParentID == "" {
		return m, nil
	}
	var err error
	if p := m.tree.Get(n.ParentID); p != nil && m.tree.Get(p.ParentID) != nil {
		err = m.tree.Adopt(p.ParentID, n.ID)
	} else {
		err = m.tree.Detach(n.ID)
	}
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.structureChanged()
	return m, nil
}

// structureChanged redraws after an edit of the tree and stores the result.
func (m *sidebarModel) structureChanged() {
	m.relayout()
	if err := m.save(); err != nil {
		m.dirty = true
		m.log.Warn("saving cache failed", "window", m.windowID, "error", err)
	}
}

// save stores the current tree in the cache.
func (m sidebarModel) save() error {
	if m.tree == nil || m.restorer == nil {
		return nil
	}
	return m.restorer.Save(m.ctx, m.tree)
}

func indexOf(nodes []*tree.Node, id string) int {
	for i, n := range nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}
