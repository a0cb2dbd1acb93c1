package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/b/tmux-tabtree/pkg/colors"
	"github.com/b/tmux-tabtree/pkg/config"
	"github.com/b/tmux-tabtree/pkg/tree"
)

// minContrast is the WCAG AA ratio for normal text.
const minContrast = 4.5

type styles struct {
	active   lipgloss.Style
	inactive lipgloss.Style
	pinned   lipgloss.Style
	cursor   lipgloss.Style
	status   lipgloss.Style
	loading  lipgloss.Style
	indent   string
}

func newStyles(cfg *config.Config) styles {
	c := cfg.Sidebar.Colors
	return styles{
		active: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colors.Readable(c.ActiveFg, c.ActiveBg, minContrast))).
			Background(lipgloss.Color(c.ActiveBg)).
			Bold(true),
		inactive: lipgloss.NewStyle().Foreground(lipgloss.Color(c.InactiveFg)),
		pinned:   lipgloss.NewStyle().Foreground(lipgloss.Color(c.PinnedFg)),
		cursor: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colors.Readable(c.InactiveFg, c.CursorBg, minContrast))).
			Background(lipgloss.Color(c.CursorBg)),
		status:  lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		loading: lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		indent:  cfg.Sidebar.Indent,
	}
}

// order is the navigation order of the drawn tabs, pinned tabs included.
func (m sidebarModel) order() []*tree.Node {
	if m.tree == nil {
		return nil
	}
	return m.tree.Visible()
}

// split separates the pinned section from the scrolled rows.
func (m sidebarModel) split() (pinned, rows []*tree.Node) {
	for _, n := range m.order() {
		if n.Pinned {
			pinned = append(pinned, n)
		} else {
			rows = append(rows, n)
		}
	}
	return pinned, rows
}

// relayout redraws the scrolled rows and tells the row layout where they are.
func (m *sidebarModel) relayout() {
	pinned, rows := m.split()

	h := m.height - len(pinned) - 1
	if h < 1 {
		h = 1
	}
	m.panel.vp.Width = m.width
	m.panel.vp.Height = h

	rowHeight := m.cfg.TabHeight
	if rowHeight < 1 {
		rowHeight = 1
	}
	ids := make([]string, 0, len(rows))
	lines := make([]string, 0, len(rows)*rowHeight)
	for _, n := range rows {
		ids = append(ids, n.ID)
		lines = append(lines, m.renderRow(n))
		for i := 1; i < rowHeight; i++ {
			lines = append(lines, "")
		}
	}
	m.layout.SetRows(ids)
	top := m.panel.vp.YOffset
	m.panel.vp.SetContent(strings.Join(lines, "\n"))
	m.panel.vp.SetYOffset(top)
}

func (m sidebarModel) renderRow(n *tree.Node) string {
	marker := " "
	if len(n.Children) > 0 {
		marker = "▾"
		if n.Collapsed {
			marker = "▸"
		}
	}
	prefix := strings.Repeat(m.styles.indent, m.tree.Depth(n))
	title := n.Title
	if title == "" {
		title = n.DebugLabel()
	}
	text := runewidth.Truncate(prefix+marker+" "+title, m.width, "…")
	text = runewidth.FillRight(text, m.width)

	style := m.styles.inactive
	switch {
	case n.Active:
		style = m.styles.active
	case n.Pinned:
		style = m.styles.pinned
	}
	if n.ID == m.cursor && !n.Active {
		style = m.styles.cursor
	}
	return style.Render(text)
}

// spinnerFrames for the loading indicator
var spinnerFrames = []string{"◐", "◓", "◑", "◒"}

func (m sidebarModel) View() string {
	if !m.ready {
		frame := spinnerFrames[int(time.Now().UnixMilli()/100)%len(spinnerFrames)]
		text := fmt.Sprintf(" %s Loading...", frame)
		if m.status != "" {
			text += "\n " + m.status
		}
		return m.styles.loading.Render(text)
	}

	pinned, _ := m.split()
	var b strings.Builder
	for _, n := range pinned {
		b.WriteString(m.renderRow(n))
		b.WriteByte('\n')
	}
	b.WriteString(m.panel.vp.View())
	b.WriteByte('\n')
	b.WriteString(m.styles.status.Render(runewidth.Truncate(m.status, m.width, "…")))
	return b.String()
}
