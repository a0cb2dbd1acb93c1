package tmux

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/b/tmux-tabtree/pkg/tree"
)

// Window options holding tabtree state on each tmux window.
const (
	OptionUID    = "@tabtree-uid"
	OptionPinned = "@tabtree-pinned"
	OptionHidden = "@tabtree-hidden"
)

// ansiEscapeRegex matches ANSI escape sequences
var ansiEscapeRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]|\x1b\].*?(?:\x07|\x1b\\)`)

func stripANSI(s string) string {
	return ansiEscapeRegex.ReplaceAllString(s, "")
}

// Runner executes one tmux command and returns its stdout.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

func execRunner(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "tmux", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("tmux %s: %w: %s", args[0], err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, fmt.Errorf("tmux %s: %w", args[0], err)
	}
	return out, nil
}

// Client reads and tags the windows of tmux sessions. A tmux session is a
// tab window; each of its tmux windows is a tab.
type Client struct {
	run Runner
}

func New() *Client {
	return &Client{run: execRunner}
}

// NewWithRunner builds a client over a custom command runner.
func NewWithRunner(run Runner) *Client {
	return &Client{run: run}
}

type Window struct {
	ID       int // numeric part of #{window_id}
	Index    int
	Name     string
	Active   bool
	Activity bool // Window has unseen activity (monitor-activity)
	Bell     bool // Window has triggered bell
	Path     string
	UID      string
	Pinned   bool
	Hidden   bool
}

const windowFormat = "#{window_id}\x1f#{window_index}\x1f#{window_name}\x1f#{window_active}\x1f" +
	"#{window_activity_flag}\x1f#{window_bell_flag}\x1f#{pane_current_path}\x1f" +
	"#{" + OptionUID + "}\x1f#{" + OptionPinned + "}\x1f#{" + OptionHidden + "}"

// ListWindows returns the windows of a session in index order.
func (c *Client) ListWindows(ctx context.Context, sessionID int) ([]Window, error) {
	out, err := c.run(ctx, "list-windows", "-t", sessionTarget(sessionID), "-F", windowFormat)
	if err != nil {
		if strings.Contains(err.Error(), "can't find session") {
			return nil, fmt.Errorf("session %d: %w", sessionID, tree.ErrUnknownWindow)
		}
		return nil, err
	}
	return parseWindows(string(out)), nil
}

func parseWindows(out string) []Window {
	var windows []Window
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\x1f")
		if len(parts) < 10 {
			continue
		}
		id, err := parseID(parts[0], '@')
		if err != nil {
			continue
		}
		index, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		windows = append(windows, Window{
			ID:       id,
			Index:    index,
			Name:     stripANSI(parts[2]),
			Active:   parts[3] == "1",
			Activity: parts[4] == "1",
			Bell:     parts[5] == "1",
			Path:     parts[6],
			UID:      parts[7],
			Pinned:   parts[8] == "1",
			Hidden:   parts[9] == "1",
		})
	}
	return windows
}

// QueryTabs lists the windows of a session as tabs.
func (c *Client) QueryTabs(ctx context.Context, sessionID int) ([]tree.Tab, error) {
	windows, err := c.ListWindows(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	tabs := make([]tree.Tab, 0, len(windows))
	for _, w := range windows {
		tab := tree.Tab{
			ID:       w.ID,
			WindowID: sessionID,
			Active:   w.Active,
			Pinned:   w.Pinned,
			Hidden:   w.Hidden,
			Title:    w.Name,
		}
		if w.Path != "" {
			tab.URL = "file://" + w.Path
		}
		tabs = append(tabs, tab)
	}
	return tabs, nil
}

// PersistentID returns the identifier stored on a window, "" when none is.
func (c *Client) PersistentID(ctx context.Context, tabID int) (string, error) {
	out, err := c.run(ctx, "show-options", "-wqv", "-t", windowTarget(tabID), OptionUID)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// PersistentIDs returns the identifiers of all windows of a session with a
// single list-windows call. Windows without one map to "".
func (c *Client) PersistentIDs(ctx context.Context, sessionID int) (map[int]string, error) {
	windows, err := c.ListWindows(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ids := make(map[int]string, len(windows))
	for _, w := range windows {
		ids[w.ID] = w.UID
	}
	return ids, nil
}

// EnsurePersistentID returns the window's identifier, storing a new one
// first when it has none.
func (c *Client) EnsurePersistentID(ctx context.Context, tabID int) (string, error) {
	id, err := c.PersistentID(ctx, tabID)
	if err != nil || id != "" {
		return id, err
	}
	id = uuid.NewString()
	if err := c.setOption(ctx, tabID, OptionUID, id); err != nil {
		return "", err
	}
	return id, nil
}

// EnsureSessionIDs tags every window of a session that has no identifier yet.
func (c *Client) EnsureSessionIDs(ctx context.Context, sessionID int) error {
	windows, err := c.ListWindows(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, w := range windows {
		if w.UID != "" {
			continue
		}
		if err := c.setOption(ctx, w.ID, OptionUID, uuid.NewString()); err != nil {
			return err
		}
	}
	return nil
}

// SetPinned pins or unpins a window in the sidebar.
func (c *Client) SetPinned(ctx context.Context, tabID int, pinned bool) error {
	if !pinned {
		_, err := c.run(ctx, "set-option", "-wu", "-t", windowTarget(tabID), OptionPinned)
		return err
	}
	return c.setOption(ctx, tabID, OptionPinned, "1")
}

// SelectWindow makes a window the active one of its session.
func (c *Client) SelectWindow(ctx context.Context, tabID int) error {
	_, err := c.run(ctx, "select-window", "-t", windowTarget(tabID))
	return err
}

// CurrentSession returns the id of the session the client is attached to.
func (c *Client) CurrentSession(ctx context.Context) (int, error) {
	out, err := c.run(ctx, "display-message", "-p", "#{session_id}")
	if err != nil {
		return 0, err
	}
	return parseID(strings.TrimSpace(string(out)), '$')
}

func (c *Client) setOption(ctx context.Context, tabID int, name, value string) error {
	_, err := c.run(ctx, "set-option", "-w", "-t", windowTarget(tabID), name, value)
	return err
}

func sessionTarget(id int) string { return fmt.Sprintf("$%d", id) }
func windowTarget(id int) string  { return fmt.Sprintf("@%d", id) }

// parseID reads tmux ids such as "@12" or "$3".
func parseID(s string, prefix byte) (int, error) {
	if len(s) < 2 || s[0] != prefix {
		return 0, fmt.Errorf("malformed tmux id %q", s)
	}
	return strconv.Atoi(s[1:])
}
