// Package browser serves tabs of a Chromium instance reached over the
// DevTools protocol. Browser windows are tab windows; page targets are tabs.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"github.com/b/tmux-tabtree/pkg/tree"
)

// StorageKey is the sessionStorage entry holding a tab's persistent id. Session
// storage survives reloads and session restore but not a copy to a new tab.
const StorageKey = "tabtree-uid"

var ErrNotConnected = errors.New("browser not connected")

// Client manages the CDP connection. Tabs are only observed: scripts run over
// short lived sessions that are detached afterwards, never over chromedp tab
// contexts, whose cancellation closes the tab.
type Client struct {
	url      string
	registry *Registry
	log      *slog.Logger

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu  sync.Mutex
	tr  transport
	own target.ID
}

func NewClient(cdpURL string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		url:      cdpURL,
		registry: NewRegistry(),
		log:      log,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.log.Info("Connecting to Chromium", "url", c.url)
	c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), c.url)
	c.browserCtx, c.browserCancel = chromedp.NewContext(c.allocCtx)

	if err := chromedp.Run(c.browserCtx); err != nil {
		c.allocCancel()
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	bc := chromedp.FromContext(c.browserCtx)
	if bc == nil || bc.Browser == nil {
		c.allocCancel()
		return ErrNotConnected
	}
	c.mu.Lock()
	c.tr = &browserTransport{browser: bc.Browser, ctx: c.browserCtx}
	if bc.Target != nil {
		c.own = bc.Target.TargetID
	}
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.allocCtx.Done():
		}
	}()
	return nil
}

// Close drops the connection. The blank page opened by Connect goes with it;
// the user's tabs are left alone.
func (c *Client) Close() error {
	c.mu.Lock()
	c.tr = nil
	c.mu.Unlock()
	if c.browserCancel != nil {
		c.browserCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	c.log.Info("CDP client closed")
	return nil
}

// browserExec runs browser level commands over the connection.
func (c *Client) browserExec(ctx context.Context) (context.Context, transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tr == nil {
		return nil, nil, ErrNotConnected
	}
	return cdp.WithExecutor(ctx, c.tr), c.tr, nil
}

// pageTarget is one page with the window it belongs to.
type pageTarget struct {
	info   *target.Info
	window int
}

func (c *Client) pages(ctx context.Context) ([]pageTarget, error) {
	exec, _, err := c.browserExec(ctx)
	if err != nil {
		return nil, err
	}
	infos, err := target.GetTargets().Do(exec)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate targets: %w", err)
	}
	c.mu.Lock()
	own := c.own
	c.mu.Unlock()
	live := map[target.ID]bool{}
	var pages []pageTarget
	for _, t := range infos {
		if t.Type != "page" || t.TargetID == own {
			continue
		}
		live[t.TargetID] = true
		wid, _, err := browser.GetWindowForTarget().WithTargetID(t.TargetID).Do(exec)
		if err != nil {
			c.log.Debug("Skipping target without window", "target_id", t.TargetID, "error", err)
			continue
		}
		pages = append(pages, pageTarget{info: t, window: int(wid)})
	}
	c.registry.Retain(live)
	return pages, nil
}

// Windows lists the ids of browser windows holding at least one page.
func (c *Client) Windows(ctx context.Context) ([]int, error) {
	pages, err := c.pages(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	var ids []int
	for _, p := range pages {
		if !seen[p.window] {
			seen[p.window] = true
			ids = append(ids, p.window)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// QueryTabs lists the pages of a browser window in the order they were first
// seen. CDP exposes no tab strip order.
func (c *Client) QueryTabs(ctx context.Context, windowID int) ([]tree.Tab, error) {
	pages, err := c.pages(ctx)
	if err != nil {
		return nil, err
	}
	tabs := buildTabs(windowID, pages, c.registry)
	if len(tabs) == 0 {
		return nil, fmt.Errorf("browser window %d: %w", windowID, tree.ErrUnknownWindow)
	}
	for i := range tabs {
		state, err := c.evalString(ctx, tabs[i].ID, "document.visibilityState")
		if err != nil {
			c.log.Debug("visibility query failed", "tab", tabs[i].ID, "error", err)
			continue
		}
		tabs[i].Active = state == "visible"
	}
	return tabs, nil
}

func buildTabs(windowID int, pages []pageTarget, reg *Registry) []tree.Tab {
	var tabs []tree.Tab
	for _, p := range pages {
		if p.window != windowID {
			continue
		}
		tabs = append(tabs, tree.Tab{
			ID:       reg.ID(p.info.TargetID),
			WindowID: windowID,
			Title:    p.info.Title,
			URL:      p.info.URL,
		})
	}
	sort.SliceStable(tabs, func(i, j int) bool { return tabs[i].ID < tabs[j].ID })
	return tabs
}

// PersistentID reads the tab's id from session storage, "" when unset.
func (c *Client) PersistentID(ctx context.Context, tabID int) (string, error) {
	return c.evalString(ctx, tabID, readIDScript)
}

// EnsurePersistentID stores a new id in the tab's session storage when it has
// none and returns the id in effect.
func (c *Client) EnsurePersistentID(ctx context.Context, tabID int) (string, error) {
	return c.evalString(ctx, tabID, ensureIDScript(uuid.NewString()))
}

// Activate brings a tab to the front.
func (c *Client) Activate(ctx context.Context, tabID int) error {
	id, ok := c.registry.Target(tabID)
	if !ok {
		return fmt.Errorf("tab %d: %w", tabID, tree.ErrNotFound)
	}
	exec, _, err := c.browserExec(ctx)
	if err != nil {
		return err
	}
	return target.ActivateTarget(id).Do(exec)
}

func (c *Client) evalString(ctx context.Context, tabID int, expr string) (string, error) {
	_, tr, err := c.browserExec(ctx)
	if err != nil {
		return "", err
	}
	id, ok := c.registry.Target(tabID)
	if !ok {
		return "", fmt.Errorf("tab %d: %w", tabID, tree.ErrNotFound)
	}
	out, err := evaluate(ctx, tr, id, expr)
	if err != nil {
		return "", fmt.Errorf("tab %d: %w", tabID, err)
	}
	return out, nil
}

const readIDScript = `(() => { try { return sessionStorage.getItem("` + StorageKey + `") || ""; } catch (e) { return ""; } })()`

func ensureIDScript(fresh string) string {
	return fmt.Sprintf(`(() => {
  try {
    let id = sessionStorage.getItem(%[1]q);
    if (!id) { id = %[2]q; sessionStorage.setItem(%[1]q, id); }
    return id;
  } catch (e) { return ""; }
})()`, StorageKey, fresh)
}
