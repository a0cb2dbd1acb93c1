package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/b/tmux-tabtree/pkg/perf"
	"github.com/b/tmux-tabtree/pkg/tree"
)

// RestoreOptions tunes one restoration.
type RestoreOptions struct {
	// Skip ignores the first Skip tabs of the window in both the cached and the
	// live signature. Skipped tabs are added as plain roots.
	Skip int
	// Dirty forces every restored node to re-render from its live record.
	Dirty bool
}

// Result describes how a tree was built.
type Result struct {
	FromCache bool
	Restored  int
	Added     int
	Signature string
	Reason    string
}

// Restorer rebuilds window trees from the cache store and saves them back.
type Restorer struct {
	Tabs   TabQuerier
	IDs    IdentityStore
	Store  Store
	Logger *slog.Logger
}

func (r *Restorer) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Restore builds the tree of a window. When the cached render is still valid
// for the window's leading tabs (whole entries, see MatchEntries) it is
// reconciled with them; tabs opened since
// then become new roots. Otherwise the tree is built flat from the live tabs.
// A cache whose node count disagrees with its own signature fails the whole
// restoration with ErrCountMismatch.
func (r *Restorer) Restore(ctx context.Context, windowID int, opts RestoreOptions) (*tree.Tree, Result, error) {
	defer perf.Start("restore", "window", windowID).Stop()

	tabs, err := r.Tabs.QueryTabs(ctx, windowID)
	if err != nil {
		return nil, Result{}, fmt.Errorf("restore window %d: query tabs: %w", windowID, err)
	}
	actual, err := Signature(ctx, r.IDs, tabs)
	if err != nil {
		return nil, Result{}, fmt.Errorf("restore window %d: %w", windowID, err)
	}
	res := Result{Signature: actual}

	fresh := func(reason string) (*tree.Tree, Result, error) {
		res.Reason = reason
		res.Added = len(tabs)
		t := tree.FromTabs(windowID, tabs)
		r.log().Debug("built tree from live tabs", "window", windowID, "tabs", len(tabs), "reason", reason)
		return t, res, nil
	}

	if r.Store == nil {
		return fresh("no cache store")
	}
	entry, ok, err := r.Store.Load(ctx, windowID)
	if err != nil {
		return nil, res, fmt.Errorf("restore window %d: %w", windowID, err)
	}
	if !ok {
		return fresh("no cached render")
	}

	skip := min(max(opts.Skip, 0), len(tabs))
	cached := TrimSignature(entry.Signature, skip)
	if !MatchEntries(Signatures{Cached: cached, Actual: TrimSignature(actual, skip)}) {
		return fresh("signature mismatch")
	}

	nodes, err := Decode(TrimTabsCache(entry.Markup, skip))
	if err != nil {
		return nil, res, fmt.Errorf("restore window %d: %w", windowID, err)
	}
	live := tabs[skip:]
	want := min(SignatureLen(cached), len(live))

	timer := perf.Start("fixup", "window", windowID, "nodes", len(nodes))
	_, err = Fixup(nodes, live[:want], FixupOptions{Dirty: opts.Dirty})
	timer.Stop()
	if err != nil {
		return nil, res, fmt.Errorf("restore window %d: %w", windowID, err)
	}

	t := tree.New(windowID)
	for _, tab := range tabs[:skip] {
		t.Append(tree.NewNode(tab))
	}
	for _, n := range nodes {
		t.Append(n)
	}
	for _, tab := range live[want:] {
		t.Append(tree.NewNode(tab))
	}

	for _, tab := range tabs {
		if tab.Active {
			if err := RefreshFocus(t, tab.ID); err != nil {
				r.log().Warn("refresh focus failed", "window", windowID, "tab", tab.ID, "error", err)
			}
			break
		}
	}

	res.FromCache = true
	res.Restored = len(nodes)
	res.Added = len(tabs) - len(nodes)
	r.log().Info("restored tree from cache",
		"window", windowID,
		"restored", res.Restored,
		"added", res.Added,
		"cached_at", entry.SavedAt.Format(time.RFC3339),
	)
	return t, res, nil
}

// ErrStaleTree reports a tree that no longer lines up with the window's tabs.
var ErrStaleTree = errors.New("tree does not match live tabs")

// Save stores the render of t for its window. The tree must list exactly the
// window's live tabs, in tab order.
func (r *Restorer) Save(ctx context.Context, t *tree.Tree) error {
	if r.Store == nil {
		return nil
	}
	defer perf.Start("save", "window", t.WindowID).Stop()

	tabs, err := r.Tabs.QueryTabs(ctx, t.WindowID)
	if err != nil {
		return fmt.Errorf("save window %d: query tabs: %w", t.WindowID, err)
	}
	nodes := t.Nodes()
	if len(nodes) != len(tabs) {
		return fmt.Errorf("save window %d: %w: nodes=%d tabs=%d", t.WindowID, ErrStaleTree, len(nodes), len(tabs))
	}
	for i, n := range nodes {
		if n.TabID != tabs[i].ID {
			return fmt.Errorf("save window %d: %w: position %d holds tab %d, want %d",
				t.WindowID, ErrStaleTree, i, n.TabID, tabs[i].ID)
		}
	}
	sig, err := Signature(ctx, r.IDs, tabs)
	if err != nil {
		return fmt.Errorf("save window %d: %w", t.WindowID, err)
	}
	entry := Entry{
		WindowID:  t.WindowID,
		Signature: sig,
		Markup:    Encode(nodes),
		TabCount:  len(nodes),
		SavedAt:   time.Now().UTC(),
	}
	if err := r.Store.Save(ctx, entry); err != nil {
		return fmt.Errorf("save window %d: %w", t.WindowID, err)
	}
	r.log().Debug("saved window cache", "window", t.WindowID, "tabs", len(nodes))
	return nil
}
