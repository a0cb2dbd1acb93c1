package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/b/tmux-tabtree/pkg/browser"
	"github.com/b/tmux-tabtree/pkg/config"
	"github.com/b/tmux-tabtree/pkg/tmux"
	"github.com/b/tmux-tabtree/pkg/tree"
)

// host is where the sidebar's tabs live.
type host interface {
	QueryTabs(ctx context.Context, windowID int) ([]tree.Tab, error)
	PersistentID(ctx context.Context, tabID int) (string, error)
	// EnsureIDs gives every tab of the window a persistent id.
	EnsureIDs(ctx context.Context, windowID int) error
	Activate(ctx context.Context, tabID int) error
	// DefaultWindow is the window shown when none was requested.
	DefaultWindow(ctx context.Context) (int, error)
	Close() error
}

// pinner is implemented by hosts that can pin tabs from the sidebar.
type pinner interface {
	SetPinned(ctx context.Context, tabID int, pinned bool) error
}

type tmuxHost struct {
	*tmux.Client
}

func (h tmuxHost) EnsureIDs(ctx context.Context, sessionID int) error {
	return h.EnsureSessionIDs(ctx, sessionID)
}

func (h tmuxHost) Activate(ctx context.Context, tabID int) error {
	return h.SelectWindow(ctx, tabID)
}

func (h tmuxHost) DefaultWindow(ctx context.Context) (int, error) {
	return h.CurrentSession(ctx)
}

func (tmuxHost) Close() error { return nil }

type cdpHost struct {
	*browser.Client
}

func (h cdpHost) EnsureIDs(ctx context.Context, windowID int) error {
	tabs, err := h.QueryTabs(ctx, windowID)
	if err != nil {
		return err
	}
	for _, tab := range tabs {
		if _, err := h.EnsurePersistentID(ctx, tab.ID); err != nil {
			return err
		}
	}
	return nil
}

func (h cdpHost) DefaultWindow(ctx context.Context) (int, error) {
	ids, err := h.Windows(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("no browser window: %w", tree.ErrUnknownWindow)
	}
	return ids[0], nil
}

func openHost(ctx context.Context, cfg *config.Config, log *slog.Logger) (host, error) {
	switch cfg.Source.Kind {
	case config.SourceCDP:
		c := browser.NewClient(cfg.Source.CDPURL, log)
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
		return cdpHost{c}, nil
	default:
		return tmuxHost{tmux.New()}, nil
	}
}
