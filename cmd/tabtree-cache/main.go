// Command tabtree-cache inspects and clears the cached window trees.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/b/tmux-tabtree/pkg/browser"
	"github.com/b/tmux-tabtree/pkg/cache"
	"github.com/b/tmux-tabtree/pkg/config"
	"github.com/b/tmux-tabtree/pkg/paths"
	"github.com/b/tmux-tabtree/pkg/tmux"
	"github.com/b/tmux-tabtree/pkg/tree"
)

// source is what check needs from a tab host.
type source interface {
	cache.TabQuerier
	cache.IdentityStore
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: tabtree-cache [list|show|check|clear] <args>")
		os.Exit(1)
	}
	if err := paths.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	action := os.Args[1]
	cfg, err := config.LoadOrDefault(config.DefaultConfigPath())
	if err != nil {
		fail(err)
	}
	store, err := cache.OpenBoltStore(cfg.CachePath())
	if err != nil {
		fail(err)
	}
	defer store.Close()
	ctx := context.Background()

	switch action {
	case "list":
		err = listEntries(ctx, store, os.Stdout)

	case "show":
		if len(os.Args) < 3 {
			usage("show <window>")
		}
		err = showEntry(ctx, store, windowArg(os.Args[2]), os.Stdout)

	case "check":
		if len(os.Args) < 3 {
			usage("check <window>")
		}
		var src source
		src, err = openSource(ctx, cfg)
		if c, ok := src.(io.Closer); ok {
			defer c.Close()
		}
		if err == nil {
			err = checkEntry(ctx, store, src, windowArg(os.Args[2]), cfg.Cache.Skip, os.Stdout)
		}

	case "clear":
		window := -1
		if len(os.Args) >= 3 {
			window = windowArg(os.Args[2])
		}
		var n int
		n, err = clearEntries(ctx, store, window)
		if err == nil {
			fmt.Printf("Cleared %d cached window(s)\n", n)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown action: %s\n", action)
		os.Exit(1)
	}
	if err != nil {
		store.Close()
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func usage(args string) {
	fmt.Fprintf(os.Stderr, "Usage: tabtree-cache %s\n", args)
	os.Exit(1)
}

// windowArg accepts "3", "$3" (tmux session) or "@3".
func windowArg(s string) int {
	id, err := strconv.Atoi(strings.TrimLeft(s, "$@"))
	if err != nil {
		fail(fmt.Errorf("bad window id %q", s))
	}
	return id
}

func openSource(ctx context.Context, cfg *config.Config) (source, error) {
	if cfg.Source.Kind == config.SourceCDP {
		c := browser.NewClient(cfg.Source.CDPURL, nil)
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}
	return tmux.New(), nil
}

func listEntries(ctx context.Context, store cache.Store, w io.Writer) error {
	entries, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No cached windows")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%d tabs\t%s\n", e.WindowID, e.TabCount, e.SavedAt.Local().Format(time.DateTime))
	}
	return nil
}

// showEntry prints the cached tree of a window, one tab per line.
func showEntry(ctx context.Context, store cache.Store, window int, w io.Writer) error {
	e, ok, err := store.Load(ctx, window)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("window %d is not cached", window)
	}
	nodes, err := cache.Decode(e.Markup)
	if err != nil {
		return err
	}
	t := tree.New(window, nodes...)
	fmt.Fprintf(w, "window %d, %d tabs, saved %s\n", e.WindowID, e.TabCount, e.SavedAt.Local().Format(time.DateTime))
	for _, n := range t.Nodes() {
		flags := ""
		if n.Collapsed {
			flags = " (collapsed)"
		}
		fmt.Fprintf(w, "%s%s [tab %d]%s\n", strings.Repeat("  ", t.Depth(n)), n.Title, n.TabID, flags)
	}
	return nil
}

// checkEntry reports whether the cached tree would be restored for the live
// tabs of a window.
func checkEntry(ctx context.Context, store cache.Store, src source, window, skip int, w io.Writer) error {
	e, ok, err := store.Load(ctx, window)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(w, "window %d: not cached\n", window)
		return nil
	}
	actual, err := cache.WindowSignature(ctx, src, src, window)
	if err != nil {
		return err
	}
	sigs := cache.Signatures{
		Cached: cache.TrimSignature(e.Signature, skip),
		Actual: cache.TrimSignature(actual, skip),
	}
	if !cache.MatchEntries(sigs) {
		fmt.Fprintf(w, "window %d: stale (cached %d tabs, live %d)\n",
			window, cache.SignatureLen(e.Signature), cache.SignatureLen(actual))
		return nil
	}
	fmt.Fprintf(w, "window %d: valid (%d of %d live tabs cached)\n",
		window, cache.SignatureLen(sigs.Cached), cache.SignatureLen(sigs.Actual))
	return nil
}

// clearEntries deletes one window, or every window when window is negative.
func clearEntries(ctx context.Context, store cache.Store, window int) (int, error) {
	if window >= 0 {
		if _, ok, err := store.Load(ctx, window); err != nil || !ok {
			return 0, err
		}
		return 1, store.Delete(ctx, window)
	}
	entries, err := store.List(ctx)
	if err != nil {
		return 0, err
	}
	for i, e := range entries {
		if err := store.Delete(ctx, e.WindowID); err != nil {
			return i, err
		}
	}
	return len(entries), nil
}
