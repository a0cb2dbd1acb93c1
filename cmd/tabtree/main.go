// Command tabtree draws the tabs of one tmux session or browser window as a
// collapsible tree, restoring the last tree from the cache on start.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/b/tmux-tabtree/pkg/cache"
	"github.com/b/tmux-tabtree/pkg/config"
	"github.com/b/tmux-tabtree/pkg/logging"
	"github.com/b/tmux-tabtree/pkg/paths"
	"github.com/b/tmux-tabtree/pkg/perf"
)

var (
	windowID   = flag.Int("window", -1, "Window (tmux session) id to show, current one if negative")
	configPath = flag.String("config", "", "Config file (default: <config dir>/config.yaml)")
	debug      = flag.Bool("debug", false, "Log at debug level")
	perfLog    = flag.Bool("perf", false, "Log operation timings")
	noCache    = flag.Bool("no-cache", false, "Build the tree from live tabs only")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := paths.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if os.Getenv("TABTREE_PERF") == "1" {
		*perfLog = true
	}

	path := *configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return err
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if *debug {
		level = slog.LevelDebug
	}
	if _, err := paths.EnsureStateDir(); err != nil {
		return err
	}
	log, closer, err := logging.Setup(logging.Options{Level: level, File: cfg.LogPath()})
	if err != nil {
		return err
	}
	defer closer.Close()
	perf.SetLogger(log)
	perf.SetEnabled(*perfLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h, err := openHost(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open %s source: %w", cfg.Source.Kind, err)
	}
	defer h.Close()

	win := *windowID
	if win < 0 {
		if win, err = h.DefaultWindow(ctx); err != nil {
			return err
		}
	}

	var store cache.Store
	if cfg.Cache.Enabled && !*noCache {
		bs, err := cache.OpenBoltStore(cfg.CachePath())
		if err != nil {
			return err
		}
		defer bs.Close()
		store = bs
	}
	restorer := &cache.Restorer{Tabs: h, IDs: h, Store: store, Logger: log}

	log.Info("starting", "source", cfg.Source.Kind, "window", win, "cache", store != nil)

	lipgloss.SetColorProfile(termenv.ANSI256)

	model := newSidebarModel(ctx, cfg, h, restorer, win, log)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())

	err = config.Watch(ctx, path, func(c *config.Config, err error) {
		p.Send(configMsg{cfg: c, err: err})
	})
	if err != nil {
		log.Warn("config reload disabled", "path", path, "error", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		p.Send(tea.Quit())
	}()

	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(sidebarModel); ok {
		if err := m.save(); err != nil {
			log.Warn("saving cache on exit failed", "window", win, "error", err)
		}
	}
	return nil
}
