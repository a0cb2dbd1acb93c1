package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/b/tmux-tabtree/pkg/scroll"
)

var ErrInvalid = errors.New("invalid config")

// LoadConfig reads path over the defaults, so keys missing from the file keep
// their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is LoadConfig with a missing file meaning defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// SaveConfig writes the config to the specified path
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate rejects values the sidebar cannot work with.
func (c *Config) Validate() error {
	var problems []string
	switch scroll.NewTabMode(c.ScrollToNewTab) {
	case scroll.NewTabAlways, scroll.NewTabIfPossible, scroll.NewTabNever:
	default:
		problems = append(problems, fmt.Sprintf("scroll_to_new_tab %q (want always, if-possible or never)", c.ScrollToNewTab))
	}
	switch c.Source.Kind {
	case SourceTmux:
	case SourceCDP:
		if c.Source.CDPURL == "" {
			problems = append(problems, "source.cdp_url is required for kind cdp")
		}
	default:
		problems = append(problems, fmt.Sprintf("source.kind %q (want tmux or cdp)", c.Source.Kind))
	}
	if c.SmoothScroll.FrameRate > 240 {
		problems = append(problems, fmt.Sprintf("smooth_scroll.frame_rate %d exceeds 240", c.SmoothScroll.FrameRate))
	}
	if c.Cache.Skip < 0 {
		problems = append(problems, "cache.skip must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: %w", level, err)
	}
	return l, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.SmoothScroll.DurationMS <= 0 {
		cfg.SmoothScroll.DurationMS = def.SmoothScroll.DurationMS
	}
	if cfg.SmoothScroll.FrameRate <= 0 {
		cfg.SmoothScroll.FrameRate = def.SmoothScroll.FrameRate
	}
	if cfg.ScrollToNewTab == "" {
		cfg.ScrollToNewTab = def.ScrollToNewTab
	}
	if cfg.TabHeight <= 0 {
		cfg.TabHeight = def.TabHeight
	}
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = def.Source.Kind
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Sidebar.Indent == "" {
		cfg.Sidebar.Indent = def.Sidebar.Indent
	}
	colors, defColors := &cfg.Sidebar.Colors, def.Sidebar.Colors
	if colors.ActiveFg == "" {
		colors.ActiveFg = defColors.ActiveFg
	}
	if colors.ActiveBg == "" {
		colors.ActiveBg = defColors.ActiveBg
	}
	if colors.InactiveFg == "" {
		colors.InactiveFg = defColors.InactiveFg
	}
	if colors.PinnedFg == "" {
		colors.PinnedFg = defColors.PinnedFg
	}
	if colors.CursorBg == "" {
		colors.CursorBg = defColors.CursorBg
	}
}
