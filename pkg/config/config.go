package config

import (
	"time"

	"github.com/b/tmux-tabtree/pkg/paths"
	"github.com/b/tmux-tabtree/pkg/scroll"
)

type Config struct {
	Animation      bool         `yaml:"animation"`
	SmoothScroll   SmoothScroll `yaml:"smooth_scroll"`
	ScrollToNewTab string       `yaml:"scroll_to_new_tab"` // always | if-possible | never
	TabHeight      int          `yaml:"tab_height"`
	Cache          Cache        `yaml:"cache"`
	Source         Source       `yaml:"source"`
	Log            Log          `yaml:"log"`
	Sidebar        Sidebar      `yaml:"sidebar"`
}

type SmoothScroll struct {
	Enabled    bool `yaml:"enabled"`
	DurationMS int  `yaml:"duration_ms"`
	FrameRate  int  `yaml:"frame_rate"`
}

type Cache struct {
	Enabled        bool   `yaml:"enabled"`
	Path           string `yaml:"path"` // default: <state dir>/cache.db
	DirtyOnRestore bool   `yaml:"dirty_on_restore"`
	Skip           int    `yaml:"skip"`
}

type Source struct {
	Kind   string `yaml:"kind"` // tmux | cdp
	CDPURL string `yaml:"cdp_url"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // default: <state dir>/tabtree.log
}

type Sidebar struct {
	Indent string        `yaml:"indent"`
	Colors SidebarColors `yaml:"colors"`
}

type SidebarColors struct {
	ActiveFg   string `yaml:"active_fg"`   // Active tab text (default: #ffffff)
	ActiveBg   string `yaml:"active_bg"`   // Active tab background (default: #2980b9)
	InactiveFg string `yaml:"inactive_fg"` // Inactive tab text (default: #cccccc)
	PinnedFg   string `yaml:"pinned_fg"`   // Pinned tab text (default: #f39c12)
	CursorBg   string `yaml:"cursor_bg"`   // Row under the cursor (default: #444444)
}

const (
	SourceTmux = "tmux"
	SourceCDP  = "cdp"
)

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Animation: true,
		SmoothScroll: SmoothScroll{
			Enabled:    true,
			DurationMS: 150,
			FrameRate:  60,
		},
		ScrollToNewTab: string(scroll.NewTabIfPossible),
		TabHeight:      1,
		Cache:          Cache{Enabled: true},
		Source:         Source{Kind: SourceTmux, CDPURL: "http://127.0.0.1:9222"},
		Log:            Log{Level: "info"},
		Sidebar: Sidebar{
			Indent: "  ",
			Colors: SidebarColors{
				ActiveFg:   "#ffffff",
				ActiveBg:   "#2980b9",
				InactiveFg: "#cccccc",
				PinnedFg:   "#f39c12",
				CursorBg:   "#444444",
			},
		},
	}
}

func DefaultConfigPath() string {
	return paths.ConfigPath()
}

// CachePath is the cache file to open, resolved against the state dir.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return paths.CachePath()
}

func (c *Config) LogPath() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return paths.LogPath()
}

// ScrollOptions converts the scroll settings for the scroller.
func (c *Config) ScrollOptions() scroll.Options {
	o := scroll.DefaultOptions()
	o.Animation = c.Animation
	o.Smooth = c.SmoothScroll.Enabled
	if c.SmoothScroll.DurationMS > 0 {
		o.Duration = time.Duration(c.SmoothScroll.DurationMS) * time.Millisecond
	}
	if c.SmoothScroll.FrameRate > 0 {
		o.FrameInterval = time.Second / time.Duration(c.SmoothScroll.FrameRate)
	}
	if c.ScrollToNewTab != "" {
		o.NewTabMode = scroll.NewTabMode(c.ScrollToNewTab)
	}
	if c.TabHeight > 0 {
		o.TabHeight = c.TabHeight
	}
	return o
}
