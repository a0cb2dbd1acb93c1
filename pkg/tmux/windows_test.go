package tmux

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/b/tmux-tabtree/pkg/tree"
)

// fakeTmux answers list-windows with a fixed listing and keeps window options.
type fakeTmux struct {
	listing string
	options map[string]string
	calls   []string
}

func (f *fakeTmux) run(_ context.Context, args ...string) ([]byte, error) {
	f.calls = append(f.calls, strings.Join(args, " "))
	switch args[0] {
	case "list-windows":
		if args[2] != "$1" {
			return nil, errors.New("tmux list-windows: exit status 1: can't find session: " + args[2])
		}
		return []byte(f.listing), nil
	case "show-options":
		return []byte(f.options[args[3]+" "+args[4]] + "\n"), nil
	case "set-option":
		if len(args) < 6 {
			delete(f.options, args[3]+" "+args[4])
			return nil, nil
		}
		f.options[args[3]+" "+args[4]] = args[5]
		return nil, nil
	case "display-message":
		return []byte("$1\n"), nil
	}
	return nil, nil
}

func line(fields ...string) string {
	return strings.Join(fields, "\x1f")
}

func newFake() *fakeTmux {
	return &fakeTmux{
		listing: strings.Join([]string{
			line("@4", "0", "\x1b[1meditor\x1b[0m", "0", "0", "0", "/src", "u-4", "1", ""),
			line("@7", "1", "shell", "1", "1", "0", "/home", "", "", ""),
			line("bogus"),
		}, "\n"),
		options: map[string]string{"@4 " + OptionUID: "u-4"},
	}
}

func TestQueryTabs(t *testing.T) {
	f := newFake()
	c := NewWithRunner(f.run)
	tabs, err := c.QueryTabs(context.Background(), 1)
	if err != nil {
		t.Fatalf("QueryTabs() error = %v", err)
	}
	if len(tabs) != 2 {
		t.Fatalf("QueryTabs() returned %d tabs, want 2", len(tabs))
	}
	want := tree.Tab{ID: 4, WindowID: 1, Pinned: true, Title: "editor", URL: "file:///src"}
	if tabs[0] != want {
		t.Fatalf("tabs[0] = %+v, want %+v", tabs[0], want)
	}
	if !tabs[1].Active || tabs[1].ID != 7 {
		t.Fatalf("tabs[1] = %+v", tabs[1])
	}
}

func TestQueryTabsUnknownSession(t *testing.T) {
	c := NewWithRunner(newFake().run)
	if _, err := c.QueryTabs(context.Background(), 9); !errors.Is(err, tree.ErrUnknownWindow) {
		t.Fatalf("QueryTabs() error = %v, want ErrUnknownWindow", err)
	}
}

func TestSessionPersistentIDsListsOnce(t *testing.T) {
	f := newFake()
	c := NewWithRunner(f.run)
	ids, err := c.PersistentIDs(context.Background(), 1)
	if err != nil {
		t.Fatalf("PersistentIDs() error = %v", err)
	}
	if ids[4] != "u-4" || ids[7] != "" || len(ids) != 2 {
		t.Fatalf("PersistentIDs() = %v", ids)
	}
	if len(f.calls) != 1 || !strings.HasPrefix(f.calls[0], "list-windows") {
		t.Fatalf("tmux calls = %v, want one list-windows", f.calls)
	}
}

func TestPersistentIDs(t *testing.T) {
	f := newFake()
	c := NewWithRunner(f.run)
	ctx := context.Background()

	if id, err := c.PersistentID(ctx, 4); err != nil || id != "u-4" {
		t.Fatalf("PersistentID(4) = %q, %v", id, err)
	}
	if id, err := c.PersistentID(ctx, 7); err != nil || id != "" {
		t.Fatalf("PersistentID(7) = %q, %v", id, err)
	}
	id, err := c.EnsurePersistentID(ctx, 7)
	if err != nil || len(id) != 36 {
		t.Fatalf("EnsurePersistentID(7) = %q, %v", id, err)
	}
	if again, _ := c.EnsurePersistentID(ctx, 7); again != id {
		t.Fatalf("EnsurePersistentID() changed id: %q -> %q", id, again)
	}
}

func TestEnsureSessionIDsTagsUntaggedWindows(t *testing.T) {
	f := newFake()
	c := NewWithRunner(f.run)
	if err := c.EnsureSessionIDs(context.Background(), 1); err != nil {
		t.Fatalf("EnsureSessionIDs() error = %v", err)
	}
	if f.options["@7 "+OptionUID] == "" {
		t.Fatalf("window @7 not tagged: %v", f.options)
	}
	if f.options["@4 "+OptionUID] != "u-4" {
		t.Fatalf("window @4 retagged: %v", f.options)
	}
}

func TestSetPinned(t *testing.T) {
	f := newFake()
	c := NewWithRunner(f.run)
	ctx := context.Background()
	if err := c.SetPinned(ctx, 7, true); err != nil || f.options["@7 "+OptionPinned] != "1" {
		t.Fatalf("SetPinned(true) = %v, options %v", err, f.options)
	}
	if err := c.SetPinned(ctx, 7, false); err != nil {
		t.Fatalf("SetPinned(false) error = %v", err)
	}
	if _, ok := f.options["@7 "+OptionPinned]; ok {
		t.Fatalf("pinned option still set: %v", f.options)
	}
}

func TestCurrentSession(t *testing.T) {
	c := NewWithRunner(newFake().run)
	if id, err := c.CurrentSession(context.Background()); err != nil || id != 1 {
		t.Fatalf("CurrentSession() = %d, %v", id, err)
	}
}

func TestParseID(t *testing.T) {
	if _, err := parseID("12", '@'); err == nil {
		t.Fatalf("parseID() accepted id without prefix")
	}
	if id, err := parseID("@12", '@'); err != nil || id != 12 {
		t.Fatalf("parseID() = %d, %v", id, err)
	}
}
