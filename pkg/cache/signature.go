package cache

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/b/tmux-tabtree/pkg/tree"
)

// MissingID stands in for a tab without a persistent identifier.
const MissingID = "?"

// TabQuerier returns the live tabs of a window in tab order.
type TabQuerier interface {
	QueryTabs(ctx context.Context, windowID int) ([]tree.Tab, error)
}

// IdentityStore returns the persistent identifier stored for a tab, or "" when
// the tab has none.
type IdentityStore interface {
	PersistentID(ctx context.Context, tabID int) (string, error)
}

// WindowIdentityStore returns the identifiers of every tab of a window in
// one lookup, keyed by tab id.
type WindowIdentityStore interface {
	PersistentIDs(ctx context.Context, windowID int) (map[int]string, error)
}

// Signatures pairs a cached window signature with the live one.
type Signatures struct {
	Cached string
	Actual string
}

// WindowSignature queries the window's tabs and builds their signature.
func WindowSignature(ctx context.Context, tabs TabQuerier, ids IdentityStore, windowID int) (string, error) {
	list, err := tabs.QueryTabs(ctx, windowID)
	if err != nil {
		return "", fmt.Errorf("query tabs of window %d: %w", windowID, err)
	}
	return Signature(ctx, ids, list)
}

// Signature builds the signature of an already fetched tab list.
func Signature(ctx context.Context, ids IdentityStore, tabs []tree.Tab) (string, error) {
	uniqueIDs, err := UniqueIDs(ctx, ids, tabs)
	if err != nil {
		return "", err
	}
	return strings.Join(uniqueIDs, "\n"), nil
}

// UniqueIDs returns one persistent identifier per tab, MissingID for tabs
// that have none.
//
// Stores that also implement WindowIdentityStore are asked once for the
// window of the first tab.
func UniqueIDs(ctx context.Context, ids IdentityStore, tabs []tree.Tab) ([]string, error) {
	out := make([]string, 0, len(tabs))
	if batch, ok := ids.(WindowIdentityStore); ok && len(tabs) > 0 {
		byTab, err := batch.PersistentIDs(ctx, tabs[0].WindowID)
		if err != nil {
			return nil, fmt.Errorf("persistent ids of window %d: %w", tabs[0].WindowID, err)
		}
		for _, tab := range tabs {
			id := byTab[tab.ID]
			if id == "" {
				id = MissingID
			}
			out = append(out, id)
		}
		return out, nil
	}
	for _, tab := range tabs {
		id, err := ids.PersistentID(ctx, tab.ID)
		if err != nil {
			return nil, fmt.Errorf("persistent id of tab %d: %w", tab.ID, err)
		}
		if id == "" {
			id = MissingID
		}
		out = append(out, id)
	}
	return out, nil
}

// SignatureLen returns the number of entries in a signature.
func SignatureLen(sig string) int {
	if sig == "" {
		return 0
	}
	return strings.Count(sig, "\n") + 1
}

// TrimSignature drops the first n entries of a signature.
func TrimSignature(sig string, n int) string {
	if n <= 0 {
		return sig
	}
	entries := strings.Split(sig, "\n")
	if n >= len(entries) {
		return ""
	}
	return strings.Join(entries[n:], "\n")
}

var fragmentRe = regexp.MustCompile(`^<li[^>]*>.+?</li>`)

// TrimTabsCache removes the first run of n consecutive <li> fragments from a
// serialized cache. The markup is returned unchanged when no such run exists.
func TrimTabsCache(markup string, n int) string {
	if n <= 0 {
		return markup
	}
	for start := strings.Index(markup, "<li"); start >= 0; {
		if end, ok := consumeFragments(markup[start:], n); ok {
			return markup[:start] + markup[start+end:]
		}
		next := strings.Index(markup[start+1:], "<li")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return markup
}

func consumeFragments(s string, n int) (int, bool) {
	pos := 0
	for i := 0; i < n; i++ {
		loc := fragmentRe.FindStringIndex(s[pos:])
		if loc == nil {
			return 0, false
		}
		pos += loc[1]
	}
	return pos, true
}

// MatchSignatures reports whether the cached render is still valid: both
// signatures are non-empty and the actual one starts with the cached one.
func MatchSignatures(s Signatures) bool {
	return s.Actual != "" && s.Cached != "" && strings.HasPrefix(s.Actual, s.Cached)
}

// MatchEntries is MatchSignatures at entry granularity: the cached signature
// must end where an entry of the actual one ends, so a cached "x" does not
// match a live "xy".
func MatchEntries(s Signatures) bool {
	if !MatchSignatures(s) {
		return false
	}
	return s.Actual == s.Cached || strings.HasPrefix(s.Actual[len(s.Cached):], "\n")
}
