package scroll

import "sync"

// RowLayout places visible nodes on fixed height rows below the top of a
// viewport. Rows scroll with the viewport.
type RowLayout struct {
	mu     sync.RWMutex
	view   Viewport
	height int
	rows   map[string]int
}

func NewRowLayout(view Viewport, rowHeight int) *RowLayout {
	if rowHeight <= 0 {
		rowHeight = 1
	}
	return &RowLayout{view: view, height: rowHeight, rows: map[string]int{}}
}

// SetRows replaces the drawn rows, top to bottom.
func (l *RowLayout) SetRows(ids []string) {
	rows := make(map[string]int, len(ids))
	for i, id := range ids {
		rows[id] = i
	}
	l.mu.Lock()
	l.rows = rows
	l.mu.Unlock()
}

// SetRowHeight changes the height of every row.
func (l *RowLayout) SetRowHeight(h int) {
	if h <= 0 {
		h = 1
	}
	l.mu.Lock()
	l.height = h
	l.mu.Unlock()
}

// Len is the number of drawn rows.
func (l *RowLayout) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.rows)
}

// ContentHeight is the height of all rows together.
func (l *RowLayout) ContentHeight() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.rows) * l.height
}

func (l *RowLayout) Bounds(id string) (Rect, bool) {
	l.mu.RLock()
	i, ok := l.rows[id]
	h := l.height
	l.mu.RUnlock()
	if !ok {
		return Rect{}, false
	}
	top := l.view.Bounds().Top + i*h - l.view.ScrollTop()
	return Rect{Top: top, Bottom: top + h}, true
}
