package browser

import (
	"sync"

	"github.com/chromedp/cdproto/target"
)

// Registry hands out small integer tab ids for CDP target ids. Ids are never
// reused while the registry lives, so ordering by id follows first sight.
type Registry struct {
	mu     sync.RWMutex
	next   int
	byID   map[int]target.ID
	byTarg map[target.ID]int
}

func NewRegistry() *Registry {
	return &Registry{next: 1, byID: map[int]target.ID{}, byTarg: map[target.ID]int{}}
}

// ID returns the tab id of a target, registering it on first sight.
func (r *Registry) ID(t target.ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byTarg[t]; ok {
		return id
	}
	id := r.next
	r.next++
	r.byTarg[t] = id
	r.byID[id] = t
	return id
}

func (r *Registry) Target(id int) (target.ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	return t, ok
}

// Retain forgets every target not in live and returns the forgotten ones.
func (r *Registry) Retain(live map[target.ID]bool) []target.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var gone []target.ID
	for t, id := range r.byTarg {
		if live[t] {
			continue
		}
		gone = append(gone, t)
		delete(r.byTarg, t)
		delete(r.byID, id)
	}
	return gone
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byTarg)
}
