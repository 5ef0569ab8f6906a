package palette

import "sync"

// Fallback is handed out when the palette is empty.
const Fallback = "#757575"

// Allocator assigns each route a display color for the process lifetime.
// Pinned routes always get their override; others take the first unused
// palette entry, wrapping around once the palette is exhausted.
type Allocator struct {
	mu       sync.Mutex
	palette  []string
	pinned   map[string]string
	assigned map[string]string
	used     map[string]bool
}

func New(palette []string, pinned map[string]string) *Allocator {
	a := &Allocator{
		palette:  append([]string(nil), palette...),
		pinned:   make(map[string]string, len(pinned)),
		assigned: make(map[string]string, len(pinned)),
		used:     make(map[string]bool, len(palette)),
	}
	for id, c := range pinned {
		a.pinned[id] = c
		a.assigned[id] = c
		a.used[c] = true
	}
	return a
}

func (a *Allocator) ColorFor(routeID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.pinned[routeID]; ok {
		return c
	}
	if c, ok := a.assigned[routeID]; ok {
		return c
	}
	if len(a.palette) == 0 {
		a.assigned[routeID] = Fallback
		return Fallback
	}
	c := ""
	for _, p := range a.palette {
		if !a.used[p] {
			c = p
			break
		}
	}
	if c == "" {
		// exhausted: colors repeat from here on
		c = a.palette[len(a.assigned)%len(a.palette)]
	}
	a.assigned[routeID] = c
	a.used[c] = true
	return c
}

// Assigned returns a copy of every route -> color binding made so far,
// pinned routes included.
func (a *Allocator) Assigned() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.assigned))
	for id, c := range a.assigned {
		out[id] = c
	}
	return out
}
