package session

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	GroupActive   = "Active Routes"
	GroupInactive = "Inactive Routes"

	// catalogBatch bounds how many route ids go into one vehicles probe.
	catalogBatch = 10
)

type CatalogEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type RouteGroup struct {
	Name   string         `json:"name"`
	Routes []CatalogEntry `json:"routes"`
}

// Catalog lists every known route split into routes with vehicles on the
// road and routes without. If probing for vehicles fails, every route is
// listed as inactive. Route names are remembered for later notifications.
func (s *Session) Catalog(ctx context.Context) ([]RouteGroup, error) {
	routes, err := s.api.Routes(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch routes: %w", err)
	}
	s.mu.Lock()
	for _, r := range routes {
		s.names[r.ID] = r.Name
	}
	s.mu.Unlock()

	ids := make([]string, len(routes))
	for i, r := range routes {
		ids[i] = r.ID
	}
	running, err := s.probeRunning(ctx, ids)
	if err != nil {
		s.logger.Warn("vehicle probe failed, listing all routes as inactive", "error", err)
		running = nil
	}

	active := RouteGroup{Name: GroupActive, Routes: []CatalogEntry{}}
	inactive := RouteGroup{Name: GroupInactive, Routes: []CatalogEntry{}}
	for _, r := range routes {
		e := CatalogEntry{ID: r.ID, Name: r.Name, Color: s.engine.ColorFor(r.ID)}
		if running[r.ID] {
			active.Routes = append(active.Routes, e)
		} else {
			inactive.Routes = append(inactive.Routes, e)
		}
	}
	for _, g := range []RouteGroup{active, inactive} {
		sort.SliceStable(g.Routes, func(i, j int) bool { return routeLess(g.Routes[i].ID, g.Routes[j].ID) })
	}
	return []RouteGroup{active, inactive}, nil
}

// probeRunning asks for vehicles a batch of routes at a time and returns
// the routes that have at least one.
func (s *Session) probeRunning(ctx context.Context, ids []string) (map[string]bool, error) {
	running := make(map[string]bool)
	for i := 0; i < len(ids); i += catalogBatch {
		batch := ids[i:min(i+catalogBatch, len(ids))]
		vs, err := s.api.Vehicles(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("probe routes %s: %w", strings.Join(batch, ","), err)
		}
		for _, v := range vs {
			if v.RouteID != "" {
				running[v.RouteID] = true
			}
		}
	}
	return running, nil
}

// routeLess orders route ids by the number formed from their digits, so
// "9" < "X9" < "22" < "146". Ids without digits sort last.
func routeLess(a, b string) bool {
	na, oka := routeNumber(a)
	nb, okb := routeNumber(b)
	switch {
	case oka && okb && na != nb:
		return na < nb
	case oka != okb:
		return oka
	}
	return a < b
}

func routeNumber(id string) (int, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, id)
	n, err := strconv.Atoi(digits)
	return n, err == nil
}

func sortRouteIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool { return routeLess(ids[i], ids[j]) })
}
