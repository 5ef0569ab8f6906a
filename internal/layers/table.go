package layers

import "sort"

// RouteLayerSet is one route's three sub-layers.
type RouteLayerSet struct {
	RouteID  string
	vehicles map[string]VehicleMarker
	stops    map[string]StopMarker
	paths    map[string]PathSegment
	attached map[Kind]bool
}

// Table owns every route's layer set and mirrors each change onto the
// canvas. It is not safe for concurrent use; the sync engine serialises
// access.
type Table struct {
	canvas   Canvas
	routes   map[string]*RouteLayerSet
	zoom     int
	stopZoom int
}

func NewTable(canvas Canvas, stopZoom, zoom int) *Table {
	if canvas == nil {
		canvas = Nop{}
	}
	return &Table{
		canvas:   canvas,
		routes:   make(map[string]*RouteLayerSet),
		zoom:     zoom,
		stopZoom: stopZoom,
	}
}

// ensure returns the route's layer set, creating it on first use. Vehicles
// and paths attach immediately; stops start detached until the next
// visibility pass.
func (t *Table) ensure(routeID string) *RouteLayerSet {
	if s, ok := t.routes[routeID]; ok {
		return s
	}
	s := &RouteLayerSet{
		RouteID:  routeID,
		vehicles: make(map[string]VehicleMarker),
		stops:    make(map[string]StopMarker),
		paths:    make(map[string]PathSegment),
		attached: make(map[Kind]bool, 3),
	}
	t.routes[routeID] = s
	for _, k := range []Kind{KindVehicles, KindPaths} {
		s.attached[k] = true
		t.canvas.SetLayerAttached(routeID, k, true)
	}
	return s
}

// ReplaceVehicles tears down the route's vehicle markers, then installs ms.
func (t *Table) ReplaceVehicles(routeID string, ms []VehicleMarker) {
	s := t.ensure(routeID)
	for id := range s.vehicles {
		t.canvas.RemoveVehicle(routeID, id)
	}
	s.vehicles = make(map[string]VehicleMarker, len(ms))
	for _, m := range dedupe(ms, func(m VehicleMarker) string { return m.VehicleID }) {
		m.RouteID = routeID
		s.vehicles[m.VehicleID] = m
		t.canvas.RenderVehicle(m)
	}
	t.syncVisibility()
}

func (t *Table) ReplaceStops(routeID string, ms []StopMarker) {
	s := t.ensure(routeID)
	for id := range s.stops {
		t.canvas.RemoveStop(routeID, id)
	}
	s.stops = make(map[string]StopMarker, len(ms))
	for _, m := range dedupe(ms, func(m StopMarker) string { return m.StopID }) {
		m.RouteID = routeID
		s.stops[m.StopID] = m
		t.canvas.RenderStop(m)
	}
	t.syncVisibility()
}

// ReplacePaths installs ps; segments with fewer than two points are skipped.
func (t *Table) ReplacePaths(routeID string, ps []PathSegment) {
	s := t.ensure(routeID)
	for key := range s.paths {
		t.canvas.RemovePath(routeID, key)
	}
	s.paths = make(map[string]PathSegment, len(ps))
	for _, p := range dedupe(ps, func(p PathSegment) string { return p.PatternKey }) {
		if len(p.Points) < 2 {
			continue
		}
		p.RouteID = routeID
		s.paths[p.PatternKey] = p
		t.canvas.RenderPath(p)
	}
	t.syncVisibility()
}

// ClearRoute removes every marker and path of the route and forgets it.
// Clearing an unknown route does nothing.
func (t *Table) ClearRoute(routeID string) {
	s, ok := t.routes[routeID]
	if !ok {
		return
	}
	for id := range s.vehicles {
		t.canvas.RemoveVehicle(routeID, id)
	}
	for id := range s.stops {
		t.canvas.RemoveStop(routeID, id)
	}
	for key := range s.paths {
		t.canvas.RemovePath(routeID, key)
	}
	for _, k := range []Kind{KindVehicles, KindStops, KindPaths} {
		if s.attached[k] {
			t.canvas.SetLayerAttached(routeID, k, false)
		}
	}
	delete(t.routes, routeID)
}

func (t *Table) ClearAll() {
	for _, id := range t.RouteIDs() {
		t.ClearRoute(id)
	}
}

// SetZoom records the viewport zoom and re-evaluates stop visibility.
func (t *Table) SetZoom(zoom int) {
	t.zoom = zoom
	t.syncVisibility()
}

func (t *Table) Zoom() int { return t.zoom }

// syncVisibility attaches stop layers at or above the zoom threshold and
// detaches them below it. Detached markers stay in memory.
func (t *Table) syncVisibility() {
	show := t.zoom >= t.stopZoom
	for id, s := range t.routes {
		if s.attached[KindStops] == show {
			continue
		}
		s.attached[KindStops] = show
		t.canvas.SetLayerAttached(id, KindStops, show)
	}
}

// Replay draws the current state of every route onto c, which is typically
// a renderer that joined late. The table's own canvas is not touched.
func (t *Table) Replay(c Canvas) {
	for _, id := range t.RouteIDs() {
		s := t.routes[id]
		for _, k := range []Kind{KindVehicles, KindStops, KindPaths} {
			if s.attached[k] {
				c.SetLayerAttached(id, k, true)
			}
		}
		for _, m := range sortedValues(s.vehicles) {
			c.RenderVehicle(m)
		}
		for _, m := range sortedValues(s.stops) {
			c.RenderStop(m)
		}
		for _, p := range sortedValues(s.paths) {
			c.RenderPath(p)
		}
	}
}

func (t *Table) Has(routeID string) bool {
	_, ok := t.routes[routeID]
	return ok
}

func (t *Table) RouteIDs() []string {
	ids := make([]string, 0, len(t.routes))
	for id := range t.routes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Attached reports whether the sub-layer is currently on the canvas.
func (t *Table) Attached(routeID string, kind Kind) bool {
	s, ok := t.routes[routeID]
	return ok && s.attached[kind]
}

func (t *Table) Vehicle(routeID, vehicleID string) (VehicleMarker, bool) {
	s, ok := t.routes[routeID]
	if !ok {
		return VehicleMarker{}, false
	}
	m, ok := s.vehicles[vehicleID]
	return m, ok
}

// Vehicles returns the route's vehicle markers ordered by vehicle id.
func (t *Table) Vehicles(routeID string) []VehicleMarker {
	s, ok := t.routes[routeID]
	if !ok {
		return nil
	}
	return sortedValues(s.vehicles)
}

func (t *Table) Stops(routeID string) []StopMarker {
	s, ok := t.routes[routeID]
	if !ok {
		return nil
	}
	return sortedValues(s.stops)
}

func (t *Table) Paths(routeID string) []PathSegment {
	s, ok := t.routes[routeID]
	if !ok {
		return nil
	}
	return sortedValues(s.paths)
}

func sortedValues[V any](m map[string]V) []V {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

// dedupe keeps the last item for each key at the position of the first.
func dedupe[T any](items []T, key func(T) string) []T {
	idx := make(map[string]int, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if i, ok := idx[k]; ok {
			out[i] = it
			continue
		}
		idx[k] = len(out)
		out = append(out, it)
	}
	return out
}
