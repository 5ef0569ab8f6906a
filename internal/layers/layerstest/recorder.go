// Package layerstest provides a Canvas that remembers what is on screen.
package layerstest

import (
	"sync"

	"transit-tracker/internal/geo"
	"transit-tracker/internal/layers"
)

// Recorder tracks the live canvas contents plus a count of every call.
type Recorder struct {
	mu       sync.Mutex
	vehicles map[string]map[string]layers.VehicleMarker
	stops    map[string]map[string]layers.StopMarker
	paths    map[string]map[string]layers.PathSegment
	attached map[string]map[layers.Kind]bool
	calls    map[string]int
	fits     []geo.Bounds
	focus    []geo.LatLon
}

func NewRecorder() *Recorder {
	return &Recorder{
		vehicles: make(map[string]map[string]layers.VehicleMarker),
		stops:    make(map[string]map[string]layers.StopMarker),
		paths:    make(map[string]map[string]layers.PathSegment),
		attached: make(map[string]map[layers.Kind]bool),
		calls:    make(map[string]int),
	}
}

func put[V any](m map[string]map[string]V, route, id string, v V) {
	if m[route] == nil {
		m[route] = make(map[string]V)
	}
	m[route][id] = v
}

func (r *Recorder) RenderVehicle(m layers.VehicleMarker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["RenderVehicle"]++
	put(r.vehicles, m.RouteID, m.VehicleID, m)
}

func (r *Recorder) RemoveVehicle(routeID, vehicleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["RemoveVehicle"]++
	delete(r.vehicles[routeID], vehicleID)
}

func (r *Recorder) RenderStop(m layers.StopMarker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["RenderStop"]++
	put(r.stops, m.RouteID, m.StopID, m)
}

func (r *Recorder) RemoveStop(routeID, stopID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["RemoveStop"]++
	delete(r.stops[routeID], stopID)
}

func (r *Recorder) RenderPath(p layers.PathSegment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["RenderPath"]++
	put(r.paths, p.RouteID, p.PatternKey, p)
}

func (r *Recorder) RemovePath(routeID, patternKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["RemovePath"]++
	delete(r.paths[routeID], patternKey)
}

func (r *Recorder) SetLayerAttached(routeID string, kind layers.Kind, attached bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["SetLayerAttached"]++
	if r.attached[routeID] == nil {
		r.attached[routeID] = make(map[layers.Kind]bool)
	}
	r.attached[routeID][kind] = attached
}

func (r *Recorder) FitBounds(b geo.Bounds) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["FitBounds"]++
	r.fits = append(r.fits, b)
}

func (r *Recorder) Focus(p geo.LatLon, zoom int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["Focus"]++
	r.focus = append(r.focus, p)
}

// VehicleIDs returns the set of vehicle ids currently drawn for the route.
func (r *Recorder) VehicleIDs(routeID string) map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool)
	for id := range r.vehicles[routeID] {
		out[id] = true
	}
	return out
}

func (r *Recorder) Vehicle(routeID, vehicleID string) (layers.VehicleMarker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.vehicles[routeID][vehicleID]
	return m, ok
}

func (r *Recorder) StopCount(routeID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stops[routeID])
}

func (r *Recorder) PathKeys(routeID string) map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool)
	for k := range r.paths[routeID] {
		out[k] = true
	}
	return out
}

func (r *Recorder) Attached(routeID string, kind layers.Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attached[routeID][kind]
}

func (r *Recorder) Calls(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func (r *Recorder) Fits() []geo.Bounds {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]geo.Bounds(nil), r.fits...)
}

func (r *Recorder) Focuses() []geo.LatLon {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]geo.LatLon(nil), r.focus...)
}
