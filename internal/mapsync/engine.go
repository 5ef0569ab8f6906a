// Package mapsync reconciles per-route map layers with freshly fetched
// vehicles, stops and route geometry.
package mapsync

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"transit-tracker/internal/geo"
	"transit-tracker/internal/layers"
	mmetrics "transit-tracker/internal/metrics"
	"transit-tracker/internal/palette"
	"transit-tracker/internal/shape"
	"transit-tracker/internal/transit"
)

// FocusZoom is the zoom used when centring the map on one vehicle.
const FocusZoom = 16

type Options struct {
	StopsVisibleZoom int
	InitialZoom      int
	Logger           *slog.Logger
	Metrics          *mmetrics.Collector
}

// Engine owns every route's layer set and the color table. Each operation
// touches one route only. Safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	canvas  layers.Canvas
	table   *layers.Table
	colors  *palette.Allocator
	shapes  map[string]bool // route id -> shape drawn
	logger  *slog.Logger
	metrics *mmetrics.Collector
}

func New(canvas layers.Canvas, colors *palette.Allocator, opts Options) *Engine {
	if canvas == nil {
		canvas = layers.Nop{}
	}
	if colors == nil {
		colors = palette.New(nil, nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		canvas:  canvas,
		table:   layers.NewTable(canvas, opts.StopsVisibleZoom, opts.InitialZoom),
		colors:  colors,
		shapes:  make(map[string]bool),
		logger:  logger.With("component", "mapsync"),
		metrics: opts.Metrics,
	}
}

// SyncVehicles replaces the route's vehicle markers. With fit set and at
// least one vehicle, the viewport is framed to the vehicles' positions.
func (e *Engine) SyncVehicles(routeID string, vehicles []transit.Vehicle, fit bool) {
	color := e.colors.ColorFor(routeID)
	markers := make([]layers.VehicleMarker, 0, len(vehicles))
	pts := make([]geo.LatLon, 0, len(vehicles))
	for _, v := range vehicles {
		markers = append(markers, layers.VehicleMarker{
			RouteID:     routeID,
			VehicleID:   v.VehicleID,
			Lat:         v.Lat,
			Lon:         v.Lon,
			Heading:     v.Heading,
			Cardinal:    transit.Cardinal(v.Heading),
			Delayed:     v.Delayed,
			Destination: v.Destination,
			Color:       color,
		})
		if geo.ValidCoord(v.Lat, v.Lon) {
			pts = append(pts, geo.LatLon{Lat: v.Lat, Lon: v.Lon})
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.table.ReplaceVehicles(routeID, markers)
	if !fit {
		return
	}
	if b, ok := geo.BoundsOf(pts); ok {
		e.canvas.FitBounds(b)
	}
}

// SyncStops flattens the per-direction stop lists and replaces the route's
// stop markers. Directions are visited in name order.
func (e *Engine) SyncStops(routeID string, details transit.RouteDetails) {
	color := e.colors.ColorFor(routeID)
	dirs := make([]string, 0, len(details.Directions))
	for d := range details.Directions {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	var markers []layers.StopMarker
	for _, d := range dirs {
		for _, s := range details.Directions[d] {
			dir := s.Direction
			if dir == "" {
				dir = d
			}
			markers = append(markers, layers.StopMarker{
				RouteID:   routeID,
				StopID:    s.StopID,
				Name:      s.Name,
				Direction: dir,
				Lat:       s.Lat,
				Lon:       s.Lon,
				Color:     color,
			})
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.table.ReplaceStops(routeID, markers)
}

// SyncShape normalizes payload and replaces the route's paths. It reports
// whether anything drawable was found. An empty payload leaves the route
// unmarked so the shape is fetched again on the next load; a non-empty
// payload with nothing drawable still marks the shape loaded.
func (e *Engine) SyncShape(routeID string, payload any) bool {
	if shape.Empty(payload) {
		e.logger.Warn("no shape data", "route", routeID)
		e.countShape("empty")
		return false
	}
	patterns := shape.Normalize(payload)
	if len(patterns) == 0 {
		e.logger.Warn("shape data not recognised", "route", routeID)
		e.mu.Lock()
		e.shapes[routeID] = true
		e.mu.Unlock()
		e.countShape("unrecognised")
		return false
	}

	color := e.colors.ColorFor(routeID)
	segs := make([]layers.PathSegment, 0, len(patterns))
	for key, pts := range patterns {
		line := make([]geo.LatLon, len(pts))
		for i, p := range pts {
			line[i] = geo.LatLon{Lat: p.Lat, Lon: p.Lon}
		}
		segs = append(segs, layers.PathSegment{
			RouteID:      routeID,
			PatternKey:   key,
			Label:        PathLabel(key),
			Color:        color,
			Points:       line,
			LengthMeters: geo.PathLength(line),
		})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].PatternKey < segs[j].PatternKey })

	e.mu.Lock()
	e.table.ReplacePaths(routeID, segs)
	e.shapes[routeID] = true
	e.mu.Unlock()

	e.logger.Debug("shape drawn", "route", routeID, "patterns", len(segs))
	e.countShape("ok")
	return true
}

func (e *Engine) countShape(result string) {
	if e.metrics != nil {
		e.metrics.ShapeLoads.WithLabelValues(result).Inc()
	}
}

// ClearRoute removes all of the route's layers and forgets its shape.
func (e *Engine) ClearRoute(routeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.table.ClearRoute(routeID)
	delete(e.shapes, routeID)
}

func (e *Engine) ClearAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.table.ClearAll()
	e.shapes = make(map[string]bool)
}

func (e *Engine) ColorFor(routeID string) string { return e.colors.ColorFor(routeID) }

// ShapeLoaded reports whether the route's geometry has been drawn since it
// was last cleared.
func (e *Engine) ShapeLoaded(routeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shapes[routeID]
}

// SetZoom records the renderer's zoom level and updates stop visibility.
func (e *Engine) SetZoom(zoom int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.table.SetZoom(zoom)
}

func (e *Engine) Zoom() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.Zoom()
}

// FocusVehicle centres the map on one vehicle. It returns false when the
// vehicle has no marker.
func (e *Engine) FocusVehicle(routeID, vehicleID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.table.Vehicle(routeID, vehicleID)
	if !ok {
		return false
	}
	e.canvas.Focus(geo.LatLon{Lat: m.Lat, Lon: m.Lon}, FocusZoom)
	return true
}

// Replay runs join and then draws every route onto c without any engine
// change slipping in between. join may register c with the engine's own
// canvas fan-out; it must not call back into the engine.
func (e *Engine) Replay(c layers.Canvas, join func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if join != nil {
		join()
	}
	e.table.Replay(c)
}

func (e *Engine) HasRoute(routeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.Has(routeID)
}

func (e *Engine) Routes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.RouteIDs()
}

func (e *Engine) Vehicles(routeID string) []layers.VehicleMarker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.Vehicles(routeID)
}

func (e *Engine) Stops(routeID string) []layers.StopMarker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.Stops(routeID)
}

func (e *Engine) Paths(routeID string) []layers.PathSegment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.Paths(routeID)
}

// StopsAttached reports whether the route's stop layer is on the canvas.
func (e *Engine) StopsAttached(routeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.Attached(routeID, layers.KindStops)
}

// PathLabel names a pattern for display: split segments are numbered from
// one, other keys are read for a travel direction.
func PathLabel(key string) string {
	if n, ok := strings.CutPrefix(key, shape.SegmentPrefix); ok {
		if i, err := strconv.Atoi(n); err == nil {
			return "Segment " + strconv.Itoa(i+1)
		}
	}
	if strings.HasSuffix(strings.ToLower(key), "bound") {
		return key
	}
	switch {
	case strings.Contains(key, "EB"):
		return "Eastbound"
	case strings.Contains(key, "WB"):
		return "Westbound"
	case strings.Contains(key, "NB"):
		return "Northbound"
	case strings.Contains(key, "SB"):
		return "Southbound"
	}
	return "Unknown"
}
