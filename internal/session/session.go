// Package session tracks which routes are on the map, which route and stop
// are selected, and drives the periodic refresh of their data.
package session

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"transit-tracker/internal/mapsync"
	mmetrics "transit-tracker/internal/metrics"
	"transit-tracker/internal/transit"
)

// API is the upstream data source.
type API interface {
	Routes(ctx context.Context) ([]transit.Route, error)
	Vehicles(ctx context.Context, routeIDs []string) ([]transit.Vehicle, error)
	RouteDetails(ctx context.Context, routeID string) (transit.RouteDetails, error)
	Predictions(ctx context.Context, stopID, routeID string) ([]transit.Prediction, error)
	// RouteShape returns the raw geometry payload, or nil when there is none.
	RouteShape(ctx context.Context, routeID string) (any, error)
}

type State string

const (
	StateIdle     State = "idle"
	StateTracking State = "tracking"
)

type Selection string

const (
	SelectionNone         Selection = "no-selection"
	SelectionRoute        Selection = "route-selected"
	SelectionRouteAndStop Selection = "route-and-stop-selected"
)

const DefaultRefreshInterval = 30 * time.Second

type Options struct {
	RefreshInterval time.Duration
	AutoRefresh     bool
	Logger          *slog.Logger
	Metrics         *mmetrics.Collector
	Listener        Listener
}

type Session struct {
	api      API
	engine   *mapsync.Engine
	interval time.Duration
	logger   *slog.Logger
	metrics  *mmetrics.Collector
	listener Listener

	mu          sync.Mutex
	base        context.Context
	active      map[string]bool
	framed      map[string]bool // routes whose first load framed the viewport
	names       map[string]string
	selected    string
	stop        *StopSelection
	autoRefresh bool

	refresh     Ticker
	predictions Ticker
}

func New(api API, engine *mapsync.Engine, opts Options) *Session {
	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	listener := opts.Listener
	if listener == nil {
		listener = nopListener{}
	}
	return &Session{
		api:         api,
		engine:      engine,
		interval:    interval,
		logger:      logger.With("component", "session"),
		metrics:     opts.Metrics,
		listener:    listener,
		base:        context.Background(),
		active:      make(map[string]bool),
		framed:      make(map[string]bool),
		names:       make(map[string]string),
		autoRefresh: opts.AutoRefresh,
	}
}

// Start binds the timers to ctx and adds the default routes.
func (s *Session) Start(ctx context.Context, defaults []string) {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()
	for _, id := range defaults {
		s.AddRoute(ctx, id)
	}
}

// Close stops both timers and waits for their loops to exit.
func (s *Session) Close() {
	s.mu.Lock()
	s.refresh.Stop()
	s.predictions.Stop()
	s.mu.Unlock()
	s.refresh.Wait()
	s.predictions.Wait()
}

// AddRoute starts tracking a route and loads its data. The route becomes
// selected when nothing else is.
func (s *Session) AddRoute(ctx context.Context, routeID string) {
	routeID = strings.TrimSpace(routeID)
	if routeID == "" {
		return
	}
	s.mu.Lock()
	if s.active[routeID] {
		s.mu.Unlock()
		return
	}
	s.active[routeID] = true
	s.activeChangedLocked()
	if s.selected == "" {
		s.selected = routeID
		s.listener.RouteSelected(routeID, s.names[routeID])
	}
	if len(s.active) == 1 && s.autoRefresh {
		s.startRefreshLocked()
	}
	s.mu.Unlock()

	s.logger.Info("route added", "route", routeID)
	s.loadRoute(ctx, routeID)
}

// RemoveRoute stops tracking a route and clears its layers. A selected
// route hands selection to the first remaining route.
func (s *Session) RemoveRoute(ctx context.Context, routeID string) {
	s.mu.Lock()
	if !s.active[routeID] {
		s.mu.Unlock()
		return
	}
	delete(s.active, routeID)
	delete(s.framed, routeID)
	s.engine.ClearRoute(routeID)
	s.activeChangedLocked()

	reload := ""
	if s.selected == routeID {
		s.selected = ""
		if ids := s.activeIDsLocked(); len(ids) > 0 {
			s.selected = ids[0]
			reload = ids[0]
		}
		s.listener.RouteSelected(s.selected, s.names[s.selected])
	}
	if s.stop != nil && s.stop.RouteID == routeID {
		s.hideStopLocked()
	}
	if len(s.active) == 0 {
		s.refresh.Stop()
	}
	s.mu.Unlock()

	s.logger.Info("route removed", "route", routeID)
	if reload != "" {
		s.loadRoute(ctx, reload)
	}
}

// SelectRoute makes an active route the selected one and reloads it.
func (s *Session) SelectRoute(ctx context.Context, routeID string) {
	s.mu.Lock()
	if s.selected == routeID || !s.active[routeID] {
		s.mu.Unlock()
		return
	}
	s.selected = routeID
	s.listener.RouteSelected(routeID, s.names[routeID])
	s.mu.Unlock()

	s.loadRoute(ctx, routeID)
}

// ShowStop selects a stop, fetches its predictions and keeps them fresh
// while auto-refresh is on. The stop's route becomes the selected route.
// Stops of routes that are not tracked are ignored.
func (s *Session) ShowStop(ctx context.Context, stopID, routeID, name string) {
	sel := StopSelection{RouteID: routeID, StopID: stopID, Name: name}
	s.mu.Lock()
	if !s.active[routeID] {
		s.mu.Unlock()
		s.logger.Warn("ignoring stop of untracked route", "stop", stopID, "route", routeID)
		return
	}
	s.stop = &sel
	s.listener.StopShown(sel)
	if s.autoRefresh {
		s.predictions.Start(s.base, s.interval, s.predictionTick)
	}
	reselect := s.selected != routeID
	s.mu.Unlock()

	s.RefreshPredictions(ctx)
	if reselect {
		s.SelectRoute(ctx, routeID)
	}
}

func (s *Session) HideStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hideStopLocked()
}

func (s *Session) hideStopLocked() {
	s.predictions.Stop()
	if s.stop == nil {
		return
	}
	s.stop = nil
	s.listener.StopHidden()
}

// ToggleAutoRefresh starts or stops the vehicle refresh timer.
func (s *Session) ToggleAutoRefresh(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoRefresh = enabled
	if enabled {
		s.startRefreshLocked()
		return
	}
	s.refresh.Stop()
}

func (s *Session) startRefreshLocked() {
	if s.refresh.Start(s.base, s.interval, s.refreshTick) {
		s.logger.Debug("auto refresh started", "interval", s.interval)
	}
}

func (s *Session) refreshTick() {
	if s.metrics != nil {
		s.metrics.RefreshTicks.Inc()
	}
	s.RefreshAll(s.baseContext())
}

func (s *Session) predictionTick() {
	s.RefreshPredictions(s.baseContext())
}

func (s *Session) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// RefreshAll reloads every active route concurrently and, once all loads
// have settled, refreshes the selected stop's predictions. A failing route
// does not hold up the others.
func (s *Session) RefreshAll(ctx context.Context) {
	ids := s.ActiveRoutes()
	if len(ids) == 0 {
		return
	}
	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			s.loadRoute(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	if s.SelectedStop() != nil {
		s.RefreshPredictions(ctx)
	}
}

// RefreshPredictions fetches arrivals for the selected stop. Results for a
// stop that was hidden or replaced meanwhile are dropped.
func (s *Session) RefreshPredictions(ctx context.Context) {
	s.mu.Lock()
	if s.stop == nil {
		s.mu.Unlock()
		return
	}
	sel := *s.stop
	s.mu.Unlock()

	preds, err := s.api.Predictions(ctx, sel.StopID, sel.RouteID)
	if err != nil {
		s.logger.Error("prediction fetch failed", "stop", sel.StopID, "route", sel.RouteID, "error", err)
		s.countPredictions("error")
		return
	}
	s.countPredictions("ok")
	sort.SliceStable(preds, func(i, j int) bool { return preds[i].PredictedAt.Before(preds[j].PredictedAt) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil || *s.stop != sel {
		return
	}
	s.listener.PredictionsUpdated(sel, preds)
}

// loadRoute fetches vehicles and stop details together, fetches the shape
// if it was never drawn, then applies everything in one step. Fetch errors
// leave the route's layers as they were.
func (s *Session) loadRoute(ctx context.Context, routeID string) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.LoadDuration.Observe(time.Since(start).Seconds())
		}
	}()

	var (
		vehicles []transit.Vehicle
		details  transit.RouteDetails
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vs, err := s.api.Vehicles(gctx, []string{routeID})
		if err != nil {
			return err
		}
		for _, v := range vs {
			if v.RouteID == "" || v.RouteID == routeID {
				vehicles = append(vehicles, v)
			}
		}
		return nil
	})
	g.Go(func() error {
		d, err := s.api.RouteDetails(gctx, routeID)
		details = d
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("route load failed", "route", routeID, "error", err)
		s.countLoad("error")
		return
	}

	var payload any
	fetchedShape := false
	if !s.engine.ShapeLoaded(routeID) {
		p, err := s.api.RouteShape(ctx, routeID)
		if err != nil {
			s.logger.Warn("shape fetch failed", "route", routeID, "error", err)
			if s.metrics != nil {
				s.metrics.ShapeLoads.WithLabelValues("error").Inc()
			}
		} else {
			payload, fetchedShape = p, true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active[routeID] {
		s.logger.Debug("dropping load for removed route", "route", routeID)
		s.countLoad("dropped")
		return
	}
	s.engine.SyncStops(routeID, details)
	if fetchedShape {
		s.engine.SyncShape(routeID, payload)
	}
	s.engine.SyncVehicles(routeID, vehicles, !s.framed[routeID])
	s.framed[routeID] = true
	if routeID == s.selected {
		s.listener.VehiclesUpdated(routeID, vehicles)
	}
	s.countLoad("ok")
}

func (s *Session) countLoad(result string) {
	if s.metrics != nil {
		s.metrics.RouteLoads.WithLabelValues(result).Inc()
	}
}

func (s *Session) countPredictions(result string) {
	if s.metrics != nil {
		s.metrics.PredictionFetches.WithLabelValues(result).Inc()
	}
}

func (s *Session) activeChangedLocked() {
	ids := s.activeIDsLocked()
	if s.metrics != nil {
		s.metrics.ActiveRoutes.Set(float64(len(ids)))
	}
	s.listener.ActiveRoutesChanged(ids)
}

func (s *Session) activeIDsLocked() []string {
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sortRouteIDs(ids)
	return ids
}

// ActiveRoutes returns the tracked routes in route number order.
func (s *Session) ActiveRoutes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeIDsLocked()
}

func (s *Session) IsActive(routeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[routeID]
}

func (s *Session) SelectedRoute() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SelectedStop returns a copy of the stop selection, or nil.
func (s *Session) SelectedStop() *StopSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return nil
	}
	sel := *s.stop
	return &sel
}

func (s *Session) RouteName(routeID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.names[routeID]
}

func (s *Session) AutoRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoRefresh
}

func (s *Session) RefreshActive() bool     { return s.refresh.Active() }
func (s *Session) PredictionsActive() bool { return s.predictions.Active() }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.active) == 0 {
		return StateIdle
	}
	return StateTracking
}

func (s *Session) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.selected == "":
		return SelectionNone
	case s.stop == nil:
		return SelectionRoute
	default:
		return SelectionRouteAndStop
	}
}
