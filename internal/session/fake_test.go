package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"transit-tracker/internal/layers/layerstest"
	"transit-tracker/internal/mapsync"
	"transit-tracker/internal/palette"
	"transit-tracker/internal/transit"
)

var errUpstream = errors.New("upstream unavailable")

// fakeAPI serves canned data per route and counts calls. Setting block makes
// Vehicles wait for it to close after signalling on started.
type fakeAPI struct {
	mu          sync.Mutex
	routes      []transit.Route
	vehicles    map[string][]transit.Vehicle
	failRoutes  map[string]bool
	failProbe   bool
	failPreds   bool
	predictions []transit.Prediction
	shape       any
	calls       map[string]int
	block       chan struct{}
	started     chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		vehicles:   make(map[string][]transit.Vehicle),
		failRoutes: make(map[string]bool),
		calls:      make(map[string]int),
		shape: map[string]any{
			"type":        "LineString",
			"coordinates": []any{[]any{-87.6, 41.9}, []any{-87.61, 41.91}},
		},
	}
}

func (f *fakeAPI) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeAPI) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) Routes(ctx context.Context) ([]transit.Route, error) {
	f.count("Routes")
	return f.routes, nil
}

func (f *fakeAPI) Vehicles(ctx context.Context, routeIDs []string) ([]transit.Vehicle, error) {
	f.count("Vehicles")
	f.mu.Lock()
	block, started := f.block, f.started
	f.mu.Unlock()
	if block != nil {
		started <- struct{}{}
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failProbe && len(routeIDs) > 1 {
		return nil, errUpstream
	}
	var out []transit.Vehicle
	for _, id := range routeIDs {
		if f.failRoutes[id] {
			return nil, errUpstream
		}
		out = append(out, f.vehicles[id]...)
	}
	return out, nil
}

func (f *fakeAPI) RouteDetails(ctx context.Context, routeID string) (transit.RouteDetails, error) {
	f.count("RouteDetails")
	return transit.RouteDetails{
		RouteID: routeID,
		Directions: map[string][]transit.Stop{
			"Northbound": {{RouteID: routeID, StopID: routeID + "-1", Name: "First"}},
		},
	}, nil
}

func (f *fakeAPI) Predictions(ctx context.Context, stopID, routeID string) ([]transit.Prediction, error) {
	f.count("Predictions")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPreds {
		return nil, errUpstream
	}
	return append([]transit.Prediction(nil), f.predictions...), nil
}

func (f *fakeAPI) RouteShape(ctx context.Context, routeID string) (any, error) {
	f.count("RouteShape")
	return f.shape, nil
}

// recordingListener keeps the notifications a UI would have seen.
type recordingListener struct {
	mu          sync.Mutex
	selections  []string
	vehicles    map[string]int
	predictions [][]transit.Prediction
	shown       []StopSelection
	hidden      int
	active      [][]string
}

func newRecordingListener() *recordingListener {
	return &recordingListener{vehicles: make(map[string]int)}
}

func (l *recordingListener) ActiveRoutesChanged(ids []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = append(l.active, ids)
}

func (l *recordingListener) RouteSelected(routeID, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.selections = append(l.selections, routeID)
}

func (l *recordingListener) VehiclesUpdated(routeID string, vs []transit.Vehicle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.vehicles[routeID]++
}

func (l *recordingListener) StopShown(s StopSelection) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shown = append(l.shown, s)
}

func (l *recordingListener) PredictionsUpdated(s StopSelection, ps []transit.Prediction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.predictions = append(l.predictions, ps)
}

func (l *recordingListener) StopHidden() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hidden++
}

type fixture struct {
	api      *fakeAPI
	rec      *layerstest.Recorder
	engine   *mapsync.Engine
	listener *recordingListener
	session  *Session
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		api:      newFakeAPI(),
		rec:      layerstest.NewRecorder(),
		listener: newRecordingListener(),
	}
	f.engine = mapsync.New(f.rec, palette.New([]string{"#111111", "#222222"}, nil), mapsync.Options{StopsVisibleZoom: 14, InitialZoom: 13})
	opts.Listener = f.listener
	if opts.RefreshInterval == 0 {
		opts.RefreshInterval = time.Hour
	}
	f.session = New(f.api, f.engine, opts)
	t.Cleanup(f.session.Close)
	return f
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
