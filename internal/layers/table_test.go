package layers_test

import (
	"testing"

	"transit-tracker/internal/geo"
	"transit-tracker/internal/layers"
	"transit-tracker/internal/layers/layerstest"
)

func vehicle(id string) layers.VehicleMarker {
	return layers.VehicleMarker{VehicleID: id, Lat: 41.9, Lon: -87.6}
}

func TestReplaceVehicles_NoOrphans(t *testing.T) {
	rec := layerstest.NewRecorder()
	tbl := layers.NewTable(rec, 14, 13)

	tbl.ReplaceVehicles("22", []layers.VehicleMarker{vehicle("v0"), vehicle("v3")})
	tbl.ReplaceVehicles("22", nil)
	tbl.ReplaceVehicles("22", []layers.VehicleMarker{vehicle("v1"), vehicle("v2")})

	got := rec.VehicleIDs("22")
	if len(got) != 2 || !got["v1"] || !got["v2"] {
		t.Fatalf("canvas vehicles = %v, want exactly v1 and v2", got)
	}
	if n := len(tbl.Vehicles("22")); n != 2 {
		t.Errorf("table holds %d vehicles, want 2", n)
	}
	if m, ok := tbl.Vehicle("22", "v1"); !ok || m.RouteID != "22" {
		t.Errorf("Vehicle(22, v1) = %+v, %v; want route id stamped", m, ok)
	}
}

func TestReplaceVehicles_DuplicateIDsKeepLast(t *testing.T) {
	rec := layerstest.NewRecorder()
	tbl := layers.NewTable(rec, 14, 13)

	a := vehicle("v1")
	b := vehicle("v1")
	b.Heading = 180
	tbl.ReplaceVehicles("22", []layers.VehicleMarker{a, b})

	vs := tbl.Vehicles("22")
	if len(vs) != 1 || vs[0].Heading != 180 {
		t.Fatalf("vehicles = %+v, want one marker with heading 180", vs)
	}
	if n := rec.Calls("RenderVehicle"); n != 1 {
		t.Errorf("RenderVehicle called %d times, want 1", n)
	}
}

func TestNewRoute_AttachesVehiclesAndPaths(t *testing.T) {
	rec := layerstest.NewRecorder()
	tbl := layers.NewTable(rec, 14, 13)
	tbl.ReplaceVehicles("36", nil)

	if !rec.Attached("36", layers.KindVehicles) || !rec.Attached("36", layers.KindPaths) {
		t.Error("vehicle and path layers should attach on first use")
	}
	if rec.Attached("36", layers.KindStops) {
		t.Error("stop layer should stay detached below the zoom threshold")
	}
}

func TestStopVisibilityFollowsZoom(t *testing.T) {
	rec := layerstest.NewRecorder()
	tbl := layers.NewTable(rec, 14, 13)
	tbl.ReplaceStops("22", []layers.StopMarker{
		{StopID: "1001", Name: "Clark & Devon"},
		{StopID: "1002", Name: "Clark & Pratt"},
	})

	if tbl.Attached("22", layers.KindStops) {
		t.Fatal("stops attached at zoom 13")
	}
	if n := rec.StopCount("22"); n != 2 {
		t.Fatalf("canvas holds %d stops, want 2 (detached, not removed)", n)
	}

	renders := rec.Calls("RenderStop")
	tbl.SetZoom(14)
	if !tbl.Attached("22", layers.KindStops) || !rec.Attached("22", layers.KindStops) {
		t.Error("stops should attach at zoom 14")
	}
	if rec.Calls("RenderStop") != renders {
		t.Error("attaching should not re-render stops")
	}

	attaches := rec.Calls("SetLayerAttached")
	tbl.SetZoom(15)
	if rec.Calls("SetLayerAttached") != attaches {
		t.Error("zoom change that keeps visibility should not touch the canvas")
	}

	tbl.SetZoom(12)
	if tbl.Attached("22", layers.KindStops) {
		t.Error("stops should detach at zoom 12")
	}
	if n := len(tbl.Stops("22")); n != 2 {
		t.Errorf("table holds %d stops after detach, want 2", n)
	}
}

func TestReplacePaths_SkipsShortSegments(t *testing.T) {
	rec := layerstest.NewRecorder()
	tbl := layers.NewTable(rec, 14, 13)
	tbl.ReplacePaths("22", []layers.PathSegment{
		{PatternKey: "NB", Points: []geo.LatLon{{Lat: 41.9, Lon: -87.6}, {Lat: 41.91, Lon: -87.61}}},
		{PatternKey: "SB", Points: []geo.LatLon{{Lat: 41.9, Lon: -87.6}}},
	})

	keys := rec.PathKeys("22")
	if len(keys) != 1 || !keys["NB"] {
		t.Errorf("canvas paths = %v, want only NB", keys)
	}

	tbl.ReplacePaths("22", nil)
	if n := len(rec.PathKeys("22")); n != 0 {
		t.Errorf("canvas holds %d paths after empty replace, want 0", n)
	}
}

func TestClearRoute(t *testing.T) {
	rec := layerstest.NewRecorder()
	tbl := layers.NewTable(rec, 14, 15)
	tbl.ReplaceVehicles("22", []layers.VehicleMarker{vehicle("v1")})
	tbl.ReplaceStops("22", []layers.StopMarker{{StopID: "1001"}})
	tbl.ReplacePaths("22", []layers.PathSegment{{PatternKey: "route", Points: []geo.LatLon{{}, {Lat: 1}}}})
	tbl.ReplaceVehicles("36", []layers.VehicleMarker{vehicle("v9")})

	tbl.ClearRoute("22")

	if tbl.Has("22") {
		t.Error("route 22 still in table")
	}
	if len(rec.VehicleIDs("22")) != 0 || rec.StopCount("22") != 0 || len(rec.PathKeys("22")) != 0 {
		t.Error("route 22 markers left on canvas")
	}
	for _, k := range []layers.Kind{layers.KindVehicles, layers.KindStops, layers.KindPaths} {
		if rec.Attached("22", k) {
			t.Errorf("%s layer still attached", k)
		}
	}
	if !rec.VehicleIDs("36")["v9"] {
		t.Error("clearing 22 touched route 36")
	}

	calls := rec.Calls("SetLayerAttached")
	tbl.ClearRoute("22")
	tbl.ClearRoute("never-added")
	if rec.Calls("SetLayerAttached") != calls {
		t.Error("clearing an absent route should do nothing")
	}
}

func TestClearAll(t *testing.T) {
	rec := layerstest.NewRecorder()
	tbl := layers.NewTable(rec, 14, 13)
	tbl.ReplaceVehicles("22", []layers.VehicleMarker{vehicle("v1")})
	tbl.ReplaceVehicles("36", []layers.VehicleMarker{vehicle("v2")})

	tbl.ClearAll()

	if ids := tbl.RouteIDs(); len(ids) != 0 {
		t.Errorf("RouteIDs = %v after ClearAll, want none", ids)
	}
	if len(rec.VehicleIDs("22"))+len(rec.VehicleIDs("36")) != 0 {
		t.Error("vehicles left on canvas")
	}
}

func TestMultiFansOut(t *testing.T) {
	a, b := layerstest.NewRecorder(), layerstest.NewRecorder()
	m := layers.Multi{a, b}
	m.RenderVehicle(layers.VehicleMarker{RouteID: "22", VehicleID: "v1"})
	m.FitBounds(geo.Bounds{South: 1, West: 1, North: 2, East: 2})
	for _, r := range []*layerstest.Recorder{a, b} {
		if !r.VehicleIDs("22")["v1"] || len(r.Fits()) != 1 {
			t.Error("Multi did not reach every canvas")
		}
	}
}

func TestTable_ReplayDrawsCurrentState(t *testing.T) {
	live := layerstest.NewRecorder()
	tbl := layers.NewTable(live, 13, 14)
	tbl.ReplaceVehicles("22", []layers.VehicleMarker{{VehicleID: "101", Lat: 41.9, Lon: -87.6}})
	tbl.ReplaceStops("22", []layers.StopMarker{{StopID: "s1"}})
	tbl.ReplacePaths("22", []layers.PathSegment{{PatternKey: "route", Points: []geo.LatLon{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}}})
	liveCalls := live.Calls("RenderVehicle")

	late := layerstest.NewRecorder()
	tbl.Replay(late)

	if got := late.VehicleIDs("22"); len(got) != 1 || !got["101"] {
		t.Errorf("replayed vehicles = %v, want [101]", got)
	}
	if late.StopCount("22") != 1 {
		t.Errorf("replayed stops = %d, want 1", late.StopCount("22"))
	}
	if keys := late.PathKeys("22"); len(keys) != 1 {
		t.Errorf("replayed paths = %v", keys)
	}
	if !late.Attached("22", layers.KindStops) || !late.Attached("22", layers.KindVehicles) {
		t.Error("replay should attach visible layers")
	}
	if live.Calls("RenderVehicle") != liveCalls {
		t.Error("replay must not redraw the table's own canvas")
	}
}
