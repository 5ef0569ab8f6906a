package geo

import (
	"math"
	"testing"
)

func TestBoundsOf(t *testing.T) {
	if _, ok := BoundsOf(nil); ok {
		t.Error("empty slice should give invalid bounds")
	}
	b, ok := BoundsOf([]LatLon{{41.9, -87.6}, {41.8, -87.7}, {41.95, -87.65}})
	if !ok {
		t.Fatal("bounds should be valid")
	}
	want := Bounds{South: 41.8, West: -87.7, North: 41.95, East: -87.6}
	if b != want {
		t.Errorf("got %+v, want %+v", b, want)
	}
	single, ok := BoundsOf([]LatLon{{1, 2}})
	if !ok || single.South != single.North || single.West != single.East {
		t.Errorf("single point bounds = %+v, %v", single, ok)
	}
}

func TestHaversine(t *testing.T) {
	if d := Haversine(41.9, -87.6, 41.9, -87.6); d != 0 {
		t.Errorf("same point = %v, want 0", d)
	}
	// One degree of latitude is about 111.2 km.
	d := Haversine(0, 0, 1, 0)
	if math.Abs(d-111195) > 50 {
		t.Errorf("one degree = %v m, want ~111195", d)
	}
}

func TestPathLength(t *testing.T) {
	pts := []LatLon{{0, 0}, {1, 0}, {2, 0}}
	cum := CumDistances(pts)
	if len(cum) != 3 || cum[0] != 0 || cum[2] <= cum[1] {
		t.Fatalf("cum = %v", cum)
	}
	if got := PathLength(pts); got != cum[2] {
		t.Errorf("PathLength = %v, want %v", got, cum[2])
	}
	if PathLength(nil) != 0 {
		t.Error("empty path should have zero length")
	}
}

func TestValidCoord(t *testing.T) {
	tests := []struct {
		lat, lon float64
		want     bool
	}{
		{41.9, -87.6, true},
		{90, 180, true},
		{91, 0, false},
		{0, -181, false},
		{math.NaN(), 0, false},
		{0, math.Inf(1), false},
	}
	for _, tt := range tests {
		if got := ValidCoord(tt.lat, tt.lon); got != tt.want {
			t.Errorf("ValidCoord(%v, %v) = %v, want %v", tt.lat, tt.lon, got, tt.want)
		}
	}
}
