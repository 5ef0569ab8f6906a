package geo

import "math"

const earthRadiusM = 6371000.0

type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds is an axis-aligned lat/lon box.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Valid reports whether the box was extended by at least one point.
func (b Bounds) Valid() bool {
	return b.South <= b.North && b.West <= b.East
}

// Extend grows the box to include p. The zero Bounds is not empty, so start
// from EmptyBounds.
func (b Bounds) Extend(p LatLon) Bounds {
	b.South = math.Min(b.South, p.Lat)
	b.North = math.Max(b.North, p.Lat)
	b.West = math.Min(b.West, p.Lon)
	b.East = math.Max(b.East, p.Lon)
	return b
}

func EmptyBounds() Bounds {
	return Bounds{South: math.Inf(1), West: math.Inf(1), North: math.Inf(-1), East: math.Inf(-1)}
}

// BoundsOf returns the bounding box of pts; ok is false for an empty slice.
func BoundsOf(pts []LatLon) (Bounds, bool) {
	b := EmptyBounds()
	for _, p := range pts {
		b = b.Extend(p)
	}
	return b, b.Valid()
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// CumDistances returns the running distance along pts, starting at 0.
func CumDistances(pts []LatLon) []float64 {
	n := len(pts)
	if n == 0 {
		return nil
	}
	cum := make([]float64, n)
	sum := 0.0
	for i := 1; i < n; i++ {
		sum += Haversine(pts[i-1].Lat, pts[i-1].Lon, pts[i].Lat, pts[i].Lon)
		cum[i] = sum
	}
	return cum
}

// PathLength is the total polyline length in meters.
func PathLength(pts []LatLon) float64 {
	cum := CumDistances(pts)
	if len(cum) == 0 {
		return 0
	}
	return cum[len(cum)-1]
}

// ValidCoord rejects out-of-range and non-finite coordinates.
func ValidCoord(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
