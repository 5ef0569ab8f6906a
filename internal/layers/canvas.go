package layers

import "transit-tracker/internal/geo"

// Kind names one of a route's three sub-layers.
type Kind string

const (
	KindVehicles Kind = "vehicles"
	KindStops    Kind = "stops"
	KindPaths    Kind = "paths"
)

type VehicleMarker struct {
	RouteID     string  `json:"routeId"`
	VehicleID   string  `json:"vehicleId"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Heading     float64 `json:"heading"`
	Cardinal    string  `json:"cardinal"`
	Delayed     bool    `json:"delayed"`
	Destination string  `json:"destination"`
	Color       string  `json:"color"`
}

type StopMarker struct {
	RouteID   string  `json:"routeId"`
	StopID    string  `json:"stopId"`
	Name      string  `json:"name"`
	Direction string  `json:"direction"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Color     string  `json:"color"`
}

type PathSegment struct {
	RouteID      string       `json:"routeId"`
	PatternKey   string       `json:"pattern"`
	Label        string       `json:"label"`
	Color        string       `json:"color"`
	Points       []geo.LatLon `json:"points"`
	LengthMeters float64      `json:"lengthMeters"`
}

// Canvas is the rendering side of the map. Implementations draw, erase and
// attach what the layer table tells them to; they never call back into it.
type Canvas interface {
	RenderVehicle(m VehicleMarker)
	RemoveVehicle(routeID, vehicleID string)
	RenderStop(m StopMarker)
	RemoveStop(routeID, stopID string)
	RenderPath(p PathSegment)
	RemovePath(routeID, patternKey string)
	SetLayerAttached(routeID string, kind Kind, attached bool)
	FitBounds(b geo.Bounds)
	Focus(p geo.LatLon, zoom int)
}

// Multi fans every call out to each canvas in order.
type Multi []Canvas

func (m Multi) RenderVehicle(v VehicleMarker) {
	for _, c := range m {
		c.RenderVehicle(v)
	}
}

func (m Multi) RemoveVehicle(routeID, vehicleID string) {
	for _, c := range m {
		c.RemoveVehicle(routeID, vehicleID)
	}
}

func (m Multi) RenderStop(s StopMarker) {
	for _, c := range m {
		c.RenderStop(s)
	}
}

func (m Multi) RemoveStop(routeID, stopID string) {
	for _, c := range m {
		c.RemoveStop(routeID, stopID)
	}
}

func (m Multi) RenderPath(p PathSegment) {
	for _, c := range m {
		c.RenderPath(p)
	}
}

func (m Multi) RemovePath(routeID, patternKey string) {
	for _, c := range m {
		c.RemovePath(routeID, patternKey)
	}
}

func (m Multi) SetLayerAttached(routeID string, kind Kind, attached bool) {
	for _, c := range m {
		c.SetLayerAttached(routeID, kind, attached)
	}
}

func (m Multi) FitBounds(b geo.Bounds) {
	for _, c := range m {
		c.FitBounds(b)
	}
}

func (m Multi) Focus(p geo.LatLon, zoom int) {
	for _, c := range m {
		c.Focus(p, zoom)
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) RenderVehicle(VehicleMarker)         {}
func (Nop) RemoveVehicle(string, string)        {}
func (Nop) RenderStop(StopMarker)               {}
func (Nop) RemoveStop(string, string)           {}
func (Nop) RenderPath(PathSegment)              {}
func (Nop) RemovePath(string, string)           {}
func (Nop) SetLayerAttached(string, Kind, bool) {}
func (Nop) FitBounds(geo.Bounds)                {}
func (Nop) Focus(geo.LatLon, int)               {}
