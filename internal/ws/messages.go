package ws

import (
	"time"

	"transit-tracker/internal/geo"
	"transit-tracker/internal/layers"
	"transit-tracker/internal/session"
	"transit-tracker/internal/transit"
)

// Outbound message types.
const (
	TypeInit           = "init"
	TypeVehicle        = "vehicle"
	TypeVehicleRemoved = "vehicleRemoved"
	TypeStop           = "stop"
	TypeStopRemoved    = "stopRemoved"
	TypePath           = "path"
	TypePathRemoved    = "pathRemoved"
	TypeLayer          = "layer"
	TypeFitBounds      = "fitBounds"
	TypeFocus          = "focus"
	TypeActiveRoutes   = "activeRoutes"
	TypeRouteSelected  = "routeSelected"
	TypeVehicles       = "vehicles"
	TypeStopShown      = "stopShown"
	TypePredictions    = "predictions"
	TypeStopHidden     = "stopHidden"
	TypeCatalog        = "catalog"
	TypeError          = "error"
)

// Message is the envelope of everything sent to a renderer.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Command is a renderer request. Fields are used per type.
type Command struct {
	Type      string `json:"type"`
	RouteID   string `json:"routeId,omitempty"`
	StopID    string `json:"stopId,omitempty"`
	Name      string `json:"name,omitempty"`
	VehicleID string `json:"vehicleId,omitempty"`
	Enabled   *bool  `json:"enabled,omitempty"`
	Zoom      *int   `json:"zoom,omitempty"`
}

type InitData struct {
	Center           geo.LatLon `json:"center"`
	Zoom             int        `json:"zoom"`
	StopsVisibleZoom int        `json:"stopsVisibleZoom"`
	AutoRefresh      bool       `json:"autoRefresh"`
}

type removedData struct {
	RouteID string `json:"routeId"`
	ID      string `json:"id"`
}

type layerData struct {
	RouteID  string      `json:"routeId"`
	Layer    layers.Kind `json:"layer"`
	Attached bool        `json:"attached"`
}

type focusData struct {
	Center geo.LatLon `json:"center"`
	Zoom   int        `json:"zoom"`
}

type activeRoutesData struct {
	Routes []string `json:"routes"`
}

type routeSelectedData struct {
	RouteID string `json:"routeId"`
	Name    string `json:"name"`
}

type vehicleView struct {
	ID          string  `json:"id"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Heading     float64 `json:"heading"`
	Cardinal    string  `json:"cardinal"`
	Delayed     bool    `json:"delayed"`
	Destination string  `json:"destination"`
}

type vehiclesData struct {
	RouteID  string        `json:"routeId"`
	Vehicles []vehicleView `json:"vehicles"`
}

type predictionView struct {
	VehicleID   string    `json:"vehicleId"`
	Destination string    `json:"destination"`
	Delayed     bool      `json:"delayed"`
	PredictedAt time.Time `json:"predictedAt"`
	Minutes     int       `json:"minutes"`
	Arrival     string    `json:"arrival"`
}

type predictionsData struct {
	Stop        session.StopSelection `json:"stop"`
	Predictions []predictionView      `json:"predictions"`
}

type errorData struct {
	Command string `json:"command,omitempty"`
	Message string `json:"message"`
}

// emitter turns canvas operations and session notifications into messages.
type emitter func(Message)

func (e emitter) RenderVehicle(m layers.VehicleMarker) { e(Message{Type: TypeVehicle, Data: m}) }

func (e emitter) RemoveVehicle(routeID, vehicleID string) {
	e(Message{Type: TypeVehicleRemoved, Data: removedData{routeID, vehicleID}})
}

func (e emitter) RenderStop(m layers.StopMarker) { e(Message{Type: TypeStop, Data: m}) }

func (e emitter) RemoveStop(routeID, stopID string) {
	e(Message{Type: TypeStopRemoved, Data: removedData{routeID, stopID}})
}

func (e emitter) RenderPath(p layers.PathSegment) { e(Message{Type: TypePath, Data: p}) }

func (e emitter) RemovePath(routeID, patternKey string) {
	e(Message{Type: TypePathRemoved, Data: removedData{routeID, patternKey}})
}

func (e emitter) SetLayerAttached(routeID string, kind layers.Kind, attached bool) {
	e(Message{Type: TypeLayer, Data: layerData{routeID, kind, attached}})
}

func (e emitter) FitBounds(b geo.Bounds) { e(Message{Type: TypeFitBounds, Data: b}) }

func (e emitter) Focus(p geo.LatLon, zoom int) {
	e(Message{Type: TypeFocus, Data: focusData{p, zoom}})
}

func (e emitter) ActiveRoutesChanged(routeIDs []string) {
	if routeIDs == nil {
		routeIDs = []string{}
	}
	e(Message{Type: TypeActiveRoutes, Data: activeRoutesData{routeIDs}})
}

func (e emitter) RouteSelected(routeID, name string) {
	e(Message{Type: TypeRouteSelected, Data: routeSelectedData{routeID, name}})
}

func (e emitter) VehiclesUpdated(routeID string, vehicles []transit.Vehicle) {
	views := make([]vehicleView, 0, len(vehicles))
	for _, v := range vehicles {
		views = append(views, vehicleView{
			ID:          v.VehicleID,
			Lat:         v.Lat,
			Lon:         v.Lon,
			Heading:     v.Heading,
			Cardinal:    transit.Cardinal(v.Heading),
			Delayed:     v.Delayed,
			Destination: v.Destination,
		})
	}
	e(Message{Type: TypeVehicles, Data: vehiclesData{routeID, views}})
}

func (e emitter) StopShown(stop session.StopSelection) { e(Message{Type: TypeStopShown, Data: stop}) }

func (e emitter) PredictionsUpdated(stop session.StopSelection, predictions []transit.Prediction) {
	views := make([]predictionView, 0, len(predictions))
	for _, p := range predictions {
		views = append(views, predictionView{
			VehicleID:   p.VehicleID,
			Destination: p.Destination,
			Delayed:     p.Delayed,
			PredictedAt: p.PredictedAt,
			Minutes:     p.Minutes,
			Arrival:     p.ArrivalText(),
		})
	}
	e(Message{Type: TypePredictions, Data: predictionsData{stop, views}})
}

func (e emitter) StopHidden() { e(Message{Type: TypeStopHidden}) }
