package transit

import (
	"fmt"
	"math"
	"time"
)

// PatternRoute is the pattern key used when a route's geometry is one path.
const PatternRoute = "route"

type Route struct {
	ID   string
	Name string
}

type Vehicle struct {
	RouteID     string
	VehicleID   string // unique within a route only
	Lat         float64
	Lon         float64
	Heading     float64 // degrees, 0 = north
	Delayed     bool
	Destination string
}

type Stop struct {
	RouteID   string
	StopID    string
	Name      string
	Lat       float64
	Lon       float64
	Direction string
}

// RouteDetails groups a route's stops by direction name.
type RouteDetails struct {
	RouteID    string
	Directions map[string][]Stop
}

type Prediction struct {
	VehicleID   string
	Destination string
	Delayed     bool
	PredictedAt time.Time
	Minutes     int // minutes until arrival; 0 when due
}

// ArrivalText renders the countdown the way the arrivals panel shows it.
func (p Prediction) ArrivalText() string {
	switch {
	case p.Minutes <= 0:
		return "Arriving now"
	case p.Minutes == 1:
		return "1 minute"
	default:
		return fmt.Sprintf("%d minutes", p.Minutes)
	}
}

type ShapePoint struct {
	Lat      float64
	Lon      float64
	Sequence int
	Pattern  string
}

// Patterns maps a pattern key to its points in draw order.
type Patterns map[string][]ShapePoint

var cardinals = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Cardinal converts a heading in degrees to one of eight compass points.
func Cardinal(heading float64) string {
	idx := int(math.Round(heading/45)) % 8
	if idx < 0 {
		idx += 8
	}
	return cardinals[idx]
}
