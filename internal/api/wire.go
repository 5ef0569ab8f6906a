package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"transit-tracker/internal/transit"
)

// PredictionTimeLayout is the upstream arrival timestamp format.
const PredictionTimeLayout = "20060102 15:04"

// flexFloat decodes a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// flexString decodes a JSON string or number as text.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(b)
	return nil
}

// flexBool decodes true/false or their string forms.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(b)), `"`)) {
	case "true", "1", "t", "y", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

type routeJSON struct {
	ID   flexString `json:"rt"`
	Name string     `json:"rtnm"`
}

type vehicleJSON struct {
	VehicleID   flexString `json:"vid"`
	RouteID     flexString `json:"rt"`
	Lat         flexFloat  `json:"lat"`
	Lon         flexFloat  `json:"lon"`
	Heading     flexFloat  `json:"hdg"`
	Delayed     flexBool   `json:"dly"`
	Destination string     `json:"des"`
}

func (v vehicleJSON) vehicle() transit.Vehicle {
	return transit.Vehicle{
		RouteID:     string(v.RouteID),
		VehicleID:   string(v.VehicleID),
		Lat:         float64(v.Lat),
		Lon:         float64(v.Lon),
		Heading:     float64(v.Heading),
		Delayed:     bool(v.Delayed),
		Destination: v.Destination,
	}
}

type stopJSON struct {
	StopID flexString `json:"stpid"`
	Name   string     `json:"stpnm"`
	Lat    flexFloat  `json:"lat"`
	Lon    flexFloat  `json:"lon"`
}

type routeDetailsJSON struct {
	RouteID    flexString            `json:"route_id"`
	Directions map[string][]stopJSON `json:"directions"`
}

func (d routeDetailsJSON) details(routeID string) transit.RouteDetails {
	out := transit.RouteDetails{RouteID: routeID, Directions: make(map[string][]transit.Stop, len(d.Directions))}
	for dir, stops := range d.Directions {
		list := make([]transit.Stop, 0, len(stops))
		for _, s := range stops {
			list = append(list, transit.Stop{
				RouteID:   routeID,
				StopID:    string(s.StopID),
				Name:      s.Name,
				Lat:       float64(s.Lat),
				Lon:       float64(s.Lon),
				Direction: dir,
			})
		}
		out.Directions[dir] = list
	}
	return out
}

type predictionJSON struct {
	VehicleID   flexString `json:"vid"`
	Destination string     `json:"des"`
	Delayed     flexBool   `json:"dly"`
	Time        string     `json:"prdtm"`
	Countdown   flexString `json:"prdctdn"`
}

// prediction converts the wire form. A countdown that is not a number
// ("DUE") means the bus is arriving.
func (p predictionJSON) prediction(loc *time.Location) transit.Prediction {
	out := transit.Prediction{
		VehicleID:   string(p.VehicleID),
		Destination: p.Destination,
		Delayed:     bool(p.Delayed),
	}
	if t, err := time.ParseInLocation(PredictionTimeLayout, strings.TrimSpace(p.Time), loc); err == nil {
		out.PredictedAt = t
	}
	if n, err := strconv.Atoi(strings.TrimSpace(string(p.Countdown))); err == nil && n > 0 {
		out.Minutes = n
	}
	return out
}

type errorJSON struct {
	Error string `json:"error"`
}
