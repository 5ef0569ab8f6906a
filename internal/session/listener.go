package session

import "transit-tracker/internal/transit"

// StopSelection identifies the stop whose arrivals are shown.
type StopSelection struct {
	RouteID string `json:"routeId"`
	StopID  string `json:"stopId"`
	Name    string `json:"name"`
}

// Listener receives selection and data notifications for UI panels. Calls
// are made with the session lock held, in order; implementations must not
// call back into the session.
type Listener interface {
	ActiveRoutesChanged(routeIDs []string)
	// RouteSelected reports the new selection; routeID is empty when cleared.
	RouteSelected(routeID, name string)
	VehiclesUpdated(routeID string, vehicles []transit.Vehicle)
	StopShown(stop StopSelection)
	PredictionsUpdated(stop StopSelection, predictions []transit.Prediction)
	StopHidden()
}

type nopListener struct{}

func (nopListener) ActiveRoutesChanged([]string)                           {}
func (nopListener) RouteSelected(string, string)                           {}
func (nopListener) VehiclesUpdated(string, []transit.Vehicle)              {}
func (nopListener) StopShown(StopSelection)                                {}
func (nopListener) PredictionsUpdated(StopSelection, []transit.Prediction) {}
func (nopListener) StopHidden()                                            {}

// Listeners fans notifications out in order.
type Listeners []Listener

func (ls Listeners) ActiveRoutesChanged(ids []string) {
	for _, l := range ls {
		l.ActiveRoutesChanged(ids)
	}
}

func (ls Listeners) RouteSelected(routeID, name string) {
	for _, l := range ls {
		l.RouteSelected(routeID, name)
	}
}

func (ls Listeners) VehiclesUpdated(routeID string, vs []transit.Vehicle) {
	for _, l := range ls {
		l.VehiclesUpdated(routeID, vs)
	}
}

func (ls Listeners) StopShown(s StopSelection) {
	for _, l := range ls {
		l.StopShown(s)
	}
}

func (ls Listeners) PredictionsUpdated(s StopSelection, ps []transit.Prediction) {
	for _, l := range ls {
		l.PredictionsUpdated(s, ps)
	}
}

func (ls Listeners) StopHidden() {
	for _, l := range ls {
		l.StopHidden()
	}
}
