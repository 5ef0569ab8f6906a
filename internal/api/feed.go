package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/protobuf/proto"

	"transit-tracker/internal/transit"
)

// FeedVehicles reads vehicles from a GTFS-realtime VehiclePositions feed.
type FeedVehicles struct {
	client *Client
	url    string
}

func NewFeedVehicles(feedURL string, timeout time.Duration) *FeedVehicles {
	return &FeedVehicles{
		client: &Client{
			httpClient: &http.Client{
				Transport: otelhttp.NewTransport(http.DefaultTransport),
				Timeout:   timeout,
			},
			tracer: otel.Tracer("tracker-gtfsrt"),
		},
		url: feedURL,
	}
}

// Vehicles returns the feed's vehicles on the requested routes. Entities
// without a position or route are skipped.
func (f *FeedVehicles) Vehicles(ctx context.Context, routeIDs []string) ([]transit.Vehicle, error) {
	body, _, err := f.client.get(ctx, "gtfsrt.vehicle_positions", f.url,
		attribute.String("routes", strings.Join(routeIDs, ",")))
	if err != nil {
		return nil, fmt.Errorf("fetch vehicle feed: %w", err)
	}
	var msg gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("decode vehicle feed: %w", err)
	}
	return vehiclesFromFeed(&msg, routeIDs), nil
}

func vehiclesFromFeed(msg *gtfsrtpb.FeedMessage, routeIDs []string) []transit.Vehicle {
	want := make(map[string]bool, len(routeIDs))
	for _, id := range routeIDs {
		want[id] = true
	}
	var out []transit.Vehicle
	for _, e := range msg.GetEntity() {
		vp := e.GetVehicle()
		if vp == nil || vp.GetPosition() == nil {
			continue
		}
		routeID := vp.GetTrip().GetRouteId()
		if !want[routeID] {
			continue
		}
		desc := vp.GetVehicle()
		id := desc.GetId()
		if id == "" {
			id = desc.GetLabel()
		}
		if id == "" {
			id = e.GetId()
		}
		pos := vp.GetPosition()
		out = append(out, transit.Vehicle{
			RouteID:     routeID,
			VehicleID:   id,
			Lat:         float64(pos.GetLatitude()),
			Lon:         float64(pos.GetLongitude()),
			Heading:     float64(pos.GetBearing()),
			Destination: desc.GetLabel(),
		})
	}
	return out
}
