// Package api talks to the bus tracker backend and the route shape feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"transit-tracker/internal/shape"
	"transit-tracker/internal/transit"
)

const userAgent = "transit-tracker/1.0"

// ShapeSource supplies raw route geometry.
type ShapeSource interface {
	RouteShape(ctx context.Context, routeID string) (any, error)
}

// VehicleSource supplies live vehicle positions.
type VehicleSource interface {
	Vehicles(ctx context.Context, routeIDs []string) ([]transit.Vehicle, error)
}

// Error is a non-2xx answer from an upstream service.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API request failed with status %d", e.Status)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	shapesURL  string
	loc        *time.Location
	tracer     trace.Tracer
	shapes     ShapeSource
	vehicles   VehicleSource
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLocation sets the zone arrival timestamps are read in.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) { c.loc = loc }
}

// WithShapeSource replaces the shape feed, e.g. with a GTFS database.
func WithShapeSource(s ShapeSource) Option {
	return func(c *Client) { c.shapes = s }
}

// WithVehicleSource replaces the backend's vehicle endpoint.
func WithVehicleSource(v VehicleSource) Option {
	return func(c *Client) { c.vehicles = v }
}

func NewClient(baseURL, shapesURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   15 * time.Second,
		},
		baseURL:   strings.TrimRight(baseURL, "/"),
		shapesURL: shapesURL,
		loc:       time.Local,
		tracer:    otel.Tracer("tracker-api"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Routes(ctx context.Context) ([]transit.Route, error) {
	var raw []routeJSON
	if err := c.getJSON(ctx, "api.routes", c.baseURL+"/routes", &raw); err != nil {
		return nil, err
	}
	out := make([]transit.Route, 0, len(raw))
	for _, r := range raw {
		out = append(out, transit.Route{ID: string(r.ID), Name: r.Name})
	}
	return out, nil
}

func (c *Client) Vehicles(ctx context.Context, routeIDs []string) ([]transit.Vehicle, error) {
	if len(routeIDs) == 0 {
		return nil, nil
	}
	if c.vehicles != nil {
		return c.vehicles.Vehicles(ctx, routeIDs)
	}
	q := url.Values{"routes": {strings.Join(routeIDs, ",")}}
	var raw []vehicleJSON
	if err := c.getJSON(ctx, "api.vehicles", c.baseURL+"/vehicles?"+q.Encode(), &raw); err != nil {
		return nil, err
	}
	out := make([]transit.Vehicle, 0, len(raw))
	for _, v := range raw {
		out = append(out, v.vehicle())
	}
	return out, nil
}

func (c *Client) RouteDetails(ctx context.Context, routeID string) (transit.RouteDetails, error) {
	var raw routeDetailsJSON
	if err := c.getJSON(ctx, "api.route_details", c.baseURL+"/route/"+url.PathEscape(routeID), &raw); err != nil {
		return transit.RouteDetails{}, err
	}
	return raw.details(routeID), nil
}

func (c *Client) Predictions(ctx context.Context, stopID, routeID string) ([]transit.Prediction, error) {
	q := url.Values{"stop": {stopID}, "route": {routeID}}
	var raw []predictionJSON
	if err := c.getJSON(ctx, "api.predictions", c.baseURL+"/predictions?"+q.Encode(), &raw); err != nil {
		return nil, err
	}
	out := make([]transit.Prediction, 0, len(raw))
	for _, p := range raw {
		out = append(out, p.prediction(c.loc))
	}
	return out, nil
}

// RouteShape fetches the route's geometry from the shape feed and decodes
// it without assuming a layout. A 404 means the route has no shape.
func (c *Client) RouteShape(ctx context.Context, routeID string) (any, error) {
	if c.shapes != nil {
		return c.shapes.RouteShape(ctx, routeID)
	}
	if c.shapesURL == "" {
		return nil, nil
	}
	u, err := url.Parse(c.shapesURL)
	if err != nil {
		return nil, fmt.Errorf("invalid shapes URL: %w", err)
	}
	q := u.Query()
	q.Set("route", routeID)
	u.RawQuery = q.Encode()

	body, contentType, err := c.get(ctx, "api.route_shape", u.String(), attribute.String("route_id", routeID))
	if IsStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch route shape: %w", err)
	}
	return shape.Decode(body, contentType)
}

func (c *Client) getJSON(ctx context.Context, span, rawURL string, out any) error {
	body, _, err := c.get(ctx, span, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", span, err)
	}
	return nil
}

// get performs a traced GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, spanName, rawURL string, attrs ...attribute.KeyValue) ([]byte, string, error) {
	ctx, span := c.tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.url", rawURL),
		attribute.String("http.method", http.MethodGet),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		span.RecordError(err)
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.String("http.response.content_type", contentType),
	)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		var e errorJSON
		if json.Unmarshal(body, &e) == nil {
			apiErr.Message = e.Error
		}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Error())
		return nil, "", apiErr
	}
	span.SetAttributes(attribute.Int("response.size_bytes", len(body)))
	return body, contentType, nil
}

// IsStatus reports whether err is an upstream answer with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}
