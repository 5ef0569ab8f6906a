package publisher

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"transit-tracker/internal/geo"
	"transit-tracker/internal/layers"
)

// Ops carried in CanvasMessage.Op.
const (
	OpRender = "render"
	OpRemove = "remove"
	OpAttach = "attach"
	OpDetach = "detach"
	OpFit    = "fit"
	OpFocus  = "focus"
)

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// publishConn is the part of *nats.Conn the canvas needs.
type publishConn interface {
	Publish(subject string, data []byte) error
}

// NATSCanvas mirrors every canvas operation onto NATS so that external map
// clients can follow the tracker. Route operations go to
// <prefix>.<route>.<layer>; viewport operations go to <prefix>.viewport.
type NATSCanvas struct {
	nc          *nats.Conn
	conn        publishConn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
	now         func() time.Time
}

// CanvasMessage is the JSON payload of every published operation.
type CanvasMessage struct {
	Op        string                `json:"op"`
	RouteID   string                `json:"routeId,omitempty"`
	Layer     layers.Kind           `json:"layer,omitempty"`
	ID        string                `json:"id,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
	Vehicle   *layers.VehicleMarker `json:"vehicle,omitempty"`
	Stop      *layers.StopMarker    `json:"stop,omitempty"`
	Path      *layers.PathSegment   `json:"path,omitempty"`
	Bounds    *geo.Bounds           `json:"bounds,omitempty"`
	Center    *geo.LatLon           `json:"center,omitempty"`
	Zoom      int                   `json:"zoom,omitempty"`
}

func NewNATSCanvas(url, prefix string, logSubjects bool, m PublisherMetrics) (*NATSCanvas, error) {
	nc, err := nats.Connect(url,
		nats.Name("transit-tracker"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			slog.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	c := newCanvas(nc, prefix, logSubjects, m)
	c.nc = nc
	return c, nil
}

func newCanvas(conn publishConn, prefix string, logSubjects bool, m PublisherMetrics) *NATSCanvas {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "tracker"
	}
	return &NATSCanvas{conn: conn, prefix: prefix, logSubjects: logSubjects, metrics: m, now: time.Now}
}

func (p *NATSCanvas) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

func (p *NATSCanvas) RenderVehicle(m layers.VehicleMarker) {
	p.publish(p.routeSubject(m.RouteID, layers.KindVehicles), CanvasMessage{
		Op: OpRender, RouteID: m.RouteID, Layer: layers.KindVehicles, ID: m.VehicleID, Vehicle: &m,
	})
}

func (p *NATSCanvas) RemoveVehicle(routeID, vehicleID string) {
	p.publish(p.routeSubject(routeID, layers.KindVehicles), CanvasMessage{
		Op: OpRemove, RouteID: routeID, Layer: layers.KindVehicles, ID: vehicleID,
	})
}

func (p *NATSCanvas) RenderStop(m layers.StopMarker) {
	p.publish(p.routeSubject(m.RouteID, layers.KindStops), CanvasMessage{
		Op: OpRender, RouteID: m.RouteID, Layer: layers.KindStops, ID: m.StopID, Stop: &m,
	})
}

func (p *NATSCanvas) RemoveStop(routeID, stopID string) {
	p.publish(p.routeSubject(routeID, layers.KindStops), CanvasMessage{
		Op: OpRemove, RouteID: routeID, Layer: layers.KindStops, ID: stopID,
	})
}

func (p *NATSCanvas) RenderPath(s layers.PathSegment) {
	p.publish(p.routeSubject(s.RouteID, layers.KindPaths), CanvasMessage{
		Op: OpRender, RouteID: s.RouteID, Layer: layers.KindPaths, ID: s.PatternKey, Path: &s,
	})
}

func (p *NATSCanvas) RemovePath(routeID, patternKey string) {
	p.publish(p.routeSubject(routeID, layers.KindPaths), CanvasMessage{
		Op: OpRemove, RouteID: routeID, Layer: layers.KindPaths, ID: patternKey,
	})
}

func (p *NATSCanvas) SetLayerAttached(routeID string, kind layers.Kind, attached bool) {
	op := OpDetach
	if attached {
		op = OpAttach
	}
	p.publish(p.routeSubject(routeID, "layers"), CanvasMessage{Op: op, RouteID: routeID, Layer: kind})
}

func (p *NATSCanvas) FitBounds(b geo.Bounds) {
	p.publish(p.viewportSubject(), CanvasMessage{Op: OpFit, Bounds: &b})
}

func (p *NATSCanvas) Focus(at geo.LatLon, zoom int) {
	p.publish(p.viewportSubject(), CanvasMessage{Op: OpFocus, Center: &at, Zoom: zoom})
}

func (p *NATSCanvas) routeSubject(routeID string, layer layers.Kind) string {
	return p.prefix + "." + subjectToken(routeID) + "." + string(layer)
}

func (p *NATSCanvas) viewportSubject() string {
	return p.prefix + ".viewport"
}

// publish never fails the caller; canvas operations are fire and forget and
// errors surface through logs and metrics.
func (p *NATSCanvas) publish(subject string, msg CanvasMessage) {
	msg.Timestamp = p.now().UTC()
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("encode canvas message", "subject", subject, "error", err)
		return
	}
	if p.logSubjects {
		slog.Debug("nats publish", "subject", subject, "op", msg.Op)
	}
	start := time.Now()
	err = p.conn.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	if err != nil {
		slog.Warn("nats publish failed", "subject", subject, "error", err)
	}
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
