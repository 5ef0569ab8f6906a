package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"transit-tracker/internal/mapsync"
	"transit-tracker/internal/session"
)

// Server accepts renderer connections on /ws and turns their commands into
// session operations.
type Server struct {
	ctx      context.Context
	hub      *Hub
	sess     *session.Session
	engine   *mapsync.Engine
	init     InitData
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer binds renderer commands to sess. Commands run under ctx rather
// than the connection so that loads finish after a renderer leaves.
func NewServer(ctx context.Context, hub *Hub, sess *session.Session, engine *mapsync.Engine, init InitData, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ctx:    ctx,
		hub:    hub,
		sess:   sess,
		engine: engine,
		init:   init,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With("component", "ws"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	return mux
}

// Serve starts an HTTP server for renderers on addr.
func (s *Server) Serve(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("renderer server error", "error", err)
		}
	}()
	s.logger.Info("renderer endpoint listening", "addr", addr)
	return srv
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := newClient(conn)
	go c.writePump()
	s.logger.Info("renderer connected", "remote", r.RemoteAddr)

	s.welcome(c)
	s.readLoop(c)

	s.hub.remove(c)
	s.logger.Info("renderer disconnected", "remote", r.RemoteAddr)
}

// welcome sends the viewport, the current map layers and the panel state to
// a new renderer. Registration happens inside the engine replay so that no
// layer change is lost or duplicated.
func (s *Server) welcome(c *client) {
	init := s.init
	init.Zoom = s.engine.Zoom()
	init.AutoRefresh = s.sess.AutoRefresh()
	s.hub.send(c, Message{Type: TypeInit, Data: init})

	own := emitter(func(m Message) { s.hub.send(c, m) })
	s.engine.Replay(own, func() { s.hub.add(c) })

	own.ActiveRoutesChanged(s.sess.ActiveRoutes())
	if id := s.sess.SelectedRoute(); id != "" {
		own.RouteSelected(id, s.sess.RouteName(id))
	}
	if stop := s.sess.SelectedStop(); stop != nil {
		own.StopShown(*stop)
	}
}

func (s *Server) readLoop(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("renderer read failed", "error", err)
			}
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.hub.send(c, Message{Type: TypeError, Data: errorData{Message: "invalid command: " + err.Error()}})
			continue
		}
		if reply, ok := s.Dispatch(cmd); ok {
			s.hub.send(c, reply)
		}
	}
}

// Dispatch runs one renderer command. Results reach renderers through the
// hub; the returned message, if any, is for the sender only.
func (s *Server) Dispatch(cmd Command) (Message, bool) {
	ctx := s.ctx
	routeID := strings.TrimSpace(cmd.RouteID)
	switch cmd.Type {
	case "addRoute":
		s.sess.AddRoute(ctx, routeID)
	case "removeRoute":
		s.sess.RemoveRoute(ctx, routeID)
	case "selectRoute":
		s.sess.SelectRoute(ctx, routeID)
	case "pathClicked":
		if s.sess.IsActive(routeID) {
			s.sess.SelectRoute(ctx, routeID)
		}
	case "showStop", "stopClicked":
		if cmd.StopID == "" {
			return errorMessage(cmd, "stopId is required"), true
		}
		s.sess.ShowStop(ctx, cmd.StopID, routeID, cmd.Name)
	case "hideStop":
		s.sess.HideStop()
	case "toggleAutoRefresh":
		enabled := !s.sess.AutoRefresh()
		if cmd.Enabled != nil {
			enabled = *cmd.Enabled
		}
		s.sess.ToggleAutoRefresh(enabled)
	case "refresh":
		s.sess.RefreshAll(ctx)
	case "zoom":
		if cmd.Zoom == nil {
			return errorMessage(cmd, "zoom is required"), true
		}
		s.engine.SetZoom(*cmd.Zoom)
	case "focusVehicle":
		if !s.engine.FocusVehicle(routeID, cmd.VehicleID) {
			return errorMessage(cmd, "vehicle not on map"), true
		}
	case "catalog":
		groups, err := s.sess.Catalog(ctx)
		if err != nil {
			return errorMessage(cmd, err.Error()), true
		}
		return Message{Type: TypeCatalog, Data: groups}, true
	default:
		return errorMessage(cmd, "unknown command"), true
	}
	return Message{}, false
}

func errorMessage(cmd Command, msg string) Message {
	return Message{Type: TypeError, Data: errorData{Command: cmd.Type, Message: msg}}
}
