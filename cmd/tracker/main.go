package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"transit-tracker/internal/api"
	"transit-tracker/internal/config"
	"transit-tracker/internal/db"
	"transit-tracker/internal/geo"
	"transit-tracker/internal/layers"
	"transit-tracker/internal/logging"
	"transit-tracker/internal/mapsync"
	"transit-tracker/internal/metrics"
	"transit-tracker/internal/palette"
	"transit-tracker/internal/profiling"
	"transit-tracker/internal/publisher"
	"transit-tracker/internal/session"
	"transit-tracker/internal/tracing"
	"transit-tracker/internal/ws"
)

var version = "dev"

// shapesDBCheckInterval is how often a city's newest GTFS import is re-resolved.
const shapesDBCheckInterval = 30 * time.Minute

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.Init(cfg.LogLevel, cfg.LogFormat)

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.OTLPEndpoint, version)
	if err != nil {
		log.Fatalf("tracing error: %v", err)
	}
	defer shutdownTracing()

	stopProfiling, err := profiling.Init(cfg.Profiling, version)
	if err != nil {
		log.Fatalf("profiling error: %v", err)
	}
	defer stopProfiling()

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.RefreshInterval, cfg.Style.StopsVisibleZoom)
		srv := mcol.Serve(cfg.MetricsAddr)
		defer shutdownServer(srv)
	}

	// Upstream services
	opts := []api.Option{api.WithTimeout(cfg.HTTPTimeout), api.WithLocation(cfg.Location)}
	if cfg.VehicleFeedURL != "" {
		opts = append(opts, api.WithVehicleSource(api.NewFeedVehicles(cfg.VehicleFeedURL, cfg.HTTPTimeout)))
		logger.Info("vehicle positions from GTFS-realtime feed", "url", cfg.VehicleFeedURL)
	}
	if cfg.ShapesDatabaseURL != "" {
		store, dbName, err := openShapeStore(ctx, cfg)
		if err != nil {
			log.Fatalf("shapes db error: %v", err)
		}
		defer func() { store.DB().Close() }()
		opts = append(opts, api.WithShapeSource(store))
		if cfg.ShapesCity != "" {
			go watchShapesDB(ctx, store, cfg, dbName)
		}
	}
	client := api.NewClient(cfg.APIBaseURL, cfg.ShapesURL, opts...)

	// Renderers: websocket clients, plus NATS subscribers when configured
	hub := ws.NewHub(mcol, logger)
	canvases := layers.Multi{hub.Canvas()}
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSCanvas(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer pub.Close()
		canvases = append(canvases, pub)
	}

	style := cfg.Style
	engine := mapsync.New(canvases, palette.New(style.Palette, style.Pinned), mapsync.Options{
		StopsVisibleZoom: style.StopsVisibleZoom,
		InitialZoom:      style.InitialZoom,
		Logger:           logger,
		Metrics:          mcol,
	})
	sess := session.New(client, engine, session.Options{
		RefreshInterval: cfg.RefreshInterval,
		AutoRefresh:     cfg.AutoRefresh,
		Logger:          logger,
		Metrics:         mcol,
		Listener:        hub.Listener(),
	})

	wsSrv := ws.NewServer(ctx, hub, sess, engine, ws.InitData{
		Center:           geo.LatLon{Lat: style.CenterLat, Lon: style.CenterLon},
		Zoom:             style.InitialZoom,
		StopsVisibleZoom: style.StopsVisibleZoom,
	}, logger)
	httpSrv := wsSrv.Serve(cfg.ListenAddr)

	// Warm the route catalog so names are known before the first selection
	if groups, err := sess.Catalog(ctx); err != nil {
		logger.Warn("route catalog unavailable", "error", err)
	} else {
		logger.Info("route catalog loaded", "active", len(groups[0].Routes), "inactive", len(groups[1].Routes))
	}
	sess.Start(ctx, style.DefaultRoutes)
	logger.Info("tracker started", "version", version, "routes", sess.ActiveRoutes(), "auto_refresh", cfg.AutoRefresh)

	// Block until context cancelled
	<-ctx.Done()
	sess.Close()
	shutdownServer(httpSrv)
	hub.CloseAll()
	engine.ClearAll()
	logger.Info("shutdown complete")
}

func shutdownServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// openShapeStore connects to the shapes database, resolving the newest
// import first when a city is configured.
func openShapeStore(ctx context.Context, cfg *config.Config) (*db.ShapeStore, string, error) {
	dsn, name := cfg.ShapesDatabaseURL, ""
	if cfg.ShapesCity != "" {
		var err error
		if name, dsn, err = db.ResolveCityDSN(ctx, cfg.ShapesDatabaseURL, cfg.ShapesCity); err != nil {
			return nil, "", err
		}
		slog.Info("using shapes database", "db", name, "city", cfg.ShapesCity)
	}
	conn, err := db.Connect(ctx, dsn)
	if err != nil {
		return nil, "", err
	}
	return db.NewShapeStore(conn), name, nil
}

// watchShapesDB switches the shape store to a city's newer import when one
// appears, or re-resolves when the current database stops answering.
func watchShapesDB(ctx context.Context, store *db.ShapeStore, cfg *config.Config, current string) {
	ticker := time.NewTicker(shapesDBCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		needSwitch := false
		if err := db.Ping(ctx, store.DB()); err != nil {
			slog.Warn("shapes db ping failed, re-resolving", "error", err)
			needSwitch = true
		}
		name, dsn, err := db.ResolveCityDSN(ctx, cfg.ShapesDatabaseURL, cfg.ShapesCity)
		if err != nil {
			slog.Warn("resolve latest import failed", "city", cfg.ShapesCity, "error", err)
			continue
		}
		if name != current {
			slog.Info("newer shapes import found", "city", cfg.ShapesCity, "from", current, "to", name)
			needSwitch = true
		}
		if !needSwitch {
			continue
		}

		conn, err := db.Connect(ctx, dsn)
		if err != nil {
			slog.Warn("connect to shapes import failed", "db", db.Redact(dsn), "error", err)
			continue
		}
		store.Swap(conn).Close()
		current = name
		slog.Info("switched shapes database", "db", current)
	}
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.CanvasPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.CanvasPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
