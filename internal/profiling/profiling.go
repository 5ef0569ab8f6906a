package profiling

import (
	"log/slog"

	"github.com/grafana/pyroscope-go"

	"transit-tracker/internal/config"
)

// Init starts continuous profiling when enabled. The returned func stops it.
func Init(cfg config.Profiling, version string) (func(), error) {
	if !cfg.Enabled {
		slog.Debug("Pyroscope profiling is disabled")
		return func() {}, nil
	}

	pc := pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Logger:          pyroscope.StandardLogger,
		Tags: map[string]string{
			"service": "transit-tracker",
			"version": version,
		},
	}
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPassword != "" {
		pc.BasicAuthUser = cfg.BasicAuthUser
		pc.BasicAuthPassword = cfg.BasicAuthPassword
	}

	profiler, err := pyroscope.Start(pc)
	if err != nil {
		slog.Warn("Failed to start Pyroscope profiler", "error", err)
		return func() {}, nil
	}
	slog.Debug("Pyroscope profiling started", "server", cfg.ServerAddress, "application", cfg.ApplicationName)

	return func() {
		if err := profiler.Stop(); err != nil {
			slog.Error("Error stopping Pyroscope profiler", "error", err)
		}
	}, nil
}
