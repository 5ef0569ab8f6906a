package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL        string
	ShapesURL         string
	ShapesDatabaseURL string
	ShapesCity        string
	VehicleFeedURL    string
	HTTPTimeout       time.Duration
	RefreshInterval   time.Duration
	AutoRefresh       bool
	Style             Style
	ListenAddr        string
	NATSURL           string
	NATSSubjectPrefix string
	LogNATSSubjects   bool
	MetricsAddr       string
	Location          *time.Location
	LogLevel          string
	LogFormat         string
	OTLPEndpoint      string
	Profiling         Profiling
}

type Profiling struct {
	Enabled           bool
	ServerAddress     string
	ApplicationName   string
	BasicAuthUser     string
	BasicAuthPassword string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:        strings.TrimRight(getenvDefault("API_BASE_URL", "http://localhost:8080/api"), "/"),
		ShapesURL:         getenvDefault("SHAPES_URL", "https://data.cityofchicago.org/resource/6uva-a5ei.json"),
		VehicleFeedURL:    os.Getenv("VEHICLE_FEED_URL"),
		ListenAddr:        getenvDefault("LISTEN_ADDR", ":8090"),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: getenvDefault("NATS_SUBJECT_PREFIX", "tracker"),
		LogNATSSubjects:   isTrue(os.Getenv("LOG_NATS_SUBJECTS")),
		// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
		MetricsAddr:  os.Getenv("METRICS_ADDR"),
		LogLevel:     getenvDefault("LOG_LEVEL", "info"),
		LogFormat:    getenvDefault("LOG_FORMAT", "text"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Profiling: Profiling{
			Enabled:           isTrue(os.Getenv("PYROSCOPE_PROFILING_ENABLED")),
			ServerAddress:     getenvDefault("PYROSCOPE_SERVER_ADDRESS", "http://localhost:4040"),
			ApplicationName:   getenvDefault("PYROSCOPE_APPLICATION_NAME", "transit-tracker"),
			BasicAuthUser:     os.Getenv("PYROSCOPE_BASIC_AUTH_USER"),
			BasicAuthPassword: os.Getenv("PYROSCOPE_BASIC_AUTH_PASSWORD"),
		},
	}

	// Shapes from PostgreSQL: explicit DSN, or PG* vars when a city is named
	cfg.ShapesCity = firstNonEmpty(os.Getenv("SHAPES_CITY"), os.Getenv("CITY"))
	cfg.ShapesDatabaseURL = firstNonEmpty(os.Getenv("SHAPES_DATABASE_URL"), os.Getenv("DATABASE_URL"))
	if cfg.ShapesDatabaseURL == "" && cfg.ShapesCity != "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := getenvDefault("PGDATABASE", "postgres")
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			cfg.ShapesDatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			cfg.ShapesDatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	}

	var err error
	if cfg.RefreshInterval, err = millis("REFRESH_INTERVAL_MS", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = millis("HTTP_TIMEOUT_MS", 15*time.Second); err != nil {
		return nil, err
	}

	cfg.AutoRefresh = true
	if v := os.Getenv("AUTO_REFRESH"); v != "" {
		cfg.AutoRefresh = isTrue(v)
	}

	cfg.Style = DefaultStyle()
	if path := os.Getenv("MAP_STYLE_FILE"); path != "" {
		if cfg.Style, err = LoadStyle(path, cfg.Style); err != nil {
			return nil, err
		}
	}
	// env beats the style file
	if v := os.Getenv("STOPS_VISIBLE_ZOOM"); v != "" {
		if cfg.Style.StopsVisibleZoom, err = zoom("STOPS_VISIBLE_ZOOM", v); err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("INITIAL_ZOOM"); v != "" {
		if cfg.Style.InitialZoom, err = zoom("INITIAL_ZOOM", v); err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("DEFAULT_ROUTES"); v != "" {
		cfg.Style.DefaultRoutes = splitList(v)
	}

	// Time zone for upstream timestamps
	tzName := getenvDefault("TZ", "")
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

func millis(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func zoom(key, v string) (int, error) {
	z, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || z < 0 || z > 22 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return z, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTrue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
