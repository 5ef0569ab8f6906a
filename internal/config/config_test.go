package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"API_BASE_URL", "SHAPES_URL", "SHAPES_DATABASE_URL", "DATABASE_URL", "SHAPES_CITY", "CITY",
	"VEHICLE_FEED_URL", "REFRESH_INTERVAL_MS", "HTTP_TIMEOUT_MS", "AUTO_REFRESH",
	"STOPS_VISIBLE_ZOOM", "INITIAL_ZOOM", "DEFAULT_ROUTES", "MAP_STYLE_FILE",
	"LISTEN_ADDR", "NATS_URL", "NATS_SUBJECT_PREFIX", "METRICS_ADDR", "TZ",
	"PGHOST", "PGPORT", "PGUSER", "PGPASSWORD", "PGDATABASE", "PGSSLMODE",
	"PYROSCOPE_PROFILING_ENABLED",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8080/api" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.RefreshInterval != 30*time.Second {
		t.Errorf("RefreshInterval = %v, want 30s", cfg.RefreshInterval)
	}
	if !cfg.AutoRefresh {
		t.Error("AutoRefresh should default to true")
	}
	if cfg.Style.StopsVisibleZoom != 14 || cfg.Style.InitialZoom != 13 {
		t.Errorf("zooms = %d/%d, want 14/13", cfg.Style.StopsVisibleZoom, cfg.Style.InitialZoom)
	}
	if len(cfg.Style.DefaultRoutes) != 1 || cfg.Style.DefaultRoutes[0] != "22" {
		t.Errorf("DefaultRoutes = %v, want [22]", cfg.Style.DefaultRoutes)
	}
	if len(cfg.Style.Palette) != 16 || cfg.Style.Pinned["151"] != "#E53935" {
		t.Error("default palette or pinned colors missing")
	}
	if cfg.ShapesDatabaseURL != "" {
		t.Errorf("ShapesDatabaseURL = %q, want empty", cfg.ShapesDatabaseURL)
	}
	if cfg.Location != time.Local {
		t.Error("Location should default to local time")
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_BASE_URL", "http://api.example/api/")
	t.Setenv("REFRESH_INTERVAL_MS", "5000")
	t.Setenv("AUTO_REFRESH", "off")
	t.Setenv("STOPS_VISIBLE_ZOOM", "15")
	t.Setenv("DEFAULT_ROUTES", "22, 36,,151")
	t.Setenv("TZ", "America/Chicago")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBaseURL != "http://api.example/api" {
		t.Errorf("APIBaseURL = %q, want trailing slash trimmed", cfg.APIBaseURL)
	}
	if cfg.RefreshInterval != 5*time.Second {
		t.Errorf("RefreshInterval = %v", cfg.RefreshInterval)
	}
	if cfg.AutoRefresh {
		t.Error("AUTO_REFRESH=off should disable auto refresh")
	}
	if cfg.Style.StopsVisibleZoom != 15 {
		t.Errorf("StopsVisibleZoom = %d", cfg.Style.StopsVisibleZoom)
	}
	if got := strings.Join(cfg.Style.DefaultRoutes, ","); got != "22,36,151" {
		t.Errorf("DefaultRoutes = %q", got)
	}
	if cfg.Location.String() != "America/Chicago" {
		t.Errorf("Location = %s", cfg.Location)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"REFRESH_INTERVAL_MS", "0"},
		{"REFRESH_INTERVAL_MS", "soon"},
		{"HTTP_TIMEOUT_MS", "-5"},
		{"STOPS_VISIBLE_ZOOM", "30"},
		{"INITIAL_ZOOM", "x"},
		{"TZ", "Not/AZone"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load accepted %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_ShapesDSNFromPGVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("SHAPES_CITY", "chicago")
	t.Setenv("PGUSER", "gtfs")
	t.Setenv("PGPASSWORD", "p@ss")
	t.Setenv("PGHOST", "db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := "postgres://gtfs:p%40ss@db:5432/postgres?sslmode=disable"
	if cfg.ShapesDatabaseURL != want {
		t.Errorf("ShapesDatabaseURL = %q, want %q", cfg.ShapesDatabaseURL, want)
	}
	if cfg.ShapesCity != "chicago" {
		t.Errorf("ShapesCity = %q", cfg.ShapesCity)
	}
}

func TestLoad_StyleFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "style.yaml")
	body := "palette: ['#000000', '#FFFFFF']\npinned:\n  '8': '#123456'\ndefault_routes: ['8', '9']\nstops_visible_zoom: 16\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MAP_STYLE_FILE", path)
	t.Setenv("STOPS_VISIBLE_ZOOM", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Style
	if len(s.Palette) != 2 {
		t.Errorf("palette = %v", s.Palette)
	}
	if s.Pinned["8"] != "#123456" || s.Pinned["22"] != "#1E88E5" {
		t.Errorf("pinned = %v, want file entries merged over defaults", s.Pinned)
	}
	if strings.Join(s.DefaultRoutes, ",") != "8,9" {
		t.Errorf("DefaultRoutes = %v", s.DefaultRoutes)
	}
	if s.StopsVisibleZoom != 12 {
		t.Errorf("StopsVisibleZoom = %d, want env value 12", s.StopsVisibleZoom)
	}
	if s.InitialZoom != 13 {
		t.Errorf("InitialZoom = %d, want default 13", s.InitialZoom)
	}
}

func TestParseStyle_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad palette color", "palette: ['blue']"},
		{"empty palette", "palette: []"},
		{"bad pinned color", "pinned:\n  '22': 'red'"},
		{"zoom out of range", "initial_zoom: 40"},
		{"bad latitude", "center_lat: 120"},
		{"not yaml", "palette: [unclosed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseStyle([]byte(tt.body), DefaultStyle()); err == nil {
				t.Error("ParseStyle accepted an invalid style")
			}
		})
	}
}

func TestParseStyle_DoesNotTouchBase(t *testing.T) {
	base := DefaultStyle()
	if _, err := ParseStyle([]byte("pinned:\n  '8': '#123456'"), base); err != nil {
		t.Fatal(err)
	}
	if _, ok := base.Pinned["8"]; ok {
		t.Error("ParseStyle modified the base pinned map")
	}
}
