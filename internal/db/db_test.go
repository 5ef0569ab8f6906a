package db

import (
	"strings"
	"testing"

	"transit-tracker/internal/shape"
)

func TestWithDBName(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		db      string
		want    string
		wantErr bool
	}{
		{"replace path", "postgres://u:p@h:5432/postgres?sslmode=disable", "gtfs_chicago_2026", "postgres://u:p@h:5432/gtfs_chicago_2026?sslmode=disable", false},
		{"postgresql scheme", "postgresql://h/postgres", "x", "postgresql://h/x", false},
		{"missing scheme", "u@h:5432/postgres", "x", "postgres://u@h:5432/x", false},
		{"leading slash", "postgres://h/postgres", "/x", "postgres://h/x", false},
		{"empty dsn", "", "x", "", true},
		{"empty name", "postgres://h/postgres", " ", "", true},
		{"other scheme", "mysql://h/db", "x", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WithDBName(tt.dsn, tt.db)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	got := Redact("postgres://u:secret@h:5432/db")
	if strings.Contains(got, "secret") {
		t.Errorf("password leaked: %q", got)
	}
	if got != "postgres://u:xxxxx@h:5432/db" {
		t.Errorf("got %q", got)
	}
	if got := Redact("postgres://h/db"); got != "postgres://h/db" {
		t.Errorf("no userinfo: got %q", got)
	}
}

func TestShapeQueryLayouts(t *testing.T) {
	plain := shapeQuery(layoutLatLon)
	if !strings.Contains(plain, "s.shape_pt_lat, s.shape_pt_lon") || strings.Contains(plain, "ST_Y") {
		t.Errorf("lat/lon layout query: %s", plain)
	}
	geog := shapeQuery(layoutGeography)
	if !strings.Contains(geog, "ST_Y(s.shape_pt_loc::geometry)") {
		t.Errorf("geography layout query: %s", geog)
	}
	for _, q := range []string{plain, geog} {
		if !strings.Contains(q, "route_id = $1") {
			t.Errorf("query not filtered by route: %s", q)
		}
	}
}

func TestShapeRecordsNormalizePerShape(t *testing.T) {
	records := []any{
		shapeRecord("A", 41.90, -87.60, 1),
		shapeRecord("A", 41.91, -87.61, 2),
		shapeRecord("B", 41.80, -87.70, 2),
		shapeRecord("B", 41.79, -87.69, 1),
	}
	got := shape.Normalize(records)
	if len(got) != 2 {
		t.Fatalf("got %d patterns, want 2", len(got))
	}
	b := got["B"]
	if len(b) != 2 || b[0].Sequence != 1 || b[0].Lat != 41.79 {
		t.Errorf("B = %+v, want sequence-ordered points", b)
	}
}
