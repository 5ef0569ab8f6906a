package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// ShapeStore serves route geometry from a GTFS import (postgis-gtfs-importer
// layout). Results are shapes.txt-style records keyed by shape_id, which the
// shape normalizer groups into one pattern per shape.
type ShapeStore struct {
	db *sql.DB

	mu     sync.Mutex
	layout shapeLayout
}

type shapeLayout int

const (
	layoutUnknown shapeLayout = iota
	layoutLatLon
	layoutGeography
)

func NewShapeStore(db *sql.DB) *ShapeStore {
	return &ShapeStore{db: db}
}

// RouteShape returns every shape point of every trip pattern of the route,
// or nil when the import has none.
func (s *ShapeStore) RouteShape(ctx context.Context, routeID string) (any, error) {
	if routeID == "" {
		return nil, nil
	}
	conn, layout, err := s.detectLayout(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, shapeQuery(layout), routeID)
	if err != nil {
		return nil, fmt.Errorf("query shapes for route %s: %w", routeID, err)
	}
	defer rows.Close()

	var records []any
	for rows.Next() {
		var (
			shapeID  string
			lat, lon float64
			seq      int
		)
		if err := rows.Scan(&shapeID, &lat, &lon, &seq); err != nil {
			return nil, err
		}
		records = append(records, shapeRecord(shapeID, lat, lon, seq))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records, nil
}

// Swap points the store at a newer import and returns the previous
// connection for the caller to close.
func (s *ShapeStore) Swap(db *sql.DB) *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.db
	s.db = db
	s.layout = layoutUnknown
	return old
}

// DB returns the connection currently in use.
func (s *ShapeStore) DB() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

// detectLayout picks between plain shape_pt_lat/lon columns and the PostGIS
// shape_pt_loc geography column. The answer is cached per connection.
func (s *ShapeStore) detectLayout(ctx context.Context) (*sql.DB, shapeLayout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.layout != layoutUnknown {
		return s.db, s.layout, nil
	}
	cols, err := hasColumns(ctx, s.db, "public", "shapes", "shape_pt_lat", "shape_pt_lon", "shape_pt_loc")
	if err != nil {
		return nil, layoutUnknown, fmt.Errorf("introspect shapes columns: %w", err)
	}
	switch {
	case cols["shape_pt_lat"] && cols["shape_pt_lon"]:
		s.layout = layoutLatLon
	case cols["shape_pt_loc"]:
		s.layout = layoutGeography
	default:
		return nil, layoutUnknown, fmt.Errorf("shapes table missing expected columns (lat/lon or shape_pt_loc)")
	}
	return s.db, s.layout, nil
}

func shapeQuery(layout shapeLayout) string {
	latlon := `s.shape_pt_lat, s.shape_pt_lon`
	if layout == layoutGeography {
		latlon = `ST_Y(s.shape_pt_loc::geometry), ST_X(s.shape_pt_loc::geometry)`
	}
	return `SELECT s.shape_id, ` + latlon + `, s.shape_pt_sequence
FROM shapes s
WHERE s.shape_id IN (
  SELECT DISTINCT shape_id FROM trips WHERE route_id = $1 AND shape_id IS NOT NULL
)
ORDER BY s.shape_id, s.shape_pt_sequence`
}

func shapeRecord(shapeID string, lat, lon float64, seq int) map[string]any {
	return map[string]any{
		"shape_pt_lat":      lat,
		"shape_pt_lon":      lon,
		"shape_pt_sequence": seq,
		"pattern":           shapeID,
	}
}

// hasColumns returns a map of requested column names to existence for the given table.
func hasColumns(ctx context.Context, db *sql.DB, schema, table string, cols ...string) (map[string]bool, error) {
	res := make(map[string]bool, len(cols))
	if len(cols) == 0 {
		return res, nil
	}
	for _, c := range cols {
		res[c] = false
	}
	q := `SELECT column_name FROM information_schema.columns
          WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)`
	rows, err := db.QueryContext(ctx, q, schema, table, cols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res[name] = true
	}
	return res, rows.Err()
}
