package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ResolveLatestImportDBName returns the db_name with the most recent imported_at
// from public.latest_successful_imports where db_name ILIKE '%city%'.
func ResolveLatestImportDBName(ctx context.Context, meta *sql.DB, city string) (string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", fmt.Errorf("city is required")
	}
	// Fully qualified to the public schema (assumes we are connected to the 'postgres' database)
	q := `
SELECT db_name
FROM public.latest_successful_imports
WHERE db_name ILIKE '%' || $1 || '%'
ORDER BY imported_at DESC
LIMIT 1`
	var dbName sql.NullString
	if err := meta.QueryRowContext(ctx, q, city).Scan(&dbName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("no database found for city like %q", city)
		}
		return "", err
	}
	if !dbName.Valid || dbName.String == "" {
		return "", fmt.Errorf("empty db_name for city like %q", city)
	}
	return dbName.String, nil
}

// ResolveCityDSN looks up the newest import for city through the cluster's
// 'postgres' database and returns the import's name and DSN.
func ResolveCityDSN(ctx context.Context, baseDSN, city string) (name, dsn string, err error) {
	rootDSN, err := WithDBName(baseDSN, "postgres")
	if err != nil {
		return "", "", fmt.Errorf("invalid base DSN: %w", err)
	}
	meta, err := Open(rootDSN)
	if err != nil {
		return "", "", fmt.Errorf("open meta db: %w", err)
	}
	defer meta.Close()
	if err := Ping(ctx, meta); err != nil {
		return "", "", fmt.Errorf("ping meta db: %w", err)
	}
	if name, err = ResolveLatestImportDBName(ctx, meta, city); err != nil {
		return "", "", err
	}
	if dsn, err = WithDBName(baseDSN, name); err != nil {
		return "", "", err
	}
	return name, dsn, nil
}

// Connect opens and pings dsn.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := Ping(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
