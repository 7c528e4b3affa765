package enrich

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// metersPerDegree is the approximate length of one degree of latitude.
const metersPerDegree = 111320.0

// GeoCache stores reverse-geocoded place names keyed by grid-rounded
// coordinates in a sqlite file shared across runs. Nearby photos resolve to
// the same grid cell, so one Nominatim call covers a whole shoot.
type GeoCache struct {
	db         *sql.DB
	gridMeters float64
}

// OpenGeoCache opens (and if needed initializes) the cache database.
func OpenGeoCache(path string, gridMeters float64) (*GeoCache, error) {
	if gridMeters <= 0 {
		gridMeters = 100
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create geocode cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open geocode cache: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS geocode_cache (
			lat_grid   REAL NOT NULL,
			lon_grid   REAL NOT NULL,
			place      TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (lat_grid, lon_grid)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize geocode cache: %w", err)
	}
	return &GeoCache{db: db, gridMeters: gridMeters}, nil
}

// Close releases the database handle.
func (c *GeoCache) Close() error {
	return c.db.Close()
}

// roundToGrid snaps a coordinate to the cache grid.
func (c *GeoCache) roundToGrid(coord float64) float64 {
	gridDegrees := c.gridMeters / metersPerDegree
	return math.Round(coord/gridDegrees) * gridDegrees
}

// Lookup returns the cached place for the grid cell containing (lat, lon).
func (c *GeoCache) Lookup(lat, lon float64) (string, bool, error) {
	var place string
	err := c.db.QueryRow(
		`SELECT place FROM geocode_cache WHERE lat_grid = ? AND lon_grid = ?`,
		c.roundToGrid(lat), c.roundToGrid(lon),
	).Scan(&place)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query geocode cache: %w", err)
	}
	return place, true, nil
}

// Store caches the place for the grid cell containing (lat, lon).
func (c *GeoCache) Store(lat, lon float64, place string) error {
	_, err := c.db.Exec(`
		INSERT INTO geocode_cache (lat_grid, lon_grid, place, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (lat_grid, lon_grid) DO UPDATE SET
			place = excluded.place,
			created_at = excluded.created_at
	`, c.roundToGrid(lat), c.roundToGrid(lon), place, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store geocode cache entry: %w", err)
	}
	return nil
}

// Count returns the number of cached cells.
func (c *GeoCache) Count() (int, error) {
	var count int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM geocode_cache`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count geocode cache: %w", err)
	}
	return count, nil
}

// Clear removes every cached cell.
func (c *GeoCache) Clear() (int64, error) {
	result, err := c.db.Exec(`DELETE FROM geocode_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear geocode cache: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
