package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Station is the reference coordinate record for one stop.
type Station struct {
	NodeID string
	NodeNo string
	Name   string
	Lat    float64
	Lon    float64
}

// ArtifactRecord indexes one assembled route geometry artifact.
type ArtifactRecord struct {
	RouteID      string
	RouteNo      string
	StopCount    int
	CoordCount   int
	TotalDistM   float64
	TurnCoordIdx int
}

// CreateSnapshot records the start of a snap run and returns its ID
func (db *DB) CreateSnapshot(ctx context.Context, startedAt time.Time) (string, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	snapshotID := uuid.New().String()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO snapshots (snapshot_id, started_at_utc) VALUES (?, ?)",
		snapshotID, startedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot: %w", err)
	}
	return snapshotID, nil
}

// UpsertStations replaces the reference coordinates for the given stations
func (db *DB) UpsertStations(ctx context.Context, stations []Station) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stations (node_id, node_no, name, lat, lon, updated_at_utc)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (node_id) DO UPDATE SET
			node_no = excluded.node_no,
			name = excluded.name,
			lat = excluded.lat,
			lon = excluded.lon,
			updated_at_utc = excluded.updated_at_utc
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare station statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, s := range stations {
		if _, err := stmt.ExecContext(ctx, s.NodeID, s.NodeNo, s.Name, s.Lat, s.Lon, now); err != nil {
			return fmt.Errorf("failed to upsert station %s: %w", s.NodeID, err)
		}
	}

	return tx.Commit()
}

// UpsertRouteNumbers records the route number -> route id mapping
func (db *DB) UpsertRouteNumbers(ctx context.Context, mapping map[string][]string) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO route_numbers (route_no, route_id) VALUES (?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare route number statement: %w", err)
	}
	defer stmt.Close()

	for routeNo, routeIDs := range mapping {
		for _, routeID := range routeIDs {
			if _, err := stmt.ExecContext(ctx, routeNo, routeID); err != nil {
				return fmt.Errorf("failed to upsert route %s/%s: %w", routeNo, routeID, err)
			}
		}
	}

	return tx.Commit()
}

// UpsertArtifact replaces the artifact index row for one route
func (db *DB) UpsertArtifact(ctx context.Context, snapshotID string, rec ArtifactRecord) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO route_artifacts (
			route_id, route_no, snapshot_id, stop_count, coord_count,
			total_dist_m, turn_coord_idx, generated_at_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (route_id) DO UPDATE SET
			route_no = excluded.route_no,
			snapshot_id = excluded.snapshot_id,
			stop_count = excluded.stop_count,
			coord_count = excluded.coord_count,
			total_dist_m = excluded.total_dist_m,
			turn_coord_idx = excluded.turn_coord_idx,
			generated_at_utc = excluded.generated_at_utc
	`,
		rec.RouteID, rec.RouteNo, snapshotID, rec.StopCount, rec.CoordCount,
		rec.TotalDistM, rec.TurnCoordIdx, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert artifact for route %s: %w", rec.RouteID, err)
	}
	return nil
}
