//go:build !js

package areasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb/geojson"
)

const (
	undefinedTable  = "42P01"
	undefinedColumn = "42703"
)

// PGLoader reads areas from a PostGIS table in Schema. The table needs a
// gid key and a geometry column named the_geom; the key's name selects the label column.
type PGLoader struct {
	Pool   *pgxpool.Pool
	Schema string
}

func (l PGLoader) Load(ctx context.Context, key Key) (*Overlay, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		`SELECT gid::text, %s::text, ST_AsGeoJSON(the_geom) FROM %s WHERE the_geom IS NOT NULL ORDER BY gid`,
		pgx.Identifier{key.Name}.Sanitize(),
		pgx.Identifier{l.Schema, key.Table}.Sanitize(),
	)
	rows, err := l.Pool.Query(ctx, query)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == undefinedTable || pgErr.Code == undefinedColumn) {
			return nil, fmt.Errorf("overlay %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("query overlay %s: %w", key, err)
	}
	defer rows.Close()

	var areas []*Area
	for rows.Next() {
		var id, name, raw string
		if err := rows.Scan(&id, &name, &raw); err != nil {
			return nil, fmt.Errorf("scan overlay %s: %w", key, err)
		}
		g, err := geojson.UnmarshalGeometry([]byte(raw))
		if err != nil {
			slog.Warn("skipping area with bad geometry", "overlay", key.String(), "gid", id, "error", err)
			continue
		}
		mp, ok := asMultiPolygon(g.Geometry())
		if !ok {
			continue
		}
		areas = append(areas, &Area{ID: id, Name: name, Geometry: mp})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read overlay %s: %w", key, err)
	}
	return NewOverlay(key, areas)
}
