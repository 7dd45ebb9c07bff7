package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/voltgrid/voltgrid/pkg/errs"
	"github.com/voltgrid/voltgrid/pkg/types"
)

// StationRepository accesses station master data.
type StationRepository struct {
	db *sqlx.DB
}

const stationColumns = `id, name, address, latitude, longitude, total_chargers,
	charger_types, max_capacity, region, grid_id, created_at, updated_at`

// Create inserts a station.
func (r *StationRepository) Create(ctx context.Context, s *types.Station) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stations (id, name, address, latitude, longitude, total_chargers,
			charger_types, max_capacity, region, grid_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.Name, s.Address, s.Latitude, s.Longitude, s.TotalChargers,
		s.ChargerTypes, s.MaxCapacity, s.Region, s.GridID)
	if err != nil {
		return errs.Wrap(errs.KindDependencyUnavailable, err, "station insert")
	}
	return nil
}

// GetByID loads one station.
func (r *StationRepository) GetByID(ctx context.Context, id string) (*types.Station, error) {
	var s types.Station
	err := r.db.GetContext(ctx, &s,
		`SELECT `+stationColumns+` FROM stations WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "station", id)
	}
	return &s, nil
}

// FindAll returns every station, ordered by id for determinism.
func (r *StationRepository) FindAll(ctx context.Context) ([]types.Station, error) {
	var stations []types.Station
	err := r.db.SelectContext(ctx, &stations,
		`SELECT `+stationColumns+` FROM stations ORDER BY id`)
	if err != nil {
		return nil, errs.Wrap(errs.KindDependencyUnavailable, err, "station list")
	}
	return stations, nil
}

// FindByRegion returns the stations of one region.
func (r *StationRepository) FindByRegion(ctx context.Context, region string) ([]types.Station, error) {
	var stations []types.Station
	err := r.db.SelectContext(ctx, &stations,
		`SELECT `+stationColumns+` FROM stations WHERE region = $1 ORDER BY id`, region)
	if err != nil {
		return nil, errs.Wrap(errs.KindDependencyUnavailable, err, "station region list")
	}
	return stations, nil
}

// FindInBoundingBox returns stations within the coordinate box. This is the
// coarse spatial prefilter; exact distance is computed by the caller.
func (r *StationRepository) FindInBoundingBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]types.Station, error) {
	var stations []types.Station
	err := r.db.SelectContext(ctx, &stations, `
		SELECT `+stationColumns+` FROM stations
		WHERE latitude BETWEEN $1 AND $2 AND longitude BETWEEN $3 AND $4
		ORDER BY id`,
		minLat, maxLat, minLon, maxLon)
	if err != nil {
		return nil, errs.Wrap(errs.KindDependencyUnavailable, err, "station box query")
	}
	return stations, nil
}

// Update rewrites the mutable master fields.
func (r *StationRepository) Update(ctx context.Context, s *types.Station) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE stations
		SET name = $2, address = $3, latitude = $4, longitude = $5,
			total_chargers = $6, charger_types = $7, max_capacity = $8,
			region = $9, grid_id = $10, updated_at = now()
		WHERE id = $1`,
		s.ID, s.Name, s.Address, s.Latitude, s.Longitude,
		s.TotalChargers, s.ChargerTypes, s.MaxCapacity, s.Region, s.GridID)
	if err != nil {
		return errs.Wrap(errs.KindDependencyUnavailable, err, "station update")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NotFound("station", s.ID)
	}
	return nil
}
