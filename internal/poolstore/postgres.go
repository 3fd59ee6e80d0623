package poolstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poolride/dispatch-core/pkg/database"
)

// PostgresStore is the production Store implementation, backed by a
// connection pool shared with the rest of the service.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore wraps an existing pgx pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InsertPassenger(ctx context.Context, p Passenger) error {
	query := `
		INSERT INTO passengers (
			id, user_id, pool_id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			seats, luggage, max_detour_min, state, estimated_fare, base_fare,
			requested_at, updated_at
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.db.Exec(ctx, query,
		p.ID, p.UserID, p.PoolID, p.Pickup.Lat, p.Pickup.Lng, p.Dropoff.Lat, p.Dropoff.Lng,
		p.Seats, p.Luggage, p.MaxDetourMin, p.State, p.EstimatedFare, p.BaseFare,
		p.RequestedAt, p.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) MatchPassenger(ctx context.Context, passengerID, poolID string, finalFare, surgeMultiplier float64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE passengers
		SET state = $1, pool_id = $2, final_fare = $3, surge_multiplier = $4, matched_at = $5, updated_at = $5
		WHERE id = $6
	`, PassengerMatched, poolID, finalFare, surgeMultiplier, time.Now(), passengerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CancelPassenger(ctx context.Context, passengerID, reason string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE passengers
		SET state = $1, pool_id = NULL, cancel_reason = $2, cancelled_at = $3, updated_at = $3
		WHERE id = $4
	`, PassengerCancelled, reason, time.Now(), passengerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// passengerColumns is shared by every query that scans into scanPassenger/
// scanPassengers, so the two stay in lockstep with the select list.
const passengerColumns = `
	id, user_id, COALESCE(pool_id, ''), pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
	seats, luggage, max_detour_min, state, estimated_fare, base_fare, final_fare,
	surge_multiplier, requested_at, updated_at
`

func (s *PostgresStore) GetPassenger(ctx context.Context, passengerID string) (Passenger, error) {
	return database.RetryableQueryRow(ctx, s.db, `
		SELECT `+passengerColumns+`
		FROM passengers WHERE id = $1
	`, []interface{}{passengerID}, scanPassenger)
}

func scanPassenger(row pgx.Row) (Passenger, error) {
	var p Passenger
	err := row.Scan(
		&p.ID, &p.UserID, &p.PoolID, &p.Pickup.Lat, &p.Pickup.Lng, &p.Dropoff.Lat, &p.Dropoff.Lng,
		&p.Seats, &p.Luggage, &p.MaxDetourMin, &p.State, &p.EstimatedFare, &p.BaseFare,
		&p.FinalFare, &p.SurgeMultiplier, &p.RequestedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Passenger{}, ErrNotFound
	}
	return p, err
}

func (s *PostgresStore) InsertPool(ctx context.Context, p Pool) error {
	query := `
		INSERT INTO pools (
			id, class, state, current_seats, max_seats, current_luggage, max_luggage,
			centroid_lat, centroid_lng, route_distance_km, formed_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.Exec(ctx, query,
		p.ID, p.Class, p.State, p.CurrentSeats, p.MaxSeats, p.CurrentLuggage, p.MaxLuggage,
		p.Centroid.Lat, p.Centroid.Lng, p.RouteDistanceKm, p.FormedAt, p.UpdatedAt, p.Version,
	)
	return err
}

func (s *PostgresStore) GetPool(ctx context.Context, poolID string) (Pool, error) {
	return database.RetryableQueryRow(ctx, s.db, `
		SELECT id, class, state, current_seats, max_seats, current_luggage, max_luggage,
			centroid_lat, centroid_lng, route_distance_km, formed_at, updated_at, version
		FROM pools WHERE id = $1
	`, []interface{}{poolID}, scanPool)
}

func scanPool(row pgx.Row) (Pool, error) {
	var p Pool
	err := row.Scan(
		&p.ID, &p.Class, &p.State, &p.CurrentSeats, &p.MaxSeats, &p.CurrentLuggage, &p.MaxLuggage,
		&p.Centroid.Lat, &p.Centroid.Lng, &p.RouteDistanceKm, &p.FormedAt, &p.UpdatedAt, &p.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Pool{}, ErrNotFound
	}
	return p, err
}

// UpdatePoolUnderLease reads the current row, applies mutate, and writes it
// back unconditionally. The caller is already holding the pool's mediator
// lease, so no version check guards this write; it exists purely to bump
// Version so later optimistic readers see the change.
func (s *PostgresStore) UpdatePoolUnderLease(ctx context.Context, poolID string, mutate func(*Pool) error) error {
	p, err := s.GetPool(ctx, poolID)
	if err != nil {
		return err
	}
	if err := mutate(&p); err != nil {
		return err
	}
	p.Version++
	p.UpdatedAt = time.Now()
	return s.writePool(ctx, p)
}

// UpdatePoolByVersion reads the pool, returns ErrVersionConflict if its
// version already differs from expectedVersion, applies mutate, and writes
// with an UPDATE conditioned on that same version; a 0-row result (the
// version moved between the read and the write) also maps to
// ErrVersionConflict.
func (s *PostgresStore) UpdatePoolByVersion(ctx context.Context, poolID string, expectedVersion int, mutate func(*Pool) error) error {
	p, err := s.GetPool(ctx, poolID)
	if err != nil {
		return err
	}
	if p.Version != expectedVersion {
		return ErrVersionConflict
	}
	if err := mutate(&p); err != nil {
		return err
	}
	p.UpdatedAt = time.Now()

	tag, err := s.db.Exec(ctx, `
		UPDATE pools SET class = $1, state = $2, current_seats = $3, max_seats = $4,
			current_luggage = $5, max_luggage = $6, centroid_lat = $7, centroid_lng = $8,
			route_distance_km = $9, updated_at = $10, version = version + 1
		WHERE id = $11 AND version = $12
	`, p.Class, p.State, p.CurrentSeats, p.MaxSeats, p.CurrentLuggage, p.MaxLuggage,
		p.Centroid.Lat, p.Centroid.Lng, p.RouteDistanceKm, p.UpdatedAt, poolID, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (s *PostgresStore) writePool(ctx context.Context, p Pool) error {
	_, err := s.db.Exec(ctx, `
		UPDATE pools SET class = $1, state = $2, current_seats = $3, max_seats = $4,
			current_luggage = $5, max_luggage = $6, centroid_lat = $7, centroid_lng = $8,
			route_distance_km = $9, updated_at = $10, version = $11
		WHERE id = $12
	`, p.Class, p.State, p.CurrentSeats, p.MaxSeats, p.CurrentLuggage, p.MaxLuggage,
		p.Centroid.Lat, p.Centroid.Lng, p.RouteDistanceKm, p.UpdatedAt, p.Version, p.ID)
	return err
}

func (s *PostgresStore) DeletePool(ctx context.Context, poolID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM pools WHERE id = $1`, poolID)
	return err
}

func (s *PostgresStore) InsertWaypoint(ctx context.Context, w Waypoint) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO waypoints (pool_id, passenger_id, kind, lat, lng, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, w.PoolID, w.PassengerID, w.Kind, w.Coordinate.Lat, w.Coordinate.Lng, w.Position)
	return err
}

func (s *PostgresStore) DeleteWaypointsForPassenger(ctx context.Context, passengerID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM waypoints WHERE passenger_id = $1`, passengerID)
	return err
}

func (s *PostgresStore) GetWaypoints(ctx context.Context, poolID string) ([]Waypoint, error) {
	return database.RetryableQuery(ctx, s.db, `
		SELECT pool_id, passenger_id, kind, lat, lng, position
		FROM waypoints WHERE pool_id = $1 ORDER BY position ASC
	`, []interface{}{poolID}, scanWaypoints)
}

func scanWaypoints(rows pgx.Rows) ([]Waypoint, error) {
	var out []Waypoint
	for rows.Next() {
		var w Waypoint
		if err := rows.Scan(&w.PoolID, &w.PassengerID, &w.Kind, &w.Coordinate.Lat, &w.Coordinate.Lng, &w.Position); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *PostgresStore) QueryPendingPassengers(ctx context.Context, limit int) ([]Passenger, error) {
	return database.RetryableQuery(ctx, s.db, `
		SELECT `+passengerColumns+`
		FROM passengers WHERE state = $1 ORDER BY requested_at ASC LIMIT $2
	`, []interface{}{PassengerPending, limit}, scanPassengers)
}

func scanPassengers(rows pgx.Rows) ([]Passenger, error) {
	var out []Passenger
	for rows.Next() {
		var p Passenger
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.PoolID, &p.Pickup.Lat, &p.Pickup.Lng, &p.Dropoff.Lat, &p.Dropoff.Lng,
			&p.Seats, &p.Luggage, &p.MaxDetourMin, &p.State, &p.EstimatedFare, &p.BaseFare,
			&p.FinalFare, &p.SurgeMultiplier, &p.RequestedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) QueryFormingPools(ctx context.Context, maxAgeMinutes int) ([]Pool, error) {
	if maxAgeMinutes <= 0 {
		return database.RetryableQuery(ctx, s.db, `
			SELECT id, class, state, current_seats, max_seats, current_luggage, max_luggage,
				centroid_lat, centroid_lng, route_distance_km, formed_at, updated_at, version
			FROM pools WHERE state = $1 ORDER BY formed_at ASC
		`, []interface{}{PoolForming}, scanPools)
	}

	cutoff := time.Now().Add(-time.Duration(maxAgeMinutes) * time.Minute)
	return database.RetryableQuery(ctx, s.db, `
		SELECT id, class, state, current_seats, max_seats, current_luggage, max_luggage,
			centroid_lat, centroid_lng, route_distance_km, formed_at, updated_at, version
		FROM pools WHERE state = $1 AND formed_at >= $2 ORDER BY formed_at ASC
	`, []interface{}{PoolForming, cutoff}, scanPools)
}

func scanPools(rows pgx.Rows) ([]Pool, error) {
	var out []Pool
	for rows.Next() {
		var p Pool
		if err := rows.Scan(
			&p.ID, &p.Class, &p.State, &p.CurrentSeats, &p.MaxSeats, &p.CurrentLuggage, &p.MaxLuggage,
			&p.Centroid.Lat, &p.Centroid.Lng, &p.RouteDistanceKm, &p.FormedAt, &p.UpdatedAt, &p.Version,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const surgeZoneColumns = `
	zone_id, name, center_lat, center_lng, radius_km,
	active_requests, available_drivers, current_multiplier, demand_tier, updated_at
`

func (s *PostgresStore) GetSurgeZone(ctx context.Context, zoneID string) (SurgeZone, error) {
	zone, err := database.RetryableQueryRow(ctx, s.db, `
		SELECT `+surgeZoneColumns+`
		FROM surge_zones WHERE zone_id = $1
	`, []interface{}{zoneID}, scanSurgeZone)
	if errors.Is(err, ErrNotFound) {
		return SurgeZone{ZoneID: zoneID, CurrentMultiplier: 1.0}, nil
	}
	return zone, err
}

func scanSurgeZone(row pgx.Row) (SurgeZone, error) {
	var z SurgeZone
	err := row.Scan(
		&z.ZoneID, &z.Name, &z.Center.Lat, &z.Center.Lng, &z.RadiusKm,
		&z.ActiveRequests, &z.AvailableDrivers, &z.CurrentMultiplier, &z.DemandTier, &z.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return SurgeZone{}, ErrNotFound
	}
	return z, err
}

func (s *PostgresStore) UpdateSurgeZone(ctx context.Context, zone SurgeZone) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO surge_zones (
			zone_id, name, center_lat, center_lng, radius_km,
			active_requests, available_drivers, current_multiplier, demand_tier, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (zone_id) DO UPDATE SET
			name = EXCLUDED.name,
			center_lat = EXCLUDED.center_lat,
			center_lng = EXCLUDED.center_lng,
			radius_km = EXCLUDED.radius_km,
			active_requests = EXCLUDED.active_requests,
			available_drivers = EXCLUDED.available_drivers,
			current_multiplier = EXCLUDED.current_multiplier,
			demand_tier = EXCLUDED.demand_tier,
			updated_at = EXCLUDED.updated_at
	`, zone.ZoneID, zone.Name, zone.Center.Lat, zone.Center.Lng, zone.RadiusKm,
		zone.ActiveRequests, zone.AvailableDrivers, zone.CurrentMultiplier, zone.DemandTier, zone.UpdatedAt)
	return err
}

func (s *PostgresStore) ListSurgeZones(ctx context.Context) ([]SurgeZone, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+surgeZoneColumns+`
		FROM surge_zones ORDER BY zone_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SurgeZone
	for rows.Next() {
		var z SurgeZone
		if err := rows.Scan(
			&z.ZoneID, &z.Name, &z.Center.Lat, &z.Center.Lng, &z.RadiusKm,
			&z.ActiveRequests, &z.AvailableDrivers, &z.CurrentMultiplier, &z.DemandTier, &z.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
