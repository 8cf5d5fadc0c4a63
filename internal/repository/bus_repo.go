package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bus_ticket/internal/model"

	"github.com/jackc/pgx/v5"
)

// BusRepository defines operations for buses and their positional route lists.
//
// UpdateRouteAt is a single targeted write. ReplaceRoutes rewrites the whole
// array and only succeeds if the bus version still equals expectedVersion, so
// a read-modify-write cycle never lands on top of a concurrent change.
type BusRepository interface {
	Create(ctx context.Context, bus *model.Bus) error
	FindByID(ctx context.Context, id string) (*model.Bus, error)
	FindAll(ctx context.Context) ([]model.Bus, error)
	Delete(ctx context.Context, id string) (int64, error)
	AppendRoute(ctx context.Context, busID string, route model.Route) (bool, error)
	UpdateRouteAt(ctx context.Context, busID string, index int, routeName string, price float64, expectRouteID string) (bool, error)
	ReplaceRoutes(ctx context.Context, busID string, routes []model.Route, expectedVersion int64) error
}

type busRepository struct {
	db PgxIface
}

// NewBusRepository creates a postgres-backed BusRepository
func NewBusRepository(db PgxIface) BusRepository {
	return &busRepository{db: db}
}

const busColumns = `id, bus_name, total_seats, start_time, estimated_time, routes, version`

func scanBus(row pgx.Row) (*model.Bus, error) {
	bus := &model.Bus{}
	var routes []byte
	if err := row.Scan(&bus.ID, &bus.BusName, &bus.TotalSeats, &bus.StartTime, &bus.EstimatedTime, &routes, &bus.Version); err != nil {
		return nil, err
	}
	bus.Routes = make([]model.Route, 0)
	if len(routes) > 0 {
		if err := json.Unmarshal(routes, &bus.Routes); err != nil {
			return nil, fmt.Errorf("failed to decode routes of bus %s: %w", bus.ID, err)
		}
	}
	return bus, nil
}

func encodeRoutes(routes []model.Route) (string, error) {
	if routes == nil {
		routes = []model.Route{}
	}
	b, err := json.Marshal(routes)
	if err != nil {
		return "", fmt.Errorf("failed to encode routes: %w", err)
	}
	return string(b), nil
}

// Create inserts a new bus; bus.ID and route ids must already be assigned
func (r *busRepository) Create(ctx context.Context, bus *model.Bus) error {
	routes, err := encodeRoutes(bus.Routes)
	if err != nil {
		return err
	}
	sql := `INSERT INTO buses (id, bus_name, total_seats, start_time, estimated_time, routes, version)
            VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`
	_, err = r.db.Exec(ctx, sql, bus.ID, bus.BusName, bus.TotalSeats, bus.StartTime, bus.EstimatedTime, routes, bus.Version)
	if err != nil {
		return fmt.Errorf("failed to create bus: %w", err)
	}
	return nil
}

func (r *busRepository) FindByID(ctx context.Context, id string) (*model.Bus, error) {
	bus, err := scanBus(r.db.QueryRow(ctx, `SELECT `+busColumns+` FROM buses WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find bus by ID: %w", err)
	}
	return bus, nil
}

func (r *busRepository) FindAll(ctx context.Context) ([]model.Bus, error) {
	rows, err := r.db.Query(ctx, `SELECT `+busColumns+` FROM buses ORDER BY bus_name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query buses: %w", err)
	}
	defer rows.Close()

	buses := make([]model.Bus, 0)
	for rows.Next() {
		bus, err := scanBus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bus row: %w", err)
		}
		buses = append(buses, *bus)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bus rows: %w", err)
	}
	return buses, nil
}

func (r *busRepository) Delete(ctx context.Context, id string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM buses WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete bus: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AppendRoute pushes route onto the end of the route list
func (r *busRepository) AppendRoute(ctx context.Context, busID string, route model.Route) (bool, error) {
	b, err := json.Marshal(route)
	if err != nil {
		return false, fmt.Errorf("failed to encode route: %w", err)
	}
	sql := `UPDATE buses SET routes = routes || jsonb_build_array($2::jsonb), version = version + 1 WHERE id = $1`
	tag, err := r.db.Exec(ctx, sql, busID, string(b))
	if err != nil {
		return false, fmt.Errorf("failed to append route: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// The WHERE clause makes the write a no-op when the index is out of range,
// the route id guard does not match, or the values are already current.
const updateRouteAtSQL = `
UPDATE buses
SET routes = jsonb_set(
        routes,
        ARRAY[($2::int)::text],
        (routes->$2::int) || jsonb_build_object('routeName', $3::text, 'price', $4::float8)
    ),
    version = version + 1
WHERE id = $1
  AND $2::int >= 0
  AND $2::int < jsonb_array_length(routes)
  AND ($5::text = '' OR routes->$2::int->>'id' = $5::text)
  AND (routes->$2::int->>'routeName' IS DISTINCT FROM $3::text
       OR (routes->$2::int->>'price')::float8 IS DISTINCT FROM $4::float8)`

// UpdateRouteAt rewrites routeName and price of the element at index in place
func (r *busRepository) UpdateRouteAt(ctx context.Context, busID string, index int, routeName string, price float64, expectRouteID string) (bool, error) {
	tag, err := r.db.Exec(ctx, updateRouteAtSQL, busID, index, routeName, price, expectRouteID)
	if err != nil {
		return false, fmt.Errorf("failed to update route %d of bus %s: %w", index, busID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *busRepository) ReplaceRoutes(ctx context.Context, busID string, routes []model.Route, expectedVersion int64) error {
	encoded, err := encodeRoutes(routes)
	if err != nil {
		return err
	}
	sql := `UPDATE buses SET routes = $2::jsonb, version = version + 1 WHERE id = $1 AND version = $3`
	tag, err := r.db.Exec(ctx, sql, busID, encoded, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to replace routes of bus %s: %w", busID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}
