package service

import (
	"context"
	"errors"
	"fmt"

	"bus_ticket/internal/model"
	"bus_ticket/internal/repository"

	"github.com/google/uuid"
)

// BusService manages buses and the positional route list inside each bus.
//
// Clients address routes by index. Every route also carries a stable id,
// which callers may pass back as a guard: an edit or delete is then applied
// only if the route at that index still has the expected id.
type BusService interface {
	CreateBus(ctx context.Context, req model.CreateBusRequest) (*model.Bus, error)
	ListBuses(ctx context.Context) ([]model.Bus, error)
	GetBus(ctx context.Context, id string) (*model.Bus, error)
	DeleteBus(ctx context.Context, id string) (int64, error)

	ListRoutes(ctx context.Context, busID string) ([]model.Route, error)
	AddRoute(ctx context.Context, busID string, req model.RouteRequest) (*model.Route, error)
	EditRoute(ctx context.Context, busID string, index int, req model.EditRouteRequest) (bool, error)
	DeleteRoute(ctx context.Context, busID string, index int, expectRouteID string) (int, error)
}

type busService struct {
	repo repository.BusRepository
}

func NewBusService(repo repository.BusRepository) BusService {
	return &busService{repo: repo}
}

func newRoute(req model.RouteRequest) model.Route {
	return model.Route{ID: uuid.NewString(), RouteName: req.RouteName, Price: req.Price}
}

func (s *busService) CreateBus(ctx context.Context, req model.CreateBusRequest) (*model.Bus, error) {
	bus := &model.Bus{
		ID:            uuid.NewString(),
		BusName:       req.BusName,
		TotalSeats:    req.TotalSeats,
		StartTime:     req.StartTime,
		EstimatedTime: req.EstimatedTime,
		Routes:        make([]model.Route, 0, len(req.Routes)),
	}
	for _, rt := range req.Routes {
		bus.Routes = append(bus.Routes, newRoute(rt))
	}
	if err := s.repo.Create(ctx, bus); err != nil {
		return nil, fmt.Errorf("failed to create bus in repo: %w", err)
	}
	return bus, nil
}

func (s *busService) ListBuses(ctx context.Context) ([]model.Bus, error) {
	buses, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list buses: %w", err)
	}
	return buses, nil
}

func (s *busService) GetBus(ctx context.Context, id string) (*model.Bus, error) {
	bus, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find bus by ID: %w", err)
	}
	if bus == nil {
		return nil, ErrBusNotFound
	}
	return bus, nil
}

func (s *busService) DeleteBus(ctx context.Context, id string) (int64, error) {
	n, err := s.repo.Delete(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete bus: %w", err)
	}
	return n, nil
}

func (s *busService) ListRoutes(ctx context.Context, busID string) ([]model.Route, error) {
	bus, err := s.GetBus(ctx, busID)
	if err != nil {
		return nil, err
	}
	return bus.Routes, nil
}

func (s *busService) AddRoute(ctx context.Context, busID string, req model.RouteRequest) (*model.Route, error) {
	route := newRoute(req)
	ok, err := s.repo.AppendRoute(ctx, busID, route)
	if err != nil {
		return nil, fmt.Errorf("failed to add route: %w", err)
	}
	if !ok {
		return nil, ErrBusNotFound
	}
	return &route, nil
}

// EditRoute rewrites routeName and price of the route at index with a single
// field-path write; other routes are untouched. It reports false, without an
// error, when nothing was modified: unknown bus, index out of range, guard id
// mismatch or identical values.
func (s *busService) EditRoute(ctx context.Context, busID string, index int, req model.EditRouteRequest) (bool, error) {
	if index < 0 {
		return false, nil
	}
	updated, err := s.repo.UpdateRouteAt(ctx, busID, index, req.RouteName, req.Price, req.RouteID)
	if err != nil {
		return false, fmt.Errorf("failed to edit route: %w", err)
	}
	return updated, nil
}

// DeleteRoute removes the route at index; later routes shift down by one.
// The rewrite is conditioned on the bus version that was read, so a
// concurrent edit or delete yields ErrRouteConflict instead of removing the
// wrong element or dropping the other write. A bus deleted in between yields
// ErrBusNotFound.
func (s *busService) DeleteRoute(ctx context.Context, busID string, index int, expectRouteID string) (int, error) {
	bus, err := s.GetBus(ctx, busID)
	if err != nil {
		return 0, err
	}
	if index < 0 || index >= len(bus.Routes) {
		return 0, ErrRouteNotFound
	}
	if expectRouteID != "" && bus.Routes[index].ID != expectRouteID {
		return 0, ErrRouteConflict
	}

	routes := make([]model.Route, 0, len(bus.Routes)-1)
	routes = append(routes, bus.Routes[:index]...)
	routes = append(routes, bus.Routes[index+1:]...)

	if err := s.repo.ReplaceRoutes(ctx, busID, routes, bus.Version); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			current, findErr := s.repo.FindByID(ctx, busID)
			if findErr != nil {
				return 0, fmt.Errorf("failed to reload bus after conflict: %w", findErr)
			}
			if current == nil {
				return 0, ErrBusNotFound
			}
			return 0, ErrRouteConflict
		}
		return 0, fmt.Errorf("failed to delete route: %w", err)
	}
	return 1, nil
}
