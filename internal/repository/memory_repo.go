package repository

import (
	"context"
	"sort"
	"sync"

	"bus_ticket/internal/model"

	"github.com/google/uuid"
)

// MemoryUserRepository is a process-local UserRepository used for
// STORE_DRIVER=memory and as an isolated store in tests
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]model.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]model.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Phone == user.Phone {
			return ErrDuplicatePhone
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) FindByPhone(_ context.Context, phone string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Phone == phone {
			found := u
			return &found, nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *MemoryUserRepository) FindAll(_ context.Context) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (r *MemoryUserRepository) update(id string, fn func(u *model.User)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return false
	}
	fn(&u)
	r.users[id] = u
	return true
}

func (r *MemoryUserRepository) UpdateProfile(_ context.Context, user *model.User) (bool, error) {
	return r.update(user.ID, func(u *model.User) {
		u.Name = user.Name
		u.Location = user.Location
		u.Email = user.Email
	}), nil
}

func (r *MemoryUserRepository) UpdateRole(_ context.Context, id, role string) (bool, error) {
	return r.update(id, func(u *model.User) { u.Role = role }), nil
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id, passwordHash string) (bool, error) {
	return r.update(id, func(u *model.User) { u.PasswordHash = passwordHash }), nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return 0, nil
	}
	delete(r.users, id)
	return 1, nil
}

// MemoryBusRepository is the process-local BusRepository
type MemoryBusRepository struct {
	mu    sync.RWMutex
	buses map[string]model.Bus
}

func NewMemoryBusRepository() *MemoryBusRepository {
	return &MemoryBusRepository{buses: make(map[string]model.Bus)}
}

func cloneBus(b model.Bus) model.Bus {
	b.Routes = append(make([]model.Route, 0, len(b.Routes)), b.Routes...)
	return b
}

func (r *MemoryBusRepository) Create(_ context.Context, bus *model.Bus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if bus.ID == "" {
		bus.ID = uuid.NewString()
	}
	r.buses[bus.ID] = cloneBus(*bus)
	return nil
}

func (r *MemoryBusRepository) FindByID(_ context.Context, id string) (*model.Bus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.buses[id]
	if !ok {
		return nil, nil
	}
	b = cloneBus(b)
	return &b, nil
}

func (r *MemoryBusRepository) FindAll(_ context.Context) ([]model.Bus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	buses := make([]model.Bus, 0, len(r.buses))
	for _, b := range r.buses {
		buses = append(buses, cloneBus(b))
	}
	sort.Slice(buses, func(i, j int) bool {
		if buses[i].BusName == buses[j].BusName {
			return buses[i].ID < buses[j].ID
		}
		return buses[i].BusName < buses[j].BusName
	})
	return buses, nil
}

func (r *MemoryBusRepository) Delete(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.buses[id]; !ok {
		return 0, nil
	}
	delete(r.buses, id)
	return 1, nil
}

func (r *MemoryBusRepository) AppendRoute(_ context.Context, busID string, route model.Route) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buses[busID]
	if !ok {
		return false, nil
	}
	b = cloneBus(b)
	b.Routes = append(b.Routes, route)
	b.Version++
	r.buses[busID] = b
	return true, nil
}

func (r *MemoryBusRepository) UpdateRouteAt(_ context.Context, busID string, index int, routeName string, price float64, expectRouteID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buses[busID]
	if !ok || index < 0 || index >= len(b.Routes) {
		return false, nil
	}
	current := b.Routes[index]
	if expectRouteID != "" && current.ID != expectRouteID {
		return false, nil
	}
	if current.RouteName == routeName && current.Price == price {
		return false, nil
	}
	b = cloneBus(b)
	b.Routes[index].RouteName = routeName
	b.Routes[index].Price = price
	b.Version++
	r.buses[busID] = b
	return true, nil
}

func (r *MemoryBusRepository) ReplaceRoutes(_ context.Context, busID string, routes []model.Route, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buses[busID]
	if !ok || b.Version != expectedVersion {
		return ErrVersionConflict
	}
	b.Routes = append(make([]model.Route, 0, len(routes)), routes...)
	b.Version++
	r.buses[busID] = b
	return nil
}
