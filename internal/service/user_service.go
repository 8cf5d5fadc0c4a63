package service

import (
	"context"
	"fmt"

	"bus_ticket/internal/model"
	"bus_ticket/internal/repository"
)

// UserService covers the account management endpoints
type UserService interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateProfile(ctx context.Context, actorID, targetID string, req model.UpdateProfileRequest) (*model.User, error)
	UpdateRole(ctx context.Context, targetID, role string) (*model.User, error)
	DeleteUser(ctx context.Context, id string) (int64, error)
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateProfile lets a user edit their own profile. Editing someone else's
// requires the actor's stored role to be admin.
func (s *userService) UpdateProfile(ctx context.Context, actorID, targetID string, req model.UpdateProfileRequest) (*model.User, error) {
	if actorID != targetID {
		actor, err := s.userRepo.FindByID(ctx, actorID)
		if err != nil {
			return nil, fmt.Errorf("failed to load acting user: %w", err)
		}
		if actor == nil || actor.Role != model.RoleAdmin {
			return nil, ErrForbidden
		}
	}

	user, err := s.userRepo.FindByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Location != nil {
		user.Location = *req.Location
	}
	if req.Email != nil {
		user.Email = *req.Email
	}

	ok, err := s.userRepo.UpdateProfile(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateRole promotes or demotes a user. Tokens already issued keep their role
// claim; admin-gated routes re-read the stored role, so a demotion takes effect
// there immediately.
func (s *userService) UpdateRole(ctx context.Context, targetID, role string) (*model.User, error) {
	if role != model.RoleUser && role != model.RoleAdmin {
		return nil, ErrInvalidRole
	}
	ok, err := s.userRepo.UpdateRole(ctx, targetID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	user, err := s.userRepo.FindByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *userService) DeleteUser(ctx context.Context, id string) (int64, error) {
	n, err := s.userRepo.Delete(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user: %w", err)
	}
	return n, nil
}
