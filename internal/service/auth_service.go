package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bus_ticket/internal/model"
	"bus_ticket/internal/repository"
	"bus_ticket/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthService provides sign-up and credential verification
type AuthService interface {
	SignUp(ctx context.Context, req model.SignUpRequest) (*model.User, error)
	Login(ctx context.Context, phone, password, role string) (*model.User, string, error)
}

type authService struct {
	userRepo          repository.UserRepository
	jwtUtil           *utils.JWTUtil
	initialAdminPhone string
	log               *zap.Logger
}

// NewAuthService creates a new AuthService. Only initialAdminPhone may sign up
// with the admin role; other admins are promoted by an existing admin.
func NewAuthService(userRepo repository.UserRepository, jwtUtil *utils.JWTUtil, initialAdminPhone string, log *zap.Logger) AuthService {
	return &authService{
		userRepo:          userRepo,
		jwtUtil:           jwtUtil,
		initialAdminPhone: initialAdminPhone,
		log:               log,
	}
}

// SignUp creates a new user account
func (s *authService) SignUp(ctx context.Context, req model.SignUpRequest) (*model.User, error) {
	existingUser, err := s.userRepo.FindByPhone(ctx, req.Phone)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, ErrUserAlreadyExists
	}

	role := model.RoleUser
	if req.Role == model.RoleAdmin {
		if s.initialAdminPhone == "" || req.Phone != s.initialAdminPhone {
			s.log.Warn("rejected admin sign-up", zap.String("phone", req.Phone))
			return nil, ErrForbidden
		}
		role = model.RoleAdmin
		s.log.Info("registering initial admin", zap.String("phone", req.Phone))
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return nil, ErrPasswordTooLong
		}
		return nil, err
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Phone:        req.Phone,
		PasswordHash: hashedPassword,
		Role:         role,
		Name:         req.Name,
		Location:     req.Location,
		Email:        req.Email,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost the race against a concurrent sign-up with the same phone.
		if errors.Is(err, repository.ErrDuplicatePhone) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user in repository: %w", err)
	}
	return user, nil
}

// Login verifies phone, password and requested role and returns a session token
func (s *authService) Login(ctx context.Context, phone, password, role string) (*model.User, string, error) {
	user, err := s.userRepo.FindByPhone(ctx, phone)
	if err != nil {
		return nil, "", fmt.Errorf("error finding user by phone: %w", err)
	}
	if user == nil {
		return nil, "", ErrUserNotFound
	}

	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, "", ErrInvalidPassword
	}

	if user.Role != role {
		s.log.Info("login role mismatch", zap.String("user_id", user.ID), zap.String("requested_role", role))
		return nil, "", ErrRoleMismatch
	}

	token, err := s.jwtUtil.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	return user, token, nil
}
