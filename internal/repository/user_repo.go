package repository

import (
	"context"
	"errors"
	"fmt"

	"bus_ticket/internal/model"

	"github.com/jackc/pgx/v5"
)

// UserRepository defines operations for user data
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByPhone(ctx context.Context, phone string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindAll(ctx context.Context) ([]model.User, error)
	UpdateProfile(ctx context.Context, user *model.User) (bool, error)
	UpdateRole(ctx context.Context, id, role string) (bool, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) (bool, error)
	Delete(ctx context.Context, id string) (int64, error)
}

type userRepository struct {
	db PgxIface
}

// NewUserRepository creates a postgres-backed UserRepository
func NewUserRepository(db PgxIface) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, phone, password_hash, role, name, location, email, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Phone, &user.PasswordHash, &user.Role, &user.Name, &user.Location, &user.Email, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create inserts a new user; user.ID must already be assigned
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	sql := `INSERT INTO users (id, phone, password_hash, role, name, location, email, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, sql, user.ID, user.Phone, user.PasswordHash, user.Role, user.Name, user.Location, user.Email, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePhone
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByPhone retrieves a user by their phone number
func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // service layer decides what a missing user means
		}
		return nil, fmt.Errorf("failed to find user by phone: %w", err)
	}
	return user, nil
}

// FindByID retrieves a user by their ID
func (r *userRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

func (r *userRepository) FindAll(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, *user)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

// UpdateProfile overwrites name, location and email of user.ID
func (r *userRepository) UpdateProfile(ctx context.Context, user *model.User) (bool, error) {
	sql := `UPDATE users SET name = $2, location = $3, email = $4 WHERE id = $1`
	tag, err := r.db.Exec(ctx, sql, user.ID, user.Name, user.Location, user.Email)
	if err != nil {
		return false, fmt.Errorf("failed to update user profile: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *userRepository) UpdateRole(ctx context.Context, id, role string) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return false, fmt.Errorf("failed to update user role: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return false, fmt.Errorf("failed to update user password: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes a user and reports how many rows went away
func (r *userRepository) Delete(ctx context.Context, id string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user: %w", err)
	}
	return tag.RowsAffected(), nil
}
