package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account in the credential store, keyed by phone
type User struct {
	ID           string    `json:"_id"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"` // Do not expose password hash in JSON responses
	Role         string    `json:"role"`
	Name         string    `json:"name,omitempty"`
	Location     string    `json:"location,omitempty"`
	Email        string    `json:"email,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SignUpRequest is the body of POST /users. bcrypt only accepts passwords up
// to 72 bytes.
type SignUpRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required,max=72"`
	Role     string `json:"role" binding:"omitempty,oneof=user admin"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Email    string `json:"email" binding:"omitempty,email"`
}

// UpdateProfileRequest carries the mutable profile fields; nil means unchanged
type UpdateProfileRequest struct {
	Name     *string `json:"name,omitempty"`
	Location *string `json:"location,omitempty"`
	Email    *string `json:"email,omitempty" binding:"omitempty,email"`
}

type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// ForgetPasswordRequest starts the reset handshake; the link is mailed to Email
type ForgetPasswordRequest struct {
	Phone string `json:"phone" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6,max=72"`
}
