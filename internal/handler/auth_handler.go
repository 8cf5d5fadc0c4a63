package handler

import (
	"errors"
	"net/http"

	"bus_ticket/internal/middleware"
	"bus_ticket/internal/model"
	"bus_ticket/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler handles login, session status and the password reset handshake
type AuthHandler struct {
	service      service.AuthService
	resetService service.PasswordResetService
	log          *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(s service.AuthService, rs service.PasswordResetService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{service: s, resetService: rs, log: log}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request: " + err.Error()})
		return
	}

	_, token, err := h.service.Login(c.Request.Context(), req.Phone, req.Password, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"message": "User not found"})
		case errors.Is(err, service.ErrInvalidPassword):
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid password"})
		case errors.Is(err, service.ErrRoleMismatch):
			c.JSON(http.StatusForbidden, gin.H{"message": "Access denied. Role does not match."})
		default:
			h.log.Error("login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Login failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "token": token})
}

// AuthStatus reports the role carried by a valid session token
func (h *AuthHandler) AuthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"isLoggedIn": true, "role": c.GetString(middleware.AuthRoleKey)})
}

func (h *AuthHandler) ForgetPassword(c *gin.Context) {
	var req model.ForgetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request: " + err.Error()})
		return
	}

	if err := h.resetService.RequestReset(c.Request.Context(), req.Phone, req.Email); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		h.log.Error("password reset request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to process password reset request"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset link sent to your email", "email": req.Email})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req model.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request: " + err.Error()})
		return
	}

	if err := h.resetService.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidResetToken):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid or expired token"})
		case errors.Is(err, service.ErrPasswordTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		default:
			h.log.Error("password reset failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to reset password"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset successfully"})
}

// RegisterAuthRoutes registers auth routes
func (h *AuthHandler) RegisterAuthRoutes(r gin.IRouter, jwtAuthMW gin.HandlerFunc) {
	r.POST("/login", h.Login)
	r.GET("/auth-status", jwtAuthMW, h.AuthStatus)
	r.POST("/forgetPassword", h.ForgetPassword)
	r.POST("/resetPassword", h.ResetPassword)
}
