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

// UserHandler handles sign-up and account management
type UserHandler struct {
	authService service.AuthService
	service     service.UserService
	log         *zap.Logger
}

func NewUserHandler(as service.AuthService, s service.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{authService: as, service: s, log: log}
}

func getAuthUserID(c *gin.Context) (string, error) {
	userID := c.GetString(middleware.AuthUserKey)
	if userID == "" {
		return "", errors.New("user ID not found in context")
	}
	return userID, nil
}

func (h *UserHandler) SignUp(c *gin.Context) {
	var req model.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request: " + err.Error()})
		return
	}

	user, err := h.authService.SignUp(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"message": "User already exists. Please login."})
		case errors.Is(err, service.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"message": "Admin accounts cannot be self-registered"})
		case errors.Is(err, service.ErrPasswordTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		default:
			h.log.Error("sign-up failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to register user"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"acknowledged": true, "insertedId": user.ID})
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		h.log.Error("list users failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to retrieve users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	actorID, err := getAuthUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
		return
	}

	var req model.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request: " + err.Error()})
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), actorID, c.Param("id"), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		default:
			h.log.Error("update profile failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update user"})
		}
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateRole(c *gin.Context) {
	var req model.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request: " + err.Error()})
		return
	}

	user, err := h.service.UpdateRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRole):
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		default:
			h.log.Error("update role failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update role"})
		}
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	n, err := h.service.DeleteUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.log.Error("delete user failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true, "deletedCount": n})
}

// RegisterUserRoutes registers the /users routes
func (h *UserHandler) RegisterUserRoutes(r gin.IRouter, jwtAuthMW, adminMW gin.HandlerFunc) {
	users := r.Group("/users")
	{
		users.POST("", h.SignUp)
		users.GET("", jwtAuthMW, adminMW, h.ListUsers)
		users.PUT("/:id", jwtAuthMW, h.UpdateProfile)
		users.PATCH("/:id/role", jwtAuthMW, adminMW, h.UpdateRole)
		users.DELETE("/:id", jwtAuthMW, adminMW, h.DeleteUser)
	}
}
