package middleware

import (
	"net/http"

	"bus_ticket/internal/model"
	"bus_ticket/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminMiddleware lets the request through only if the user named by the
// token is currently an admin in the store. The role claim inside the token
// is ignored, so a demotion applies to tokens issued before it.
// JWTAuthMiddleware must run first.
func AdminMiddleware(userRepo repository.UserRepository, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(AuthUserKey)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
			return
		}

		user, err := userRepo.FindByID(c.Request.Context(), userID)
		if err != nil {
			log.Error("failed to load user for admin check", zap.String("user_id", userID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			return
		}
		if user == nil || user.Role != model.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
			return
		}

		c.Set(AuthRoleKey, user.Role)
		c.Next()
	}
}
