package middlewares

import (
	"net/http"
	"strings"

	"github.com/Kariqs/amexan-storefront/services"
	"github.com/Kariqs/amexan-storefront/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	roleKey             = "role"
	adminPasswordHeader = "X-Admin-Password"
)

// RequireAdmin accepts a bearer admin token or the shared admin password
// header and records services.RoleAdmin on the context.
func RequireAdmin(auth *utils.AdminAuth, logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if password := ctx.GetHeader(adminPasswordHeader); password != "" {
			if !auth.CheckPassword(password) {
				logger.Warn("rejected admin password", zap.String("client_ip", ctx.ClientIP()))
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid admin credentials"})
				return
			}
			ctx.Set(roleKey, services.RoleAdmin)
			ctx.Next()
			return
		}

		header := ctx.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Admin credentials required"})
			return
		}

		role, err := auth.ParseToken(token)
		if err != nil {
			logger.Warn("rejected admin token", zap.String("client_ip", ctx.ClientIP()), zap.Error(err))
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}
		if services.Role(role) != services.RoleAdmin {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Admin access required"})
			return
		}

		ctx.Set(roleKey, services.RoleAdmin)
		ctx.Next()
	}
}

// RoleFrom returns the role granted by RequireAdmin, or RoleCustomer.
func RoleFrom(ctx *gin.Context) services.Role {
	if v, ok := ctx.Get(roleKey); ok {
		if role, ok := v.(services.Role); ok {
			return role
		}
	}
	return services.RoleCustomer
}
