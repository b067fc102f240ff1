package controllers

import (
	"net/http"

	"github.com/Kariqs/amexan-storefront/models"
	"github.com/Kariqs/amexan-storefront/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	msgInvalidCredentials    = "invalid admin password"
	msgFailedToGenerateToken = "failed to generate token"
)

type AuthController struct {
	Auth   *utils.AdminAuth
	Logger *zap.Logger
}

// Login exchanges the shared admin password for a signed admin token.
func (c *AuthController) Login(ctx *gin.Context) {
	var loginData models.LoginData
	if err := ctx.ShouldBindJSON(&loginData); err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidInput)
		return
	}

	if !c.Auth.CheckPassword(loginData.Password) {
		c.Logger.Warn("failed admin login", zap.String("client_ip", ctx.ClientIP()))
		sendErrorResponse(ctx, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	token, expires, err := c.Auth.IssueToken()
	if err != nil {
		c.Logger.Error("JWT generation error", zap.Error(err))
		sendErrorResponse(ctx, http.StatusInternalServerError, msgFailedToGenerateToken)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, models.AdminToken{Token: token, ExpiresAt: expires.Unix()})
}
