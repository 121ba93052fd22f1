package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/huangang/auditdesk/backend/internal/middleware"
	"github.com/huangang/auditdesk/backend/internal/services"
	"github.com/huangang/auditdesk/backend/pkg/logger"
	"github.com/huangang/auditdesk/backend/pkg/response"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.authService.Login(&req)
	if err != nil {
		if !errors.Is(err, services.ErrInvalidCredentials) {
			logger.Warn().Err(err).Str("username", req.Username).Msg("login failed")
		}
		response.Unauthorized(c, err.Error())
		return
	}
	response.Success(c, resp)
}

// Me returns the current logged-in user
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authService.GetUserByID(middleware.GetUserID(c))
	if err != nil {
		response.NotFound(c, "user not found")
		return
	}
	response.Success(c, user)
}
