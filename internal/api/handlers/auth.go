package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kritiqo/core/internal/api/middleware"
	"github.com/kritiqo/core/internal/database/models"
	"github.com/kritiqo/core/internal/services"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// AuthHandler handles authentication related requests
type AuthHandler struct {
	userService *services.UserService
	jwtManager  *middleware.JWTManager
	logService  *services.LogService
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(userService *services.UserService, jwtManager *middleware.JWTManager, logService *services.LogService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		jwtManager:  jwtManager,
		logService:  logService,
	}
}

// Login handles user login requests
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Corps de requête invalide",
				"details": err.Error(),
			},
		})
		return
	}

	user, err := h.userService.VerifyPassword(req.Username, req.Password)
	if err != nil {
		h.logService.LogWarn(0, models.LogModuleAuth, "login_failed", "Login attempt failed", map[string]interface{}{
			"username": req.Username,
			"ip":       c.ClientIP(),
		})
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUTH_FAILED",
				"message": "Identifiant ou mot de passe incorrect",
			},
		})
		return
	}

	token, expiresAt, err := h.jwtManager.GenerateToken(user.ID, user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Impossible de générer le jeton",
			},
		})
		return
	}

	h.logService.LogLogin(user.ID, req.Username)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": LoginResponse{
			Token:     token,
			ExpiresAt: expiresAt,
		},
	})
}

// RefreshToken handles token refresh requests
// POST /api/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUTH_FAILED",
				"message": "Utilisateur non authentifié",
			},
		})
		return
	}

	username, _ := middleware.GetUsernameFromContext(c)

	token, expiresAt, err := h.jwtManager.GenerateToken(userID, username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Impossible de générer le jeton",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": LoginResponse{
			Token:     token,
			ExpiresAt: expiresAt,
		},
	})
}

// Logout handles user logout requests. JWTs are stateless; the client drops
// the token.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Déconnexion réussie",
	})
}

// GetCurrentUser returns the current authenticated user info
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUTH_FAILED",
				"message": "Utilisateur non authentifié",
			},
		})
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Utilisateur introuvable",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"id":            user.ID,
			"username":      user.Username,
			"business_name": user.BusinessName,
			"created_at":    user.CreatedAt.Unix(),
		},
	})
}
