package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kritiqo/core/internal/api/middleware"
	"github.com/kritiqo/core/internal/services"
)

// SettingsHandler handles user settings requests
type SettingsHandler struct {
	userService *services.UserService
}

// NewSettingsHandler creates a new SettingsHandler instance
func NewSettingsHandler(userService *services.UserService) *SettingsHandler {
	return &SettingsHandler{userService: userService}
}

// SettingsResponse is the API shape of user settings. The LLM key is masked.
type SettingsResponse struct {
	LLMProvider   string `json:"llm_provider"`
	LLMAPIKeySet  bool   `json:"llm_api_key_set"`
	LLMModel      string `json:"llm_model"`
	LLMBaseURL    string `json:"llm_base_url"`
	AzureTenantID string `json:"azure_tenant_id"`
}

// UpdateSettingsRequest updates triage configuration. An empty LLMAPIKey
// keeps the stored one; "-" clears it.
type UpdateSettingsRequest struct {
	LLMProvider   string `json:"llm_provider"`
	LLMAPIKey     string `json:"llm_api_key"`
	LLMModel      string `json:"llm_model"`
	LLMBaseURL    string `json:"llm_base_url"`
	AzureTenantID string `json:"azure_tenant_id"`
}

// GetSettings returns the current user's settings
// GET /api/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		respondUnauthenticated(c)
		return
	}

	settings, err := h.userService.GetUserSettings(userID)
	if err != nil {
		respondInternalError(c, "Impossible de récupérer les paramètres")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": SettingsResponse{
			LLMProvider:   settings.LLMProvider,
			LLMAPIKeySet:  settings.LLMAPIKey != "",
			LLMModel:      settings.LLMModel,
			LLMBaseURL:    settings.LLMBaseURL,
			AzureTenantID: settings.AzureTenantID,
		},
	})
}

// UpdateSettings updates the current user's settings
// PUT /api/settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		respondUnauthenticated(c)
		return
	}

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, "Corps de requête invalide", err)
		return
	}

	settings, err := h.userService.GetUserSettings(userID)
	if err != nil {
		respondInternalError(c, "Impossible de récupérer les paramètres")
		return
	}

	settings.LLMProvider = req.LLMProvider
	settings.LLMModel = req.LLMModel
	settings.LLMBaseURL = req.LLMBaseURL
	settings.AzureTenantID = req.AzureTenantID

	switch strings.TrimSpace(req.LLMAPIKey) {
	case "":
		// Keep the stored key
	case "-":
		settings.LLMAPIKey = ""
	default:
		settings.LLMAPIKey = req.LLMAPIKey
	}

	if err := h.userService.UpdateUserSettings(userID, settings); err != nil {
		respondInternalError(c, "Impossible d'enregistrer les paramètres")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
