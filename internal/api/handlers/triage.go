package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kritiqo/core/internal/api/middleware"
	"github.com/kritiqo/core/internal/services"
	"github.com/kritiqo/core/internal/triage"
)

// TriageHandler handles single-message classification requests
type TriageHandler struct {
	triageService *services.TriageService
}

// NewTriageHandler creates a new TriageHandler instance
func NewTriageHandler(triageService *services.TriageService) *TriageHandler {
	return &TriageHandler{triageService: triageService}
}

// TriageRequest carries one message to classify. MessageID is the stable
// namespaced id; sender and subject drive the prefilter.
type TriageRequest struct {
	MessageID string `json:"message_id"`
	Sender    string `json:"expediteur"`
	Subject   string `json:"objet"`
	Body      string `json:"corps"`
	Force     bool   `json:"force"`
}

// TriageResponse is the verdict returned to the client
type TriageResponse struct {
	Category     string  `json:"categorie"`
	Priority     string  `json:"priorite"`
	Action       string  `json:"action"`
	Suggestion   *string `json:"suggestion"`
	ClassifiedBy string  `json:"classified_by"`
	Degraded     bool    `json:"degraded"`
	CacheHit     bool    `json:"cache_hit"`
}

// Triage classifies one message. Validation failures are the only 400s: a
// failing LLM still yields a 200 with the fallback verdict, flagged degraded.
// POST /api/triage
func (h *TriageHandler) Triage(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		respondUnauthenticated(c)
		return
	}

	var req TriageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, "Corps de requête invalide", err)
		return
	}

	if strings.TrimSpace(req.MessageID) == "" {
		respondValidationError(c, "L'identifiant du message est requis", nil)
		return
	}
	if strings.TrimSpace(req.Sender) == "" {
		respondValidationError(c, "L'expéditeur est requis", nil)
		return
	}
	if strings.TrimSpace(req.Subject) == "" && strings.TrimSpace(req.Body) == "" {
		respondValidationError(c, "L'objet ou le corps du message est requis", nil)
		return
	}

	outcome, err := h.triageService.TriageMessage(c.Request.Context(), userID, services.TriageInput{
		MessageID: req.MessageID,
		Sender:    req.Sender,
		Subject:   req.Subject,
		Body:      req.Body,
		Force:     req.Force,
	})
	if err != nil {
		respondInternalError(c, "Le tri a échoué")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    toTriageResponse(outcome),
	})
}

func toTriageResponse(outcome triage.Outcome) TriageResponse {
	return TriageResponse{
		Category:     string(outcome.Result.Category),
		Priority:     string(outcome.Result.Priority),
		Action:       string(outcome.Result.Action),
		Suggestion:   outcome.Result.Suggestion,
		ClassifiedBy: outcome.Result.ClassifiedBy,
		Degraded:     outcome.Result.Degraded,
		CacheHit:     outcome.CacheHit,
	}
}
