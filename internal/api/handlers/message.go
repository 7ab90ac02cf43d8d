package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kritiqo/core/internal/api/middleware"
	"github.com/kritiqo/core/internal/database/models"
	"github.com/kritiqo/core/internal/services"
)

// MessageHandler handles stored message requests
type MessageHandler struct {
	ingestService *services.IngestService
}

// NewMessageHandler creates a new MessageHandler instance
func NewMessageHandler(ingestService *services.IngestService) *MessageHandler {
	return &MessageHandler{ingestService: ingestService}
}

// MessageResponse represents a stored message with its triage verdict
type MessageResponse struct {
	ID         uint           `json:"id"`
	MessageID  string         `json:"message_id"`
	Source     string         `json:"source"`
	Subject    string         `json:"subject"`
	FromName   string         `json:"from_name"`
	FromAddr   string         `json:"from_addr"`
	ReceivedAt int64          `json:"received_at"`
	Snippet    string         `json:"snippet"`
	Triage     *TriageVerdict `json:"triage,omitempty"`
}

// TriageVerdict is the API shape of a stored classification
type TriageVerdict struct {
	Category     string  `json:"categorie"`
	Priority     string  `json:"priorite"`
	Action       string  `json:"action"`
	Suggestion   *string `json:"suggestion"`
	ClassifiedBy string  `json:"classified_by"`
	Degraded     bool    `json:"degraded"`
	AnalyzedAt   int64   `json:"analyzed_at"`
}

func toMessageResponse(msg *models.Message) MessageResponse {
	resp := MessageResponse{
		ID:         msg.ID,
		MessageID:  msg.MessageID,
		Source:     string(msg.Source),
		Subject:    msg.Subject,
		FromName:   msg.FromName,
		FromAddr:   msg.FromAddr,
		ReceivedAt: msg.ReceivedAt.Unix(),
		Snippet:    msg.Snippet,
	}
	if msg.TriageResult != nil && msg.TriageResult.IsComplete() {
		resp.Triage = &TriageVerdict{
			Category:     string(msg.TriageResult.Category),
			Priority:     string(msg.TriageResult.Priority),
			Action:       string(msg.TriageResult.Action),
			Suggestion:   msg.TriageResult.Suggestion,
			ClassifiedBy: msg.TriageResult.ClassifiedBy,
			Degraded:     msg.TriageResult.Degraded,
			AnalyzedAt:   msg.TriageResult.AnalyzedAt.Unix(),
		}
	}
	return resp
}

// ListMessages returns the user's messages, newest first
// GET /api/messages
func (h *MessageHandler) ListMessages(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		respondUnauthenticated(c)
		return
	}

	query := services.MessageQuery{UserID: userID}

	if v := c.Query("account_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			respondValidationError(c, "Identifiant de compte invalide", err)
			return
		}
		query.AccountID = uint(id)
	}
	query.Source = c.Query("source")
	query.Category = c.Query("categorie")
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondValidationError(c, "Paramètre since invalide, format RFC 3339 attendu", err)
			return
		}
		query.Since = t
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			respondValidationError(c, "Paramètre limit invalide", err)
			return
		}
		query.Limit = limit
	}
	if v := c.Query("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			respondValidationError(c, "Paramètre offset invalide", err)
			return
		}
		query.Offset = offset
	}

	messages, total, err := h.ingestService.ListMessages(query)
	if err != nil {
		respondInternalError(c, "Impossible de récupérer les messages")
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		response = append(response, toMessageResponse(&messages[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    response,
		"total":   total,
	})
}

// GetMessage returns one message with its full body
// GET /api/messages/:id
func (h *MessageHandler) GetMessage(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		respondUnauthenticated(c)
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondValidationError(c, "Identifiant de message invalide", err)
		return
	}

	msg, err := h.ingestService.GetMessage(uint(id), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Message introuvable",
			},
		})
		return
	}

	resp := toMessageResponse(msg)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"message": resp,
			"body":    msg.Body,
		},
	})
}
