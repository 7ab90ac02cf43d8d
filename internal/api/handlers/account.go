package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kritiqo/core/internal/api/middleware"
	"github.com/kritiqo/core/internal/database/models"
	"github.com/kritiqo/core/internal/mail"
	"github.com/kritiqo/core/internal/services"
)

// AccountHandler handles connected mailbox requests
type AccountHandler struct {
	accountService *services.AccountService
	ingestService  *services.IngestService
	triageService  *services.TriageService
	scheduler      *services.TriageScheduler
}

// NewAccountHandler creates a new AccountHandler instance
func NewAccountHandler(accountService *services.AccountService, ingestService *services.IngestService, triageService *services.TriageService, scheduler *services.TriageScheduler) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		ingestService:  ingestService,
		triageService:  triageService,
		scheduler:      scheduler,
	}
}

// ConnectOAuthRequest links a Gmail or Outlook mailbox from OAuth tokens
// obtained by the frontend flow.
type ConnectOAuthRequest struct {
	Provider     string `json:"provider" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token" binding:"required"`
	ExpiresAt    int64  `json:"expires_at"`
	TenantID     string `json:"tenant_id"`
}

// ConnectIMAPRequest links a mailbox over IMAP with an app password
type ConnectIMAPRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password" binding:"required"`
}

// AccountResponse represents a connected mailbox
type AccountResponse struct {
	ID         uint   `json:"id"`
	Provider   string `json:"provider"`
	Email      string `json:"email"`
	IMAPHost   string `json:"imap_host,omitempty"`
	IMAPPort   int    `json:"imap_port,omitempty"`
	Enabled    bool   `json:"enabled"`
	LastSyncAt int64  `json:"last_sync_at"`
	CreatedAt  int64  `json:"created_at"`
}

func toAccountResponse(account *models.ConnectedAccount) AccountResponse {
	return AccountResponse{
		ID:         account.ID,
		Provider:   string(account.Provider),
		Email:      account.Email,
		IMAPHost:   account.IMAPHost,
		IMAPPort:   account.IMAPPort,
		Enabled:    account.Enabled,
		LastSyncAt: account.LastSyncAt.Unix(),
		CreatedAt:  account.CreatedAt.Unix(),
	}
}

// ListAccounts returns all connected mailboxes for the current user
// GET /api/accounts
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		respondUnauthenticated(c)
		return
	}

	accounts, err := h.accountService.GetAccountsByUserID(userID)
	if err != nil {
		respondInternalError(c, "Impossible de récupérer les comptes")
		return
	}

	response := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		response = append(response, toAccountResponse(&accounts[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    response,
	})
}

// ConnectOAuthAccount links a Gmail or Outlook mailbox
// POST /api/accounts
func (h *AccountHandler) ConnectOAuthAccount(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		respondUnauthenticated(c)
		return
	}

	var req ConnectOAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, "Corps de requête invalide", err)
		return
	}

	provider := models.Provider(req.Provider)
	if !provider.IsValid() || provider == models.ProviderIMAP {
		respondValidationError(c, "Fournisseur non pris en charge", nil)
		return
	}

	account, err := h.accountService.ConnectOAuth(services.ConnectOAuthInput{
		UserID:       userID,
		Provider:     provider,
		Email:        req.Email,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		ExpiresAt:    time.Unix(req.ExpiresAt, 0),
		TenantID:     req.TenantID,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidAccountData) {
			respondValidationError(c, "Données de compte invalides", err)
			return
		}
		respondInternalError(c, "Impossible de connecter la boîte mail")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    toAccountResponse(account),
	})
}

// ConnectIMAPAccount links a mailbox over IMAP. Credentials are verified
// with a real login before the account is saved.
// POST /api/accounts/imap
func (h *AccountHandler) ConnectIMAPAccount(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		respondUnauthenticated(c)
		return
	}

	var req ConnectIMAPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, "Corps de requête invalide", err)
		return
	}

	account, err := h.accountService.ConnectIMAP(services.ConnectIMAPInput{
		UserID:   userID,
		Email:    req.Email,
		Host:     req.Host,
		Port:     req.Port,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccountAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "ALREADY_EXISTS",
					"message": "Cette boîte mail est déjà connectée",
				},
			})
		case errors.Is(err, mail.ErrAuthFailed):
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "MAILBOX_AUTH_FAILED",
					"message": "Identifiants IMAP invalides",
				},
			})
		case errors.Is(err, mail.ErrSourceUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "MAILBOX_UNAVAILABLE",
					"message": "Serveur IMAP injoignable",
				},
			})
		default:
			respondInternalError(c, "Impossible de connecter la boîte mail")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    toAccountResponse(account),
	})
}

// DeleteAccount unlinks a mailbox
// DELETE /api/accounts/:id
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	userID, accountID, ok := accountRequestIDs(c)
	if !ok {
		return
	}

	if err := h.accountService.DeleteAccount(accountID, userID); err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			respondAccountNotFound(c)
			return
		}
		respondInternalError(c, "Impossible de supprimer le compte")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SetAccountEnabled toggles a mailbox
// PUT /api/accounts/:id/enable and /api/accounts/:id/disable
func (h *AccountHandler) SetAccountEnabled(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, accountID, ok := accountRequestIDs(c)
		if !ok {
			return
		}

		account, err := h.accountService.SetAccountEnabled(accountID, userID, enabled)
		if err != nil {
			if errors.Is(err, services.ErrAccountNotFound) {
				respondAccountNotFound(c)
				return
			}
			respondInternalError(c, "Impossible de modifier le compte")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    toAccountResponse(account),
		})
	}
}

// ImportAccount fetches recent messages for one mailbox and stores the new
// ones. An unchanged mailbox yields {"success": true, "extracted": 0}.
// POST /api/accounts/:id/import
func (h *AccountHandler) ImportAccount(c *gin.Context) {
	userID, accountID, ok := accountRequestIDs(c)
	if !ok {
		return
	}

	if h.scheduler != nil {
		if !h.scheduler.TryLockAccount(accountID) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "IMPORT_IN_PROGRESS",
					"message": "Un import est déjà en cours pour ce compte",
				},
			})
			return
		}
		defer h.scheduler.UnlockAccount(accountID)
	}

	result, err := h.ingestService.ImportAccount(c.Request.Context(), userID, accountID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccountNotFound):
			respondAccountNotFound(c)
		case errors.Is(err, mail.ErrAuthFailed):
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "MAILBOX_AUTH_FAILED",
					"message": "Échec de l'authentification à la boîte mail, veuillez reconnecter le compte",
				},
			})
		case errors.Is(err, mail.ErrSourceUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "MAILBOX_UNAVAILABLE",
					"message": "Boîte mail temporairement indisponible, veuillez réessayer",
				},
			})
		default:
			respondInternalError(c, "L'import a échoué")
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// TriageAccount classifies every stored message of one mailbox
// POST /api/accounts/:id/triage
func (h *AccountHandler) TriageAccount(c *gin.Context) {
	userID, accountID, ok := accountRequestIDs(c)
	if !ok {
		return
	}

	force := c.Query("force") == "true"

	if _, err := h.accountService.GetAccountByIDAndUserID(accountID, userID); err != nil {
		respondAccountNotFound(c)
		return
	}

	result, err := h.triageService.TriageAccount(c.Request.Context(), userID, accountID, force)
	if err != nil {
		respondInternalError(c, "Le tri a échoué")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// accountRequestIDs extracts the authenticated user and the :id route param
func accountRequestIDs(c *gin.Context) (userID, accountID uint, ok bool) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		respondUnauthenticated(c)
		return 0, 0, false
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondValidationError(c, "Identifiant de compte invalide", err)
		return 0, 0, false
	}

	return userID, uint(id), true
}

func respondUnauthenticated(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "AUTH_FAILED",
			"message": "Utilisateur non authentifié",
		},
	})
}

func respondValidationError(c *gin.Context, message string, err error) {
	body := gin.H{
		"code":    "VALIDATION_ERROR",
		"message": message,
	}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   body,
	})
}

func respondInternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "INTERNAL_ERROR",
			"message": message,
		},
	})
}

func respondAccountNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "NOT_FOUND",
			"message": "Compte introuvable",
		},
	})
}
