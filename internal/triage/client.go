package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kritiqo/core/internal/database/models"
)

var (
	// ErrNotConfigured indicates the LLM client has no credentials
	ErrNotConfigured = errors.New("LLM client not configured")
	// ErrAPICallFailed indicates the LLM API call failed
	ErrAPICallFailed = errors.New("LLM API call failed")
	// ErrInvalidResponse indicates an unparseable or out-of-enum response
	ErrInvalidResponse = errors.New("invalid LLM response")
	// ErrRateLimited indicates the provider returned 429
	ErrRateLimited = errors.New("LLM rate limited")
)

// Provider represents an LLM provider
type Provider string

const (
	// ProviderOpenAI represents the OpenAI API
	ProviderOpenAI Provider = "openai"
	// ProviderClaude represents the Anthropic Claude API
	ProviderClaude Provider = "claude"
	// ProviderCustom represents a custom OpenAI-compatible endpoint
	ProviderCustom Provider = "custom"
)

const (
	classifyMaxTokens   = 200
	classifyTemperature = 0.2
	classifyBodyLimit   = 4000
)

// Result is a triage verdict, from whichever stage produced it
type Result struct {
	Category   models.Category `json:"categorie"`
	Priority   models.Priority `json:"priorite"`
	Action     models.Action   `json:"action"`
	Suggestion *string         `json:"suggestion"`
}

// Validate checks every field against its closed enum
func (r Result) Validate() error {
	if !r.Category.IsValid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidResponse, r.Category)
	}
	if !r.Priority.IsValid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidResponse, r.Priority)
	}
	if !r.Action.IsValid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidResponse, r.Action)
	}
	return nil
}

// FallbackResult is the verdict used when classification cannot run:
// neutral category, medium priority, flagged for a human.
func FallbackResult() Result {
	return Result{
		Category: models.CategoryOther,
		Priority: models.PriorityMedium,
		Action:   models.ActionReview,
	}
}

const classifySystemPrompt = `Tu es un assistant de tri d'emails pour des professionnels (restaurants, commerces, PME).
Classe l'email et réponds UNIQUEMENT avec un objet JSON, sans texte autour, au format:
{"categorie": "...", "priorite": "...", "action": "...", "suggestion": "..."}

Valeurs autorisées:
- categorie: "Avis client", "Commande", "Juridique", "RH", "Facture", "Notification automatique", "Commercial", "Publicité/Spam", "Autre"
- priorite: "Urgent", "Moyen", "Faible"
- action: "Répondre", "Traiter", "Transférer", "Archiver", "Ignorer", "Examiner manuellement"
- suggestion: une phrase courte en français, ou null

Un avis client (Google, Tripadvisor...) est toujours "Avis client" / "Urgent" / "Répondre".`

// Client handles LLM chat-completion calls for email classification
type Client struct {
	provider   Provider
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	configured bool
	retry      RetryPolicy
}

// NewClient creates an unconfigured client. Classify fails with
// ErrNotConfigured until Configure is called with an API key.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: DefaultRetryPolicy(),
	}
}

// Configure configures the client with provider settings
func (c *Client) Configure(provider, apiKey, model string) {
	c.ConfigureWithBaseURL(provider, apiKey, model, "")
}

// ConfigureWithBaseURL configures the client with provider settings and a
// custom base URL
func (c *Client) ConfigureWithBaseURL(provider, apiKey, model, baseURL string) {
	c.provider = Provider(strings.ToLower(provider))
	c.apiKey = apiKey
	c.model = model
	c.configured = apiKey != ""

	if baseURL != "" {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
		return
	}

	switch c.provider {
	case ProviderClaude:
		c.baseURL = "https://api.anthropic.com/v1"
		if c.model == "" {
			c.model = "claude-3-haiku-20240307"
		}
	case ProviderOpenAI, ProviderCustom:
		c.baseURL = "https://api.openai.com/v1"
		if c.model == "" {
			c.model = "gpt-4o-mini"
		}
	default:
		c.provider = ProviderOpenAI
		c.baseURL = "https://api.openai.com/v1"
		if c.model == "" {
			c.model = "gpt-4o-mini"
		}
	}
}

// IsConfigured returns whether the client holds credentials
func (c *Client) IsConfigured() bool {
	return c.configured && c.apiKey != ""
}

// Classify asks the LLM for a triage verdict on one message. Returns
// ErrNotConfigured without touching the network when no key is set.
// Rate-limit responses are retried per the client's policy.
func (c *Client) Classify(ctx context.Context, sender, subject, body string) (Result, error) {
	if !c.IsConfigured() {
		return Result{}, ErrNotConfigured
	}

	body = CleanBody(body)
	if len(body) > classifyBodyLimit {
		body = body[:classifyBodyLimit]
	}

	messages := []ChatMessage{
		{Role: "system", Content: classifySystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Expéditeur: %s\nObjet: %s\n\n%s", sender, subject, body)},
	}

	var content string
	err := c.retry.Do(ctx, func() error {
		var sendErr error
		content, sendErr = c.sendChatRequest(ctx, messages)
		return sendErr
	})
	if err != nil {
		return Result{}, err
	}

	return parseVerdict(content)
}

// parseVerdict decodes the model output into a Result, tolerating markdown
// code fences but nothing else.
func parseVerdict(content string) (Result, error) {
	content = stripCodeFences(content)

	var result Result
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := result.Validate(); err != nil {
		return Result{}, err
	}
	if result.Suggestion != nil && strings.TrimSpace(*result.Suggestion) == "" {
		result.Suggestion = nil
	}
	return result, nil
}

// stripCodeFences removes a surrounding ```json ... ``` block if present
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 && strings.EqualFold(strings.TrimSpace(s[:idx]), "json") {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ChatMessage represents a message in a chat conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a chat completion request
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// sendChatRequest sends one chat completion request to the provider
func (c *Client) sendChatRequest(ctx context.Context, messages []ChatMessage) (string, error) {
	request := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   classifyMaxTokens,
		Temperature: classifyTemperature,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}

	req.Header.Set("Content-Type", "application/json")
	switch c.provider {
	case ProviderClaude:
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	default:
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: %s", ErrRateLimited, strings.TrimSpace(string(respBody)))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrAPICallFailed, resp.StatusCode, string(respBody))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrAPICallFailed, chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", ErrInvalidResponse
	}

	return chatResp.Choices[0].Message.Content, nil
}
