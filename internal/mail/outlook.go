package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kritiqo/core/internal/database/models"
)

const (
	graphBaseURL = "https://graph.microsoft.com/v1.0"
	// graphTokenURL is the v2.0 token endpoint; %s is the tenant
	graphTokenURL = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
)

// OutlookSource fetches messages through the Microsoft Graph REST API
type OutlookSource struct {
	httpClient   *http.Client
	tenantID     string
	clientID     string
	clientSecret string
	refreshToken string

	accessToken string
	tokenExpiry time.Time

	// OnTokenRefresh, when set, is called with the new access token so the
	// caller can persist it.
	OnTokenRefresh func(accessToken string, expiry time.Time)
}

// NewOutlookSource creates a Graph source. The access token may be empty or
// expired; it is refreshed on demand with the refresh token.
func NewOutlookSource(tenantID, clientID, clientSecret, accessToken, refreshToken string, expiry time.Time) *OutlookSource {
	if tenantID == "" {
		tenantID = "common"
	}
	return &OutlookSource{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		tenantID:     tenantID,
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		accessToken:  accessToken,
		tokenExpiry:  expiry,
	}
}

// Fetch lists recent inbox messages then fetches each by id. Per-message
// failures are skipped; only a failed listing is fatal.
func (s *OutlookSource) Fetch(ctx context.Context) ([]RawMessage, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}

	listURL := fmt.Sprintf("%s/me/mailFolders/Inbox/messages?$top=%d&$select=id&$orderby=receivedDateTime desc",
		graphBaseURL, RESTFetchLimit)
	var listing struct {
		Value []struct {
			ID string `json:"id"`
		} `json:"value"`
	}
	if err := s.get(ctx, listURL, token, &listing); err != nil {
		return nil, err
	}

	var fetched []RawMessage
	for _, item := range listing.Value {
		var msg graphMessage
		detailURL := fmt.Sprintf("%s/me/messages/%s", graphBaseURL, url.PathEscape(item.ID))
		if err := s.get(ctx, detailURL, token, &msg); err != nil {
			continue
		}
		fetched = append(fetched, parseGraphMessage(msg))
	}

	return fetched, nil
}

// graphMessage is the subset of the Graph message resource we consume
type graphMessage struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	From    struct {
		EmailAddress struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
	ReceivedDateTime string `json:"receivedDateTime"`
	BodyPreview      string `json:"bodyPreview"`
	Body             struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
}

func parseGraphMessage(msg graphMessage) RawMessage {
	raw := RawMessage{
		ProviderID: msg.ID,
		Source:     models.SourceOutlook,
		Subject:    msg.Subject,
		DateHeader: msg.ReceivedDateTime,
		Snippet:    msg.BodyPreview,
	}

	if addr := msg.From.EmailAddress; addr.Address != "" {
		if addr.Name != "" {
			raw.FromHeader = fmt.Sprintf("%s <%s>", addr.Name, addr.Address)
		} else {
			raw.FromHeader = addr.Address
		}
	}

	if t, err := time.Parse(time.RFC3339, msg.ReceivedDateTime); err == nil {
		raw.InternalDate = t
	}

	mimeType := "text/plain"
	if strings.EqualFold(msg.Body.ContentType, "html") {
		mimeType = "text/html"
	}
	if msg.Body.Content != "" {
		raw.Parts = append(raw.Parts, BodyPart{MIMEType: mimeType, Data: msg.Body.Content})
	}

	return raw
}

// get performs an authenticated Graph request and decodes the response
func (s *OutlookSource) get(ctx context.Context, rawURL, token string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: graph returned %d", ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: graph returned %d: %s", ErrSourceUnavailable, resp.StatusCode, body)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// token returns a valid access token, refreshing it when expired
func (s *OutlookSource) token(ctx context.Context) (string, error) {
	if s.accessToken != "" && time.Now().Before(s.tokenExpiry.Add(-time.Minute)) {
		return s.accessToken, nil
	}
	if s.refreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token", ErrAuthFailed)
	}

	form := url.Values{
		"client_id":     {s.clientID},
		"client_secret": {s.clientSecret},
		"refresh_token": {s.refreshToken},
		"grant_type":    {"refresh_token"},
		"scope":         {"https://graph.microsoft.com/Mail.Read offline_access"},
	}

	tokenURL := fmt.Sprintf(graphTokenURL, s.tenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token refresh: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token refresh returned %d", ErrAuthFailed, resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	s.accessToken = tokenResp.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	if s.OnTokenRefresh != nil {
		s.OnTokenRefresh(s.accessToken, s.tokenExpiry)
	}

	return s.accessToken, nil
}
