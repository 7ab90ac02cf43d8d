package mail

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kritiqo/core/internal/database/models"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GmailSource fetches messages through the Gmail REST API
type GmailSource struct {
	service *gmail.Service
}

// NewGmailSource creates a Gmail source from a valid access token. Token
// refresh happens before construction, in the account service.
func NewGmailSource(ctx context.Context, accessToken string) (*GmailSource, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	srv, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return &GmailSource{service: srv}, nil
}

// Fetch lists the most recent INBOX messages then fetches each in full.
// Per-message fetch failures are skipped; only a failed listing is fatal.
func (s *GmailSource) Fetch(ctx context.Context) ([]RawMessage, error) {
	list, err := s.service.Users.Messages.List("me").
		MaxResults(RESTFetchLimit).
		LabelIds("INBOX").
		Context(ctx).Do()
	if err != nil {
		return nil, classifyGoogleError(err)
	}

	var fetched []RawMessage
	for _, m := range list.Messages {
		msg, err := s.service.Users.Messages.Get("me", m.Id).
			Format("full").
			Context(ctx).Do()
		if err != nil {
			continue
		}
		fetched = append(fetched, parseGmailMessage(msg))
	}

	return fetched, nil
}

// classifyGoogleError separates credential failures from transient ones
func classifyGoogleError(err error) error {
	if apiErr, ok := err.(*googleapi.Error); ok {
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
}

// parseGmailMessage converts a Gmail API message to the raw adapter shape
func parseGmailMessage(msg *gmail.Message) RawMessage {
	raw := RawMessage{
		ProviderID:   msg.Id,
		Source:       models.SourceGmail,
		Snippet:      msg.Snippet,
		InternalDate: time.UnixMilli(msg.InternalDate),
	}

	if msg.Payload == nil {
		return raw
	}

	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "Subject":
			raw.Subject = header.Value
		case "From":
			raw.FromHeader = header.Value
		case "Date":
			raw.DateHeader = header.Value
		}
	}

	collectGmailParts(msg.Payload, &raw)
	return raw
}

// collectGmailParts walks the payload tree; part bodies stay base64url
// encoded for the normalizer to decode.
func collectGmailParts(payload *gmail.MessagePart, raw *RawMessage) {
	if payload.Body != nil && payload.Body.Data != "" {
		mimeType := payload.MimeType
		if mimeType == "" {
			mimeType = "text/plain"
		}
		raw.Parts = append(raw.Parts, BodyPart{
			MIMEType:  mimeType,
			Data:      payload.Body.Data,
			Base64URL: true,
		})
	}

	for _, part := range payload.Parts {
		collectGmailParts(part, raw)
	}
}
