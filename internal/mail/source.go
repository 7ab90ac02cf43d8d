package mail

import (
	"context"
	"errors"
	"time"

	"github.com/kritiqo/core/internal/database/models"
)

var (
	// ErrAuthFailed indicates the mailbox rejected the stored credentials.
	// Callers should prompt the user to reconnect the account.
	ErrAuthFailed = errors.New("mailbox authentication failed")
	// ErrSourceUnavailable indicates a transient or network failure.
	// Callers may retry.
	ErrSourceUnavailable = errors.New("mail source unavailable")
)

// Per-adapter fetch ceilings. The IMAP limit is deliberately lower than the
// REST ones: each IMAP body comes over a single sequential connection while
// the REST adapters fetch metadata-sized payloads.
const (
	IMAPFetchLimit = 10
	RESTFetchLimit = 100
)

// BodyPart is one MIME part of a raw message. Data may still be base64url
// encoded depending on the provider; the normalizer decodes it.
type BodyPart struct {
	MIMEType  string
	Data      string
	Base64URL bool
}

// RawMessage is the provider-shaped message an adapter returns before
// normalization.
type RawMessage struct {
	ProviderID   string
	Source       models.MessageSource
	Subject      string
	FromHeader   string
	DateHeader   string
	InternalDate time.Time
	Parts        []BodyPart
	Snippet      string
}

// Source fetches the most recent inbox messages for one connected mailbox.
type Source interface {
	Fetch(ctx context.Context) ([]RawMessage, error)
}
