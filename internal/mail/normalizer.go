package mail

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	"github.com/kritiqo/core/internal/database/models"
)

// Sender is a parsed From header
type Sender struct {
	Name    string
	Address string
}

// NormalizedMessage is the provider-independent message shape persisted by
// the ingestion service.
type NormalizedMessage struct {
	MessageID  string
	Source     models.MessageSource
	Subject    string
	Sender     Sender
	ReceivedAt time.Time
	Body       string
	Snippet    string
}

// Normalize converts a RawMessage into the canonical shape. It never fails:
// every decode or parse error degrades to the best available substitute
// (snippet for the body, internal timestamp for the date).
func Normalize(raw RawMessage) NormalizedMessage {
	return NormalizedMessage{
		MessageID:  models.NamespacedID(raw.Source, raw.ProviderID),
		Source:     raw.Source,
		Subject:    raw.Subject,
		Sender:     ParseSender(raw.FromHeader),
		ReceivedAt: parseDate(raw.DateHeader, raw.InternalDate),
		Body:       pickBody(raw),
		Snippet:    buildSnippet(raw),
	}
}

// ParseSender extracts {name, address} from a raw From header. When the
// display name is absent the local part of the address is used instead.
func ParseSender(header string) Sender {
	header = strings.TrimSpace(header)
	if header == "" {
		return Sender{}
	}

	addr, err := mail.ParseAddress(header)
	if err != nil {
		// Malformed header: salvage anything that looks like an address
		if i := strings.LastIndex(header, "<"); i >= 0 {
			inner := strings.Trim(header[i:], "<> ")
			return Sender{
				Name:    strings.Trim(strings.TrimSpace(header[:i]), `"`),
				Address: inner,
			}
		}
		return Sender{Name: localPart(header), Address: header}
	}

	name := addr.Name
	if name == "" {
		name = localPart(addr.Address)
	}
	return Sender{Name: name, Address: addr.Address}
}

func localPart(address string) string {
	if i := strings.Index(address, "@"); i > 0 {
		return address[:i]
	}
	return address
}

// pickBody prefers text/plain over text/html over the provider snippet
func pickBody(raw RawMessage) string {
	if body := decodeFirst(raw.Parts, "text/plain"); body != "" {
		return body
	}
	if body := decodeFirst(raw.Parts, "text/html"); body != "" {
		return body
	}
	return raw.Snippet
}

func decodeFirst(parts []BodyPart, mimeType string) string {
	for _, part := range parts {
		if !strings.HasPrefix(strings.ToLower(part.MIMEType), mimeType) {
			continue
		}
		if decoded := decodePart(part); decoded != "" {
			return decoded
		}
	}
	return ""
}

// decodePart decodes a body part, degrading to the raw data on failure
func decodePart(part BodyPart) string {
	if !part.Base64URL {
		return part.Data
	}
	decoded, err := base64.URLEncoding.DecodeString(part.Data)
	if err != nil {
		// Some providers omit padding
		decoded, err = base64.RawURLEncoding.DecodeString(part.Data)
		if err != nil {
			return part.Data
		}
	}
	return string(decoded)
}

func buildSnippet(raw RawMessage) string {
	if raw.Snippet != "" {
		return raw.Snippet
	}
	body := pickBody(raw)
	if len(body) > 200 {
		return body[:200]
	}
	return body
}

// dateLayouts are tried in order when parsing a raw Date header
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
}

// parseDate parses a Date header, falling back to the provider-supplied
// internal timestamp, then to the current time.
func parseDate(header string, internal time.Time) time.Time {
	header = strings.TrimSpace(header)
	if header != "" {
		if t, err := mail.ParseDate(header); err == nil {
			return t
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, header); err == nil {
				return t
			}
		}
	}
	if !internal.IsZero() {
		return internal
	}
	return time.Now()
}
