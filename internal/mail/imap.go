package mail

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	stdmail "net/mail"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	id "github.com/emersion/go-imap-id"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/kritiqo/core/internal/database/models"
)

const (
	// imapOperationTimeout caps the whole fetch operation, connection
	// included. The watchdog closes the connection when it fires so a stuck
	// server can never hold a request open.
	imapOperationTimeout = 30 * time.Second
	imapDialTimeout      = 10 * time.Second
)

// DefaultIMAPHost and DefaultIMAPPort target Gmail app-password access
const (
	DefaultIMAPHost = "imap.gmail.com"
	DefaultIMAPPort = 993
)

// IMAPSource fetches messages over IMAP with app-password authentication
type IMAPSource struct {
	Host     string
	Port     int
	Username string
	Password string
}

// NewIMAPSource creates an IMAP source, applying the Gmail defaults when
// host or port are unset.
func NewIMAPSource(host string, port int, username, password string) *IMAPSource {
	if host == "" {
		host = DefaultIMAPHost
	}
	if port == 0 {
		port = DefaultIMAPPort
	}
	return &IMAPSource{Host: host, Port: port, Username: username, Password: password}
}

// Fetch returns the last IMAPFetchLimit messages from INBOX. The mailbox is
// opened read-only and the connection is closed on every exit path.
func (s *IMAPSource) Fetch(ctx context.Context) ([]RawMessage, error) {
	c, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	// Hard ceiling on the whole operation
	opCtx, cancel := context.WithTimeout(ctx, imapOperationTimeout)
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-opCtx.Done():
			c.Close()
		case <-done:
		}
	}()

	mbox, err := c.Select("INBOX", true)
	if err != nil {
		return nil, fmt.Errorf("%w: select INBOX: %v", ErrSourceUnavailable, err)
	}

	if mbox.Messages == 0 {
		return []RawMessage{}, nil
	}

	from := uint32(1)
	if mbox.Messages > IMAPFetchLimit {
		from = mbox.Messages - IMAPFetchLimit + 1
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, mbox.Messages)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, IMAPFetchLimit)
	fetchDone := make(chan error, 1)
	go func() {
		fetchDone <- c.Fetch(seqSet, items, messages)
	}()

	var fetched []RawMessage
	for msg := range messages {
		if msg == nil {
			continue
		}
		fetched = append(fetched, parseIMAPMessage(msg, section))
	}

	if err := <-fetchDone; err != nil && len(fetched) == 0 {
		if opCtx.Err() != nil {
			return nil, fmt.Errorf("%w: operation timed out", ErrSourceUnavailable)
		}
		return nil, fmt.Errorf("%w: fetch: %v", ErrSourceUnavailable, err)
	}

	return fetched, nil
}

// Validate checks the credentials by logging in and disconnecting. Used when
// an account is first linked, before anything is persisted.
func (s *IMAPSource) Validate() error {
	c, err := s.connect()
	if err != nil {
		return err
	}
	c.Logout()
	return nil
}

// connect dials the server over TLS and authenticates
func (s *IMAPSource) connect() (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	dialer := &net.Dialer{Timeout: imapDialTimeout}

	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: s.Host})
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrSourceUnavailable, addr, err)
	}

	c, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	c.Timeout = imapOperationTimeout

	// Some servers require client identification before login
	if ok, _ := c.Support("ID"); ok {
		idClient := id.NewClient(c)
		_, _ = idClient.ID(id.ID{
			id.FieldName:    "Kritiqo",
			id.FieldVersion: "1.0.0",
		})
	}

	if err := c.Login(s.Username, s.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	return c, nil
}

// parseIMAPMessage converts an IMAP message to the raw adapter shape.
// Parse failures degrade to whatever the envelope carries.
func parseIMAPMessage(msg *imap.Message, section *imap.BodySectionName) RawMessage {
	raw := RawMessage{Source: models.SourceIMAP}

	if msg.Envelope != nil {
		raw.Subject = msg.Envelope.Subject
		raw.InternalDate = msg.Envelope.Date
		raw.ProviderID = strings.Trim(msg.Envelope.MessageId, "<>")
		if len(msg.Envelope.From) > 0 {
			raw.FromHeader = formatIMAPAddress(msg.Envelope.From[0])
		}
	}

	var body []byte
	if literal := msg.GetBody(section); literal != nil {
		body, _ = io.ReadAll(literal)
	}
	if len(body) > 0 {
		parseIMAPBody(body, &raw)
	}

	if raw.ProviderID == "" {
		raw.ProviderID = fallbackProviderID(msg.Uid, body, &raw)
	}

	return raw
}

// parseIMAPBody walks the MIME structure collecting text parts
func parseIMAPBody(body []byte, raw *RawMessage) {
	entity, err := message.Read(bytes.NewReader(body))
	if err != nil {
		// go-message rejects some malformed headers that net/mail accepts
		m, err := stdmail.ReadMessage(bytes.NewReader(body))
		if err != nil {
			return
		}
		if raw.DateHeader == "" {
			raw.DateHeader = m.Header.Get("Date")
		}
		b, _ := io.ReadAll(m.Body)
		raw.Parts = append(raw.Parts, BodyPart{MIMEType: "text/plain", Data: string(b)})
		return
	}

	if raw.DateHeader == "" {
		raw.DateHeader = entity.Header.Get("Date")
	}
	if raw.ProviderID == "" {
		raw.ProviderID = strings.Trim(entity.Header.Get("Message-Id"), "<> ")
	}
	walkEntity(entity, raw)
}

func walkEntity(entity *message.Entity, raw *RawMessage) {
	mediaType, _, _ := entity.Header.ContentType()

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := entity.MultipartReader()
		for {
			part, err := mr.NextPart()
			if err != nil {
				return
			}
			walkEntity(part, raw)
		}
	}

	if mediaType == "text/plain" || mediaType == "text/html" {
		b, _ := io.ReadAll(entity.Body)
		if len(b) > 0 {
			raw.Parts = append(raw.Parts, BodyPart{MIMEType: mediaType, Data: string(b)})
		}
	}
}

// fallbackProviderID derives a stable identifier for messages without a
// Message-Id header: UID, then content hash, then metadata hash.
func fallbackProviderID(uid uint32, body []byte, raw *RawMessage) string {
	if uid != 0 {
		return fmt.Sprintf("uid-%d", uid)
	}
	if len(body) > 0 {
		sum := sha256.Sum256(body)
		return "sha256-" + hex.EncodeToString(sum[:16])
	}
	seed := fmt.Sprintf("%d|%s|%s", raw.InternalDate.UnixNano(), raw.Subject, raw.FromHeader)
	sum := sha256.Sum256([]byte(seed))
	return "gen-" + hex.EncodeToString(sum[:16])
}

// formatIMAPAddress formats an IMAP envelope address as a From header
func formatIMAPAddress(addr *imap.Address) string {
	if addr.PersonalName != "" {
		return fmt.Sprintf("%s <%s@%s>", addr.PersonalName, addr.MailboxName, addr.HostName)
	}
	return fmt.Sprintf("%s@%s", addr.MailboxName, addr.HostName)
}
