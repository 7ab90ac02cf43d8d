package models

import (
	"fmt"
	"time"
)

// MessageSource identifies which adapter produced a message
type MessageSource string

const (
	SourceGmail   MessageSource = "gmail"
	SourceOutlook MessageSource = "outlook"
	SourceIMAP    MessageSource = "imap"
)

// IsValid checks if the message source is valid
func (s MessageSource) IsValid() bool {
	switch s {
	case SourceGmail, SourceOutlook, SourceIMAP:
		return true
	}
	return false
}

// NamespacedID builds the stable message identity "source:provider_message_id".
// It is the upsert conflict key that makes re-ingestion idempotent.
func NamespacedID(source MessageSource, providerID string) string {
	return fmt.Sprintf("%s:%s", source, providerID)
}

// Message represents an ingested email message. Rows are immutable after
// creation; identity is MessageID.
type Message struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	UserID     uint          `gorm:"index;not null" json:"user_id"`
	AccountID  uint          `gorm:"index;not null" json:"account_id"`
	MessageID  string        `gorm:"uniqueIndex;size:500;not null" json:"message_id"`
	Source     MessageSource `gorm:"size:20;index" json:"source"`
	Subject    string        `gorm:"size:500" json:"subject"`
	FromName   string        `gorm:"size:255" json:"from_name"`
	FromAddr   string        `gorm:"size:255;index" json:"from_addr"`
	ReceivedAt time.Time     `gorm:"index" json:"received_at"`
	Body       string        `gorm:"type:text" json:"body"`
	Snippet    string        `gorm:"size:1000" json:"snippet"`
	CreatedAt  time.Time     `json:"created_at"`

	// Relations. Verdicts are per user, so the join carries both keys.
	TriageResult *TriageResult `gorm:"foreignKey:MessageID,UserID;references:MessageID,UserID" json:"triage_result,omitempty"`
}
