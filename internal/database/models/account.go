package models

import (
	"time"
)

// Provider identifies how a mailbox is connected
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderAzureAD Provider = "azure-ad"
	ProviderIMAP    Provider = "imap"
)

// IsValid checks if the provider is valid
func (p Provider) IsValid() bool {
	switch p {
	case ProviderGoogle, ProviderAzureAD, ProviderIMAP:
		return true
	}
	return false
}

// Source returns the message source namespace used by this provider's adapter
func (p Provider) Source() MessageSource {
	switch p {
	case ProviderGoogle:
		return SourceGmail
	case ProviderAzureAD:
		return SourceOutlook
	default:
		return SourceIMAP
	}
}

// ConnectedAccount represents a mailbox a user has linked to Kritiqo.
// One row per (user_id, provider, email). Credentials are stored encrypted
// with AES-256-GCM; the plaintext never reaches the database.
type ConnectedAccount struct {
	ID       uint     `gorm:"primaryKey" json:"id"`
	UserID   uint     `gorm:"index:idx_account_identity,unique;not null" json:"user_id"`
	Provider Provider `gorm:"index:idx_account_identity,unique;size:20;not null" json:"provider"`
	Email    string   `gorm:"index:idx_account_identity,unique;size:255;not null" json:"email"`

	// OAuth credentials (google / azure-ad)
	AccessTokenEncrypted  string    `gorm:"size:2000" json:"-"`
	RefreshTokenEncrypted string    `gorm:"size:2000" json:"-"`
	TokenExpiresAt        time.Time `json:"token_expires_at"`
	TenantID              string    `gorm:"size:100" json:"-"` // azure-ad only

	// IMAP credentials (app password)
	IMAPHost          string `gorm:"size:255" json:"imap_host,omitempty"`
	IMAPPort          int    `json:"imap_port,omitempty"`
	PasswordEncrypted string `gorm:"size:500" json:"-"`

	Enabled    bool      `gorm:"default:true" json:"enabled"`
	LastSyncAt time.Time `json:"last_sync_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Relations
	Messages []Message `gorm:"foreignKey:AccountID" json:"messages,omitempty"`
}
