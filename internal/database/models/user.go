package models

import (
	"time"
)

// User represents a Kritiqo user (a small-business owner)
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:50;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	BusinessName string    `gorm:"size:100" json:"business_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Relations
	Accounts []ConnectedAccount `gorm:"foreignKey:UserID" json:"accounts,omitempty"`
	Settings *UserSettings      `gorm:"foreignKey:UserID" json:"settings,omitempty"`
}

// UserSettings stores per-user triage configuration. When no LLM key is set
// the pipeline runs in degraded mode: only the prefilter and the fixed
// fallback classification apply.
type UserSettings struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID      uint   `gorm:"uniqueIndex;not null" json:"user_id"`
	LLMProvider string `gorm:"size:50" json:"llm_provider"`
	LLMAPIKey   string `gorm:"size:500" json:"-"`
	LLMModel    string `gorm:"size:100" json:"llm_model"`
	LLMBaseURL  string `gorm:"size:500" json:"llm_base_url"`

	// Azure AD OAuth application settings
	AzureTenantID string `gorm:"size:100" json:"azure_tenant_id"`

	// Google OAuth application settings
	GoogleClientID     string `gorm:"size:500" json:"google_client_id"`
	GoogleClientSecret string `gorm:"size:500" json:"-"`
	GoogleRedirectURL  string `gorm:"size:500" json:"google_redirect_url"`
}
