package models

import (
	"time"
)

// Category is the closed set of mail categories surfaced to the dashboard.
// Values are user-facing French labels.
type Category string

const (
	CategoryReview       Category = "Avis client"
	CategoryOrder        Category = "Commande"
	CategoryLegal        Category = "Juridique"
	CategoryHR           Category = "RH"
	CategoryInvoice      Category = "Facture"
	CategoryNotification Category = "Notification automatique"
	CategorySales        Category = "Commercial"
	CategorySpam         Category = "Publicité/Spam"
	CategoryOther        Category = "Autre"
)

// IsValid checks if the category is one of the closed enum values
func (c Category) IsValid() bool {
	switch c {
	case CategoryReview, CategoryOrder, CategoryLegal, CategoryHR,
		CategoryInvoice, CategoryNotification, CategorySales,
		CategorySpam, CategoryOther:
		return true
	}
	return false
}

// Priority is the closed set of triage priorities
type Priority string

const (
	PriorityUrgent Priority = "Urgent"
	PriorityMedium Priority = "Moyen"
	PriorityLow    Priority = "Faible"
)

// IsValid checks if the priority is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityUrgent, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Action is the closed set of recommended next steps
type Action string

const (
	ActionReply   Action = "Répondre"
	ActionHandle  Action = "Traiter"
	ActionForward Action = "Transférer"
	ActionArchive Action = "Archiver"
	ActionIgnore  Action = "Ignorer"
	ActionReview  Action = "Examiner manuellement"
)

// IsValid checks if the action is valid
func (a Action) IsValid() bool {
	switch a {
	case ActionReply, ActionHandle, ActionForward, ActionArchive,
		ActionIgnore, ActionReview:
		return true
	}
	return false
}

// Classifier stages that can produce a TriageResult
const (
	ClassifiedByPrefilter = "prefilter"
	ClassifiedByLLM       = "llm"
	ClassifiedByFallback  = "fallback"
)

// TriageResult stores the classification of a message. A user has at most
// one result per message at any time; AnalyzedAt is the authoritative marker
// that the message has been analyzed (a non-empty category alone is not
// enough). Verdicts are scoped per user so two users connecting the same
// mailbox never share or overwrite each other's rows.
type TriageResult struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	MessageID    string    `gorm:"uniqueIndex:idx_triage_message_user;size:500;not null" json:"message_id"`
	UserID       uint      `gorm:"uniqueIndex:idx_triage_message_user;not null" json:"user_id"`
	Category     Category  `gorm:"size:50" json:"categorie"`
	Priority     Priority  `gorm:"size:20" json:"priorite"`
	Action       Action    `gorm:"size:50" json:"action"`
	Suggestion   *string   `gorm:"type:text" json:"suggestion"`
	ClassifiedBy string    `gorm:"size:20" json:"classified_by"` // prefilter, llm, fallback
	Degraded     bool      `gorm:"default:false" json:"degraded"`
	AnalyzedAt   time.Time `json:"analyzed_at"`
}

// IsComplete reports whether the result counts as a finished analysis for
// cache purposes.
func (r *TriageResult) IsComplete() bool {
	return r.Category != "" && !r.AnalyzedAt.IsZero()
}
