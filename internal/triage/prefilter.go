package triage

import (
	"regexp"
	"strings"

	"github.com/kritiqo/core/internal/database/models"
)

// Keyword lists driving the rule-based prefilter. Matching is
// case-insensitive on the lowered subject+body.
var (
	// Automated/bulk sender patterns, matched against the sender address
	noreplyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)no-?reply`),
		regexp.MustCompile(`(?i)do-?not-?reply`),
		regexp.MustCompile(`(?i)ne-?pas-?repondre`),
		regexp.MustCompile(`(?i)mailer-daemon`),
		regexp.MustCompile(`(?i)^notification@`),
	}

	// Customer-review language (French market first)
	reviewKeywords = []string{
		"avis", "service", "restaurant", "expérience", "experience",
		"étoile", "etoile", "note google", "recommande", "satisfait",
		"déçu", "decu", "accueil", "commentaire", "review", "feedback",
	}

	// Promotional language
	promoKeywords = []string{
		"promo", "promotion", "soldes", "réduction", "reduction",
		"offre spéciale", "offre speciale", "newsletter", "vente privée",
		"code promo", "livraison offerte", "désinscrire", "desinscrire",
		"désabonner", "desabonner", "unsubscribe", "flash sale",
		"discount", "limited time", "exclusive offer",
	}

	// Known bulk-mail sending domains
	bulkMailDomains = []string{
		"mailchimp.com", "mailchimpapp.net", "sendgrid.net", "sendgrid.com",
		"mailjet.com", "brevo.com", "sendinblue.com", "mailgun.org",
		"campaign-monitor.com", "cmail19.com", "klaviyomail.com",
		"substack.com", "mailerlite.com",
	}
)

// Prefilter applies the keyword/domain heuristics that short-circuit the LLM
// call. Rules run in a fixed order, first match wins:
//
//  1. noreply sender            -> Publicité/Spam
//  2. review language, and the sender is not noreply -> Avis client
//  3. promotional language or bulk-mail domain       -> Publicité/Spam
//
// The noreply rule runs first on purpose: a review-shaped message from a
// noreply address is still automated mail. Returns nil when no rule matches,
// deferring to the LLM classifier.
func Prefilter(sender, subject, body string) *Result {
	text := strings.ToLower(subject + " " + body)
	noreply := IsNoreplySender(sender)

	if noreply {
		return &Result{
			Category: models.CategorySpam,
			Priority: models.PriorityLow,
			Action:   models.ActionIgnore,
		}
	}

	if containsAny(text, reviewKeywords) {
		return &Result{
			Category: models.CategoryReview,
			Priority: models.PriorityUrgent,
			Action:   models.ActionReply,
		}
	}

	if containsAny(text, promoKeywords) || isBulkMailDomain(sender) {
		return &Result{
			Category: models.CategorySpam,
			Priority: models.PriorityLow,
			Action:   models.ActionIgnore,
		}
	}

	return nil
}

// IsNoreplySender reports whether the sender address looks automated
func IsNoreplySender(sender string) bool {
	sender = strings.ToLower(strings.TrimSpace(sender))
	for _, pattern := range noreplyPatterns {
		if pattern.MatchString(sender) {
			return true
		}
	}
	return false
}

func isBulkMailDomain(sender string) bool {
	sender = strings.ToLower(sender)
	at := strings.LastIndex(sender, "@")
	if at < 0 {
		return false
	}
	domain := strings.Trim(sender[at+1:], "> ")
	for _, bulk := range bulkMailDomains {
		if domain == bulk || strings.HasSuffix(domain, "."+bulk) {
			return true
		}
	}
	return false
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
