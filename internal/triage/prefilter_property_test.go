package triage

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kritiqo/core/internal/database/models"
)

// Digit-only strings cannot collide with any keyword list, so they make
// reliable "neutral" subjects and bodies.
func neutralTextGen(n int) gopter.Gen {
	return gen.SliceOfN(n, gen.RuneRange('0', '9')).Map(func(chars []rune) string {
		return string(chars)
	})
}

func plainSenderGen() gopter.Gen {
	return gen.SliceOfN(8, gen.AlphaLowerChar()).Map(func(chars []rune) string {
		return "contact-" + string(chars) + "@example.fr"
	})
}

func noreplySenderGen() gopter.Gen {
	return gen.OneConstOf(
		"no-reply@boutique.fr",
		"noreply@updates.example.com",
		"do-not-reply@service.net",
		"donotreply@billing.example.org",
		"ne-pas-repondre@banque.fr",
		"mailer-daemon@mx.example.com",
		"notification@platform.io",
	)
}

func TestProperty_PrefilterNoreplyRule(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("noreply_sender_always_classified_spam", prop.ForAll(
		func(sender, subject, body string) bool {
			result := Prefilter(sender, subject, body)
			return result != nil &&
				result.Category == models.CategorySpam &&
				result.Priority == models.PriorityLow &&
				result.Action == models.ActionIgnore
		},
		noreplySenderGen(),
		neutralTextGen(30),
		neutralTextGen(100),
	))

	// A review-shaped message from a noreply address is still automated mail
	properties.Property("noreply_wins_over_review_keywords", prop.ForAll(
		func(sender string) bool {
			subject := "Nouvel avis sur votre restaurant"
			body := "Un client a laissé un avis 1 étoile sur votre établissement"
			result := Prefilter(sender, subject, body)
			return result != nil && result.Category == models.CategorySpam
		},
		noreplySenderGen(),
	))

	properties.TestingRun(t)
}

func TestProperty_PrefilterReviewRule(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	reviewSubjectGen := gen.OneConstOf(
		"Votre avis compte",
		"Nouvel avis Google sur votre restaurant",
		"Retour sur mon expérience",
		"Note google de votre établissement",
		"Feedback client",
	)

	properties.Property("review_language_from_human_sender_is_urgent_review", prop.ForAll(
		func(sender, subject, body string) bool {
			result := Prefilter(sender, subject, body)
			return result != nil &&
				result.Category == models.CategoryReview &&
				result.Priority == models.PriorityUrgent &&
				result.Action == models.ActionReply
		},
		plainSenderGen(),
		reviewSubjectGen,
		neutralTextGen(100),
	))

	properties.TestingRun(t)
}

func TestProperty_PrefilterPromoRule(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	promoSubjectGen := gen.OneConstOf(
		"Soldes d'été, jusqu'à -70%",
		"Code promo exclusif",
		"Newsletter de novembre",
		"Flash sale this weekend only",
		"Cliquez pour unsubscribe",
	)

	properties.Property("promo_language_is_spam", prop.ForAll(
		func(sender, subject string) bool {
			result := Prefilter(sender, subject, "")
			return result != nil &&
				result.Category == models.CategorySpam &&
				result.Priority == models.PriorityLow &&
				result.Action == models.ActionIgnore
		},
		plainSenderGen(),
		promoSubjectGen,
	))

	bulkSenderGen := gen.OneConstOf(
		"news@mail.mailchimp.com",
		"campaigns@sendgrid.net",
		"hello@brevo.com",
		"digest@substack.com",
	)

	properties.Property("bulk_mail_domain_is_spam", prop.ForAll(
		func(sender, subject, body string) bool {
			result := Prefilter(sender, subject, body)
			return result != nil && result.Category == models.CategorySpam
		},
		bulkSenderGen,
		neutralTextGen(30),
		neutralTextGen(100),
	))

	properties.TestingRun(t)
}

func TestProperty_PrefilterGeneral(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("neutral_message_defers_to_llm", prop.ForAll(
		func(sender, subject, body string) bool {
			return Prefilter(sender, subject, body) == nil
		},
		plainSenderGen(),
		neutralTextGen(30),
		neutralTextGen(100),
	))

	properties.Property("any_verdict_uses_valid_enum_values", prop.ForAll(
		func(sender, subject, body string) bool {
			result := Prefilter(sender, subject, body)
			if result == nil {
				return true
			}
			return result.Validate() == nil
		},
		gen.OneGenOf(plainSenderGen(), noreplySenderGen()),
		neutralTextGen(30),
		neutralTextGen(100),
	))

	properties.Property("prefilter_is_deterministic", prop.ForAll(
		func(sender, subject, body string) bool {
			first := Prefilter(sender, subject, body)
			second := Prefilter(sender, subject, body)
			if first == nil || second == nil {
				return first == second
			}
			return *first == *second
		},
		gen.OneGenOf(plainSenderGen(), noreplySenderGen()),
		neutralTextGen(30),
		neutralTextGen(100),
	))

	properties.TestingRun(t)
}

func TestIsNoreplySender(t *testing.T) {
	cases := []struct {
		sender string
		want   bool
	}{
		{"no-reply@shop.fr", true},
		{"NOREPLY@SHOP.FR", true},
		{"do-not-reply@service.com", true},
		{"ne-pas-repondre@banque.fr", true},
		{"mailer-daemon@mx.example.com", true},
		{"notification@platform.io", true},
		{"jean.dupont@gmail.com", false},
		{"contact@restaurant.fr", false},
		// "notification" only counts at the start of the address
		{"team-notification-list@corp.com", false},
	}
	for _, tc := range cases {
		if got := IsNoreplySender(tc.sender); got != tc.want {
			t.Errorf("IsNoreplySender(%q) = %v, want %v", tc.sender, got, tc.want)
		}
	}
}
