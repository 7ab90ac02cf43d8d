package triage

import (
	"strings"
	"testing"
)

func TestCleanBodyStripsHTML(t *testing.T) {
	body := `<html><body><p>Bonjour,</p><p>Votre commande est prête.</p></body></html>`
	cleaned := CleanBody(body)

	if strings.Contains(cleaned, "<") || strings.Contains(cleaned, ">") {
		t.Errorf("expected no HTML tags, got %q", cleaned)
	}
	if !strings.Contains(cleaned, "Bonjour") || !strings.Contains(cleaned, "commande") {
		t.Errorf("expected text content preserved, got %q", cleaned)
	}
}

func TestCleanBodyDecodesEntities(t *testing.T) {
	cleaned := CleanBody("Prix&nbsp;: 10&amp;20 &quot;euros&quot;")
	if !strings.Contains(cleaned, `10&20 "euros"`) {
		t.Errorf("expected decoded entities, got %q", cleaned)
	}
}

func TestCleanBodyCutsSignatureBlock(t *testing.T) {
	body := "Merci pour votre retour.\n--\nJean Dupont\nDirecteur\n06 12 34 56 78"
	cleaned := CleanBody(body)

	if strings.Contains(cleaned, "Jean Dupont") || strings.Contains(cleaned, "Directeur") {
		t.Errorf("expected signature block removed, got %q", cleaned)
	}
	if !strings.Contains(cleaned, "Merci pour votre retour.") {
		t.Errorf("expected body text preserved, got %q", cleaned)
	}
}

func TestCleanBodyDropsBoilerplateLines(t *testing.T) {
	body := "Pouvez-vous me rappeler ?\nCordialement\nEnvoyé de mon iPhone"
	cleaned := CleanBody(body)

	if strings.Contains(cleaned, "Cordialement") || strings.Contains(cleaned, "iPhone") {
		t.Errorf("expected boilerplate removed, got %q", cleaned)
	}
	if !strings.Contains(cleaned, "rappeler") {
		t.Errorf("expected question preserved, got %q", cleaned)
	}
}

func TestCleanBodyCollapsesBlankRuns(t *testing.T) {
	cleaned := CleanBody("Ligne 1\n\n\n\n\nLigne 2")
	if strings.Contains(cleaned, "\n\n\n") {
		t.Errorf("expected blank runs collapsed, got %q", cleaned)
	}
	if !strings.Contains(cleaned, "Ligne 1") || !strings.Contains(cleaned, "Ligne 2") {
		t.Errorf("expected both lines kept, got %q", cleaned)
	}
}
