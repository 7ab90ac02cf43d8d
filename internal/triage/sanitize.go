package triage

import (
	"regexp"
	"strings"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)

	// Signature boilerplate lines dropped before the body is sent to the LLM
	signaturePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^envoyé (de|depuis) mon `),
		regexp.MustCompile(`(?i)^sent from my `),
		regexp.MustCompile(`(?i)^cordialement[,.]?$`),
		regexp.MustCompile(`(?i)^bien à vous[,.]?$`),
		regexp.MustCompile(`(?i)^(best |kind )?regards[,.]?$`),
		regexp.MustCompile(`(?i)^cet email a été envoyé automatiquement`),
	}
)

// CleanBody prepares a message body for classification: HTML tags removed,
// signature boilerplate dropped, blank runs collapsed. The "-- " marker cuts
// the signature block entirely.
func CleanBody(body string) string {
	body = htmlTagPattern.ReplaceAllString(body, " ")
	body = decodeEntities(body)

	var kept []string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "--" || trimmed == "-- " {
			break
		}
		if isSignatureLine(trimmed) {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t"))
	}

	cleaned := strings.Join(kept, "\n")
	cleaned = blankLinesPattern.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

func isSignatureLine(line string) bool {
	for _, pattern := range signaturePatterns {
		if pattern.MatchString(line) {
			return true
		}
	}
	return false
}

func decodeEntities(s string) string {
	replacer := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
	return replacer.Replace(s)
}
