package debate

import (
	"regexp"
	"strings"
)

// maxAgreementLength caps how long a reply may be and still count as agreement.
const maxAgreementLength = 280

// Longer phrases come first so alternation prefers them.
var agreementPhrases = []string{
	"no further changes needed",
	"no further changes",
	"no changes needed",
	"no changes",
	"looks good to me",
	"i agree",
	"agreed",
	"approved",
	"[agree]",
	"lgtm",
}

var agreementPattern = buildAgreementPattern(agreementPhrases)

func buildAgreementPattern(phrases []string) *regexp.Regexp {
	quoted := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		quoted = append(quoted, regexp.QuoteMeta(phrase))
	}

	sep := `[\s\p{P}]*`
	return regexp.MustCompile(`^` + sep + `(?:(?:` + strings.Join(quoted, "|") + `)` + sep + `)+$`)
}

// IsAgreement reports whether text is nothing but agreement phrases separated
// by whitespace or punctuation.
func IsAgreement(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" || len(normalized) > maxAgreementLength {
		return false
	}

	return agreementPattern.MatchString(normalized)
}

var specBlockPattern = regexp.MustCompile(`(?s)\[SPEC\](.*?)\[/SPEC\]`)

// ExtractSpec returns the revised document embedded between [SPEC] markers.
func ExtractSpec(text string) string {
	match := specBlockPattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return ""
	}
	return strings.TrimSpace(match[1])
}
