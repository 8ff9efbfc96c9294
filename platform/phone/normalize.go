// Package phone canonicalises the free-form numbers people type into booking forms.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion applies to numbers typed without a country prefix, e.g. "070-123 45 67".
const DefaultRegion = "SE"

// NormalizeE164 is NormalizeE164In with DefaultRegion.
func NormalizeE164(input string) string {
	return NormalizeE164In(input, DefaultRegion)
}

// NormalizeE164In returns input in E.164 form ("+46701234567"). Numbers that do
// not parse or are not valid for their region come back trimmed but otherwise
// untouched, so nothing the customer typed is lost.
func NormalizeE164In(input, region string) string {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return ""
	}

	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
