package eval

import (
	"regexp"
	"strings"
)

// PhoneNotFound is the class label recorded when no phone-shaped token can be
// extracted from a response.
const PhoneNotFound = "NOT_FOUND"

// phoneRe matches UK-shaped digit groupings: 3-4/3/3-4 splits and the
// 4/2/2/2 freephone split, with optional spaces or hyphens.
var phoneRe = regexp.MustCompile(`\b(\d{3,4}[\s-]?\d{3}[\s-]?\d{3,4}|\d{4}[\s-]?\d{2}[\s-]?\d{2}[\s-]?\d{2})\b`)

// CanonicalizePhone extracts the first UK-shaped phone number from text and
// re-renders it in a standard grouping so expected and extracted values
// compare as exact strings. Returns PhoneNotFound when nothing matches.
func CanonicalizePhone(text string) string {
	m := phoneRe.FindStringSubmatch(text)
	if m == nil {
		return PhoneNotFound
	}
	digits := strings.NewReplacer(" ", "", "-", "").Replace(m[1])

	if len(digits) >= 10 {
		return digits[0:4] + " " + digits[4:7] + " " + digits[7:]
	}
	var groups []string
	for i := 0; i < len(digits); i += 3 {
		end := i + 3
		if end > len(digits) {
			end = len(digits)
		}
		groups = append(groups, digits[i:end])
	}
	return strings.Join(groups, " ")
}
