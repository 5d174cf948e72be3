package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizePhone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"standard grouping", "Call HMRC on 0300 200 3310 for help.", "0300 200 3310"},
		{"hyphenated", "0300-200-3310", "0300 200 3310"},
		{"no separators", "Ring 03002003310 today", "0300 200 3310"},
		{"freephone split", "The number is 0800 80 70 60.", "0800 807 060"},
		{"nine digits", "Dial 123 456 789", "123 456 789"},
		{"no phone", "Please contact us through the website.", PhoneNotFound},
		{"empty", "", PhoneNotFound},
		{"digits inside word boundary", "ref A123456789B has no phone", PhoneNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalizePhone(tt.in))
		})
	}
}

func TestCanonicalizePhoneIdempotent(t *testing.T) {
	inputs := []string{
		"0300 200 3310",
		"0800 80 70 60",
		"You can reach the helpline on 0345-300-3900 weekdays.",
		"no number here",
	}
	for _, in := range inputs {
		once := CanonicalizePhone(in)
		assert.Equal(t, once, CanonicalizePhone(once), "input %q", in)
	}
}
