package prompt

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const titleWordLimit = 6

// Polish normalizes a raw prompt line before it is queued: surrounding
// whitespace is trimmed and internal runs of whitespace collapse to single
// spaces. The wording itself is never changed.
func Polish(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// Title derives a short display label from a prompt, used in job listings
// and archive entry names. Advisory only; the prompt sent to the provider is
// the polished text, not the title.
func Title(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) == 0 {
		return ""
	}
	if len(words) > titleWordLimit {
		words = words[:titleWordLimit]
	}
	c := cases.Title(language.Und)
	return c.String(strings.Join(words, " "))
}
