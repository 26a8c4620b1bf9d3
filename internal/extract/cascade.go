// Package extract pulls structured policy fields out of OCR text with ordered cascades of
// regular expressions tuned to a fixed document template.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	// NoStrip disables whitespace stripping in a Cascade.
	NoStrip = -1

	// BankAccountLength is the length of a Polish NRB account number without spaces.
	BankAccountLength = 26
)

// Cascade is an ordered list of patterns applied to the same text. Group 1 of each match
// becomes one field.
type Cascade struct {
	Name     string
	Patterns []*regexp.Regexp

	// Fields names each pattern's output for logs and errors.
	Fields []string

	// StripIndex is the pattern whose match has all whitespace removed and must be exactly
	// BankAccountLength characters long, or NoStrip.
	StripIndex int
}

// MustCascade compiles patterns in dot-all mode, panicking on a bad expression. Intended
// for package-level templates.
func MustCascade(name string, stripIndex int, fields []string, patterns ...string) Cascade {
	c := Cascade{Name: name, Fields: fields, StripIndex: stripIndex}
	for _, p := range patterns {
		c.Patterns = append(c.Patterns, regexp.MustCompile("(?s)"+p))
	}
	return c
}

func (c Cascade) field(i int) string {
	if i < len(c.Fields) {
		return c.Fields[i]
	}
	return fmt.Sprintf("%s[%d]", c.Name, i)
}

// Apply runs every pattern against text and returns the matched fields in pattern order.
// A pattern without a match is logged and skipped, so the result can be shorter than the
// pattern list; callers check the count. Empty or malformed content is a *ValidationError.
func (c Cascade) Apply(text string, log zerolog.Logger) ([]string, error) {
	results := make([]string, 0, len(c.Patterns))

	for i, re := range c.Patterns {
		m := re.FindStringSubmatch(text)
		if m == nil || len(m) < 2 {
			log.Warn().
				Err(ErrNoMatch).
				Str("cascade", c.Name).
				Str("field", c.field(i)).
				Msg("No match found")
			continue
		}

		content := strings.TrimSpace(m[1])
		if i == c.StripIndex {
			content = removeWhitespace(content)
			if n := utf8.RuneCountInString(content); n != BankAccountLength {
				return nil, NewValidationError(c.field(i), content,
					fmt.Sprintf("expected %d characters, got %d", BankAccountLength, n))
			}
		}
		if content == "" {
			return nil, NewValidationError(c.field(i), content, "content is empty")
		}

		results = append(results, content)
	}

	return results, nil
}

func removeWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
