// Package extract pulls structured output out of free-form completion text.
// Models wrap answers in markdown fences and add commentary around them, so
// nothing here assumes the response is clean.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sorenmh/gendesk/internal/deskd/models"
)

const (
	FallbackIcon = "✨"

	maxNameRunes      = 100
	maxDescRunes      = 500
	fallbackNameWords = 5
	fallbackNameRunes = 40
	fallbackDescRunes = 200

	doctypeMarker     = "<!doctype html"
	closingHTMLMarker = "</html>"
)

var (
	// ErrNoJSON is returned when the text holds no {...} span
	ErrNoJSON = errors.New("no JSON object found")
	// ErrNoHTML is returned when nothing usable remains after extraction
	ErrNoHTML = errors.New("no HTML document found")

	fenceLine = regexp.MustCompile("(?m)^[ \t]*```[A-Za-z0-9_+-]*[ \t]*$")
)

// StripFences removes markdown code fence lines and surrounding whitespace
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = fenceLine.ReplaceAllString(s, "")
	// fences glued to content on the same line
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```html")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractJSON returns the span from the first '{' to the last '}'
func ExtractJSON(s string) (string, error) {
	s = StripFences(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end < start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}

// ParseMetadata decodes a metadata completion into name, icon and description
func ParseMetadata(s string) (models.Metadata, error) {
	raw, err := ExtractJSON(s)
	if err != nil {
		return models.Metadata{}, err
	}

	var meta models.Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return models.Metadata{}, fmt.Errorf("invalid metadata JSON: %w", err)
	}

	meta.Name = strings.TrimSpace(meta.Name)
	if meta.Name == "" {
		return models.Metadata{}, fmt.Errorf("metadata has no name")
	}
	meta.Name = truncateRunes(meta.Name, maxNameRunes)

	meta.Icon = strings.TrimSpace(meta.Icon)
	if !models.IsGlyph(meta.Icon) {
		meta.Icon = FallbackIcon
	}

	meta.Description = truncateRunes(strings.TrimSpace(meta.Description), maxDescRunes)
	return meta, nil
}

// FallbackMetadata derives display fields from the prompt alone
func FallbackMetadata(prompt string) models.Metadata {
	words := strings.Fields(prompt)
	if len(words) > fallbackNameWords {
		words = words[:fallbackNameWords]
	}

	name := truncateRunes(strings.Join(words, " "), fallbackNameRunes)
	if name == "" {
		name = "Untitled App"
	} else {
		r, size := utf8.DecodeRuneInString(name)
		name = string(unicode.ToUpper(r)) + name[size:]
	}

	return models.Metadata{
		Name:        name,
		Icon:        FallbackIcon,
		Description: truncateRunes(strings.TrimSpace(prompt), fallbackDescRunes),
	}
}

// ExtractHTML cuts the document out of a code completion: text before a
// <!doctype html> marker and after the last </html> is dropped. Both markers
// match case-insensitively.
func ExtractHTML(s string) (string, error) {
	s = StripFences(s)

	lower := asciiLower(s)
	if start := strings.Index(lower, doctypeMarker); start > 0 {
		s = s[start:]
		lower = lower[start:]
	}
	if end := strings.LastIndex(lower, closingHTMLMarker); end != -1 {
		s = s[:end+len(closingHTMLMarker)]
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrNoHTML
	}
	return s, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

// asciiLower lowercases A-Z only, keeping byte offsets aligned with s.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
