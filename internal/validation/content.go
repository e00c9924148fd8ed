package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"stackit/internal/models"
)

const (
	MaxTitleLength = 300
	MaxTagLength   = 35
)

// NormalizeTags trims, lowercases and deduplicates tags, preserving first
// occurrence order. Empty entries are dropped. More than models.MaxTags
// distinct tags is an error.
func NormalizeTags(raw []string) (models.Tags, error) {
	out := make(models.Tags, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, t := range raw {
		tag := strings.ToLower(strings.TrimSpace(t))
		if tag == "" {
			continue
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return nil, fmt.Errorf("tag %q exceeds %d characters", tag, MaxTagLength)
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) > models.MaxTags {
		return nil, fmt.Errorf("a question can have at most %d tags", models.MaxTags)
	}
	return out, nil
}

// ValidateTitle rejects titles longer than the column allows.
func ValidateTitle(title string) error {
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Errorf("title must not exceed %d characters", MaxTitleLength)
	}
	return nil
}
