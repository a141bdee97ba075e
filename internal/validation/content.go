// Package validation holds input checks that run before any store access.
package validation

import (
	"regexp"
	"strings"

	"twitsnap/internal/models"

	"github.com/rivo/uniseg"
	"golang.org/x/text/cases"
)

// MaxContentLength is measured in user-perceived characters.
const MaxContentLength = 280

var (
	hashtagRegex = regexp.MustCompile(`#\w+`)
	mentionRegex = regexp.MustCompile(`@\w+`)
)

// ValidateContent trims content and checks it is present and within MaxContentLength.
func ValidateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", models.NewValidationError("content", "The TwitSnap content is required.")
	}
	if uniseg.GraphemeClusterCount(trimmed) > MaxContentLength {
		return "", models.NewValidationError("content", "The content of the TwitSnap must not exceed 280 characters.")
	}
	return trimmed, nil
}

// ExtractHashtags returns every #tag in content, in order of appearance.
func ExtractHashtags(content string) []string {
	tags := hashtagRegex.FindAllString(content, -1)
	if tags == nil {
		return []string{}
	}
	return tags
}

// ExtractMentions returns the usernames of every @mention in content, without the @.
func ExtractMentions(content string) []string {
	matches := mentionRegex.FindAllString(content, -1)
	mentions := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		username := m[1:]
		if _, ok := seen[username]; ok {
			continue
		}
		seen[username] = struct{}{}
		mentions = append(mentions, username)
	}
	return mentions
}

// SearchKey case-folds text so substring matching is case-insensitive for any script.
func SearchKey(text string) string {
	// Casers keep state, so each call gets its own.
	return cases.Fold().String(text)
}
