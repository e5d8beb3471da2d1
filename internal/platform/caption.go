package platform

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// FacebookMaxLength is the maximum character count for a Facebook Page post.
	FacebookMaxLength = 63206

	// InstagramMaxLength is the maximum character count for an Instagram caption.
	InstagramMaxLength = 2200

	// LinkedInMaxLength is the maximum character count for a LinkedIn share.
	LinkedInMaxLength = 3000
)

// MaxLength returns the caption limit of p, or 0 when p has none.
func MaxLength(p Platform) int {
	switch p {
	case Facebook:
		return FacebookMaxLength
	case Instagram:
		return InstagramMaxLength
	case LinkedIn:
		return LinkedInMaxLength
	}
	return 0
}

// FitsInLimit checks if the text fits within the limit.
func FitsInLimit(text string, limit int) bool {
	return utf8.RuneCountInString(text) <= limit
}

// CheckCaption returns an error describing why text is too long for p.
func CheckCaption(p Platform, text string) error {
	limit := MaxLength(p)
	if limit == 0 || FitsInLimit(text, limit) {
		return nil
	}
	return fmt.Errorf("content is %d characters, %s allows at most %d",
		utf8.RuneCountInString(text), p, limit)
}

// Truncate shortens text to at most maxLen runes, ending in "...".
func Truncate(text string, maxLen int) string {
	if FitsInLimit(text, maxLen) {
		return text
	}
	if maxLen <= 3 {
		return string([]rune(text)[:maxLen])
	}

	available := maxLen - 3
	truncated := string([]rune(text)[:available])

	// Find last space to avoid cutting mid-word
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > len(truncated)/2 { // Only use word boundary if not too far back
		truncated = truncated[:lastSpace]
	}

	return strings.TrimRight(truncated, " .,;:!?") + "..."
}
