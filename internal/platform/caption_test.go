package platform

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFitsInLimit(t *testing.T) {
	tests := []struct {
		text  string
		limit int
		fits  bool
	}{
		{"short", 10, true},
		{"exactly ten", 11, true},
		{"too long for it", 5, false},
		{"ñandú", 5, true}, // runes, not bytes
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.fits, FitsInLimit(tt.text, tt.limit))
		})
	}
}

func TestCheckCaption(t *testing.T) {
	t.Run("within every limit", func(t *testing.T) {
		for _, p := range []Platform{Facebook, Instagram, LinkedIn} {
			assert.NoError(t, CheckCaption(p, "Launch day!"))
		}
	})

	t.Run("instagram limit", func(t *testing.T) {
		text := strings.Repeat("a", InstagramMaxLength+1)
		err := CheckCaption(Instagram, text)
		assert.EqualError(t, err, "content is 2201 characters, instagram allows at most 2200")

		assert.NoError(t, CheckCaption(LinkedIn, text))
	})

	t.Run("linkedin limit", func(t *testing.T) {
		assert.Error(t, CheckCaption(LinkedIn, strings.Repeat("b", LinkedInMaxLength+1)))
	})

	t.Run("unknown platform has no limit", func(t *testing.T) {
		assert.NoError(t, CheckCaption(Platform("mastodon"), strings.Repeat("c", 100000)))
	})
}

func TestTruncate(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "Short text.", Truncate("Short text.", 100))
	})

	t.Run("long text truncated", func(t *testing.T) {
		text := "This is a very long caption that needs to be truncated because it exceeds the limit."
		result := Truncate(text, 40)

		assert.LessOrEqual(t, utf8.RuneCountInString(result), 40)
		assert.True(t, strings.HasSuffix(result, "..."))
	})

	t.Run("truncates at word boundary", func(t *testing.T) {
		result := Truncate("Word1 word2 word3 word4 word5 word6 word7 word8", 30)
		assert.Equal(t, "Word1 word2 word3 word4...", result)
	})
}
