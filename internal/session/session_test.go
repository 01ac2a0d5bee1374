package session

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	t.Run("uses the message text", func(t *testing.T) {
		assert.Equal(t, "What's the weather?", DeriveTitle("What's the weather?"))
	})

	t.Run("trims whitespace", func(t *testing.T) {
		assert.Equal(t, "hello", DeriveTitle("  hello \n"))
	})

	t.Run("empty text falls back", func(t *testing.T) {
		assert.Equal(t, "New conversation", DefaultTitle, "listing copy is load-bearing")
		assert.Equal(t, DefaultTitle, DeriveTitle(""))
		assert.Equal(t, DefaultTitle, DeriveTitle("   \n\t "))
	})

	t.Run("long text is truncated with an ellipsis", func(t *testing.T) {
		long := strings.Repeat("a", 300)
		title := DeriveTitle(long)

		assert.Equal(t, MaxTitleLength, utf8.RuneCountInString(title))
		assert.True(t, strings.HasSuffix(title, "…"))
	})

	t.Run("truncation counts runes not bytes", func(t *testing.T) {
		long := strings.Repeat("日", 150)
		title := DeriveTitle(long)

		assert.Equal(t, MaxTitleLength, utf8.RuneCountInString(title))
	})
}
