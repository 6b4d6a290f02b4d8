package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		maxLen  int
		want    string
		wantErr error
	}{
		{"trims", "  hello  ", 0, "hello", nil},
		{"keeps newline", "a\nb", 0, "a\nb", nil},
		{"nfc", "e\u0301", 0, "\u00e9", nil},
		{"control", "a\x00b", 0, "", ErrInvalidText},
		{"escape", "a\x1bb", 0, "", ErrInvalidText},
		{"invalid utf8", "\xff", 0, "", ErrInvalidText},
		{"too long", "abcdef", 5, "", ErrTooLong},
		{"rune count", "ééééé", 5, "ééééé", nil},
		{"quotes untouched", "o'brien", 0, "o'brien", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Text(tt.input, tt.maxLen)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUsername(t *testing.T) {
	for _, ok := range []string{"alice", "Alice", "bob_99", "x.y-z"} {
		got, err := Username(ok)
		require.NoError(t, err, ok)
		assert.Equal(t, ok, got)
	}
	for _, bad := range []string{"", "ab", "has space", "semi;colon", strings.Repeat("a", 33)} {
		_, err := Username(bad)
		assert.Error(t, err, bad)
	}
}

func TestEmail(t *testing.T) {
	got, err := Email(" A@X.com ")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got)

	for _, bad := range []string{"", "nope", "Alice <a@x.com>", "a@"} {
		_, err := Email(bad)
		assert.Error(t, err, bad)
	}
}
