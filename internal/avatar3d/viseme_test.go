package avatar3d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapVisemeCoversEveryCode(t *testing.T) {
	want := map[string]string{
		"A": "viseme_PP",
		"B": "viseme_kk",
		"C": "viseme_I",
		"D": "viseme_AA",
		"E": "viseme_O",
		"F": "viseme_U",
		"G": "viseme_FF",
		"H": "viseme_TH",
		"X": "viseme_PP",
	}

	codes := AllVisemeCodes()
	require.Len(t, codes, len(want))

	for _, code := range codes {
		name, err := MapViseme(code)
		require.NoError(t, err, code.String())
		assert.Equal(t, want[code.String()], name, code.String())
	}
}

func TestParseVisemeCode(t *testing.T) {
	for _, letter := range []string{"A", "B", "C", "D", "E", "F", "G", "H", "X"} {
		code, err := ParseVisemeCode(letter)
		require.NoError(t, err)
		assert.Equal(t, letter, code.String())
	}

	for _, bad := range []string{"", "a", "I", "AB", " ", "Z"} {
		_, err := ParseVisemeCode(bad)
		assert.ErrorIs(t, err, ErrUnknownVisemeCode, bad)
	}
}

func TestMapVisemeRejectsOutOfRange(t *testing.T) {
	for _, code := range []VisemeCode{0, visemeCount, 200} {
		_, err := MapViseme(code)
		assert.ErrorIs(t, err, ErrUnknownVisemeCode)
		assert.False(t, code.Valid())
	}
}
