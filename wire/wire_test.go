package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFraming(t *testing.T) {
	assert.Equal(t, []byte("[GPOS]"), Bracket("GPOS"))
	assert.Equal(t, []byte("[SLBR0100]"), Bracketf("SLBR%04d", 100))
	assert.Equal(t, []byte(":GLS#"), ColonHash("GLS"))
	assert.Equal(t, []byte(":SR7#"), ColonHashf("SR%d", 7))
}

func TestParenInt(t *testing.T) {
	t.Run("well formed values parse", func(t *testing.T) {
		v, err := ParenInt([]byte("(4096)"))
		require.NoError(t, err)
		assert.Equal(t, 4096, v)
	})

	t.Run("malformed responses are parse errors carrying the raw bytes", func(t *testing.T) {
		for _, raw := range []string{"", "()", "4096", "(40x6)", "(4096"} {
			_, err := ParenInt([]byte(raw))

			var parse *ParseError
			require.ErrorAs(t, err, &parse, raw)
			assert.Equal(t, []byte(raw), parse.Raw)
		}
	})
}

func TestParenString(t *testing.T) {
	v, err := ParenString([]byte("(DeepSkyDad.FP2.v1.2)"))
	require.NoError(t, err)
	assert.Equal(t, "DeepSkyDad.FP2.v1.2", v)

	_, err = ParenString([]byte("no parens"))
	assert.Error(t, err)
}

func TestHashField(t *testing.T) {
	v, err := HashField([]byte("161028#"))
	require.NoError(t, err)
	assert.Equal(t, "161028", v)

	_, err = HashField([]byte("161028"))
	assert.Error(t, err)
}

func TestFixedInt(t *testing.T) {
	t.Run("fields are cut at fixed offsets", func(t *testing.T) {
		v, err := FixedInt([]byte("+064800324000#"), 0, 7)
		require.NoError(t, err)
		assert.Equal(t, 64800, v)

		v, err = FixedInt([]byte("+064800324000#"), 7, 6)
		require.NoError(t, err)
		assert.Equal(t, 324000, v)
	})

	t.Run("short responses are parse errors", func(t *testing.T) {
		_, err := FixedInt([]byte("12#"), 0, 7)
		assert.Error(t, err)
	})
}

func TestBoolean(t *testing.T) {
	v, err := Boolean([]byte("1"))
	require.NoError(t, err)
	assert.True(t, v)

	v, err = Boolean([]byte("0"))
	require.NoError(t, err)
	assert.False(t, v)

	_, err = Boolean([]byte("2"))
	assert.Error(t, err)
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("parse and mismatch errors are distinguishable", func(t *testing.T) {
		var parse *ParseError
		var mismatch *MismatchError

		_, err := ParenInt([]byte("garbage"))
		assert.True(t, errors.As(err, &parse))
		assert.False(t, errors.As(err, &mismatch))
	})
}
