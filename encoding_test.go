package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeServerTextPassesThroughUTF8(t *testing.T) {
	t.Parallel()

	s, err := decodeServerText("UTF8", []byte("café"))
	require.NoError(t, err)
	require.Equal(t, "café", s)
}

func TestDecodeServerTextTranscodesLatin1(t *testing.T) {
	t.Parallel()

	// 0xE9 is "é" in ISO-8859-1/LATIN1, an invalid UTF-8 byte on its own.
	s, err := decodeServerText("LATIN1", []byte{'c', 'a', 'f', 0xE9})
	require.NoError(t, err)
	require.Equal(t, "café", s)
}
