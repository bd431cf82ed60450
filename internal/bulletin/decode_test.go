package bulletin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAs_Latin1(t *testing.T) {
	text, err := DecodeAs("ISO-8859-1", []byte{'C', 'a', 'f', 0xE9})
	require.NoError(t, err)
	assert.Equal(t, "Café", text)
}

func TestDecodeAs_Windows1252(t *testing.T) {
	text, err := DecodeAs("windows-1252", []byte{0x80, '1', '0'})
	require.NoError(t, err)
	assert.Equal(t, "€10", text)
}

func TestDecodeAs_UTF8ReplacesInvalid(t *testing.T) {
	text, err := DecodeAs("UTF-8", []byte{'A', 0xFF, 'B'})
	require.NoError(t, err)
	assert.Equal(t, "A\uFFFDB", text)
}

func TestDecodeAs_StripsBOM(t *testing.T) {
	text, err := DecodeAs("UTF-8", []byte("\xEF\xBB\xBFOpen Ended Schemes"))
	require.NoError(t, err)
	assert.Equal(t, "Open Ended Schemes", text)
}

func TestDecodeAs_UnknownCharset(t *testing.T) {
	_, err := DecodeAs("x-not-a-charset", []byte("abc"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported charset")
}

func TestDetectCharset_Empty(t *testing.T) {
	assert.Equal(t, FallbackCharset, DetectCharset(nil))
}

func TestDecode_ASCIIRoundTrips(t *testing.T) {
	in := "Open Ended Schemes\n120503;ABC Fund Growth;INF001;INF002;45.6789;0;0;02-Apr-2025\n"
	text, charset, err := Decode([]byte(in))
	require.NoError(t, err)
	assert.Equal(t, in, text)
	assert.NotEmpty(t, charset)
}

func TestDecodingError(t *testing.T) {
	cause := errors.New("boom")
	err := &DecodingError{Charset: "ISO-8859-1", Err: cause}
	assert.Equal(t, "bulletin: decode as ISO-8859-1: boom", err.Error())
	assert.ErrorIs(t, err, cause)
}
