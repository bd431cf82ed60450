package bulletin

import (
	"fmt"
	"strings"

	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// FallbackCharset is used when detection yields nothing usable. Every byte
// sequence is valid ISO-8859-1, so decoding with it cannot fail.
const FallbackCharset = "ISO-8859-1"

// detectSample bounds how much of a bulletin is fed to the detector.
const detectSample = 1 << 20

// DecodingError reports that no decoder could turn the bulletin into text.
type DecodingError struct {
	Charset string
	Err     error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("bulletin: decode as %s: %v", e.Charset, e.Err)
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}

// DetectCharset guesses the character set of data from its byte distribution.
func DetectCharset(data []byte) string {
	if len(data) == 0 {
		return FallbackCharset
	}
	sample := data
	if len(sample) > detectSample {
		sample = sample[:detectSample]
	}
	res, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil || res == nil || res.Charset == "" {
		return FallbackCharset
	}
	return res.Charset
}

// Decode converts a raw bulletin to UTF-8 text and reports the charset used.
// Undecodable sequences become U+FFFD; a detected charset that cannot be
// decoded falls back to FallbackCharset.
func Decode(data []byte) (string, string, error) {
	charset := DetectCharset(data)
	text, err := DecodeAs(charset, data)
	if err == nil {
		return text, charset, nil
	}
	zap.L().Debug("bulletin: detected charset unusable, falling back",
		zap.String("charset", charset),
		zap.Error(err),
	)

	text, err = DecodeAs(FallbackCharset, data)
	if err != nil {
		return "", FallbackCharset, &DecodingError{Charset: FallbackCharset, Err: err}
	}
	return text, FallbackCharset, nil
}

// DecodeAs decodes data with the named charset.
func DecodeAs(charset string, data []byte) (string, error) {
	enc, err := lookupEncoding(charset)
	if err != nil {
		return "", err
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", err
	}
	text := strings.ToValidUTF8(string(out), "\uFFFD")
	return strings.TrimPrefix(text, "\uFEFF"), nil
}

// lookupEncoding resolves a charset name. ISO-8859-1 is mapped to true
// Latin-1 rather than the WHATWG windows-1252 alias.
func lookupEncoding(charset string) (encoding.Encoding, error) {
	if strings.EqualFold(charset, FallbackCharset) || strings.EqualFold(charset, "latin1") {
		return charmap.ISO8859_1, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return enc, nil
}
