package serializer

import "github.com/tauleaf/tau/internal/errtype"

// Encoding selects the output codec a render's text is validated
// against. The Serializer's internal representation is
// always a Go (UTF-8) string; Encoding only gates which code points a
// render is allowed to produce, it never transcodes the returned bytes.
type Encoding int

const (
	// EncodingUTF8 is the default: every valid code point is allowed.
	EncodingUTF8 Encoding = iota
	EncodingASCII
	EncodingISO8859_1
)

func (e Encoding) String() string {
	switch e {
	case EncodingASCII:
		return "ascii"
	case EncodingISO8859_1:
		return "iso-8859-1"
	default:
		return "utf-8"
	}
}

// checkEncoding rejects the first code point in out that the requested
// Encoding cannot represent.
func checkEncoding(out string, enc Encoding) error {
	if enc == EncodingUTF8 {
		return nil
	}
	limit := rune(127)
	if enc == EncodingISO8859_1 {
		limit = 255
	}
	for _, r := range out {
		if r > limit {
			return &errtype.EncodingError{Encoding: enc.String(), Rune: r}
		}
	}
	return nil
}
