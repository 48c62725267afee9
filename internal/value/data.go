package value

import "fmt"

// DecodeByteEscape decodes a two-hex-digit `\xHH` escape (as found inside
// double-quoted string/data literals) into its single byte value. hi and
// lo are the two hex digit characters as read by the lexer.
func DecodeByteEscape(hi, lo byte) (byte, error) {
	nh, err := hexNibble(hi)
	if err != nil {
		return 0, err
	}
	nl, err := hexNibble(lo)
	if err != nil {
		return 0, err
	}
	return nh<<4 | nl, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit %q", c)
	}
}

// AppendData appends raw bytes to a data Value, returning a new Value
// (data Values are immutable, like every other Value).
func AppendData(v Value, extra []byte) Value {
	cur, _ := v.AsData()
	out := make([]byte, 0, len(cur)+len(extra))
	out = append(out, cur...)
	out = append(out, extra...)
	return Data(out)
}
