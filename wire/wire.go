// Package wire holds the shared framing and scanning rules used by the
// instrument protocol codecs. Two framing conventions are covered: bracket
// commands ("[GPOS]") answered by parenthesised values ("(0)"), and
// colon/hash commands (":GLS#") answered by '#' terminated or single byte
// fields. Fragile offset and format assumptions live here and in the
// per-driver codecs only.
package wire

import (
	"fmt"
	"strconv"
)

// ParseError reports a response that did not match the expected format. The
// command failed, but the link is presumed healthy and the whole command may
// be retried.
type ParseError struct {
	Expected string
	Raw      []byte
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("wire: cannot parse %q as %s", e.Raw, e.Expected)
}

// MismatchError reports a well formed response that does not belong to the
// command that was issued. The link is likely desynchronised, the transport
// must be flushed before the next command.
type MismatchError struct {
	Command string
	Raw     []byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("wire: response %q does not match command %q", e.Raw, e.Command)
}

// Bracket frames a command in the DeepSkyDad convention: [CMD].
func Bracket(cmd string) []byte {
	return []byte("[" + cmd + "]")
}

// Bracketf frames a formatted command in the DeepSkyDad convention.
func Bracketf(format string, args ...any) []byte {
	return Bracket(fmt.Sprintf(format, args...))
}

// ColonHash frames a command in the iOptron convention: :CMD#.
func ColonHash(cmd string) []byte {
	return []byte(":" + cmd + "#")
}

// ColonHashf frames a formatted command in the iOptron convention.
func ColonHashf(format string, args ...any) []byte {
	return ColonHash(fmt.Sprintf(format, args...))
}

// ParenInt parses a "(%d)" response.
func ParenInt(raw []byte) (int, error) {
	if len(raw) < 3 || raw[0] != '(' || raw[len(raw)-1] != ')' {
		return 0, &ParseError{Expected: "(%d)", Raw: raw}
	}

	v, err := strconv.Atoi(string(raw[1 : len(raw)-1]))
	if err != nil {
		return 0, &ParseError{Expected: "(%d)", Raw: raw}
	}

	return v, nil
}

// ParenString parses a "(...)" response, returning the inner text.
func ParenString(raw []byte) (string, error) {
	if len(raw) < 2 || raw[0] != '(' || raw[len(raw)-1] != ')' {
		return "", &ParseError{Expected: "(...)", Raw: raw}
	}

	return string(raw[1 : len(raw)-1]), nil
}

// HashField parses a '#' terminated response, returning the field without
// its terminator.
func HashField(raw []byte) (string, error) {
	if len(raw) == 0 || raw[len(raw)-1] != '#' {
		return "", &ParseError{Expected: "field#", Raw: raw}
	}

	return string(raw[:len(raw)-1]), nil
}

// FixedInt parses a fixed width integer at [offset, offset+width) of a '#'
// terminated response.
func FixedInt(raw []byte, offset, width int) (int, error) {
	field, err := HashField(raw)
	if err != nil {
		return 0, err
	}

	if offset+width > len(field) {
		return 0, &ParseError{Expected: fmt.Sprintf("%d digits at offset %d", width, offset), Raw: raw}
	}

	v, err := strconv.Atoi(field[offset : offset+width])
	if err != nil {
		return 0, &ParseError{Expected: fmt.Sprintf("%d digits at offset %d", width, offset), Raw: raw}
	}

	return v, nil
}

// Boolean parses the single byte acknowledgement used by iOptron style
// mounts: '1' for success, '0' for refusal.
func Boolean(raw []byte) (bool, error) {
	if len(raw) != 1 || (raw[0] != '0' && raw[0] != '1') {
		return false, &ParseError{Expected: "0|1", Raw: raw}
	}

	return raw[0] == '1', nil
}
