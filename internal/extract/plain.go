package extract

import (
	"bytes"
	"errors"
	"unicode/utf8"
)

// sniffLen is how much of a file is inspected for NUL bytes.
const sniffLen = 8 << 10

var (
	errBinary      = errors.New("binary content")
	errInvalidUTF8 = errors.New("invalid UTF-8")
)

// extractPlain returns content as a string. Content that is not valid UTF-8,
// or that holds a NUL byte near the start, is rejected.
func extractPlain(content []byte) (string, error) {
	head := content
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return "", errBinary
	}
	if !utf8.Valid(content) {
		return "", errInvalidUTF8
	}
	return string(content), nil
}
