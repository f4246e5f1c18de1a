// Package contentkey derives deterministic cache keys from text content.
package contentkey

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultNamespace prefixes every key unless configured otherwise.
const DefaultNamespace = "embedding"

// Key returns namespace + ":" + the 16-digit hex xxhash64 of text.
// Identical text always yields the identical key.
func Key(namespace, text string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	sum := xxhash.Sum64String(text)
	hex := strconv.FormatUint(sum, 16)
	if pad := 16 - len(hex); pad > 0 {
		hex = strings.Repeat("0", pad) + hex
	}
	return namespace + ":" + hex
}

// Prefix returns the prefix shared by every key in namespace.
func Prefix(namespace string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return namespace + ":"
}
