// Package searcherr defines the coded errors shared across kensaku.
package searcherr

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeScanIOFailure     Code = "scan.io.failure"
	CodeScanDecodeInvalid Code = "scan.decode.invalid"

	CodeEmbeddingCallFailure    Code = "embedding.call.failure"
	CodeEmbeddingResultMismatch Code = "embedding.result.mismatch"
	CodeEmbeddingSetupFailure   Code = "embedding.setup.failure"

	CodeCacheStoreFailure  Code = "cache.store.failure"
	CodeCacheEntryInvalid  Code = "cache.entry.invalid"
	CodeCacheNotConfigured Code = "cache.backend.not_implemented"

	CodeConfigLoadFailure     Code = "config.load.failure"
	CodeConfigValidateInvalid Code = "config.validate.invalid"

	CodeSearchRequestInvalid Code = "search.request.invalid"
	CodeSearchTimeout        Code = "search.embedding.timeout"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldPath(value string) Attr {
	return Field("path", value)
}

func FieldKey(value string) Attr {
	return Field("key", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

// CodeOf returns the code carried by err, or "" for plain errors.
// When coded errors are nested the innermost code wins.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := any(oopsErr.Code()).(Code); ok {
		return code
	}
	if code, ok := any(oopsErr.Code()).(string); ok {
		return Code(code)
	}
	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsEmbedding(err error) bool { return domain(CodeOf(err)) == "embedding" }
func IsCache(err error) bool     { return domain(CodeOf(err)) == "cache" }
func IsConfig(err error) bool    { return domain(CodeOf(err)) == "config" }

func IsInvalidInput(err error) bool {
	return reason(CodeOf(err)) == "invalid"
}

// ExitCode maps an error to the process exit status used by the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case IsConfig(err), HasCode(err, CodeSearchRequestInvalid):
		return 2
	case IsEmbedding(err), HasCode(err, CodeSearchTimeout):
		return 3
	case IsCache(err):
		return 4
	default:
		return 1
	}
}

func HTTPStatus(err error) int {
	switch {
	case HasCode(err, CodeCacheNotConfigured):
		return http.StatusNotImplemented
	case HasCode(err, CodeSearchTimeout):
		return http.StatusGatewayTimeout
	case IsInvalidInput(err) && !IsCache(err) && !IsEmbedding(err):
		return http.StatusBadRequest
	case IsEmbedding(err):
		return http.StatusBadGateway
	case IsCache(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func domain(code Code) string {
	raw := string(code)
	if idx := strings.Index(raw, "."); idx > 0 {
		return raw[:idx]
	}
	return raw
}

func reason(code Code) string {
	if code == "" {
		return ""
	}
	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
