// Package extract turns file bytes into searchable text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kensaku/pkg/searcherr"
)

type extractFunc func(content []byte) (string, error)

var documentFormats = map[string]extractFunc{
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".xlsx": extractExcel,
	".pptx": extractPPTX,
	".odt":  extractOpenDocument,
	".odp":  extractOpenDocument,
	".ods":  extractOpenDocument,
	".rtf":  extractRTF,
}

// Extractor decodes file content into text. With document support off every
// file is treated as plain text.
type Extractor struct {
	documents bool
}

// NewExtractor returns an Extractor. documents enables PDF, Office and OpenDocument parsing.
func NewExtractor(documents bool) *Extractor {
	return &Extractor{documents: documents}
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", searcherr.Wrap(err, searcherr.CodeScanIOFailure, "read file", searcherr.FieldPath(path))
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractBytes decodes content according to ext, which includes the leading dot.
// Failures carry searcherr.CodeScanDecodeInvalid.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	fn := extractPlain
	if e.documents {
		if doc, ok := documentFormats[strings.ToLower(ext)]; ok {
			fn = doc
		}
	}
	text, err := fn(content)
	if err != nil {
		return "", searcherr.Wrap(err, searcherr.CodeScanDecodeInvalid, fmt.Sprintf("decode %s content", formatName(ext)))
	}
	return text, nil
}

// IsDocument reports whether ext is handled by a document parser.
func IsDocument(ext string) bool {
	_, ok := documentFormats[strings.ToLower(ext)]
	return ok
}

func formatName(ext string) string {
	if ext == "" {
		return "text"
	}
	return strings.TrimPrefix(ext, ".")
}
