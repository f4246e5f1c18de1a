package extract

import (
	"archive/zip"
	"fmt"
	"regexp"
	"strings"
)

const (
	docxDocumentXMLPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

// wtTag matches <w:t> runs with any attributes.
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// The main part override may list PartName and ContentType in either order.
var (
	partNameFirst = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	typeFirst     = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

// docxMainPart resolves the main document part from [Content_Types].xml,
// falling back to word/document.xml.
func docxMainPart(zr *zip.Reader) string {
	types, err := readZipFile(zr, contentTypesPath)
	if err != nil || types == nil {
		return docxDocumentXMLPath
	}
	for _, re := range []*regexp.Regexp{partNameFirst, typeFirst} {
		if m := re.FindSubmatch(types); len(m) > 1 {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return docxDocumentXMLPath
}

// extractDOCX joins every <w:t> run of the main document part.
func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return "", err
	}
	part := docxMainPart(zr)
	xml, err := readZipFile(zr, part)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if xml == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", part)
	}
	var j textJoiner
	j.collect(string(xml), wtTag)
	return j.String(), nil
}
