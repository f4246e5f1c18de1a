package extract

import (
	"fmt"
	"regexp"
)

const odfContentPath = "content.xml"

var (
	odfTextP    = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odfTextSpan = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
	odfTextH    = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)
)

// extractOpenDocument reads content.xml of an .odt, .odp or .ods archive and
// joins its paragraph, span and heading text.
func extractOpenDocument(content []byte) (string, error) {
	zr, err := openZip(content, "OpenDocument")
	if err != nil {
		return "", err
	}
	xml, err := readZipFile(zr, odfContentPath)
	if err != nil {
		return "", fmt.Errorf("extract OpenDocument: %w", err)
	}
	if xml == nil {
		return "", fmt.Errorf("extract OpenDocument: %s not found", odfContentPath)
	}
	var j textJoiner
	j.collect(string(xml), odfTextP, odfTextSpan, odfTextH)
	return j.String(), nil
}
