package extract

import (
	"fmt"
	"regexp"
	"strings"
)

const pptxSlidePathPrefix = "ppt/slides/slide"

var atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

// extractPPTX joins the <a:t> runs of every slide in archive order.
func extractPPTX(content []byte) (string, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return "", err
	}
	var j textJoiner
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePathPrefix) || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		xml, err := readMember(f)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %w", err)
		}
		j.collect(string(xml), atTag)
	}
	return j.String(), nil
}
