package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

func openZip(content []byte, format string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return zr, nil
}

// readZipFile returns the bytes of the named member, or nil when it is absent.
func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		return readMember(f)
	}
	return nil, nil
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

// textJoiner accumulates captured XML text runs separated by single spaces.
type textJoiner struct {
	b strings.Builder
}

func (j *textJoiner) collect(xml string, patterns ...*regexp.Regexp) {
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(xml, -1) {
			if j.b.Len() > 0 {
				j.b.WriteByte(' ')
			}
			j.b.WriteString(strings.TrimSpace(m[1]))
		}
	}
}

func (j *textJoiner) String() string {
	return strings.TrimSpace(j.b.String())
}
