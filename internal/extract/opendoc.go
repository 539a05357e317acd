package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

const openDocumentContentPath = "content.xml"

// OpenDocument text elements. Presentations additionally carry headings.
var (
	odTextP    = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odTextSpan = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
	odTextH    = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)

	textDocumentTags = []*regexp.Regexp{odTextP, odTextSpan, odTextH}
	presentationTags = []*regexp.Regexp{odTextP, odTextSpan, odTextH}
	spreadsheetTags  = []*regexp.Regexp{odTextP, odTextSpan}
)

// extractOpenDocument extracts text from an OpenDocument archive (.odt, .odp,
// .ods) by collecting the given text elements from content.xml.
func extractOpenDocument(content []byte, tags []*regexp.Regexp) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract OpenDocument: not a zip: %w", err)
	}
	contentXML, err := readZipEntry(zr, openDocumentContentPath)
	if err != nil {
		return "", fmt.Errorf("extract OpenDocument: %w", err)
	}

	var b strings.Builder
	for _, re := range tags {
		if text := joinTagText(re, string(contentXML)); text != "" {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(text)
		}
	}
	return b.String(), nil
}
