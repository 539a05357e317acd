// Package e2e exercises the full document pipeline against real storage;
// this file builds minimal binary files for the extractor-supported formats.
package e2e

import (
	"archive/zip"
	"bytes"

	"github.com/xuri/excelize/v2"
)

// DocFixtureExtensions lists the file extensions covered by the drop-directory
// E2E tests. Plain text (.txt, .md), OOXML (.docx, .xlsx, .pptx) and
// OpenDocument (.odp, .ods). The extractor also handles .pdf, .odt and .rtf;
// PDF is skipped here (no minimal PDF carries extractable text) and .odt/.rtf
// share the .docx code path.
var DocFixtureExtensions = []string{
	".txt", ".md",
	".docx", ".xlsx", ".pptx", ".odp", ".ods",
}

// BuildDocFixture returns the bytes of a minimal file of the given extension
// whose extracted text contains the given phrase. Unknown extensions fall back
// to raw text.
func BuildDocFixture(ext, text string) ([]byte, error) {
	switch ext {
	case ".docx":
		return wordMLFixture(text), nil
	case ".pptx":
		return slideFixture(text), nil
	case ".odp":
		return odfFixture(text, `<office:document><office:body><draw:page><draw:text-box><text:p>`+text+`</text:p></draw:text-box></draw:page></office:body></office:document>`), nil
	case ".ods":
		return odfFixture(text, `<office:document><office:body><table:table><table:table-row><table:table-cell><text:p>`+text+`</text:p></table:table-cell></table:table-row></table:table></office:body></office:document>`), nil
	case ".xlsx":
		return sheetFixture(text)
	default:
		return []byte(text), nil
	}
}

func wordMLFixture(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func slideFixture(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("ppt/slides/slide1.xml")
	_, _ = fw.Write([]byte(`<p:sld xmlns:p="a" xmlns:a="b"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`))
	_ = w.Close()
	return buf.Bytes()
}

func odfFixture(text, contentXML string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("content.xml")
	_, _ = fw.Write([]byte(contentXML))
	_ = w.Close()
	return buf.Bytes()
}

func sheetFixture(text string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetCellValue("Sheet1", "A1", text); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
