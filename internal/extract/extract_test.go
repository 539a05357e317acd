package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func zipBytes(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractBytes_Plain(t *testing.T) {
	e := NewExtractor()
	for _, ext := range []string{".txt", ".md", "", ".unknown"} {
		got, err := e.ExtractBytes([]byte("hello world"), ext)
		if err != nil {
			t.Fatalf("ext %q: %v", ext, err)
		}
		if got != "hello world" {
			t.Errorf("ext %q: got %q", ext, got)
		}
	}
}

func TestExtractBytes_InvalidUTF8(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte{'o', 'k', 0xff, 0xfe}, ".txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "ok") {
		t.Errorf("got %q", got)
	}
	if strings.ContainsRune(got, 0xff) {
		t.Error("invalid bytes should be replaced")
	}
}

func TestExtractBytes_DOCX(t *testing.T) {
	e := NewExtractor()
	docXML := `<w:document><w:body><w:p w:rsidR="00A"><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve">world</w:t></w:r></w:p></w:body></w:document>`
	content := zipBytes(t, map[string]string{"word/document.xml": docXML})

	got, err := e.ExtractBytes(content, ".docx")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello world" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_DOCX_ContentTypesOverride(t *testing.T) {
	e := NewExtractor()
	docXML := `<w:document><w:body><w:p><w:r><w:t>custom path</w:t></w:r></w:p></w:body></w:document>`
	contentTypes := `<Types><Override PartName="/word/doc2.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`
	content := zipBytes(t, map[string]string{
		"[Content_Types].xml": contentTypes,
		"word/doc2.xml":       docXML,
	})

	got, err := e.ExtractBytes(content, ".docx")
	if err != nil {
		t.Fatal(err)
	}
	if got != "custom path" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_DOCX_NotZip(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("not a zip"), ".docx"); err == nil {
		t.Error("expected error for non-zip input")
	}
}

func TestExtractBytes_PPTX(t *testing.T) {
	e := NewExtractor()
	content := zipBytes(t, map[string]string{
		"ppt/slides/slide1.xml": `<p:sld><a:t>Slide one</a:t></p:sld>`,
		"ppt/slides/slide2.xml": `<p:sld><a:t>Slide two</a:t></p:sld>`,
		"ppt/notes/notes1.xml":  `<p:notes><a:t>ignored</a:t></p:notes>`,
	})

	got, err := e.ExtractBytes(content, ".pptx")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "Slide one") || !strings.Contains(got, "Slide two") {
		t.Errorf("got %q", got)
	}
	if strings.Contains(got, "ignored") {
		t.Errorf("notes should not be extracted: %q", got)
	}
}

func TestExtractBytes_ODP(t *testing.T) {
	e := NewExtractor()
	content := zipBytes(t, map[string]string{
		"content.xml": `<office:body><text:h>Title</text:h><text:p>Body text</text:p></office:body>`,
	})

	got, err := e.ExtractBytes(content, ".odp")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "Title") || !strings.Contains(got, "Body text") {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_ODT(t *testing.T) {
	e := NewExtractor()
	content := zipBytes(t, map[string]string{
		"content.xml": `<office:document-content><office:body><office:text><text:h>Memo</text:h><text:p>Quarterly retention summary.</text:p></office:text></office:body></office:document-content>`,
	})

	got, err := e.ExtractBytes(content, ".odt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "Memo") || !strings.Contains(got, "Quarterly retention summary.") {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_RTF(t *testing.T) {
	e := NewExtractor()
	rtf := `{\rtf1\ansi{\fonttbl{\f0 Calibri;}}{\colortbl;\red0\green0\blue0;}\f0\fs22 Pricing notes\par second \'e9 line\tab done}`

	got, err := e.ExtractBytes([]byte(rtf), ".rtf")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "Pricing notes") {
		t.Errorf("body text missing: %q", got)
	}
	if !strings.Contains(got, "second é line") {
		t.Errorf("hex escape not decoded: %q", got)
	}
	if strings.Contains(got, "Calibri") {
		t.Errorf("font table should be skipped: %q", got)
	}
	if !strings.Contains(got, "\n") || !strings.Contains(got, "\t") {
		t.Errorf("par/tab not translated: %q", got)
	}
}

func TestExtractBytes_RTF_Unicode(t *testing.T) {
	e := NewExtractor()
	rtf := `{\rtf1\ansi\uc1 caf\u233?s}`

	got, err := e.ExtractBytes([]byte(rtf), ".rtf")
	if err != nil {
		t.Fatal(err)
	}
	if got != "cafés" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_RTF_NotRTF(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("plain words"), ".rtf"); err == nil {
		t.Error("expected error for input without rtf header")
	}
}

func TestExtractBytes_ODS(t *testing.T) {
	e := NewExtractor()
	content := zipBytes(t, map[string]string{
		"content.xml": `<office:body><table:table-cell><text:p>cell value</text:p></table:table-cell></office:body>`,
	})

	got, err := e.ExtractBytes(content, ".ods")
	if err != nil {
		t.Fatal(err)
	}
	if got != "cell value" {
		t.Errorf("got %q", got)
	}
}
