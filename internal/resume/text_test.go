package resume

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// buildPDF assembles a minimal single-page PDF whose content stream shows
// each line with Tj, separated by T*.
func buildPDF(t *testing.T, lines ...string) []byte {
	t.Helper()
	var content strings.Builder
	content.WriteString("BT /F1 12 Tf 14 TL 72 720 Td ")
	for i, l := range lines {
		if i > 0 {
			content.WriteString("T* ")
		}
		fmt.Fprintf(&content, "(%s) Tj ", l)
	}
	content.WriteString("ET")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// buildDOCX zips a word/document.xml with one w:p per paragraph.
func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		// Split each paragraph into two runs to check run concatenation.
		half := len(p) / 2
		fmt.Fprintf(&body, `<w:p><w:r><w:t>%s</w:t></w:r><w:r><w:t xml:space="preserve">%s</w:t></w:r></w:p>`, p[:half], p[half:])
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := w.Write([]byte(body.String())); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestExtractText_PDF(t *testing.T) {
	data := buildPDF(t, "Jane Doe, Senior Go Engineer", "Skills: Kubernetes, PostgreSQL")
	got, err := ExtractText("cv.PDF", data)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if !strings.Contains(got, "Senior Go Engineer") || !strings.Contains(got, "PostgreSQL") {
		t.Fatalf("text = %q", got)
	}
}

func TestExtractText_DOCX(t *testing.T) {
	data := buildDOCX(t, "Experience: Backend Engineer at Acme", "Education: BSc Computer Science")
	got, err := ExtractText("resume.docx", data)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	want := "Experience: Backend Engineer at Acme\nEducation: BSc Computer Science"
	if got != want {
		t.Fatalf("text = %q, want %q", got, want)
	}
}

func TestExtractText_PlainFormats(t *testing.T) {
	for _, name := range []string{"cv.txt", "cv.md"} {
		got, err := ExtractText(name, []byte("  # Jane\nGo, SQL \n"))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got != "# Jane\nGo, SQL" {
			t.Fatalf("%s: text = %q", name, got)
		}
	}
}

func TestExtractText_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		want     error
	}{
		{"unsupported extension", "photo.png", []byte{0x89, 'P', 'N', 'G'}, ErrUnsupportedFormat},
		{"no extension", "resume", []byte("text"), ErrUnsupportedFormat},
		{"blank text", "cv.txt", []byte(" \n\t "), ErrEmptyDocument},
		{"blank docx", "cv.docx", nil, errMalformed},
		{"docx without body", "cv.docx", func() []byte {
			var buf bytes.Buffer
			zw := zip.NewWriter(&buf)
			_, _ = zw.Create("other.xml")
			_ = zw.Close()
			return buf.Bytes()
		}(), errMalformed},
		{"not a pdf", "cv.pdf", []byte("this is not a pdf"), errMalformed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ExtractText(tc.filename, tc.data)
			if !errors.Is(err, tc.want) {
				t.Fatalf("error = %v, want %v", err, tc.want)
			}
			if !IsUserError(err) {
				t.Errorf("IsUserError(%v) = false", err)
			}
		})
	}
}

func TestExtractText_EmptyPDF(t *testing.T) {
	_, err := ExtractText("cv.pdf", buildPDF(t, " "))
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("error = %v, want ErrEmptyDocument", err)
	}
}
