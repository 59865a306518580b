// Package resume turns an uploaded résumé into plain text and then into a
// structured [Profile] that question generation works from.
package resume

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedFormat is returned for uploads that are not PDF, DOCX,
	// TXT or Markdown.
	ErrUnsupportedFormat = errors.New("resume: unsupported file format")

	// ErrEmptyDocument is returned when a supported file yields no text.
	ErrEmptyDocument = errors.New("resume: document contains no text")
)

// maxDocumentXML caps the decompressed size of word/document.xml.
const maxDocumentXML = 32 << 20

// ExtractText returns the plain text of a résumé. The format is chosen by
// the file extension of filename.
func ExtractText(filename string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".pdf":
		text, err = pdfText(data)
	case ".docx":
		text, err = docxText(data)
	case ".txt", ".md":
		text = string(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

// IsUserError reports whether err was caused by the uploaded file rather
// than by the service.
func IsUserError(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrEmptyDocument) || errors.Is(err, errMalformed)
}

var errMalformed = errors.New("resume: malformed document")

func pdfText(data []byte) (text string, err error) {
	// The PDF parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: pdf: %v", errMalformed, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: pdf: %w", errMalformed, err)
	}
	rd, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: pdf text: %w", errMalformed, err)
	}
	b, err := io.ReadAll(rd)
	if err != nil {
		return "", fmt.Errorf("resume: read pdf text: %w", err)
	}
	return string(b), nil
}

func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: docx: %w", errMalformed, err)
	}
	f, err := zr.Open("word/document.xml")
	if err != nil {
		return "", fmt.Errorf("%w: docx: %w", errMalformed, err)
	}
	defer f.Close()
	return wordprocessingText(io.LimitReader(f, maxDocumentXML))
}

// wordprocessingText collects the w:t runs of a WordprocessingML body. Each
// w:p ends a line; w:tab and w:br map to a tab and a newline.
func wordprocessingText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		sb     strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: docx xml: %w", errMalformed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
