package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedFormat indicates a file type no extractor handles.
// Callers must check this before any embedding work starts.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ExtractorFunc turns a file's raw bytes into plain text.
type ExtractorFunc func(data []byte) (string, error)

// Extractors maps file extensions to text extractors.
type Extractors struct {
	byExt map[string]ExtractorFunc
}

// NewExtractors returns the default extractor set: PDF, DOCX, plain text,
// Markdown, and HTML.
func NewExtractors() *Extractors {
	return &Extractors{byExt: map[string]ExtractorFunc{
		".pdf":  extractPDF,
		".docx": extractDOCX,
		".txt":  extractPlain,
		".md":   extractPlain,
		".html": extractHTML,
		".htm":  extractHTML,
	}}
}

// Register adds or replaces the extractor for an extension.
func (e *Extractors) Register(ext string, fn ExtractorFunc) {
	e.byExt[strings.ToLower(ext)] = fn
}

// Supported reports whether the filename's extension has an extractor.
func (e *Extractors) Supported(filename string) bool {
	_, ok := e.byExt[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extract returns the plain text of the file, or ErrUnsupportedFormat.
func (e *Extractors) Extract(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	fn, ok := e.byExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	text, err := fn(data)
	if err != nil {
		return "", fmt.Errorf("extracting %s: %w", filename, err)
	}
	return text, nil
}

func extractPlain(data []byte) (string, error) {
	return string(data), nil
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	textReader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading PDF text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(textReader); err != nil {
		return "", fmt.Errorf("reading PDF text: %w", err)
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parsing DOCX: %w", err)
	}
	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch v := item.(type) {
		case *docx.Paragraph:
			sb.WriteString(v.String())
			sb.WriteString("\n")
		case *docx.Table:
			sb.WriteString(v.String())
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func extractHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	return strings.TrimSpace(doc.Text()), nil
}
