// Package extract turns uploaded PDF, DOCX and plain-text files into plain text with page and word counts.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"golang.org/x/text/encoding/charmap"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrCorruptFile       = errors.New("file could not be read")
)

// Format is a supported document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeTXT  = "text/plain"

	defaultMaxPages  = 50
	docxCharsPerPage = 3000
)

// Options tunes extraction.
type Options struct {
	// MaxPages caps how many PDF pages are read. Zero means 50.
	MaxPages int
}

// Result is the outcome of a successful extraction.
type Result struct {
	Format    Format
	Text      string
	PageCount int
	WordCount int
}

// MimeType returns the canonical MIME type for the format.
func (f Format) MimeType() string {
	switch f {
	case FormatPDF:
		return mimePDF
	case FormatDOCX:
		return mimeDOCX
	case FormatTXT:
		return mimeTXT
	default:
		return "application/octet-stream"
	}
}

// FormatFromExtension maps a file extension (with or without dot) to a Format.
func FormatFromExtension(ext string) (Format, bool) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".") {
	case "pdf":
		return FormatPDF, true
	case "docx":
		return FormatDOCX, true
	case "txt":
		return FormatTXT, true
	default:
		return "", false
	}
}

// DetectFormat picks the format from the file extension, then the declared or sniffed MIME type.
func DetectFormat(mimeType, fileName string, data []byte) (Format, error) {
	if f, ok := FormatFromExtension(filepath.Ext(fileName)); ok {
		return f, nil
	}
	switch normalizeMimeType(mimeType, data) {
	case mimePDF:
		return FormatPDF, nil
	case mimeDOCX:
		return FormatDOCX, nil
	case mimeTXT:
		return FormatTXT, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, strings.TrimSpace(mimeType))
	}
}

// Extract converts data into plain text. It is deterministic for a given input.
func Extract(ctx context.Context, data []byte, mimeType, fileName string, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	format, err := DetectFormat(mimeType, fileName, data)
	if err != nil {
		return Result{}, err
	}

	var (
		text  string
		pages int
	)
	switch format {
	case FormatPDF:
		text, pages, err = extractPDF(data, opts.maxPages())
	case FormatDOCX:
		text, err = extractDOCX(data)
		pages = max(1, len(text)/docxCharsPerPage)
	case FormatTXT:
		text = decodeText(data)
		pages = 1
	}
	if err != nil {
		return Result{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" && format != FormatTXT {
		return Result{}, fmt.Errorf("%w: no text found in %s", ErrCorruptFile, format)
	}

	return Result{
		Format:    format,
		Text:      text,
		PageCount: pages,
		WordCount: len(strings.Fields(text)),
	}, nil
}

func (o Options) maxPages() int {
	if o.MaxPages <= 0 {
		return defaultMaxPages
	}
	return o.MaxPages
}

func extractPDF(data []byte, maxPages int) (text string, pages int, err error) {
	// The PDF parser panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			text, pages = "", 0
			err = fmt.Errorf("%w: pdf: %v", ErrCorruptFile, rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("%w: pdf: %v", ErrCorruptFile, err)
	}

	pages = reader.NumPage()
	limit := min(pages, maxPages)
	parts := make([]string, 0, limit)
	for i := 1; i <= limit; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("%w: pdf page %d: %v", ErrCorruptFile, i, err)
		}
		parts = append(parts, content)
	}
	return strings.Join(parts, "\n"), pages, nil
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty docx", ErrCorruptFile)
	}
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: docx: %v", ErrCorruptFile, err)
	}
	defer doc.Close()

	return stripDocxXML(doc.Editable().GetContent())
}

// stripDocxXML keeps character data and turns paragraph and break ends into newlines.
func stripDocxXML(raw string) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: docx xml: %v", ErrCorruptFile, err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.Write(t)
		case xml.StartElement:
			if t.Name.Local == "tab" {
				buf.WriteString("\t")
			}
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && buf.Len() > 0 {
				buf.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(buf.String()), nil
}

// decodeText reads UTF-8 and falls back to ISO-8859-1 for anything else.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(decoded)
}

func normalizeMimeType(mimeType string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean == "application/zip" || clean == "application/x-zip-compressed" {
		if isDOCXArchive(data) {
			return mimeDOCX
		}
	}
	return clean
}

func isDOCXArchive(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return true
		}
	}
	return false
}
