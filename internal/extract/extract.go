// Package extract pulls plain text out of uploaded files ahead of ingestion.
// Supported formats are plain text and PDF.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// MaxFileSize is the upload size ceiling in bytes.
const MaxFileSize = 5 << 20

var (
	// ErrUnsupportedType is returned for file extensions other than
	// .txt, .md, and .pdf.
	ErrUnsupportedType = errors.New("extract: unsupported file type")

	// ErrTooLarge is returned when the upload exceeds MaxFileSize.
	ErrTooLarge = fmt.Errorf("extract: file exceeds %d bytes", MaxFileSize)
)

// Text extracts the plain text of an uploaded file, dispatching on the
// filename extension. The result may be empty for files with no extractable
// text; that is not an error.
func Text(filename string, data []byte) (string, error) {
	if len(data) > MaxFileSize {
		return "", ErrTooLarge
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		return fromPlainText(data)
	case ".pdf":
		return fromPDF(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(filename))
	}
}

// fromPlainText validates and returns the file content as-is, minus any
// UTF-8 byte order mark.
func fromPlainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if !utf8.Valid(data) {
		return "", errors.New("extract: text file is not valid UTF-8")
	}
	return string(data), nil
}

// fromPDF extracts the concatenated plain text of every page.
func fromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("extract: open pdf: %w", err)
	}

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract: read pdf text: %w", err)
	}

	var b strings.Builder
	if _, err := io.Copy(&b, content); err != nil {
		return "", fmt.Errorf("extract: read pdf text: %w", err)
	}
	return b.String(), nil
}
