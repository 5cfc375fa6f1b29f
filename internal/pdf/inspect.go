// Package pdfutil checks that uploaded attachments declared as PDF really are
// readable documents.
package pdfutil

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// ErrNoPages is returned for documents that parse but have no pages.
var ErrNoPages = errors.New("pdf has no pages")

// Info summarizes a parsed document.
type Info struct {
	Pages int
}

// Inspect parses data and counts its pages.
func Inspect(data []byte) (info Info, err error) {
	// The parser panics on some malformed inputs instead of returning errors.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Info{}, fmt.Errorf("new pdf reader: %w", err)
	}
	pages := doc.NumPage()
	if pages < 1 {
		return Info{}, ErrNoPages
	}
	return Info{Pages: pages}, nil
}

// IsPDF reports whether an upload should be treated as a PDF, by content
// type or by file extension.
func IsPDF(contentType, fileName string) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(fileName), ".pdf")
}
