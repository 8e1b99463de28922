// Package extract turns uploaded document bytes into plain text. PDFs go
// through the pdf library; anything else is treated as UTF-8 text.
package extract

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/pmorken/letterchat/internal/fault"
)

// Text extracts plain text from data. The filename extension and declared
// content type decide whether it is parsed as a PDF. Unparseable PDFs fail
// with a format error.
func Text(filename, contentType string, data []byte) (string, error) {
	if isPDF(filename, contentType, data) {
		return fromPDF(data)
	}
	return string(data), nil
}

func isPDF(filename, contentType string, data []byte) bool {
	if strings.EqualFold(contentType, "application/pdf") {
		return true
	}
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

func fromPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fault.Wrap(fault.ErrFormat, err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fault.Wrap(fault.ErrFormat, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fault.Wrap(fault.ErrFormat, err)
	}
	if strings.TrimSpace(buf.String()) == "" {
		return "", fault.Wrap(fault.ErrFormat, errors.New("no text extracted from pdf"))
	}
	return buf.String(), nil
}
