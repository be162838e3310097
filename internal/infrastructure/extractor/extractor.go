// Package extractor turns stored uploads into plain text for tool prompts.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/studydesk/internal/core/domain"
	"github.com/kirillkom/studydesk/internal/core/ports"
)

const (
	mimePDF  = "application/pdf"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// DefaultMaxBytes bounds how much of a stored body is read.
const DefaultMaxBytes = 32 << 20

type Extractor struct {
	storage  ports.ObjectStorage
	maxBytes int64
}

func New(storage ports.ObjectStorage, maxBytes int64) *Extractor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Extractor{storage: storage, maxBytes: maxBytes}
}

func (e *Extractor) Extract(ctx context.Context, file domain.UploadedFile) (string, error) {
	if file.StorageKey == "" {
		return "", fmt.Errorf("file %s has no stored body", file.Name)
	}
	reader, err := e.storage.Open(ctx, file.StorageKey)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, e.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}
	if int64(len(raw)) > e.maxBytes {
		return "", fmt.Errorf("document %s exceeds %d bytes", file.Name, e.maxBytes)
	}

	var text string
	switch kind(file) {
	case mimePDF:
		text, err = pdfText(raw)
	case mimeXLSX:
		text, err = spreadsheetText(raw)
	default:
		text, err = plainText(file.Name, raw)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func kind(file domain.UploadedFile) string {
	mime := strings.ToLower(strings.TrimSpace(file.MimeType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case mimePDF, mimeXLSX:
		return mime
	}
	switch strings.ToLower(filepath.Ext(file.Name)) {
	case ".pdf":
		return mimePDF
	case ".xlsx":
		return mimeXLSX
	}
	return "text/plain"
}

func plainText(name string, raw []byte) (string, error) {
	if !utf8.Valid(raw) || bytes.IndexByte(raw, 0) >= 0 {
		return "", fmt.Errorf("unsupported binary format: %s", name)
	}
	return string(raw), nil
}
