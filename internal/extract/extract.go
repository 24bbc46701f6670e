// Package extract turns source files into plain text for ingestion.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

// ErrUnsupported is returned for file types that cannot be converted to text.
var ErrUnsupported = errors.New("unsupported file type")

// pageTimeout bounds text extraction of a single PDF page; some malformed
// content streams never terminate.
const pageTimeout = 10 * time.Second

var plainTextExts = map[string]struct{}{
	".txt": {}, ".md": {}, ".markdown": {}, ".text": {}, ".csv": {}, ".html": {}, ".htm": {},
}

var documentExts = map[string]struct{}{
	".docx": {}, ".odt": {}, ".rtf": {},
}

// Supported reports whether File can extract text from name.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".pdf" {
		return true
	}
	_, plain := plainTextExts[ext]
	_, doc := documentExts[ext]
	return plain || doc
}

// File extracts the text of the file at path based on its extension.
func File(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return pdfText(path)
	case isDocument(ext):
		text, err := cat.File(path)
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", filepath.Base(path), err)
		}
		return strings.TrimSpace(text), nil
	case isPlainText(ext):
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return plainText(filepath.Base(path), data)
	default:
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
	}
}

// Bytes extracts the text of an in-memory file; name selects the format.
// Binary formats are spilled to a temporary file since the parsers read
// from disk.
func Bytes(name string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if isPlainText(ext) {
		return plainText(name, data)
	}
	if !Supported(name) {
		return "", fmt.Errorf("%s: %w", name, ErrUnsupported)
	}

	tmp, err := os.CreateTemp("", "kbchat-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return File(tmp.Name())
}

func isPlainText(ext string) bool {
	_, ok := plainTextExts[ext]
	return ok
}

func isDocument(ext string) bool {
	_, ok := documentExts[ext]
	return ok
}

func plainText(name string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: not valid UTF-8 text", name)
	}
	return strings.TrimSpace(string(data)), nil
}

func pdfText(path string) (text string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("%s: malformed pdf: %v", filepath.Base(path), rec)
		}
	}()

	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := pageText(page)
		if err != nil {
			// Unreadable pages are skipped; the rest of the document is still useful.
			continue
		}
		if content = strings.TrimSpace(content); content != "" {
			pages = append(pages, content)
		}
	}

	if len(pages) == 0 {
		return "", fmt.Errorf("%s: no extractable text", filepath.Base(path))
	}
	return strings.Join(pages, "\n\n"), nil
}

func pageText(page pdf.Page) (string, error) {
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- result{err: fmt.Errorf("pdf page parser panic: %v", rec)}
			}
		}()
		text, err := page.GetPlainText(nil)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-time.After(pageTimeout):
		return "", errors.New("pdf page extraction timed out")
	}
}
