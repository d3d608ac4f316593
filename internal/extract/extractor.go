// Package extract pulls plain text out of uploaded documents.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/docuchat/internal/models"
)

// ErrUnsupportedFormat is returned for file extensions no extractor handles.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// SupportedExtensions lists every extension Extract understands.
var SupportedExtensions = []string{
	".pdf", ".docx", ".odt", ".rtf", ".xlsx", ".pptx", ".odp", ".ods", ".txt", ".md", ".rst",
}

// Extractor extracts plain text from documents based on their file extension.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the text of doc. Any failure is a *models.ExtractionError naming the source.
// The returned text may be empty or whitespace; deciding what to do with that is up to the caller.
func (e *Extractor) Extract(doc *models.Document) (string, error) {
	ext := strings.ToLower(filepath.Ext(doc.Source))
	text, err := e.ExtractBytes(doc.Content, ext)
	if err != nil {
		return "", &models.ExtractionError{Source: doc.Source, Err: err}
	}
	return text, nil
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".odt":
		return extractODT(content)
	case ".rtf":
		return extractRTF(content)
	case ".xlsx":
		return extractExcel(content)
	case ".pptx":
		return extractPPTX(content)
	case ".odp", ".ods":
		return extractOpenDocument(content)
	case ".txt", ".md", ".rst", "":
		return extractPlain(content)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Supported reports whether ext (with leading dot, any case) can be extracted.
func Supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, s := range SupportedExtensions {
		if s == ext {
			return true
		}
	}
	return false
}

// ReadFile loads the file at path into a Document named after its base name.
func ReadFile(path string) (*models.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return &models.Document{Source: filepath.Base(path), Content: content}, nil
}

// ReadDir loads every regular file directly inside dir whose extension passes allow,
// sorted by name. Hidden files are ignored. A nil allow accepts Supported extensions.
func ReadDir(dir string, allow func(ext string) bool) ([]*models.Document, error) {
	if allow == nil {
		allow = Supported
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if !allow(strings.ToLower(filepath.Ext(name))) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	docs := make([]*models.Document, 0, len(names))
	for _, name := range names {
		doc, err := ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
