package extractor

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Document extracts text from PDF, DOCX, and plain-text files, preserving
// page/paragraph order.
type Document struct{}

// NewDocument builds the document extractor.
func NewDocument() *Document {
	return &Document{}
}

// Extract parses the document at ref and returns its text plus page-count
// metadata.
func (d *Document) Extract(ctx context.Context, ref string) (*Result, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(ref)), ".")
	switch ext {
	case "pdf":
		return d.extractPDF(ref)
	case "docx", "doc":
		return d.extractDOCX(ref)
	case "txt", "md":
		return d.extractPlain(ref, ext)
	}
	return nil, extractionErr("document", fmt.Sprintf("unsupported document format %q", ext), nil)
}

func (d *Document) extractPDF(ref string) (*Result, error) {
	f, reader, err := pdf.Open(ref)
	if err != nil {
		return nil, extractionErr("document", "cannot parse pdf", err)
	}
	defer f.Close()

	pageCount := reader.NumPage()
	var parts []string
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, extractionErr("document", fmt.Sprintf("cannot read pdf page %d", i), err)
		}
		if t := strings.TrimSpace(text); t != "" {
			parts = append(parts, t)
		}
	}

	text := strings.Join(parts, "\n\n")
	if text == "" {
		return nil, extractionErr("document", "pdf contains no extractable text", nil)
	}
	return &Result{
		Text: text,
		Metadata: map[string]any{
			"format":     "pdf",
			"page_count": pageCount,
			"word_count": len(strings.Fields(text)),
		},
	}, nil
}

// docx is a zip of WordprocessingML; the body text lives in w:t runs inside
// w:p paragraphs of word/document.xml.
func (d *Document) extractDOCX(ref string) (*Result, error) {
	archive, err := zip.OpenReader(ref)
	if err != nil {
		return nil, extractionErr("document", "cannot open docx archive", err)
	}
	defer archive.Close()

	var doc io.ReadCloser
	for _, file := range archive.File {
		if file.Name == "word/document.xml" {
			doc, err = file.Open()
			if err != nil {
				return nil, extractionErr("document", "cannot read docx body", err)
			}
			break
		}
	}
	if doc == nil {
		return nil, extractionErr("document", "docx has no word/document.xml", nil)
	}
	defer doc.Close()

	var paragraphs []string
	var current strings.Builder
	paragraphCount := 0

	decoder := xml.NewDecoder(doc)
	var inText bool
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, extractionErr("document", "malformed docx body", err)
		}
		switch el := token.(type) {
		case xml.StartElement:
			if el.Name.Local == "t" {
				inText = true
			}
		case xml.CharData:
			if inText {
				current.Write(el)
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphCount++
				if p := strings.TrimSpace(current.String()); p != "" {
					paragraphs = append(paragraphs, p)
				}
				current.Reset()
			}
		}
	}

	text := strings.Join(paragraphs, "\n")
	if text == "" {
		return nil, extractionErr("document", "docx contains no text", nil)
	}
	return &Result{
		Text: text,
		Metadata: map[string]any{
			"format":          "docx",
			"paragraph_count": paragraphCount,
			"word_count":      len(strings.Fields(text)),
		},
	}, nil
}

func (d *Document) extractPlain(ref, format string) (*Result, error) {
	raw, err := os.ReadFile(ref)
	if err != nil {
		return nil, extractionErr("document", fmt.Sprintf("cannot read %s", ref), err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, extractionErr("document", "file is empty", nil)
	}
	return &Result{
		Text: text,
		Metadata: map[string]any{
			"format":     format,
			"word_count": len(strings.Fields(text)),
		},
	}, nil
}
