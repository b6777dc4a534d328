// Package export renders tabular documents into downloadable files.
package export

import (
	"fmt"
	"strings"
)

// Dataset is one table of a document.
type Dataset struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// Document groups the datasets written into a single file.
type Document struct {
	Title    string
	Datasets []Dataset
}

// Renderer turns a document into file bytes.
type Renderer interface {
	Render(doc Document) ([]byte, error)
	ContentType() string
	Extension() string
}

// Format names a supported output.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ParseFormat normalises a requested format.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatCSV, FormatPDF, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// Registry maps formats to renderers.
type Registry map[Format]Renderer

// NewRegistry returns the default renderers for every format.
func NewRegistry() Registry {
	return Registry{
		FormatCSV:  NewCSVExporter(),
		FormatPDF:  NewPDFExporter(),
		FormatXLSX: NewXLSXExporter(),
	}
}

// Lookup returns the renderer for a format.
func (r Registry) Lookup(format Format) (Renderer, error) {
	renderer, ok := r[format]
	if !ok {
		return nil, fmt.Errorf("no renderer for format %q", format)
	}
	return renderer, nil
}

func (d Document) validate() error {
	if len(d.Datasets) == 0 {
		return fmt.Errorf("document has no datasets")
	}
	for _, ds := range d.Datasets {
		if len(ds.Headers) == 0 {
			return fmt.Errorf("dataset %q requires at least one header", ds.Name)
		}
	}
	return nil
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}
