package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// XLSXExporter writes one worksheet per dataset.
type XLSXExporter struct{}

var _ Renderer = (*XLSXExporter)(nil)

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// ContentType implements Renderer.
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension implements Renderer.
func (e *XLSXExporter) Extension() string { return "xlsx" }

// Render builds the workbook and returns its bytes.
func (e *XLSXExporter) Render(doc Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if doc.Title != "" {
		f.SetDocProps(&excelize.DocProperties{Title: doc.Title}) //nolint:errcheck
	}

	used := make(map[string]int)
	for i, ds := range doc.Datasets {
		name := sheetName(ds.Name, i, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}

		if err := f.SetSheetRow(name, "A1", &ds.Headers); err != nil {
			return nil, fmt.Errorf("write headers: %w", err)
		}
		for r, row := range ds.Rows {
			record := make([]interface{}, len(ds.Headers))
			for j := range ds.Headers {
				record[j] = cell(row, j)
			}
			axis, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(name, axis, &record); err != nil {
				return nil, fmt.Errorf("write row %d: %w", r+1, err)
			}
		}
		if err := f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return nil, fmt.Errorf("freeze header: %w", err)
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetName derives a unique worksheet name within the 31 character limit.
func sheetName(raw string, idx int, used map[string]int) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(raw))
	if name == "" {
		name = fmt.Sprintf("Sheet%d", idx+1)
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	if n := used[name]; n > 0 {
		suffix := fmt.Sprintf(" (%d)", n+1)
		base := name
		if len(base)+len(suffix) > maxSheetName {
			base = base[:maxSheetName-len(suffix)]
		}
		used[name]++
		return base + suffix
	}
	used[name]++
	return name
}
