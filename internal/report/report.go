// Package report renders entity tables as PDF documents and reads them back.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/Lllllllleong/documententityflow/internal/faults"
	"github.com/Lllllllleong/documententityflow/internal/pdftext"
	"github.com/Lllllllleong/documententityflow/internal/records"
	"github.com/go-pdf/fpdf"
)

const (
	// ReportSuffix is appended to the source document's base name.
	ReportSuffix = "_extracted_entities.pdf"
	// ContentType of every rendered artifact.
	ContentType = "application/pdf"

	entityWidth = 130.0
	labelWidth  = 60.0
	rowHeight   = 8.0
	fontFamily  = "Helvetica"
	fontSize    = 11.0
	footerLabel = "Page"
)

var (
	ErrEmptyTable = errors.New("table has no records")

	unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
)

// Artifact is a rendered report. Filename is safe to use as a download
// name or object name.
type Artifact struct {
	Filename string
	Data     []byte
}

// Renderer turns a records.Table into a two-column PDF. It holds no state
// and is safe for concurrent use.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render produces the report for table. Row i of the table is row i of the
// report, below a header row, and every page carries a "Page N" footer.
// Each cell is one line: runs of whitespace, line breaks and tabs included,
// are drawn as a single space. Nil or empty tables are a
// *faults.RenderError; nothing is produced.
func (r *Renderer) Render(table *records.Table) (*Artifact, error) {
	if table == nil {
		return nil, &faults.RenderError{Reason: "no table", Err: ErrEmptyTable}
	}
	filename := table.Filename()
	if table.Len() == 0 {
		return nil, &faults.RenderError{Filename: filename, Reason: "nothing to render", Err: ErrEmptyTable}
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(strings.TrimSuffix(ReportFilename(filename), ".pdf"), true)
	pdf.SetCreator("documententityflow", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("%s %d", footerLabel, pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont(fontFamily, "B", fontSize)
	pdf.CellFormat(entityWidth, rowHeight, records.ColumnEntity, "1", 0, "L", false, 0, "")
	pdf.CellFormat(labelWidth, rowHeight, records.ColumnLabel, "1", 1, "L", false, 0, "")

	pdf.SetFont(fontFamily, "", fontSize)
	for _, rec := range table.All() {
		pdf.CellFormat(entityWidth, rowHeight, tr(CellText(rec.Text)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(labelWidth, rowHeight, tr(CellText(rec.Label)), "1", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &faults.RenderError{Filename: filename, Reason: "failed to write PDF", Err: err}
	}
	return &Artifact{Filename: ReportFilename(filename), Data: buf.Bytes()}, nil
}

// CellText is s as it appears in a report cell.
func CellText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ReportFilename derives the report name from a source filename: the base
// name up to its first dot, reduced to safe characters, plus ReportSuffix.
func ReportFilename(source string) string {
	base := path.Base(strings.ReplaceAll(source, `\`, "/"))
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	base = strings.Trim(unsafeNameChars.ReplaceAllString(base, "_"), "_")
	if base == "" {
		base = "document"
	}
	return base + ReportSuffix
}

// Parse reads the records back out of a rendered report. Header rows and
// page footers are skipped. Records come back as CellText of what was
// rendered, and only text representable in Windows-1252 survives the round
// trip.
func Parse(data []byte) ([]records.Record, error) {
	pages, err := pdftext.NewRecoverer().Pages("report.pdf", data)
	if err != nil {
		return nil, err
	}

	var out []records.Record
	for _, page := range pages {
		lines := strings.Split(page, "\n")
		if n := len(lines); n > 0 && strings.HasPrefix(lines[n-1], footerLabel+" ") {
			lines = lines[:n-1]
		}
		for i, line := range lines {
			if i == 0 && line == records.ColumnEntity+"\t"+records.ColumnLabel {
				continue
			}
			if line == "" {
				continue
			}
			out = append(out, parseRow(line))
		}
	}
	return out, nil
}

// parseRow splits on the last tab. A row without one had an empty label
// cell, which fpdf does not emit.
func parseRow(line string) records.Record {
	i := strings.LastIndex(line, "\t")
	if i < 0 {
		return records.Record{Text: line}
	}
	return records.Record{Text: line[:i], Label: line[i+1:]}
}
