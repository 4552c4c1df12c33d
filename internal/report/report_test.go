package report

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/Lllllllleong/documententityflow/internal/faults"
	"github.com/Lllllllleong/documententityflow/internal/records"
)

func TestRenderRoundTrip(t *testing.T) {
	rows := []records.Record{
		{Text: "Jane Doe", Label: "PERSON"},
		{Text: "Acme Corp", Label: "ORG"},
		{Text: "2020", Label: "DATE"},
		{Text: "Jane Doe", Label: "PERSON"},
		{Text: "Café Müller", Label: "ORG"},
	}
	table := records.FromRecords(records.DocumentID{Filename: "resume.pdf"}, rows)

	art, err := NewRenderer().Render(table)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if art.Filename != "resume_extracted_entities.pdf" {
		t.Errorf("Filename = %q", art.Filename)
	}
	if !bytes.HasPrefix(art.Data, []byte("%PDF-")) {
		t.Fatalf("artifact is not a PDF: %q", art.Data[:min(16, len(art.Data))])
	}

	got, err := Parse(art.Data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !slices.Equal(got, rows) {
		t.Errorf("round trip = %+v, want %+v", got, rows)
	}
}

func TestRenderKeepsOneRowPerRecord(t *testing.T) {
	rows := []records.Record{
		{Text: "Acme\nCorp", Label: "ORG"},
		{Text: "Jane\tDoe", Label: "PERSON"},
		{Text: "  2020 ", Label: "DATE\n"},
	}
	table := records.FromRecords(records.DocumentID{Filename: "resume.pdf"}, rows)

	art, err := NewRenderer().Render(table)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	got, err := Parse(art.Data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []records.Record{
		{Text: "Acme Corp", Label: "ORG"},
		{Text: "Jane Doe", Label: "PERSON"},
		{Text: "2020", Label: "DATE"},
	}
	if !slices.Equal(got, want) {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestCellText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Acme Corp", "Acme Corp"},
		{"Acme\nCorp", "Acme Corp"},
		{"a\t\tb\r\nc", "a b c"},
		{"  padded  ", "padded"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CellText(tt.in); got != tt.want {
			t.Errorf("CellText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderSpansPages(t *testing.T) {
	var rows []records.Record
	for i := range 80 {
		rows = append(rows, records.Record{Text: fmt.Sprintf("Entity %d", i), Label: "MISC"})
	}
	table := records.FromRecords(records.DocumentID{Filename: "long.pdf"}, rows)

	art, err := NewRenderer().Render(table)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	got, err := Parse(art.Data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !slices.Equal(got, rows) {
		t.Errorf("got %d rows, want %d in order", len(got), len(rows))
	}
}

func TestRenderIsDeterministicInContent(t *testing.T) {
	table := records.FromRecords(records.DocumentID{Filename: "a.pdf"}, []records.Record{{Text: "Bob", Label: "PERSON"}})
	r := NewRenderer()

	first, err := r.Render(table)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	second, err := r.Render(table)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	a, _ := Parse(first.Data)
	b, _ := Parse(second.Data)
	if !slices.Equal(a, b) {
		t.Errorf("renders differ: %+v vs %+v", a, b)
	}
}

func TestRenderEmptyTable(t *testing.T) {
	tests := []struct {
		name  string
		table *records.Table
	}{
		{name: "nil table"},
		{name: "no rows", table: records.FromRecords(records.DocumentID{Filename: "empty.pdf"}, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art, err := NewRenderer().Render(tt.table)
			if art != nil {
				t.Errorf("expected no artifact, got %q", art.Filename)
			}
			if !errors.Is(err, faults.ErrRender) || !errors.Is(err, ErrEmptyTable) {
				t.Errorf("err = %v, want RenderError wrapping ErrEmptyTable", err)
			}
			if got := faults.UserMessage(err); got != faults.MsgRender {
				t.Errorf("UserMessage = %q", got)
			}
		})
	}
}

func TestReportFilename(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"resume.pdf", "resume_extracted_entities.pdf"},
		{"report.v2.pdf", "report_extracted_entities.pdf"},
		{"../../etc/passwd", "passwd_extracted_entities.pdf"},
		{`C:\Users\me\My CV.pdf`, "My_CV_extracted_entities.pdf"},
		{"ünïcode name.pdf", "n_code_name_extracted_entities.pdf"},
		{".hidden", "document_extracted_entities.pdf"},
		{"", "document_extracted_entities.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			if got := ReportFilename(tt.source); got != tt.want {
				t.Errorf("ReportFilename(%q) = %q, want %q", tt.source, got, tt.want)
			}
		})
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not a pdf")); !errors.Is(err, faults.ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}
