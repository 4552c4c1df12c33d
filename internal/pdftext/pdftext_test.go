package pdftext

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Lllllllleong/documententityflow/internal/faults"
	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/gofont/goregular"
)

// makePDF renders each page as a list of lines using a core font.
func makePDF(t *testing.T, pages ...[]string) []byte {
	t.Helper()
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for _, lines := range pages {
		pdf.AddPage()
		for _, line := range lines {
			pdf.CellFormat(0, 8, line, "", 1, "L", false, 0, "")
		}
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("fpdf Output: %v", err)
	}
	return buf.Bytes()
}

func TestRecoverFirstPage(t *testing.T) {
	data := makePDF(t,
		[]string{"Jane Doe works at Acme Corp since 2020.", "Second line"},
		[]string{"Ignored later page"},
	)

	res, err := NewRecoverer().Recover("resume.pdf", data)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if want := "Jane Doe works at Acme Corp since 2020.\nSecond line"; res.Text != want {
		t.Errorf("Text = %q, want %q", res.Text, want)
	}
	if res.PageCount != 2 {
		t.Errorf("PageCount = %d, want 2", res.PageCount)
	}
}

func TestRecoverUnicodeFont(t *testing.T) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddUTF8FontFromBytes("goregular", "", goregular.TTF)
	pdf.SetFont("goregular", "", 12)
	pdf.AddPage()
	pdf.CellFormat(0, 8, "Łukasz Nowak works at Acme Corp since 2020.", "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, "Zoë Œuvre, Ørsted", "", 1, "L", false, 0, "")
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("fpdf Output: %v", err)
	}

	res, err := NewRecoverer().Recover("cv.pdf", buf.Bytes())
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if want := "Łukasz Nowak works at Acme Corp since 2020.\nZoë Œuvre, Ørsted"; res.Text != want {
		t.Errorf("Text = %q, want %q", res.Text, want)
	}
}

func TestRecoverBlankPageIsNotAnError(t *testing.T) {
	data := makePDF(t, []string{})

	res, err := NewRecoverer().Recover("blank.pdf", data)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if res.Text != "" {
		t.Errorf("Text = %q, want empty", res.Text)
	}
}

func TestRecoverRejectsBadInput(t *testing.T) {
	valid := makePDF(t, []string{"hello"})

	tests := []struct {
		name string
		data []byte
	}{
		{name: "nil", data: nil},
		{name: "empty", data: []byte{}},
		{name: "not a pdf", data: []byte("this is a plain text file, not a PDF")},
		{name: "truncated", data: valid[:len(valid)/3]},
		{name: "header only", data: []byte("%PDF-1.4\n%%EOF\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRecoverer().Recover("broken.pdf", tt.data)
			if err == nil {
				t.Fatal("expected an error")
			}
			var de *faults.DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *faults.DecodeError, got %T: %v", err, err)
			}
			if de.Filename != "broken.pdf" {
				t.Errorf("Filename = %q", de.Filename)
			}
		})
	}
}

func TestPages(t *testing.T) {
	data := makePDF(t, []string{"one"}, []string{"two"}, []string{"three"})

	pages, err := NewRecoverer().Pages("multi.pdf", data)
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	want := []string{"one", "two", "three"}
	if len(pages) != len(want) {
		t.Fatalf("got %d pages, want %d", len(pages), len(want))
	}
	for i := range want {
		if pages[i] != want[i] {
			t.Errorf("page %d = %q, want %q", i+1, pages[i], want[i])
		}
	}
}

func TestRecoverIsDeterministic(t *testing.T) {
	data := makePDF(t, []string{"Acme Corp", "2020"})
	r := NewRecoverer()
	a, err := r.Recover("a.pdf", data)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	b, err := r.Recover("a.pdf", data)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if a != b {
		t.Errorf("results differ: %+v vs %+v", a, b)
	}
}
