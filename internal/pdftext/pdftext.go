// Package pdftext recovers plain text from PDF documents.
package pdftext

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Lllllllleong/documententityflow/internal/faults"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// Defaults are enough; never touch the user's pdfcpu config directory.
	api.DisableConfigDir()
}

// Result is the text of a document's first page.
type Result struct {
	Text      string
	PageCount int
}

// Recoverer turns raw PDF bytes into text. It holds no state and is safe
// for concurrent use.
type Recoverer struct{}

// NewRecoverer creates a Recoverer.
func NewRecoverer() *Recoverer {
	return &Recoverer{}
}

// Recover returns the text of the first page of data. A page without
// extractable text yields an empty string, not an error. Bytes that are
// empty, malformed, or have no pages yield a *faults.DecodeError.
func (r *Recoverer) Recover(filename string, data []byte) (Result, error) {
	ctx, err := open(filename, data)
	if err != nil {
		return Result{}, err
	}
	text, err := pageText(filename, ctx, 1)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, PageCount: ctx.PageCount}, nil
}

// Pages returns the text of every page of data, in page order.
func (r *Recoverer) Pages(filename string, data []byte) ([]string, error) {
	ctx, err := open(filename, data)
	if err != nil {
		return nil, err
	}
	pages := make([]string, 0, ctx.PageCount)
	for i := 1; i <= ctx.PageCount; i++ {
		text, err := pageText(filename, ctx, i)
		if err != nil {
			return nil, err
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func newConfiguration() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

func open(filename string, data []byte) (ctx *model.Context, err error) {
	if len(data) == 0 {
		return nil, faults.Decodef(filename, nil, "empty document")
	}

	// pdfcpu can panic on some malformed inputs; contain that to this document.
	defer func() {
		if p := recover(); p != nil {
			ctx = nil
			err = faults.Decodef(filename, fmt.Errorf("%v", p), "decoder panic")
		}
	}()

	ctx, err = api.ReadContext(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return nil, faults.Decodef(filename, err, "failed to read PDF")
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, faults.Decodef(filename, err, "failed to validate PDF")
	}
	if ctx.PageCount < 1 {
		return nil, faults.Decodef(filename, nil, "document has no pages")
	}
	return ctx, nil
}

func pageText(filename string, ctx *model.Context, pageNr int) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text = ""
			err = faults.Decodef(filename, fmt.Errorf("%v", p), "decoder panic on page %d", pageNr)
		}
	}()

	rd, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return "", faults.Decodef(filename, err, "failed to read content of page %d", pageNr)
	}
	if rd == nil {
		return "", nil
	}
	content, err := io.ReadAll(rd)
	if err != nil {
		return "", faults.Decodef(filename, err, "failed to read content of page %d", pageNr)
	}
	return extractText(content, pageFonts(ctx, pageNr)), nil
}
