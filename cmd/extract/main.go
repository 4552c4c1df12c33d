package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/Lllllllleong/documententityflow/internal/batch"
	"github.com/Lllllllleong/documententityflow/internal/gcp"
	"github.com/Lllllllleong/documententityflow/internal/models"
	"github.com/Lllllllleong/documententityflow/internal/ner"
	"github.com/Lllllllleong/documententityflow/internal/records"
	"github.com/Lllllllleong/documententityflow/internal/report"
	"github.com/Lllllllleong/documententityflow/internal/services"
	"github.com/Lllllllleong/documententityflow/internal/store/memstore"
	"github.com/Lllllllleong/documententityflow/internal/validation"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	tableStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func main() {
	_ = godotenv.Load()

	var (
		modelPath   string
		outDir      string
		concurrency int
		verbose     bool
	)
	flag.StringVar(&modelPath, "model", "", "Gazetteer YAML file (default: NER_BACKEND from the environment)")
	flag.StringVar(&outDir, "out", "", "Directory to write PDF reports into (optional)")
	flag.IntVar(&concurrency, "concurrency", batch.DefaultConcurrency, "Documents processed in parallel")
	flag.BoolVar(&verbose, "v", false, "Log pipeline progress to stderr")
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Println("Usage: extract [-model gazetteer.yaml] [-out dir] [-concurrency n] file1.pdf [file2.pdf ...]")
		os.Exit(1)
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var pipeline *services.Pipeline
	if modelPath != "" {
		gaz, err := ner.LoadGazetteer(modelPath)
		if err != nil {
			fatal("Failed to load model.", err)
		}
		pipeline = services.NewPipeline(gaz, memstore.New(), validation.DefaultLimits(),
			batch.WithConcurrency(concurrency), batch.WithLogger(slog.Default()))
	} else {
		var err error
		if pipeline, err = services.NewPipelineFromEnv(ctx); err != nil {
			fatal("Failed to initialize pipeline.", err)
		}
	}
	defer pipeline.Close()

	docs := make([]batch.Document, 0, len(inputs))
	for _, p := range inputs {
		data, err := os.ReadFile(p)
		if err != nil {
			fatal("Failed to read document.", err, "path", p)
		}
		docs = append(docs, batch.Document{Filename: filepath.Base(p), Data: data})
	}

	resp, err := services.NewExtractorFunction(pipeline).Process(ctx, docs)
	if err != nil {
		fatal("Extraction failed.", err)
	}

	var renderer *services.ReportFunction
	if outDir != "" {
		renderer = services.NewReportFunction(pipeline.Store, dirWriter(outDir))
	}

	for _, doc := range resp.Documents {
		printOutcome(doc)
		if renderer == nil || doc.ReportFilename == "" {
			continue
		}
		_, uri, err := renderer.Process(ctx, &models.RenderRequest{RecordID: doc.ID, Save: true})
		if errors.Is(err, services.ErrRecordNotFound) {
			// The configured store keeps no records.
			_, uri, err = renderer.Process(ctx, &models.RenderRequest{
				Filename: doc.Filename,
				Entities: doc.Entities,
				Save:     true,
			})
		}
		if err != nil {
			fmt.Println(errStyle.Render("  report: " + err.Error()))
			continue
		}
		fmt.Println(dimStyle.Render("  report: " + uri))
	}

	fmt.Println(dimStyle.Render(fmt.Sprintf("batch %s: %d documents, %d failed", resp.BatchID, len(resp.Documents), resp.Failures)))
	if resp.Failures > 0 {
		pipeline.Close()
		os.Exit(2)
	}
}

func fatal(msg string, err error, args ...any) {
	slog.Error(msg, append([]any{"error", err}, args...)...)
	os.Exit(1)
}

func printOutcome(doc models.DocumentOutcome) {
	if doc.Error != "" {
		fmt.Println(titleStyle.Render(doc.Filename) + " " + errStyle.Render(doc.Error))
		return
	}
	header := titleStyle.Render(doc.Filename) + " " + okStyle.Render(fmt.Sprintf("%d entities", len(doc.Entities)))
	if doc.PagesIgnored {
		header += " " + dimStyle.Render(fmt.Sprintf("(first of %d pages)", doc.PageCount))
	}
	fmt.Println(header)
	if len(doc.Entities) == 0 {
		return
	}

	width := len(records.ColumnEntity)
	for _, e := range doc.Entities {
		width = max(width, utf8.RuneCountInString(report.CellText(e.Entity)))
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%-*s  %s", width, records.ColumnEntity, records.ColumnLabel)))
	for _, e := range doc.Entities {
		fmt.Fprintf(&b, "\n%-*s  %s", width, report.CellText(e.Entity), report.CellText(e.Label))
	}
	fmt.Println(tableStyle.Render(b.String()))
}

// dirWriter stores reports under a local directory. Existing files are
// never overwritten.
type dirWriter string

func (d dirWriter) Write(ctx context.Context, objectName, contentType string, content []byte) error {
	path := filepath.Join(string(d), filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%s: %w", path, gcp.ErrObjectExists)
	}
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (d dirWriter) URI(objectName string) string {
	return filepath.Join(string(d), filepath.FromSlash(objectName))
}
