package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/documententityflow/internal/batch"
	"github.com/Lllllllleong/documententityflow/internal/services"
	"github.com/Lllllllleong/documententityflow/internal/validation"
	"github.com/joho/godotenv"
)

const (
	// filesField is the multipart form field that carries the uploaded PDFs.
	filesField = "files"
	// batchIDParam names a stored batch on GET requests.
	batchIDParam = "batchId"
)

var (
	extractorInstance *services.ExtractorFunction
	once              sync.Once
	initErr           error
)

func init() {
	_ = godotenv.Load()

	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleExtractEntities", handleExtractEntities)
}

// main is required by the Go Functions Framework.
func main() {}

// handleExtractEntities accepts a multipart upload of one or more PDFs and
// responds with one entity table or error per document, in upload order.
// GET with a batchId returns the stored outcomes of that batch.
func handleExtractEntities(w http.ResponseWriter, r *http.Request) {
	// The NER model is loaded once per process and shared by every request.
	once.Do(func() {
		extractorInstance, initErr = services.NewExtractor(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	if r.Method == http.MethodGet {
		handleGetBatch(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	limits := extractorInstance.Limits()
	if limits.MaxUploadBytes > 0 && limits.MaxBatchDocuments > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limits.MaxUploadBytes*int64(limits.MaxBatchDocuments))
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		slog.Warn("Could not parse upload", "error", err)
		http.Error(w, "Bad Request: expected a multipart upload of PDF files", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	docs, err := readUploads(r.MultipartForm.File[filesField])
	if err != nil {
		slog.Error("Could not read uploaded files", "error", err)
		http.Error(w, "Bad Request: could not read uploaded files", http.StatusBadRequest)
		return
	}

	res, err := extractorInstance.Process(r.Context(), docs)
	if errors.Is(err, validation.ErrBatchTooLarge) {
		http.Error(w, fmt.Sprintf("Request Entity Too Large: at most %d documents per upload", limits.MaxBatchDocuments), http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		// The error is already logged inside the Process method.
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, res)
}

func handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := r.URL.Query().Get(batchIDParam)
	if batchID == "" {
		http.Error(w, "Bad Request: batchId is required", http.StatusBadRequest)
		return
	}
	res, err := extractorInstance.Batch(r.Context(), batchID)
	if errors.Is(err, services.ErrBatchNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to load batch", "batchId", batchID, "error", err)
		http.Error(w, "Internal Server Error: could not load batch", http.StatusInternalServerError)
		return
	}
	writeJSON(w, res)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

// readUploads reads every uploaded file into memory, keeping form order.
func readUploads(headers []*multipart.FileHeader) ([]batch.Document, error) {
	docs := make([]batch.Document, 0, len(headers))
	for _, fh := range headers {
		data, err := func() ([]byte, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			defer f.Close()
			return io.ReadAll(f)
		}()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		docs = append(docs, batch.Document{Filename: fh.Filename, Data: data})
	}
	return docs, nil
}
