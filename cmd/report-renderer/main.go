package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/documententityflow/internal/faults"
	"github.com/Lllllllleong/documententityflow/internal/gcp"
	"github.com/Lllllllleong/documententityflow/internal/models"
	"github.com/Lllllllleong/documententityflow/internal/report"
	"github.com/Lllllllleong/documententityflow/internal/services"
	"github.com/joho/godotenv"
)

var (
	reportInstance *services.ReportFunction
	once           sync.Once
	initErr        error
)

func init() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleRenderReport", handleRenderReport)
}

// main is required by the Go Functions Framework.
func main() {}

// handleRenderReport renders one document's entity table as a PDF download.
func handleRenderReport(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		reportInstance, initErr = services.NewReport(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	art, uri, err := reportInstance.Process(r.Context(), &req)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrInvalidRequest):
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, services.ErrRecordNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	case errors.Is(err, faults.ErrRender):
		http.Error(w, faults.UserMessage(err), http.StatusUnprocessableEntity)
		return
	case errors.Is(err, gcp.ErrObjectExists):
		http.Error(w, "Conflict: a different report is already saved for this document", http.StatusConflict)
		return
	default:
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	if uri != "" {
		w.Header().Set("X-Report-Uri", uri)
	}
	if _, err := w.Write(art.Data); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
