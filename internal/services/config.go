package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/documententityflow/internal/batch"
	"github.com/Lllllllleong/documententityflow/internal/gcp"
	"github.com/Lllllllleong/documententityflow/internal/ner"
	"github.com/Lllllllleong/documententityflow/internal/pdftext"
	"github.com/Lllllllleong/documententityflow/internal/store"
	"github.com/Lllllllleong/documententityflow/internal/store/fsstore"
	"github.com/Lllllllleong/documententityflow/internal/store/memstore"
	"github.com/Lllllllleong/documententityflow/internal/store/sqlite"
	"github.com/Lllllllleong/documententityflow/internal/validation"
	"github.com/oklog/ulid/v2"
)

// NER backends accepted by NER_BACKEND.
const (
	BackendGazetteer = "gazetteer"
	BackendVertex    = "vertex"
)

// PipelineConfig holds the configuration shared by every function that runs
// the extraction pipeline.
type PipelineConfig struct {
	ProjectID         string
	VertexAIRegion    string
	NERBackend        string
	GazetteerPath     string
	NERModelName      string
	StoreBackend      string
	SQLitePath        string
	FirestoreDatabase string
	CollectionName    string
	Concurrency       int
	Limits            validation.Limits
}

// loadPipelineConfig loads and validates the pipeline environment variables.
func loadPipelineConfig() (*PipelineConfig, error) {
	concurrency, err := gcp.GetEnvInt("BATCH_CONCURRENCY", batch.DefaultConcurrency)
	if err != nil {
		return nil, err
	}
	maxUpload, err := gcp.GetEnvInt("MAX_UPLOAD_BYTES", validation.DefaultMaxUploadBytes)
	if err != nil {
		return nil, err
	}
	maxDocs, err := gcp.GetEnvInt("MAX_BATCH_DOCUMENTS", validation.DefaultMaxBatchDocuments)
	if err != nil {
		return nil, err
	}

	config := &PipelineConfig{
		ProjectID:         gcp.GetEnv("PROJECT_ID", ""),
		VertexAIRegion:    gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		NERBackend:        gcp.GetEnv("NER_BACKEND", BackendGazetteer),
		GazetteerPath:     gcp.GetEnv("NER_GAZETTEER_PATH", "gazetteer.yaml"),
		NERModelName:      gcp.GetEnv("NER_MODEL_NAME", gcp.DefaultNERModel),
		StoreBackend:      gcp.GetEnv("STORE_BACKEND", store.BackendNone),
		SQLitePath:        gcp.GetEnv("SQLITE_PATH", "documententityflow.db"),
		FirestoreDatabase: gcp.GetEnv("FIRESTORE_DATABASE", ""),
		CollectionName:    gcp.GetEnv("FIRESTORE_COLLECTION", "documents"),
		Concurrency:       concurrency,
		Limits:            validation.Limits{MaxUploadBytes: int64(maxUpload), MaxBatchDocuments: maxDocs},
	}

	switch config.NERBackend {
	case BackendGazetteer:
	case BackendVertex:
		if config.ProjectID == "" {
			return nil, fmt.Errorf("PROJECT_ID environment variable must be set for the vertex NER backend")
		}
	default:
		return nil, fmt.Errorf("unknown NER_BACKEND %q", config.NERBackend)
	}
	if config.StoreBackend == store.BackendFirestore && config.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set for the firestore store")
	}
	return config, nil
}

// Pipeline is the process-wide extraction pipeline: one model and one
// store shared by every request.
type Pipeline struct {
	Coordinator *batch.Coordinator
	Store       store.Store
	Limits      validation.Limits
	closers     []func() error
}

// NewPipeline assembles a pipeline from an already constructed model and store.
func NewPipeline(model ner.Model, st store.Store, limits validation.Limits, opts ...batch.Option) *Pipeline {
	if st == nil {
		st = store.Nop{}
	}
	opts = append([]batch.Option{batch.WithLimits(limits)}, opts...)
	return &Pipeline{
		Coordinator: batch.NewCoordinator(pdftext.NewRecoverer(), ner.NewExtractor(model), opts...),
		Store:       st,
		Limits:      limits,
	}
}

// NewPipelineFromEnv builds the pipeline described by the environment.
func NewPipelineFromEnv(ctx context.Context) (*Pipeline, error) {
	config, err := loadPipelineConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return newPipelineFromConfig(ctx, config)
}

// newPipelineFromConfig builds the model and store named by config.
func newPipelineFromConfig(ctx context.Context, config *PipelineConfig) (*Pipeline, error) {
	var (
		model   ner.Model
		closers []func() error
	)
	switch config.NERBackend {
	case BackendVertex:
		vertexClient, err := gcp.NewVertexClient(ctx, config.ProjectID, config.VertexAIRegion, config.NERModelName)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		closers = append(closers, vertexClient.Close)
		model = ner.NewVertexModel(vertexClient.NERModel)
	default:
		gaz, err := ner.LoadGazetteer(config.GazetteerPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load gazetteer: %w", err)
		}
		model = gaz
	}

	st, err := openStore(ctx, config)
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, err
	}

	p := NewPipeline(model, st, config.Limits, batch.WithConcurrency(config.Concurrency))
	p.closers = append(closers, st.Close)
	slog.Info("Pipeline initialized.", "nerBackend", config.NERBackend, "storeBackend", config.StoreBackend, "concurrency", config.Concurrency)
	return p, nil
}

func openStore(ctx context.Context, config *PipelineConfig) (store.Store, error) {
	switch config.StoreBackend {
	case store.BackendFirestore:
		client, err := gcp.NewFirestoreClient(ctx, config.ProjectID, config.FirestoreDatabase)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		return fsstore.New(client, config.CollectionName), nil
	case store.BackendSQLite:
		st, err := sqlite.OpenSQLite(ctx, config.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store at %s: %w", config.SQLitePath, err)
		}
		return st, nil
	case store.BackendMemory:
		return memstore.New(), nil
	case store.BackendNone, "":
		return store.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", config.StoreBackend)
	}
}

// Close releases the model and store clients.
func (p *Pipeline) Close() error {
	var firstErr error
	for _, c := range p.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// newBucketWriter returns nil when no bucket is configured.
func newBucketWriter(ctx context.Context, bucketName string) (*gcp.BucketWriter, error) {
	if bucketName == "" {
		return nil, nil
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return gcp.NewBucketWriter(storageClient, bucketName), nil
}

func newBatchID() string {
	return ulid.Make().String()
}

func calculateHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
