package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/khanglvm/graphrag-agent/internal/audit"
	"github.com/khanglvm/graphrag-agent/internal/config"
	"github.com/khanglvm/graphrag-agent/internal/domain"
	"github.com/khanglvm/graphrag-agent/internal/graph"
	"github.com/khanglvm/graphrag-agent/internal/llm"
	"github.com/khanglvm/graphrag-agent/internal/memory"
	"github.com/khanglvm/graphrag-agent/internal/observability"
	"github.com/khanglvm/graphrag-agent/internal/search"
	"github.com/khanglvm/graphrag-agent/internal/service"
	"github.com/khanglvm/graphrag-agent/internal/storage"
	fsstore "github.com/khanglvm/graphrag-agent/internal/storage/firestore"
	"github.com/khanglvm/graphrag-agent/internal/storage/memstore"
	"github.com/khanglvm/graphrag-agent/internal/tools"
	"github.com/khanglvm/graphrag-agent/internal/vectorstore/keyword"
	"github.com/khanglvm/graphrag-agent/internal/vectorstore/local"
	"github.com/khanglvm/graphrag-agent/internal/vectorstore/qdrant"
)

// usageRetention bounds the tool audit trail kept in SQLite.
const usageRetention = 30 * 24 * time.Hour

// vectorBackend is a retrieval backend that also accepts documents.
type vectorBackend interface {
	search.Backend
	domain.DocumentIndexer
}

// Runtime holds the connected components behind one command.
type Runtime struct {
	Config  *config.Config
	Service *service.Service

	// Graph is nil only in tests.
	Graph *graph.Store

	Store domain.ConversationStore

	// Usage is set when conversations live in SQLite.
	Usage *storage.SQLiteStorage

	// VectorBackend names the configured backend ("none" when disabled).
	VectorBackend string

	closers []func() error
}

// Bootstrap connects every component named by cfg. On failure whatever was
// already opened is closed again.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{Config: cfg, VectorBackend: cfg.Vector.Backend}
	if err := rt.open(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) open(ctx context.Context) error {
	cfg := rt.Config
	log := observability.Logger()

	g, err := graph.Open(ctx, graph.Config{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.Username,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
	})
	if err != nil {
		return err
	}
	rt.Graph = g
	rt.closers = append(rt.closers, func() error {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return g.Close(closeCtx)
	})

	if err := rt.openStore(ctx); err != nil {
		return err
	}

	model, embedder, err := openModel(ctx, cfg)
	if err != nil {
		return err
	}

	backend, err := rt.openVectors(ctx, embedder)
	if err != nil {
		return err
	}

	// Untyped nils keep the optional capabilities switched off.
	var (
		vectors domain.VectorStore
		indexer domain.DocumentIndexer
	)
	if backend != nil {
		vectors = search.NewSemanticSearcher(backend)
		indexer = backend
	}

	registry, err := tools.NewDefaultRegistry(g, vectors, cfg.Vector.ScoreThreshold, cfg.Agent.ToolTimeout())
	if err != nil {
		return err
	}
	if rt.Usage != nil {
		tracker := audit.NewTracker(rt.Usage)
		rt.closers = append(rt.closers, tracker.Close)
		registry.SetRecorder(tracker)
	}

	locker, err := rt.openLocker(ctx)
	if err != nil {
		return err
	}

	rt.Service = service.New(service.Deps{
		Model:    model,
		Tools:    registry,
		Memory:   memory.New(rt.Store, cfg.Agent.HistoryLimit),
		Locker:   locker,
		Indexer:  indexer,
		Exporter: g,
	}, service.Options{
		MaxIterations: cfg.Agent.MaxIterations,
		RunTimeout:    cfg.Agent.RunTimeout(),
		HistoryLimit:  cfg.Agent.HistoryLimit,
	})

	log.Debug("runtime ready",
		"storage", cfg.Storage.Backend,
		"vector", cfg.Vector.Backend,
		"provider", cfg.LLM.Provider,
		"tools", registry.Names(),
	)
	return nil
}

func sqlitePath(cfg *config.Config) (string, error) {
	if cfg.Storage.Path != "" {
		return cfg.Storage.Path, nil
	}
	return storage.DefaultPath()
}

func (rt *Runtime) openSQLite(ctx context.Context) (*storage.SQLiteStorage, error) {
	path, err := sqlitePath(rt.Config)
	if err != nil {
		return nil, err
	}
	s, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	rt.closers = append(rt.closers, s.Close)

	if n, err := s.Cleanup(ctx, usageRetention); err != nil {
		observability.Logger().Warn("failed to prune tool usage", "error", err)
	} else if n > 0 {
		observability.Logger().Debug("pruned tool usage", "rows", n)
	}
	return s, nil
}

func (rt *Runtime) openStore(ctx context.Context) error {
	switch rt.Config.Storage.Backend {
	case config.StorageMemory:
		rt.Store = memstore.New()
	case config.StorageFirestore:
		s, err := fsstore.NewStore(ctx, rt.Config.Storage.FirestoreProject)
		if err != nil {
			return err
		}
		rt.Store = s
		rt.closers = append(rt.closers, s.Close)
	default:
		s, err := rt.openSQLite(ctx)
		if err != nil {
			return err
		}
		rt.Store = s
		rt.Usage = s
	}
	return nil
}

func openModel(ctx context.Context, cfg *config.Config) (domain.Model, domain.Embedder, error) {
	if cfg.LLM.Provider == config.ProviderMock {
		return llm.NewOffline(), llm.NewHashEmbedder(cfg.Vector.Dimension), nil
	}

	client, err := llm.NewClient(ctx, llm.Config{
		Provider:       cfg.LLM.Provider,
		APIKey:         cfg.LLM.APIKey,
		Project:        cfg.LLM.Project,
		Location:       cfg.LLM.Location,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Temperature:    cfg.LLM.Temperature,
		Dimension:      cfg.Vector.Dimension,
	})
	if err != nil {
		return nil, nil, err
	}

	model := llm.NewGemini(client, cfg.LLM.Model, cfg.LLM.Temperature)
	embedder := llm.NewGeminiEmbedder(client, cfg.LLM.EmbeddingModel, cfg.Vector.Dimension)
	return model, embedder, nil
}

func (rt *Runtime) openVectors(ctx context.Context, embedder domain.Embedder) (vectorBackend, error) {
	cfg := rt.Config

	switch cfg.Vector.Backend {
	case config.VectorNone:
		return nil, nil

	case config.VectorKeyword:
		var (
			idx *keyword.Index
			err error
		)
		if cfg.Vector.IndexPath != "" {
			idx, err = keyword.NewWithPath(cfg.Vector.IndexPath)
		} else {
			idx, err = keyword.New()
		}
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, idx.Close)
		return idx, nil

	case config.VectorQdrant:
		c, err := qdrant.New(qdrant.Config{
			URL:            cfg.Vector.QdrantURL,
			CollectionName: cfg.Vector.Collection,
			APIKey:         cfg.Vector.QdrantAPIKey,
			Dimension:      cfg.Vector.Dimension,
			Distance:       cfg.Vector.Metric,
		}, embedder)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, c.Close)
		return c, nil

	default:
		docs := rt.Usage
		if docs == nil {
			s, err := rt.openSQLite(ctx)
			if err != nil {
				return nil, err
			}
			docs = s
		}
		return local.New(docs, embedder, cfg.LLM.EmbeddingModel), nil
	}
}

func (rt *Runtime) openLocker(ctx context.Context) (memory.Locker, error) {
	cfg := rt.Config

	policy, err := memory.ParsePolicy(cfg.Agent.SessionPolicy)
	if err != nil {
		return nil, err
	}
	if cfg.Redis.Addr == "" {
		return memory.NewLocalLocker(policy), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	rt.closers = append(rt.closers, client.Close)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
	}
	return memory.NewRedisLocker(client, cfg.Redis.LockTTL(), policy), nil
}

// Close releases every opened component, newest first.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
