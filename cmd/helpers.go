package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/finsheet/internal/memory"
	"github.com/sells-group/finsheet/internal/rag"
	"github.com/sells-group/finsheet/internal/schema"
	"github.com/sells-group/finsheet/pkg/jina"
)

// questionSimilarityFloor is the minimum word-overlap score for a prior
// question to count as a memory hit.
const questionSimilarityFloor = 0.7

// initStore opens the correction store selected by config.
func initStore(ctx context.Context) (memory.Store, error) {
	similarity := memory.WithSimilarity(memory.WordOverlap, questionSimilarityFloor)
	switch cfg.Store.Driver {
	case "postgres":
		return memory.NewPostgres(ctx, cfg.Store.DatabaseURL, similarity)
	default:
		return memory.NewSQLite(cfg.Store.Path, similarity)
	}
}

// loadRegistry loads the field schema, falling back to the built-in one.
func loadRegistry() (*schema.Registry, error) {
	if cfg.Schema.Path != "" {
		return schema.LoadFile(cfg.Schema.Path)
	}
	return schema.Default(), nil
}

// openIndex opens the persistent vector index with the Jina embedder.
func openIndex() (*rag.Index, error) {
	if cfg.Jina.Key == "" {
		return nil, eris.New("jina.key is required for the vector index (set FINSHEET_JINA_KEY)")
	}
	jinaClient := jina.NewClient(cfg.Jina.Key, jina.WithModel(cfg.Jina.Model))
	return rag.New(cfg.Index.Path, jina.EmbeddingFunc(jinaClient))
}
