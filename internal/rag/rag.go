// Package rag indexes document chunks in a local vector store and
// serves ranked passage retrieval for the pipelines.
package rag

import (
	"context"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/finsheet/internal/docproc"
	"github.com/sells-group/finsheet/internal/model"
)

const collectionName = "finsheet_chunks"

// Index wraps a chromem collection. It satisfies pipeline.Retriever.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// New opens (or creates) the vector store. An empty path keeps the
// index in memory, which tests and one-shot runs use. The embedding
// function is injectable so callers choose the embedding provider.
func New(path string, embed chromem.EmbeddingFunc) (*Index, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, eris.Wrapf(err, "rag: open store %s", path)
		}
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, eris.Wrap(err, "rag: open collection")
	}
	return &Index{db: db, collection: collection}, nil
}

// AddChunks embeds and stores chunks. IDs are derived from document id
// and position, so re-adding the same chunk overwrites rather than
// duplicates.
func (x *Index) AddChunks(ctx context.Context, chunks []docproc.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:      c.DocumentID + "#" + strconv.Itoa(c.Position),
			Content: c.Text,
			Metadata: map[string]string{
				"document_id": c.DocumentID,
				"position":    strconv.Itoa(c.Position),
			},
		}
	}
	if err := x.collection.AddDocuments(ctx, docs, 4); err != nil {
		return eris.Wrap(err, "rag: add documents")
	}
	zap.L().Debug("rag: chunks indexed", zap.Int("count", len(chunks)))
	return nil
}

// Query returns up to topK passages ranked by similarity, best first.
func (x *Index) Query(ctx context.Context, query string, topK int) ([]model.Passage, error) {
	count := x.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := x.collection.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, eris.Wrap(err, "rag: query")
	}

	passages := make([]model.Passage, len(results))
	for i, r := range results {
		position, _ := strconv.Atoi(r.Metadata["position"])
		passages[i] = model.Passage{
			DocumentID: r.Metadata["document_id"],
			Position:   position,
			Text:       r.Content,
			Score:      float64(r.Similarity),
		}
	}
	return passages, nil
}
