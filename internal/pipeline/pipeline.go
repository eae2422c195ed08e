// Package pipeline coordinates retrieval, generation, confidence
// evaluation and human validation into the two top-level flows:
// structured extraction and free-form Q&A.
package pipeline

import (
	"context"

	"github.com/sells-group/finsheet/internal/model"
	"github.com/sells-group/finsheet/internal/review"
	"github.com/sells-group/finsheet/internal/schema"
)

// defaultTopK is the number of passages retrieved per query.
const defaultTopK = 5

// Retriever returns the top-k passages relevant to a query, best first.
type Retriever interface {
	Query(ctx context.Context, query string, topK int) ([]model.Passage, error)
}

// Extraction is a generator's raw structured output. Fields absent from
// Values were not found; Confidence may cover only some of them.
type Extraction struct {
	Values     map[string]any
	Confidence map[string]float64
}

// Generator produces structured field values or a free-form answer from
// retrieved passages.
type Generator interface {
	ExtractFields(ctx context.Context, registry *schema.Registry, passages []model.Passage) (*Extraction, error)
	Answer(ctx context.Context, question string, passages []model.Passage) (string, error)
}

// Reviewer runs a human validation session over a result. Satisfied by
// review.Session; mocked in tests.
type Reviewer interface {
	ReviewExtraction(ctx context.Context, documentID string, res *model.ExtractionResult) (*review.Outcome, error)
	ReviewAnswer(ctx context.Context, documentID string, res *model.QAResult) (*model.QAResult, error)
}
