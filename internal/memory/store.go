// Package memory is the durable, append-mostly record of human-confirmed
// corrections, with lookups that let later runs reuse them.
package memory

import (
	"context"
	"errors"

	"github.com/sells-group/finsheet/internal/model"
)

// ErrStorage marks a failed append to the correction store. Callers treat
// it as a failure of the correction step only: the already-computed result
// is still returned, flagged as not persisted.
var ErrStorage = errors.New("memory: storage failure")

// Stats summarizes the store contents for observability.
type Stats struct {
	FieldCorrections int            `json:"field_corrections"`
	QACorrections    int            `json:"qa_corrections"`
	ContextNotes     int            `json:"context_notes"`
	ByField          map[string]int `json:"by_field"`
}

// Store is the persistence interface for corrections. Records are
// immutable once appended; every append is durable before the call
// returns. The persisted layout is three independent append logs whose
// readers ignore unknown optional columns.
type Store interface {
	RecordFieldCorrection(ctx context.Context, documentID, field string, value any, note string) (*model.FieldCorrection, error)
	RecordQACorrection(ctx context.Context, documentID, question, answer string) (*model.QACorrection, error)
	RecordContextNote(ctx context.Context, documentID, text string) (*model.ContextNote, error)

	// FieldHistory returns prior corrections for a field across all
	// documents, oldest first. Shown to humans as a hint, never
	// auto-applied.
	FieldHistory(ctx context.Context, field string) ([]model.FieldCorrection, error)

	// SimilarQuestion returns the most recent correction whose question is
	// similar to the given text, or nil when none clears the floor.
	SimilarQuestion(ctx context.Context, question string) (*model.QACorrection, error)

	Stats(ctx context.Context) (*Stats, error)

	Migrate(ctx context.Context) error
	Close() error
}

// options holds tunables shared by the store backends.
type options struct {
	similarity SimilarityFunc
	floor      float64
}

// Option configures a store backend.
type Option func(*options)

// WithSimilarity overrides the question similarity function and the
// minimum similarity a hit must reach.
func WithSimilarity(fn SimilarityFunc, floor float64) Option {
	return func(o *options) {
		o.similarity = fn
		o.floor = floor
	}
}

func defaultOptions() options {
	return options{similarity: ExactNormalized, floor: 1.0}
}
