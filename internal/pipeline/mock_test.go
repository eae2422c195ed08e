package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/finsheet/internal/memory"
	"github.com/sells-group/finsheet/internal/model"
	"github.com/sells-group/finsheet/internal/review"
	"github.com/sells-group/finsheet/internal/schema"
)

type mockRetriever struct {
	mock.Mock
}

func (m *mockRetriever) Query(ctx context.Context, query string, topK int) ([]model.Passage, error) {
	args := m.Called(ctx, query, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Passage), args.Error(1)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) ExtractFields(ctx context.Context, registry *schema.Registry, passages []model.Passage) (*Extraction, error) {
	args := m.Called(ctx, registry, passages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Extraction), args.Error(1)
}

func (m *mockGenerator) Answer(ctx context.Context, question string, passages []model.Passage) (string, error) {
	args := m.Called(ctx, question, passages)
	return args.String(0), args.Error(1)
}

type mockReviewer struct {
	mock.Mock
}

func (m *mockReviewer) ReviewExtraction(ctx context.Context, documentID string, res *model.ExtractionResult) (*review.Outcome, error) {
	args := m.Called(ctx, documentID, res)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*review.Outcome), args.Error(1)
}

func (m *mockReviewer) ReviewAnswer(ctx context.Context, documentID string, res *model.QAResult) (*model.QAResult, error) {
	args := m.Called(ctx, documentID, res)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QAResult), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) RecordFieldCorrection(ctx context.Context, documentID, field string, value any, note string) (*model.FieldCorrection, error) {
	args := m.Called(ctx, documentID, field, value, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FieldCorrection), args.Error(1)
}

func (m *mockStore) RecordQACorrection(ctx context.Context, documentID, question, answer string) (*model.QACorrection, error) {
	args := m.Called(ctx, documentID, question, answer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QACorrection), args.Error(1)
}

func (m *mockStore) RecordContextNote(ctx context.Context, documentID, text string) (*model.ContextNote, error) {
	args := m.Called(ctx, documentID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ContextNote), args.Error(1)
}

func (m *mockStore) FieldHistory(ctx context.Context, field string) ([]model.FieldCorrection, error) {
	args := m.Called(ctx, field)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FieldCorrection), args.Error(1)
}

func (m *mockStore) SimilarQuestion(ctx context.Context, question string) (*model.QACorrection, error) {
	args := m.Called(ctx, question)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QACorrection), args.Error(1)
}

func (m *mockStore) Stats(ctx context.Context) (*memory.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*memory.Stats), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
