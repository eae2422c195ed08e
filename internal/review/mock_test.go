package review

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/finsheet/internal/memory"
	"github.com/sells-group/finsheet/internal/model"
)

// mockStore is a testify mock of memory.Store.
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

// scriptedProvider replays a fixed sequence of verdicts and records the
// items it was shown.
type scriptedProvider struct {
	verdicts []Verdict // exhausting the script interrupts the session
	seen     []Item
	idx      int
}

func (p *scriptedProvider) Verdict(item Item) (Verdict, error) {
	p.seen = append(p.seen, item)
	if p.idx >= len(p.verdicts) {
		return Verdict{}, ErrInterrupted
	}
	v := p.verdicts[p.idx]
	p.idx++
	return v, nil
}
