package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/finsheet/internal/evaluate"
	"github.com/sells-group/finsheet/internal/model"
	"github.com/sells-group/finsheet/internal/review"
	"github.com/sells-group/finsheet/internal/schema"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry([]schema.FieldSpec{
		{Name: "finYear", Type: schema.TypeYear, Critical: true},
		{Name: "finSales", Type: schema.TypeDecimal, Critical: true, Aliases: []string{"chiffre d'affaires", "revenue"}},
		{Name: "finProfit", Type: schema.TypeDecimal, Critical: true},
		{Name: "finEquity", Type: schema.TypeDecimal},
	})
	require.NoError(t, err)
	return reg
}

func testEvaluator(t *testing.T) *evaluate.Evaluator {
	t.Helper()
	ev, err := evaluate.New(evaluate.DefaultThresholds())
	require.NoError(t, err)
	return ev
}

func somePassages() []model.Passage {
	return []model.Passage{
		{DocumentID: "balance.pdf", Position: 0, Text: "fiscal year 2024", Score: 0.9},
		{DocumentID: "balance.pdf", Position: 3, Text: "revenue 12.5M", Score: 0.8},
	}
}

func TestExtractionAutoAcceptSkipsReview(t *testing.T) {
	t.Parallel()

	retriever := &mockRetriever{}
	retriever.On("Query", mock.Anything, mock.Anything, defaultTopK).Return(somePassages(), nil)
	generator := &mockGenerator{}
	generator.On("ExtractFields", mock.Anything, mock.Anything, mock.Anything).Return(&Extraction{
		Values: map[string]any{
			"finYear":   int64(2024),
			"finSales":  12500000.0,
			"finProfit": 1200000.0,
			"finEquity": 4000000.0,
		},
		Confidence: map[string]float64{
			"finYear": 0.95, "finSales": 0.95, "finProfit": 0.92, "finEquity": 0.9,
		},
	}, nil)
	reviewer := &mockReviewer{}

	p := NewExtractionPipeline(testRegistry(t), testEvaluator(t), retriever, generator, reviewer)
	run, err := p.Run(context.Background(), "acme-2024")
	require.NoError(t, err)

	assert.Equal(t, model.DecisionAutoAccept, run.Decision)
	assert.False(t, run.Reviewed)
	assert.InDelta(t, 0.93, run.Result.Confidence, 0.01)
	assert.Empty(t, run.Result.MissingFields)
	assert.Equal(t, []string{"balance.pdf"}, run.Result.Sources)
	reviewer.AssertNotCalled(t, "ReviewExtraction", mock.Anything, mock.Anything, mock.Anything)
}

func TestExtractionMissingCriticalForcesReview(t *testing.T) {
	t.Parallel()

	retriever := &mockRetriever{}
	retriever.On("Query", mock.Anything, mock.Anything, defaultTopK).Return(somePassages(), nil)
	generator := &mockGenerator{}
	generator.On("ExtractFields", mock.Anything, mock.Anything, mock.Anything).Return(&Extraction{
		Values:     map[string]any{"finYear": int64(2024)},
		Confidence: map[string]float64{"finYear": 0.99},
	}, nil)
	reviewer := &mockReviewer{}
	reviewer.On("ReviewExtraction", mock.Anything, "acme-2024", mock.Anything).
		Return(&review.Outcome{CorrectionsPersisted: true}, nil).Once()

	p := NewExtractionPipeline(testRegistry(t), testEvaluator(t), retriever, generator, reviewer)
	run, err := p.Run(context.Background(), "acme-2024")
	require.NoError(t, err)

	assert.Equal(t, model.DecisionMustReview, run.Decision)
	assert.True(t, run.Reviewed)
	assert.ElementsMatch(t, []string{"finSales", "finProfit", "finEquity"}, run.Result.MissingFields)
	reviewer.AssertExpectations(t)
}

func TestExtractionOptionalReviewHonorsSkipFlag(t *testing.T) {
	t.Parallel()

	values := map[string]any{
		"finYear": int64(2024), "finSales": 100.0, "finProfit": 10.0, "finEquity": 40.0,
	}
	confs := map[string]float64{
		"finYear": 0.8, "finSales": 0.8, "finProfit": 0.7, "finEquity": 0.7,
	}

	t.Run("skip flag set", func(t *testing.T) {
		t.Parallel()
		retriever := &mockRetriever{}
		retriever.On("Query", mock.Anything, mock.Anything, defaultTopK).Return(somePassages(), nil)
		generator := &mockGenerator{}
		generator.On("ExtractFields", mock.Anything, mock.Anything, mock.Anything).
			Return(&Extraction{Values: values, Confidence: confs}, nil)
		reviewer := &mockReviewer{}

		p := NewExtractionPipeline(testRegistry(t), testEvaluator(t), retriever, generator, reviewer)
		p.SkipOptionalReview = true
		run, err := p.Run(context.Background(), "acme-2024")
		require.NoError(t, err)
		assert.Equal(t, model.DecisionSkipReviewAllowed, run.Decision)
		assert.False(t, run.Reviewed)
		reviewer.AssertNotCalled(t, "ReviewExtraction", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("skip flag unset", func(t *testing.T) {
		t.Parallel()
		retriever := &mockRetriever{}
		retriever.On("Query", mock.Anything, mock.Anything, defaultTopK).Return(somePassages(), nil)
		generator := &mockGenerator{}
		generator.On("ExtractFields", mock.Anything, mock.Anything, mock.Anything).
			Return(&Extraction{Values: values, Confidence: confs}, nil)
		reviewer := &mockReviewer{}
		reviewer.On("ReviewExtraction", mock.Anything, "acme-2024", mock.Anything).
			Return(&review.Outcome{CorrectionsPersisted: true}, nil).Once()

		p := NewExtractionPipeline(testRegistry(t), testEvaluator(t), retriever, generator, reviewer)
		run, err := p.Run(context.Background(), "acme-2024")
		require.NoError(t, err)
		assert.True(t, run.Reviewed)
		reviewer.AssertExpectations(t)
	})
}

func TestExtractionDropsUnknownFieldsAndNulls(t *testing.T) {
	t.Parallel()

	retriever := &mockRetriever{}
	retriever.On("Query", mock.Anything, mock.Anything, defaultTopK).Return(somePassages(), nil)
	generator := &mockGenerator{}
	generator.On("ExtractFields", mock.Anything, mock.Anything, mock.Anything).Return(&Extraction{
		Values: map[string]any{
			"finYear":   int64(2024),
			"finSales":  nil, // explicit null means not found
			"finBogus":  42,  // not in the schema
			"finProfit": 10.0,
			"finEquity": 40.0,
		},
		Confidence: map[string]float64{"finYear": 0.95, "finProfit": 0.95, "finEquity": 0.95},
	}, nil)
	reviewer := &mockReviewer{}
	reviewer.On("ReviewExtraction", mock.Anything, mock.Anything, mock.Anything).
		Return(&review.Outcome{CorrectionsPersisted: true}, nil).Maybe()

	p := NewExtractionPipeline(testRegistry(t), testEvaluator(t), retriever, generator, reviewer)
	run, err := p.Run(context.Background(), "acme-2024")
	require.NoError(t, err)

	_, hasBogus := run.Result.Fields["finBogus"]
	assert.False(t, hasBogus)
	assert.Equal(t, []string{"finSales"}, run.Result.MissingFields)
	// finSales is critical, so its absence routes to review.
	assert.Equal(t, model.DecisionMustReview, run.Decision)
}

func TestExtractionRetrievalDeduplicates(t *testing.T) {
	t.Parallel()

	// Every field query returns the same passage with varying scores; the
	// merged context keeps one copy with the best score.
	retriever := &mockRetriever{}
	scores := []float64{0.5, 0.9, 0.7, 0.6}
	for i, name := range []string{"finYear", "finSales", "finProfit", "finEquity"} {
		q := name
		if name == "finSales" {
			q = "finSales chiffre d'affaires revenue"
		}
		retriever.On("Query", mock.Anything, q, defaultTopK).Return([]model.Passage{
			{DocumentID: "doc", Position: 7, Text: "same chunk", Score: scores[i]},
		}, nil).Once()
	}
	generator := &mockGenerator{}
	generator.On("ExtractFields", mock.Anything, mock.Anything, mock.MatchedBy(func(passages []model.Passage) bool {
		return len(passages) == 1 && passages[0].Score == 0.9
	})).Return(&Extraction{
		Values: map[string]any{
			"finYear": int64(2024), "finSales": 1.0, "finProfit": 1.0, "finEquity": 1.0,
		},
		Confidence: map[string]float64{
			"finYear": 0.95, "finSales": 0.95, "finProfit": 0.95, "finEquity": 0.95,
		},
	}, nil)

	p := NewExtractionPipeline(testRegistry(t), testEvaluator(t), retriever, generator, &mockReviewer{})
	_, err := p.Run(context.Background(), "acme-2024")
	require.NoError(t, err)
	generator.AssertExpectations(t)
	retriever.AssertExpectations(t)
}

func TestExtractionGeneratorFailure(t *testing.T) {
	t.Parallel()

	retriever := &mockRetriever{}
	retriever.On("Query", mock.Anything, mock.Anything, defaultTopK).Return(somePassages(), nil)
	generator := &mockGenerator{}
	generator.On("ExtractFields", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("model overloaded"))

	p := NewExtractionPipeline(testRegistry(t), testEvaluator(t), retriever, generator, &mockReviewer{})
	_, err := p.Run(context.Background(), "acme-2024")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate extraction")
}
