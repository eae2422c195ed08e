package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/finsheet/internal/model"
)

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := New(DefaultThresholds())
	require.NoError(t, err)
	return e
}

func TestThresholdsValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultThresholds().Validate())
	assert.Error(t, Thresholds{Low: 0.9, High: 0.6, MaxMissing: 3}.Validate())
	assert.Error(t, Thresholds{Low: -0.1, High: 0.9}.Validate())
	assert.Error(t, Thresholds{Low: 0.1, High: 1.2}.Validate())
	assert.Error(t, Thresholds{Low: 0.1, High: 0.9, MaxMissing: -1}.Validate())

	_, err := New(Thresholds{Low: 0.9, High: 0.1})
	assert.Error(t, err)
}

func TestEvaluateCriticalMissingAlwaysReviews(t *testing.T) {
	t.Parallel()
	e := newEvaluator(t)

	// Even with perfect confidence, a missing critical field forces review.
	d, agg := e.Evaluate(Signals{
		Fields:          map[string]any{"finYear": int64(2024)},
		FieldConfidence: map[string]float64{"finYear": 1.0},
		Missing:         []string{"finSales"},
		Critical:        []string{"finSales"},
	})
	assert.Equal(t, model.DecisionMustReview, d)
	assert.Equal(t, 1.0, agg)
}

func TestEvaluateMissingCountThreshold(t *testing.T) {
	t.Parallel()
	e := newEvaluator(t)

	d, _ := e.Evaluate(Signals{
		FieldConfidence: map[string]float64{"a": 0.95},
		Missing:         []string{"b", "c", "d", "e"},
	})
	assert.Equal(t, model.DecisionMustReview, d)

	// At the threshold exactly, the scalar rules apply.
	d, _ = e.Evaluate(Signals{
		FieldConfidence: map[string]float64{"a": 0.95},
		Missing:         []string{"b", "c", "d"},
	})
	assert.Equal(t, model.DecisionAutoAccept, d)
}

func TestEvaluateUnscoredFieldsCountAsMissing(t *testing.T) {
	t.Parallel()
	e := newEvaluator(t)

	// Three truly missing plus one value without confidence crosses the
	// default threshold of 3.
	d, _ := e.Evaluate(Signals{
		Fields:          map[string]any{"a": 1.0, "b": 2.0},
		FieldConfidence: map[string]float64{"a": 0.95},
		Missing:         []string{"c", "d", "e"},
	})
	assert.Equal(t, model.DecisionMustReview, d)
}

func TestEvaluateScalarBands(t *testing.T) {
	t.Parallel()
	e := newEvaluator(t)

	cases := []struct {
		conf float64
		want model.Decision
	}{
		{0.55, model.DecisionMustReview},
		{0.59, model.DecisionMustReview},
		{0.6, model.DecisionSkipReviewAllowed},
		{0.75, model.DecisionSkipReviewAllowed},
		{0.89, model.DecisionSkipReviewAllowed},
		{0.9, model.DecisionAutoAccept},
		{0.95, model.DecisionAutoAccept},
	}
	for _, tc := range cases {
		d, agg := e.Evaluate(Signals{FieldConfidence: map[string]float64{"x": tc.conf}})
		assert.Equal(t, tc.want, d, "conf=%v", tc.conf)
		assert.InDelta(t, tc.conf, agg, 1e-9)
		assert.Equal(t, tc.want, e.EvaluateAnswer(tc.conf), "answer conf=%v", tc.conf)
	}
}

func TestEvaluateEmptyMappingIsZero(t *testing.T) {
	t.Parallel()
	e := newEvaluator(t)

	d, agg := e.Evaluate(Signals{})
	assert.Equal(t, model.DecisionMustReview, d)
	assert.Equal(t, 0.0, agg)
}

func TestAggregateOrderIndependent(t *testing.T) {
	t.Parallel()

	a := map[string]float64{"x": 0.2, "y": 0.8, "z": 0.5}
	b := map[string]float64{"z": 0.5, "x": 0.2, "y": 0.8}
	assert.InDelta(t, Aggregate(a), Aggregate(b), 1e-12)
	assert.InDelta(t, 0.5, Aggregate(a), 1e-9)
}

func TestClampMalformedConfidence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Clamp(-0.5, "f"))
	assert.Equal(t, 1.0, Clamp(1.7, "f"))
	assert.Equal(t, 0.42, Clamp(0.42, "f"))

	// Aggregation never aborts on malformed scores.
	agg := Aggregate(map[string]float64{"a": 2.0, "b": -1.0})
	assert.InDelta(t, 0.5, agg, 1e-9)
}

func TestValidatedResultIsIdempotentAutoAccept(t *testing.T) {
	t.Parallel()
	e := newEvaluator(t)

	// After validation all confidences are promoted to 1.0; re-evaluating
	// must always auto-accept.
	d, agg := e.Evaluate(Signals{
		Fields:          map[string]any{"finYear": int64(2024), "finSales": 100.0},
		FieldConfidence: map[string]float64{"finYear": 1.0, "finSales": 1.0},
		Critical:        []string{"finYear", "finSales"},
	})
	assert.Equal(t, model.DecisionAutoAccept, d)
	assert.Equal(t, 1.0, agg)
}

func TestScenarioA(t *testing.T) {
	t.Parallel()
	e := newEvaluator(t)

	// finYear extracted at 0.95, finSales missing but not critical.
	d, agg := e.Evaluate(Signals{
		Fields:          map[string]any{"finYear": int64(2024)},
		FieldConfidence: map[string]float64{"finYear": 0.95},
		Missing:         []string{"finSales"},
	})
	assert.Equal(t, model.DecisionAutoAccept, d)
	assert.InDelta(t, 0.95, agg, 1e-9)
}
