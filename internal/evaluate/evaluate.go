// Package evaluate turns raw per-field or per-answer confidence signals
// into a single routing decision.
package evaluate

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/finsheet/internal/model"
)

// Thresholds holds the confidence bands and missing-field ceiling.
// Low and High must satisfy 0 <= Low <= High <= 1.
type Thresholds struct {
	Low        float64 `yaml:"require_validation_below" mapstructure:"require_validation_below"`
	High       float64 `yaml:"auto_validate_above" mapstructure:"auto_validate_above"`
	MaxMissing int     `yaml:"missing_field_threshold" mapstructure:"missing_field_threshold"`
}

// DefaultThresholds matches the production configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 0.6, High: 0.9, MaxMissing: 3}
}

// Validate rejects inverted or out-of-range bands. Called at startup;
// evaluation itself never fails.
func (t Thresholds) Validate() error {
	if t.Low < 0 || t.Low > 1 || t.High < 0 || t.High > 1 {
		return eris.Errorf("evaluate: thresholds out of range: low=%v high=%v", t.Low, t.High)
	}
	if t.Low > t.High {
		return eris.Errorf("evaluate: inverted thresholds: low=%v > high=%v", t.Low, t.High)
	}
	if t.MaxMissing < 0 {
		return eris.Errorf("evaluate: negative missing-field threshold %d", t.MaxMissing)
	}
	return nil
}

// Evaluator computes aggregate confidence and routing decisions. Safe
// for concurrent use; it holds only validated configuration.
type Evaluator struct {
	t Thresholds
}

// New constructs an Evaluator, failing fast on invalid thresholds.
func New(t Thresholds) (*Evaluator, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{t: t}, nil
}

// Signals is the evaluator's view of a raw extraction result.
type Signals struct {
	// Fields maps extracted field names to values; needed to spot fields
	// that carry a value but no reported confidence.
	Fields map[string]any
	// FieldConfidence maps field names to confidences; may be partial.
	FieldConfidence map[string]float64
	// Missing lists field names absent from the extraction.
	Missing []string
	// Critical lists field names whose absence forces review.
	Critical []string
}

// Evaluate applies the decision rules in priority order and returns the
// routing decision together with the aggregate confidence.
//
//  1. Any missing critical field: MUST_REVIEW.
//  2. Missing-field count above the threshold: MUST_REVIEW.
//  3. Aggregate below the low band: MUST_REVIEW.
//  4. Aggregate at or above the high band: AUTO_ACCEPT.
//  5. Otherwise: SKIP_REVIEW_ALLOWED.
func (e *Evaluator) Evaluate(sig Signals) (model.Decision, float64) {
	agg := Aggregate(sig.FieldConfidence)

	missing := make(map[string]bool, len(sig.Missing))
	for _, m := range sig.Missing {
		missing[m] = true
	}
	// Fields extracted without a reported confidence count as missing for
	// the threshold rule: unknown confidence is treated as low.
	unscored := 0
	for name := range sig.Fields {
		if _, ok := sig.FieldConfidence[name]; !ok && !missing[name] {
			unscored++
		}
	}

	for _, c := range sig.Critical {
		if missing[c] {
			return model.DecisionMustReview, agg
		}
	}
	if len(missing)+unscored > e.t.MaxMissing {
		return model.DecisionMustReview, agg
	}
	return e.decideScalar(agg), agg
}

// EvaluateAnswer applies the scalar band rules to a Q&A confidence.
func (e *Evaluator) EvaluateAnswer(confidence float64) model.Decision {
	return e.decideScalar(Clamp(confidence, "answer"))
}

func (e *Evaluator) decideScalar(conf float64) model.Decision {
	switch {
	case conf < e.t.Low:
		return model.DecisionMustReview
	case conf >= e.t.High:
		return model.DecisionAutoAccept
	default:
		return model.DecisionSkipReviewAllowed
	}
}

// Aggregate returns the mean of the known per-field confidences, each
// clamped to [0,1]. An empty map aggregates to 0. Order-independent.
func Aggregate(fieldConfidence map[string]float64) float64 {
	if len(fieldConfidence) == 0 {
		return 0
	}
	var sum float64
	for name, c := range fieldConfidence {
		sum += Clamp(c, name)
	}
	return sum / float64(len(fieldConfidence))
}

// Clamp forces a confidence into [0,1]. Malformed upstream scores are a
// diagnostic, never a failure.
func Clamp(c float64, source string) float64 {
	switch {
	case c < 0:
		zap.L().Warn("evaluate: confidence clamped",
			zap.String("source", source),
			zap.Float64("raw", c),
			zap.Float64("clamped", 0),
		)
		return 0
	case c > 1:
		zap.L().Warn("evaluate: confidence clamped",
			zap.String("source", source),
			zap.Float64("raw", c),
			zap.Float64("clamped", 1),
		)
		return 1
	default:
		return c
	}
}
