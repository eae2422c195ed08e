package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/finsheet/internal/evaluate"
	"github.com/sells-group/finsheet/internal/memory"
	"github.com/sells-group/finsheet/internal/model"
)

// Confidence heuristic tuning for generated answers.
const (
	answerBaseline        = 0.5
	uncertaintyPenalty    = 0.2
	substantialBonus      = 0.3
	contextBonus          = 0.2
	substantialMinLength  = 100
	substantialMinContext = 3
)

// uncertaintyMarkers are phrases that signal the generator is hedging.
var uncertaintyMarkers = []string{
	"i am not sure",
	"i'm not sure",
	"it seems",
	"perhaps",
	"probably",
	"no information available",
	"not available",
	"cannot find",
	"could not find",
}

// QAPipeline answers free-form questions over the indexed documents,
// surfacing prior corrections for similar questions alongside the fresh
// answer.
type QAPipeline struct {
	evaluator *evaluate.Evaluator
	retriever Retriever
	generator Generator
	store     memory.Store
	reviewer  Reviewer

	// SkipOptionalReview accepts SKIP_REVIEW_ALLOWED answers without a
	// session.
	SkipOptionalReview bool

	// TopK is the number of passages retrieved for the question; zero
	// means the default.
	TopK int
}

// NewQAPipeline wires the collaborators together.
func NewQAPipeline(evaluator *evaluate.Evaluator, retriever Retriever, generator Generator, store memory.Store, reviewer Reviewer) *QAPipeline {
	return &QAPipeline{
		evaluator: evaluator,
		retriever: retriever,
		generator: generator,
		store:     store,
		reviewer:  reviewer,
	}
}

// QARun is an answered question with its routing decision.
type QARun struct {
	Result   *model.QAResult
	Decision model.Decision
	Reviewed bool
}

// Ask answers one question. A memory hit for a similar question is
// attached as provenance, never substituted for the fresh answer. With
// no retrievable context the pipeline returns a zero-confidence "not
// found" result rather than asking the generator to invent one.
func (p *QAPipeline) Ask(ctx context.Context, documentID, question string) (*QARun, error) {
	res := &model.QAResult{
		Question:            question,
		CorrectionPersisted: true,
		CreatedAt:           time.Now().UTC(),
	}

	// Memory lookup is best-effort; a storage failure only loses the hint.
	if hit, err := p.store.SimilarQuestion(ctx, question); err != nil {
		zap.L().Warn("pipeline: memory lookup failed", zap.Error(err))
	} else if hit != nil {
		res.Memory = hit
		res.FromMemory = true
		// A human confirmed this answer, so the candidate carries full
		// confidence; the fresh answer keeps its own score.
		res.MemoryConfidence = 1.0
	}

	topK := p.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	passages, err := p.retriever.Query(ctx, question, topK)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: retrieve for question")
	}
	if len(passages) == 0 {
		res.Answer = "No information found in the provided documents."
		res.Confidence = 0
		return p.route(ctx, documentID, res)
	}

	answer, err := p.generator.Answer(ctx, question, passages)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: generate answer")
	}
	res.Answer = answer
	res.Sources = passageSources(passages)
	res.Confidence = AssessAnswerConfidence(answer, len(passages))

	return p.route(ctx, documentID, res)
}

func (p *QAPipeline) route(ctx context.Context, documentID string, res *model.QAResult) (*QARun, error) {
	decision := p.evaluator.EvaluateAnswer(res.Confidence)
	zap.L().Info("pipeline: answer evaluated",
		zap.String("document_id", documentID),
		zap.String("decision", string(decision)),
		zap.Float64("confidence", res.Confidence),
		zap.Bool("memory_hit", res.Memory != nil),
	)

	run := &QARun{Result: res, Decision: decision}
	if decision == model.DecisionAutoAccept {
		return run, nil
	}
	if decision == model.DecisionSkipReviewAllowed && p.SkipOptionalReview {
		return run, nil
	}

	reviewed, err := p.reviewer.ReviewAnswer(ctx, documentID, res)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: answer validation")
	}
	run.Result = reviewed
	run.Reviewed = true
	return run, nil
}

// AssessAnswerConfidence scores a generated answer with a cheap textual
// heuristic: start from a baseline, penalize hedging language, reward a
// substantial answer and a well-populated context.
func AssessAnswerConfidence(answer string, contextSize int) float64 {
	confidence := answerBaseline
	lower := strings.ToLower(answer)

	for _, marker := range uncertaintyMarkers {
		if strings.Contains(lower, marker) {
			confidence -= uncertaintyPenalty
			break
		}
	}
	if len(answer) > substantialMinLength && !strings.Contains(lower, "not available") && !strings.Contains(lower, "cannot find") {
		confidence += substantialBonus
	}
	if contextSize >= substantialMinContext {
		confidence += contextBonus
	}

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
