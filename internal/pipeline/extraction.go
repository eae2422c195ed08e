package pipeline

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/finsheet/internal/evaluate"
	"github.com/sells-group/finsheet/internal/model"
	"github.com/sells-group/finsheet/internal/schema"
)

// ExtractionPipeline runs retrieval, generation, evaluation and, when
// the decision calls for it, a validation session.
type ExtractionPipeline struct {
	registry  *schema.Registry
	evaluator *evaluate.Evaluator
	retriever Retriever
	generator Generator
	reviewer  Reviewer

	// SkipOptionalReview accepts SKIP_REVIEW_ALLOWED results without a
	// session. MUST_REVIEW results always get one.
	SkipOptionalReview bool

	// TopK is the number of passages retrieved per field query; zero
	// means the default.
	TopK int
}

// NewExtractionPipeline wires the collaborators together.
func NewExtractionPipeline(registry *schema.Registry, evaluator *evaluate.Evaluator, retriever Retriever, generator Generator, reviewer Reviewer) *ExtractionPipeline {
	return &ExtractionPipeline{
		registry:  registry,
		evaluator: evaluator,
		retriever: retriever,
		generator: generator,
		reviewer:  reviewer,
	}
}

// ExtractionRun is an extraction result together with its routing
// decision and whether a validation session ran.
type ExtractionRun struct {
	Result   *model.ExtractionResult
	Decision model.Decision
	Reviewed bool
}

// Run extracts the schema's fields for one document set. A generation or
// retrieval failure is an error; a storage failure during review is not,
// the result comes back flagged instead.
func (p *ExtractionPipeline) Run(ctx context.Context, documentID string) (*ExtractionRun, error) {
	passages, err := p.retrieve(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := p.generator.ExtractFields(ctx, p.registry, passages)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: generate extraction")
	}

	res := p.buildResult(raw, passages)
	res.AdditionalInfo = collectInfo(res)

	decision, agg := p.evaluator.Evaluate(evaluate.Signals{
		Fields:          res.Fields,
		FieldConfidence: res.FieldConfidence,
		Missing:         res.MissingFields,
		Critical:        p.registry.Critical(),
	})
	res.Confidence = agg

	zap.L().Info("pipeline: extraction evaluated",
		zap.String("document_id", documentID),
		zap.String("decision", string(decision)),
		zap.Float64("confidence", agg),
		zap.Int("missing", len(res.MissingFields)),
	)

	run := &ExtractionRun{Result: res, Decision: decision}
	if decision == model.DecisionAutoAccept {
		return run, nil
	}
	if decision == model.DecisionSkipReviewAllowed && p.SkipOptionalReview {
		return run, nil
	}

	outcome, err := p.reviewer.ReviewExtraction(ctx, documentID, res)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: validation session")
	}
	run.Reviewed = true
	if outcome.Interrupted {
		zap.L().Warn("pipeline: validation interrupted",
			zap.String("document_id", documentID),
			zap.Strings("unresolved", outcome.Unresolved),
		)
	}
	return run, nil
}

// retrieve gathers passages per field query and deduplicates them,
// keeping the best score per passage.
func (p *ExtractionPipeline) retrieve(ctx context.Context) ([]model.Passage, error) {
	topK := p.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	seen := make(map[string]int)
	var merged []model.Passage
	for _, f := range p.registry.Fields {
		hits, err := p.retriever.Query(ctx, fieldQuery(f), topK)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: retrieve for %s", f.Name)
		}
		for _, h := range hits {
			key := h.DocumentID + "#" + strconv.Itoa(h.Position)
			if i, ok := seen[key]; ok {
				if h.Score > merged[i].Score {
					merged[i].Score = h.Score
				}
				continue
			}
			seen[key] = len(merged)
			merged = append(merged, h)
		}
	}
	return merged, nil
}

// fieldQuery builds the retrieval query for a field from its name and
// aliases.
func fieldQuery(f schema.FieldSpec) string {
	if len(f.Aliases) == 0 {
		return f.Name
	}
	return f.Name + " " + strings.Join(f.Aliases, " ")
}

// buildResult validates the generator's raw output against the schema
// and assembles the extraction result. Unknown fields are dropped with a
// diagnostic; known fields without values are recorded as missing.
func (p *ExtractionPipeline) buildResult(raw *Extraction, passages []model.Passage) *model.ExtractionResult {
	res := model.NewExtractionResult(passageSources(passages))
	for _, name := range p.registry.Names() {
		v, ok := raw.Values[name]
		if !ok || v == nil {
			res.MissingFields = append(res.MissingFields, name)
			continue
		}
		res.Fields[name] = v
		if c, ok := raw.Confidence[name]; ok {
			res.FieldConfidence[name] = evaluate.Clamp(c, name)
		}
	}
	for name := range raw.Values {
		if p.registry.ByName(name) == nil {
			zap.L().Warn("pipeline: generator returned unknown field",
				zap.String("field", name),
			)
		}
	}
	return res
}

func passageSources(passages []model.Passage) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, p := range passages {
		if !seen[p.DocumentID] {
			seen[p.DocumentID] = true
			sources = append(sources, p.DocumentID)
		}
	}
	return sources
}
