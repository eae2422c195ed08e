// Package review drives a human (or scripted) reviewer through the items
// of an extraction or Q&A result that need attention, collects a verdict
// per item, and applies it.
package review

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/finsheet/internal/evaluate"
	"github.com/sells-group/finsheet/internal/memory"
	"github.com/sells-group/finsheet/internal/model"
	"github.com/sells-group/finsheet/internal/schema"
)

// ErrInterrupted is returned by a VerdictProvider when the reviewer
// cancels the session. It is not a failure: already-terminal items keep
// their verdicts and remaining items are skipped.
var ErrInterrupted = eris.New("review: session interrupted")

// Action is a reviewer's verdict choice for one item.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionCorrect Action = "correct"
	ActionSkip    Action = "skip"
)

// Verdict is one reviewer decision. Text carries the corrected raw value
// for ActionCorrect and is ignored otherwise.
type Verdict struct {
	Action Action
	Text   string
	// Note is an optional annotation stored with a correction.
	Note string
}

// ItemKind distinguishes what is being presented.
type ItemKind string

const (
	KindField        ItemKind = "field"
	KindMissingField ItemKind = "missing_field"
	KindAnswer       ItemKind = "answer"
)

// Item is one reviewable unit presented to the verdict provider.
type Item struct {
	Kind ItemKind

	// Field review.
	Spec          *schema.FieldSpec
	Value         any
	Confidence    float64
	HasConfidence bool
	// History holds prior corrections for this field, oldest first,
	// surfaced as a hint only.
	History []model.FieldCorrection

	// Answer review.
	Question string
	Answer   string

	// RetryErr is set when the previous verdict for this item failed to
	// apply (for example a value that did not parse) and the item is
	// being presented again.
	RetryErr error
}

// State is the per-item state machine. PRESENTED transitions to exactly
// one terminal state.
type State string

const (
	StatePresented State = "PRESENTED"
	StateAccepted  State = "ACCEPTED"
	StateRejected  State = "REJECTED"
	StateCorrected State = "CORRECTED"
	StateSkipped   State = "SKIPPED"
)

// ItemOutcome records the terminal state of one reviewed item.
type ItemOutcome struct {
	Field string `json:"field"`
	State State  `json:"state"`
}

// Outcome summarizes a completed (or interrupted) extraction session.
type Outcome struct {
	Items       []ItemOutcome `json:"items"`
	Interrupted bool          `json:"interrupted"`
	// Unresolved lists fields whose item ended SKIPPED.
	Unresolved []string `json:"unresolved,omitempty"`
	// CorrectionsPersisted is false when at least one correction could not
	// be written to the store.
	CorrectionsPersisted bool `json:"corrections_persisted"`
}

// VerdictProvider supplies a verdict for a presented item. It is the
// injection point that lets the same session run against a console, a
// scripted test, or a UI event handler.
type VerdictProvider interface {
	Verdict(item Item) (Verdict, error)
}

// VerdictFunc adapts a function to the VerdictProvider interface.
type VerdictFunc func(item Item) (Verdict, error)

func (f VerdictFunc) Verdict(item Item) (Verdict, error) { return f(item) }

// Session runs reviews against one registry, store and provider. One
// session is active per document at a time; the session itself is
// single-threaded.
type Session struct {
	registry *schema.Registry
	store    memory.Store
	provider VerdictProvider
}

// NewSession creates a Session.
func NewSession(registry *schema.Registry, store memory.Store, provider VerdictProvider) *Session {
	return &Session{registry: registry, store: store, provider: provider}
}

// ReviewExtraction walks every extracted field and then every missing
// field, applying verdicts to the result in place. The result's
// aggregate confidence is recomputed from the post-review per-field
// confidences, and Validated is set unless the session was interrupted.
func (s *Session) ReviewExtraction(ctx context.Context, documentID string, res *model.ExtractionResult) (*Outcome, error) {
	outcome := &Outcome{CorrectionsPersisted: true}

	// Snapshot the order up front: verdicts mutate the result.
	var present []string
	for _, name := range s.registry.Names() {
		if _, ok := res.Fields[name]; ok {
			present = append(present, name)
		}
	}
	missing := make([]string, len(res.MissingFields))
	copy(missing, res.MissingFields)

	interrupted := false

	for _, name := range present {
		if interrupted {
			outcome.markSkipped(name)
			continue
		}
		state, err := s.reviewField(ctx, documentID, name, res, outcome)
		if err != nil {
			if eris.Is(err, ErrInterrupted) {
				interrupted = true
				outcome.markSkipped(name)
				continue
			}
			return nil, err
		}
		outcome.Items = append(outcome.Items, ItemOutcome{Field: name, State: state})
		if state == StateSkipped {
			outcome.Unresolved = append(outcome.Unresolved, name)
		}
	}

	for _, name := range missing {
		// A field corrected or rejected above may have changed status;
		// only fields still missing are offered.
		if !res.IsMissing(name) {
			continue
		}
		if interrupted {
			outcome.markSkipped(name)
			continue
		}
		state, err := s.reviewMissingField(ctx, documentID, name, res, outcome)
		if err != nil {
			if eris.Is(err, ErrInterrupted) {
				interrupted = true
				outcome.markSkipped(name)
				continue
			}
			return nil, err
		}
		outcome.Items = append(outcome.Items, ItemOutcome{Field: name, State: state})
		if state == StateSkipped {
			outcome.Unresolved = append(outcome.Unresolved, name)
		}
	}

	outcome.Interrupted = interrupted
	res.Validated = !interrupted
	res.Unresolved = outcome.Unresolved
	res.Confidence = evaluate.Aggregate(res.FieldConfidence)
	if !outcome.CorrectionsPersisted {
		res.CorrectionsPersisted = false
	}
	return outcome, nil
}

// reviewField presents one extracted field until a terminal verdict is
// reached. Conversion failures re-prompt rather than aborting.
func (s *Session) reviewField(ctx context.Context, documentID, name string, res *model.ExtractionResult, outcome *Outcome) (State, error) {
	spec := s.registry.ByName(name)
	if spec == nil {
		return "", eris.Errorf("review: unknown field %s", name)
	}
	conf, hasConf := res.FieldConfidence[name]
	item := Item{
		Kind:          KindField,
		Spec:          spec,
		Value:         res.Fields[name],
		Confidence:    conf,
		HasConfidence: hasConf,
		History:       s.fieldHistory(ctx, name),
	}

	for {
		verdict, err := s.provider.Verdict(item)
		if err != nil {
			return "", err
		}
		switch verdict.Action {
		case ActionAccept:
			// Human confirmation promotes the field to full confidence.
			res.FieldConfidence[name] = 1.0
			return StateAccepted, nil
		case ActionReject:
			res.ClearField(name)
			return StateRejected, nil
		case ActionSkip:
			return StateSkipped, nil
		case ActionCorrect:
			value, err := spec.Type.ParseText(verdict.Text)
			if err != nil {
				item.RetryErr = err
				continue
			}
			res.SetField(name, value, 1.0)
			s.persistFieldCorrection(ctx, documentID, name, value, verdict.Note, outcome, res)
			return StateCorrected, nil
		default:
			item.RetryErr = eris.Errorf("review: unknown action %q", string(verdict.Action))
		}
	}
}

// reviewMissingField offers CORRECT/SKIP for a field with no current
// value. Accept and reject make no sense here and re-prompt.
func (s *Session) reviewMissingField(ctx context.Context, documentID, name string, res *model.ExtractionResult, outcome *Outcome) (State, error) {
	spec := s.registry.ByName(name)
	if spec == nil {
		return "", eris.Errorf("review: unknown field %s", name)
	}
	item := Item{
		Kind:    KindMissingField,
		Spec:    spec,
		History: s.fieldHistory(ctx, name),
	}

	for {
		verdict, err := s.provider.Verdict(item)
		if err != nil {
			return "", err
		}
		switch verdict.Action {
		case ActionSkip:
			return StateSkipped, nil
		case ActionCorrect:
			value, err := spec.Type.ParseText(verdict.Text)
			if err != nil {
				item.RetryErr = err
				continue
			}
			res.SetField(name, value, 1.0)
			s.persistFieldCorrection(ctx, documentID, name, value, verdict.Note, outcome, res)
			return StateCorrected, nil
		default:
			item.RetryErr = eris.Errorf("review: field is missing; only correct or skip apply")
		}
	}
}

// persistFieldCorrection writes the correction before the session moves
// on. A storage failure never discards the in-memory decision; the
// result is flagged instead.
func (s *Session) persistFieldCorrection(ctx context.Context, documentID, name string, value any, note string, outcome *Outcome, res *model.ExtractionResult) {
	if _, err := s.store.RecordFieldCorrection(ctx, documentID, name, value, note); err != nil {
		zap.L().Error("review: correction not persisted",
			zap.String("document_id", documentID),
			zap.String("field", name),
			zap.Error(err),
		)
		outcome.CorrectionsPersisted = false
		res.CorrectionsPersisted = false
	}
}

func (s *Session) fieldHistory(ctx context.Context, name string) []model.FieldCorrection {
	history, err := s.store.FieldHistory(ctx, name)
	if err != nil {
		// The hint is best-effort; review proceeds without it.
		zap.L().Warn("review: field history unavailable",
			zap.String("field", name),
			zap.Error(err),
		)
		return nil
	}
	return history
}

// ReviewAnswer runs the single-item Q&A session. The input result is
// never mutated; the returned result carries the applied verdict.
func (s *Session) ReviewAnswer(ctx context.Context, documentID string, res *model.QAResult) (*model.QAResult, error) {
	item := Item{
		Kind:          KindAnswer,
		Question:      res.Question,
		Answer:        res.Answer,
		Confidence:    res.Confidence,
		HasConfidence: true,
	}

	for {
		verdict, err := s.provider.Verdict(item)
		if err != nil {
			if eris.Is(err, ErrInterrupted) {
				out := *res
				out.Validated = false
				return &out, nil
			}
			return nil, err
		}
		switch verdict.Action {
		case ActionAccept:
			out := *res
			out.Validated = true
			out.Confidence = 1.0
			return &out, nil
		case ActionReject:
			out := *res
			out.Answer = ""
			out.Validated = true
			out.Invalid = true
			return &out, nil
		case ActionSkip:
			out := *res
			out.Validated = false
			return &out, nil
		case ActionCorrect:
			if verdict.Text == "" {
				item.RetryErr = eris.New("review: corrected answer is empty")
				continue
			}
			out := *res
			out.Answer = verdict.Text
			out.Confidence = 1.0
			out.Validated = true
			if _, err := s.store.RecordQACorrection(ctx, documentID, res.Question, verdict.Text); err != nil {
				zap.L().Error("review: qa correction not persisted",
					zap.String("document_id", documentID),
					zap.Error(err),
				)
				out.CorrectionPersisted = false
			}
			return &out, nil
		default:
			item.RetryErr = eris.Errorf("review: unknown action %q", string(verdict.Action))
		}
	}
}

func (o *Outcome) markSkipped(field string) {
	o.Items = append(o.Items, ItemOutcome{Field: field, State: StateSkipped})
	o.Unresolved = append(o.Unresolved, field)
}
