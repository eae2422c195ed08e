// Package model holds the data types shared across the extraction and
// Q&A pipelines.
package model

import "time"

// Decision is the routing verdict for a result: auto-accept, mandatory
// human review, or optional review.
type Decision string

const (
	DecisionAutoAccept        Decision = "AUTO_ACCEPT"
	DecisionMustReview        Decision = "MUST_REVIEW"
	DecisionSkipReviewAllowed Decision = "SKIP_REVIEW_ALLOWED"
)

// Passage is a ranked retrieval hit handed to the generator as context.
type Passage struct {
	DocumentID string  `json:"document_id"`
	Position   int     `json:"position"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// InfoNote is one free-text "additional information" diagnostic attached
// to an extraction result.
type InfoNote struct {
	Field      string `json:"field"`
	Kind       string `json:"kind"`
	Value      any    `json:"value,omitempty"`
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ExtractionResult is one document set's structured extraction output.
// Fields absent from the Fields map are missing. Per-field confidences
// are optional; a field without one is treated as unknown.
type ExtractionResult struct {
	Fields          map[string]any     `json:"fields"`
	FieldConfidence map[string]float64 `json:"field_confidence,omitempty"`
	Confidence      float64            `json:"confidence"`
	MissingFields   []string           `json:"missing_fields"`
	AdditionalInfo  []InfoNote         `json:"additional_information,omitempty"`
	Sources         []string           `json:"sources,omitempty"`

	// Validated is true once a human session ran to completion.
	Validated bool `json:"validated"`
	// Unresolved lists fields left skipped or untouched during review.
	Unresolved []string `json:"unresolved,omitempty"`
	// CorrectionsPersisted is false when a correction could not be written
	// to the store; the in-memory decision is still applied.
	CorrectionsPersisted bool `json:"corrections_persisted"`

	CreatedAt time.Time `json:"created_at"`
}

// NewExtractionResult builds an empty result with initialized maps.
func NewExtractionResult(sources []string) *ExtractionResult {
	return &ExtractionResult{
		Fields:               make(map[string]any),
		FieldConfidence:      make(map[string]float64),
		MissingFields:        []string{},
		Sources:              sources,
		CorrectionsPersisted: true,
		CreatedAt:            time.Now().UTC(),
	}
}

// IsMissing reports whether the named field is in the missing list.
func (r *ExtractionResult) IsMissing(name string) bool {
	for _, m := range r.MissingFields {
		if m == name {
			return true
		}
	}
	return false
}

// SetField records a value for a field and removes it from the missing
// list if present.
func (r *ExtractionResult) SetField(name string, value any, confidence float64) {
	r.Fields[name] = value
	r.FieldConfidence[name] = confidence
	for i, m := range r.MissingFields {
		if m == name {
			r.MissingFields = append(r.MissingFields[:i], r.MissingFields[i+1:]...)
			return
		}
	}
}

// ClearField removes a field's value and marks it missing.
func (r *ExtractionResult) ClearField(name string) {
	delete(r.Fields, name)
	delete(r.FieldConfidence, name)
	if !r.IsMissing(name) {
		r.MissingFields = append(r.MissingFields, name)
	}
}

// QAResult is one question's output. It is replaced, never mutated,
// when a correction supplies a new answer.
type QAResult struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources,omitempty"`

	// Validated is true when a human accepted, rejected or corrected the
	// answer; a skipped review leaves it false.
	Validated bool `json:"validated"`
	// Invalid is true when a human rejected the answer outright.
	Invalid bool `json:"invalid,omitempty"`
	// FromMemory marks an answer surfaced from the correction store.
	FromMemory bool `json:"from_memory,omitempty"`
	// Memory carries the similar-question hit, if any, so callers can show
	// provenance next to the fresh answer. Never silently substituted.
	Memory *QACorrection `json:"memory,omitempty"`
	// MemoryConfidence is the confidence of the surfaced memory candidate.
	// Human-confirmed corrections always carry 1.0.
	MemoryConfidence float64 `json:"memory_confidence,omitempty"`
	// CorrectionPersisted is false when the correction write failed.
	CorrectionPersisted bool `json:"correction_persisted"`

	CreatedAt time.Time `json:"created_at"`
}

// OutputRecord is the extraction output consumed by downstream reporting.
type OutputRecord struct {
	Fields                map[string]any `json:"fields"`
	Confidence            float64        `json:"confidence"`
	MissingFields         []string       `json:"missing_fields"`
	AdditionalInformation []InfoNote     `json:"additional_information"`
	Validated             bool           `json:"validated"`
	Timestamp             time.Time      `json:"timestamp"`
}

// Output converts the result to its downstream record form.
func (r *ExtractionResult) Output() OutputRecord {
	missing := r.MissingFields
	if missing == nil {
		missing = []string{}
	}
	info := r.AdditionalInfo
	if info == nil {
		info = []InfoNote{}
	}
	return OutputRecord{
		Fields:                r.Fields,
		Confidence:            r.Confidence,
		MissingFields:         missing,
		AdditionalInformation: info,
		Validated:             r.Validated,
		Timestamp:             r.CreatedAt,
	}
}
