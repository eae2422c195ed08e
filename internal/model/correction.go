package model

import "time"

// FieldCorrection is a human-confirmed value for an extraction field.
// Append-only; never mutated after creation.
type FieldCorrection struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Field      string    `json:"field"`
	Value      any       `json:"value"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// QACorrection is a human-confirmed answer keyed by question text.
type QACorrection struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	CreatedAt  time.Time `json:"created_at"`
}

// ContextNote is a freeform manual context entry supplied by an operator.
type ContextNote struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}
