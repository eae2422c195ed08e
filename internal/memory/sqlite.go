package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/finsheet/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode so appends are durable per call.
func NewSQLite(dsn string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "memory: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "memory: sqlite exec %s", pragma)
		}
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &SQLiteStore{db: db, opts: o}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS field_corrections (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	field       TEXT NOT NULL,
	value       TEXT NOT NULL,
	note        TEXT,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS qa_corrections (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	question    TEXT NOT NULL,
	answer      TEXT NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS context_notes (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	note        TEXT NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_field_corrections_field ON field_corrections(field, created_at);
CREATE INDEX IF NOT EXISTS idx_qa_corrections_created ON qa_corrections(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "memory: sqlite migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordFieldCorrection(ctx context.Context, documentID, field string, value any, note string) (*model.FieldCorrection, error) {
	rec := &model.FieldCorrection{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Field:      field,
		Value:      value,
		Note:       note,
		CreatedAt:  time.Now().UTC(),
	}
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return nil, storageErr(err, "marshal field correction value")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO field_corrections (id, document_id, field, value, note, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DocumentID, rec.Field, string(valueJSON), rec.Note, rec.CreatedAt,
	)
	if err != nil {
		return nil, storageErr(err, "insert field correction")
	}
	return rec, nil
}

func (s *SQLiteStore) RecordQACorrection(ctx context.Context, documentID, question, answer string) (*model.QACorrection, error) {
	rec := &model.QACorrection{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Question:   question,
		Answer:     answer,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO qa_corrections (id, document_id, question, answer, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.DocumentID, rec.Question, rec.Answer, rec.CreatedAt,
	)
	if err != nil {
		return nil, storageErr(err, "insert qa correction")
	}
	return rec, nil
}

func (s *SQLiteStore) RecordContextNote(ctx context.Context, documentID, text string) (*model.ContextNote, error) {
	rec := &model.ContextNote{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Text:       text,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO context_notes (id, document_id, note, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.DocumentID, rec.Text, rec.CreatedAt,
	)
	if err != nil {
		return nil, storageErr(err, "insert context note")
	}
	return rec, nil
}

func (s *SQLiteStore) FieldHistory(ctx context.Context, field string) ([]model.FieldCorrection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, field, value, note, created_at FROM field_corrections
		 WHERE field = ? ORDER BY created_at ASC, id ASC`,
		field,
	)
	if err != nil {
		return nil, eris.Wrap(err, "memory: sqlite field history")
	}
	defer rows.Close()

	var out []model.FieldCorrection
	for rows.Next() {
		var rec model.FieldCorrection
		var valueJSON string
		var note sql.NullString
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.Field, &valueJSON, &note, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "memory: sqlite scan field correction")
		}
		if err := json.Unmarshal([]byte(valueJSON), &rec.Value); err != nil {
			return nil, eris.Wrap(err, "memory: sqlite unmarshal correction value")
		}
		rec.Note = note.String
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "memory: sqlite field history iterate")
}

func (s *SQLiteStore) SimilarQuestion(ctx context.Context, question string) (*model.QACorrection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, question, answer, created_at FROM qa_corrections ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "memory: sqlite similar question")
	}
	defer rows.Close()

	for rows.Next() {
		var rec model.QACorrection
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.Question, &rec.Answer, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "memory: sqlite scan qa correction")
		}
		if s.opts.similarity(question, rec.Question) >= s.opts.floor {
			return &rec, nil
		}
	}
	return nil, eris.Wrap(rows.Err(), "memory: sqlite similar question iterate")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByField: make(map[string]int)}

	for _, q := range []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM field_corrections`, &stats.FieldCorrections},
		{`SELECT COUNT(*) FROM qa_corrections`, &stats.QACorrections},
		{`SELECT COUNT(*) FROM context_notes`, &stats.ContextNotes},
	} {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, eris.Wrap(err, "memory: sqlite stats count")
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT field, COUNT(*) FROM field_corrections GROUP BY field`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "memory: sqlite stats by field")
	}
	defer rows.Close()
	for rows.Next() {
		var field string
		var n int
		if err := rows.Scan(&field, &n); err != nil {
			return nil, eris.Wrap(err, "memory: sqlite stats scan")
		}
		stats.ByField[field] = n
	}
	return stats, eris.Wrap(rows.Err(), "memory: sqlite stats iterate")
}

// storageErr tags an append failure so callers can branch on ErrStorage.
func storageErr(err error, op string) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
