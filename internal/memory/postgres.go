package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/finsheet/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
	opts options
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_field_correction": `INSERT INTO field_corrections (id, document_id, field, value, note, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"insert_qa_correction":    `INSERT INTO qa_corrections (id, document_id, question, answer, created_at) VALUES ($1, $2, $3, $4, $5)`,
	"insert_context_note":     `INSERT INTO context_notes (id, document_id, note, created_at) VALUES ($1, $2, $3, $4)`,
	"field_history":           `SELECT id, document_id, field, value, note, created_at FROM field_corrections WHERE field = $1 ORDER BY created_at ASC, id ASC`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, opts ...Option) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "memory: postgres parse config")
	}
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "memory: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "memory: postgres connect")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &PostgresStore{pool: pool, opts: o}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS field_corrections (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	field       TEXT NOT NULL,
	value       JSONB NOT NULL,
	note        TEXT,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS qa_corrections (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	question    TEXT NOT NULL,
	answer      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS context_notes (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	note        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_field_corrections_field ON field_corrections(field, created_at);
CREATE INDEX IF NOT EXISTS idx_qa_corrections_created ON qa_corrections(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "memory: postgres migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) RecordFieldCorrection(ctx context.Context, documentID, field string, value any, note string) (*model.FieldCorrection, error) {
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
	_, err = s.pool.Exec(ctx,
		`INSERT INTO field_corrections (id, document_id, field, value, note, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.DocumentID, rec.Field, string(valueJSON), rec.Note, rec.CreatedAt,
	)
	if err != nil {
		return nil, storageErr(err, "insert field correction")
	}
	return rec, nil
}

func (s *PostgresStore) RecordQACorrection(ctx context.Context, documentID, question, answer string) (*model.QACorrection, error) {
	rec := &model.QACorrection{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Question:   question,
		Answer:     answer,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO qa_corrections (id, document_id, question, answer, created_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.DocumentID, rec.Question, rec.Answer, rec.CreatedAt,
	)
	if err != nil {
		return nil, storageErr(err, "insert qa correction")
	}
	return rec, nil
}

func (s *PostgresStore) RecordContextNote(ctx context.Context, documentID, text string) (*model.ContextNote, error) {
	rec := &model.ContextNote{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Text:       text,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO context_notes (id, document_id, note, created_at) VALUES ($1, $2, $3, $4)`,
		rec.ID, rec.DocumentID, rec.Text, rec.CreatedAt,
	)
	if err != nil {
		return nil, storageErr(err, "insert context note")
	}
	return rec, nil
}

func (s *PostgresStore) FieldHistory(ctx context.Context, field string) ([]model.FieldCorrection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, field, value, note, created_at FROM field_corrections WHERE field = $1 ORDER BY created_at ASC, id ASC`,
		field,
	)
	if err != nil {
		return nil, eris.Wrap(err, "memory: postgres field history")
	}
	defer rows.Close()

	var out []model.FieldCorrection
	for rows.Next() {
		var rec model.FieldCorrection
		var valueJSON string
		var note *string
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.Field, &valueJSON, &note, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "memory: postgres scan field correction")
		}
		if err := json.Unmarshal([]byte(valueJSON), &rec.Value); err != nil {
			return nil, eris.Wrap(err, "memory: postgres unmarshal correction value")
		}
		if note != nil {
			rec.Note = *note
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "memory: postgres field history iterate")
}

func (s *PostgresStore) SimilarQuestion(ctx context.Context, question string) (*model.QACorrection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, question, answer, created_at FROM qa_corrections ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "memory: postgres similar question")
	}
	defer rows.Close()

	for rows.Next() {
		var rec model.QACorrection
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.Question, &rec.Answer, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "memory: postgres scan qa correction")
		}
		if s.opts.similarity(question, rec.Question) >= s.opts.floor {
			return &rec, nil
		}
	}
	return nil, eris.Wrap(rows.Err(), "memory: postgres similar question iterate")
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByField: make(map[string]int)}

	for _, q := range []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM field_corrections`, &stats.FieldCorrections},
		{`SELECT COUNT(*) FROM qa_corrections`, &stats.QACorrections},
		{`SELECT COUNT(*) FROM context_notes`, &stats.ContextNotes},
	} {
		if err := s.pool.QueryRow(ctx, q.query).Scan(q.dest); err != nil {
			return nil, eris.Wrap(err, "memory: postgres stats count")
		}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT field, COUNT(*) FROM field_corrections GROUP BY field`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "memory: postgres stats by field")
	}
	defer rows.Close()
	for rows.Next() {
		var field string
		var n int
		if err := rows.Scan(&field, &n); err != nil {
			return nil, eris.Wrap(err, "memory: postgres stats scan")
		}
		stats.ByField[field] = n
	}
	return stats, eris.Wrap(rows.Err(), "memory: postgres stats iterate")
}
