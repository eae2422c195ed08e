package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock, opts: defaultOptions()}
	return s, mock
}

func TestPostgresRecordFieldCorrection(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO field_corrections`).
		WithArgs(pgxmock.AnyArg(), "doc-1", "finSales", "12500.5", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec, err := s.RecordFieldCorrection(context.Background(), "doc-1", "finSales", 12500.5, "")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 12500.5, rec.Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordFieldCorrectionStorageError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO field_corrections`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))

	_, err := s.RecordFieldCorrection(context.Background(), "doc-1", "finSales", 1.0, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFieldHistory(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	note := "restated"
	rows := pgxmock.NewRows([]string{"id", "document_id", "field", "value", "note", "created_at"}).
		AddRow("id-1", "doc-1", "finSales", "100", (*string)(nil), now.Add(-time.Hour)).
		AddRow("id-2", "doc-2", "finSales", "200", &note, now)
	mock.ExpectQuery(`SELECT id, document_id, field, value, note, created_at FROM field_corrections`).
		WithArgs("finSales").
		WillReturnRows(rows)

	history, err := s.FieldHistory(context.Background(), "finSales")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "id-1", history[0].ID)
	assert.Equal(t, 100.0, history[0].Value)
	assert.Equal(t, "restated", history[1].Note)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSimilarQuestion(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "document_id", "question", "answer", "created_at"}).
		AddRow("id-2", "doc-2", "Who is the CEO?", "Bob", now).
		AddRow("id-1", "doc-1", "What is the revenue?", "10M", now.Add(-time.Hour))
	mock.ExpectQuery(`SELECT id, document_id, question, answer, created_at FROM qa_corrections`).
		WillReturnRows(rows)

	hit, err := s.SimilarQuestion(context.Background(), "what is the revenue?")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "id-1", hit.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStats(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM field_corrections`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM qa_corrections`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM context_notes`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT field, COUNT\(\*\) FROM field_corrections GROUP BY field`).
		WillReturnRows(pgxmock.NewRows([]string{"field", "count"}).
			AddRow("finSales", 2).
			AddRow("finYear", 1))

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.FieldCorrections)
	assert.Equal(t, 1, stats.QACorrections)
	assert.Equal(t, 0, stats.ContextNotes)
	assert.Equal(t, map[string]int{"finSales": 2, "finYear": 1}, stats.ByField)
	assert.NoError(t, mock.ExpectationsWereMet())
}
