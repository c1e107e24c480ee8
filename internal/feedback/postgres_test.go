package feedback

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realdiag-server/internal/domain"
)

var feedbackColumns = []string{
	"id", "rule_id", "family", "context", "source", "verdict",
	"corrected_diagnosis", "notes", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectPing()
	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestNewPostgresStore_PingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	_, err = NewPostgresStore(db)
	assert.ErrorContains(t, err, "failed to ping database")
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO feedback")).
		WithArgs("NEURO-STROKE", "neurology", "weakness, slurred speech", "symptom_search", "agree",
			"", "NIHSS 6", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), created))

	fb := strokeFeedback()
	err := store.Save(context.Background(), fb)

	require.NoError(t, err)
	assert.Equal(t, int64(7), fb.ID)
	assert.Equal(t, created, fb.CreatedAt)
	assert.False(t, fb.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save_Error(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO feedback")).
		WillReturnError(errors.New("unique violation"))

	err := store.Save(context.Background(), strokeFeedback())
	assert.ErrorContains(t, err, "failed to save feedback")
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE rule_id = $1 AND context = $2")).
		WithArgs("NEURO-STROKE", "stroke").
		WillReturnRows(sqlmock.NewRows(feedbackColumns).
			AddRow(int64(3), "NEURO-STROKE", "neurology", "stroke", "decision_tree", "unsure", "", "", now, now))

	got, err := store.Get(context.Background(), "NEURO-STROKE", "stroke")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.ID)
	assert.Equal(t, SourceDecisionTree, got.Source)
	assert.Equal(t, VerdictUnsure, got.Verdict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM feedback")).
		WillReturnError(sql.ErrNoRows)

	got, err := store.Get(context.Background(), "NOPE", "")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgresStore_List(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $1 OFFSET $2")).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(feedbackColumns).
			AddRow(int64(2), "CARD-ACS", "cardiology", "chest pain", "keyword_search", "agree", "", "", now, now).
			AddRow(int64(1), "NEURO-STROKE", "neurology", "stroke", "decision_tree", "disagree", "TIA", "", now, now))

	list, err := store.List(context.Background(), 10, 0)

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "CARD-ACS", list[0].RuleID)
	assert.Equal(t, "TIA", list[1].CorrectedDiagnosis)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM feedback")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	count, err := store.Count(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM feedback WHERE id = $1")).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM feedback WHERE id = $1")).
		WithArgs(int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Delete(context.Background(), 5))

	err := store.Delete(context.Background(), 6)
	assert.True(t, domain.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
