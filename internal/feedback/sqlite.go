package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/realdiag-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite feedback store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const selectColumns = `id, rule_id, family, context, source, verdict,
			corrected_diagnosis, notes, created_at, updated_at`

// scanFeedback scans a row into a Feedback struct.
func scanFeedback(s scanner) (*Feedback, error) {
	fb := &Feedback{}
	var source, verdict string

	err := s.Scan(
		&fb.ID, &fb.RuleID, &fb.Family, &fb.Context, &source, &verdict,
		&fb.CorrectedDiagnosis, &fb.Notes, &fb.CreatedAt, &fb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	fb.Source = Source(source)
	fb.Verdict = Verdict(verdict)
	return fb, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		rule_id TEXT NOT NULL,
		family TEXT NOT NULL DEFAULT '',
		context TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL,
		verdict TEXT NOT NULL,
		corrected_diagnosis TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(rule_id, context)
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_rule_id ON feedback(rule_id);
	CREATE INDEX IF NOT EXISTS idx_feedback_family ON feedback(family);
	CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates feedback for a rule in a context.
func (s *SQLiteStore) Save(ctx context.Context, feedback *Feedback) error {
	now := time.Now().UTC()

	var existingID int64
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT id, created_at FROM feedback WHERE rule_id = ? AND context = ?",
		feedback.RuleID, feedback.Context,
	).Scan(&existingID, &createdAt)

	if err == nil {
		feedback.ID = existingID
		feedback.CreatedAt = createdAt
		feedback.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE feedback SET
				family = ?,
				source = ?,
				verdict = ?,
				corrected_diagnosis = ?,
				notes = ?,
				updated_at = ?
			WHERE id = ?
		`,
			feedback.Family,
			string(feedback.Source),
			string(feedback.Verdict),
			feedback.CorrectedDiagnosis,
			feedback.Notes,
			now,
			existingID,
		)
		return err
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = now
	}
	feedback.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (
			rule_id, family, context, source, verdict,
			corrected_diagnosis, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		feedback.RuleID,
		feedback.Family,
		feedback.Context,
		string(feedback.Source),
		string(feedback.Verdict),
		feedback.CorrectedDiagnosis,
		feedback.Notes,
		feedback.CreatedAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	feedback.ID = id

	return nil
}

// Get retrieves the feedback for a rule in a context.
func (s *SQLiteStore) Get(ctx context.Context, ruleID, queryContext string) (*Feedback, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM feedback
		WHERE rule_id = ? AND context = ?
		LIMIT 1
	`, ruleID, queryContext)

	fb, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return fb, nil
}

// List returns feedback entries, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM feedback
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Feedback
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, fb)
	}
	return result, rows.Err()
}

// Count returns the total number of feedback entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feedback").Scan(&count)
	return count, err
}

// Delete removes a feedback entry by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM feedback WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return domain.NewNotFoundError(domain.KindFeedback, strconv.FormatInt(id, 10))
	}
	return nil
}

// ExportJSON exports all feedback to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports feedback from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
