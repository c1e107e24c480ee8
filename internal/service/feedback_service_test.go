package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realdiag-server/internal/domain"
	"github.com/realdiag-server/internal/feedback"
)

// memoryStore is an in-process feedback.Store for service tests.
type memoryStore struct {
	items   []*feedback.Feedback
	saveErr error
}

func (m *memoryStore) Save(_ context.Context, fb *feedback.Feedback) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	for i, existing := range m.items {
		if existing.RuleID == fb.RuleID && existing.Context == fb.Context {
			fb.ID = existing.ID
			m.items[i] = fb
			return nil
		}
	}
	fb.ID = int64(len(m.items) + 1)
	m.items = append(m.items, fb)
	return nil
}

func (m *memoryStore) Get(_ context.Context, ruleID, queryContext string) (*feedback.Feedback, error) {
	for _, fb := range m.items {
		if fb.RuleID == ruleID && fb.Context == queryContext {
			return fb, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) List(_ context.Context, limit, offset int) ([]*feedback.Feedback, error) {
	if offset >= len(m.items) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.items) {
		end = len(m.items)
	}
	return m.items[offset:end], nil
}

func (m *memoryStore) Count(context.Context) (int64, error) {
	return int64(len(m.items)), nil
}

func (m *memoryStore) Delete(context.Context, int64) error { return nil }

func (m *memoryStore) ExportJSON(_ context.Context, w io.Writer) error {
	return json.NewEncoder(w).Encode(feedback.FeedbackExport{Version: feedback.ExportVersion, Count: len(m.items), Feedback: m.items})
}

func (m *memoryStore) ImportJSON(ctx context.Context, r io.Reader) (int, int, error) {
	var export feedback.FeedbackExport
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return 0, 0, err
	}
	imported, skipped := 0, 0
	for _, fb := range export.Feedback {
		if existing, _ := m.Get(ctx, fb.RuleID, fb.Context); existing != nil {
			skipped++
			continue
		}
		_ = m.Save(ctx, fb)
		imported++
	}
	return imported, skipped, nil
}

func (m *memoryStore) Close() error { return nil }

func newFeedbackFixture(t *testing.T) (*FeedbackService, *memoryStore) {
	t.Helper()
	store := &memoryStore{}
	return NewFeedbackService(store, fixtureRules(t), nopLogger()), store
}

func TestFeedbackService_Submit(t *testing.T) {
	svc, store := newFeedbackFixture(t)

	fb, err := svc.Submit(context.Background(), SubmitFeedbackRequest{
		RuleID:             " CARD-ACS ",
		Context:            "chest pain, diaphoresis",
		Source:             "symptom_search",
		Verdict:            "disagree",
		CorrectedDiagnosis: " Aortic dissection ",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), fb.ID)
	assert.Equal(t, "CARD-ACS", fb.RuleID)
	assert.Equal(t, "cardiology", fb.Family)
	assert.Equal(t, feedback.VerdictDisagree, fb.Verdict)
	assert.Equal(t, "Aortic dissection", fb.CorrectedDiagnosis)
	assert.Len(t, store.items, 1)
}

func TestFeedbackService_Submit_Validation(t *testing.T) {
	svc, store := newFeedbackFixture(t)
	valid := SubmitFeedbackRequest{RuleID: "CARD-HF", Source: "keyword_search", Verdict: "agree"}

	tests := []struct {
		name   string
		mutate func(r *SubmitFeedbackRequest)
		field  string
	}{
		{"missing rule", func(r *SubmitFeedbackRequest) { r.RuleID = "  " }, "rule_id"},
		{"bad source", func(r *SubmitFeedbackRequest) { r.Source = "gut_feeling" }, "source"},
		{"bad verdict", func(r *SubmitFeedbackRequest) { r.Verdict = "maybe" }, "verdict"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			_, err := svc.Submit(context.Background(), req)

			var ve *domain.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.True(t, domain.IsInvalidInput(err))
		})
	}
	assert.Empty(t, store.items)
}

func TestFeedbackService_Submit_UnknownRule(t *testing.T) {
	svc, _ := newFeedbackFixture(t)

	_, err := svc.Submit(context.Background(), SubmitFeedbackRequest{RuleID: "CARD-XYZ", Source: "decision_tree", Verdict: "unsure"})

	assert.True(t, domain.IsNotFound(err))
	assert.Equal(t, "rule 'CARD-XYZ' not found", err.Error())
}

func TestFeedbackService_Submit_StoreFailure(t *testing.T) {
	svc, store := newFeedbackFixture(t)
	store.saveErr = errors.New("database is locked")

	_, err := svc.Submit(context.Background(), SubmitFeedbackRequest{RuleID: "CARD-HF", Source: "decision_tree", Verdict: "agree"})

	var de *domain.DiagnosticError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.ErrStorage, de.Code)
	assert.Contains(t, de.Details, "database is locked")
}

func TestFeedbackService_List(t *testing.T) {
	svc, _ := newFeedbackFixture(t)
	ctx := context.Background()

	empty, err := svc.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty.Feedback)
	assert.Zero(t, empty.Total)

	for _, ctxText := range []string{"a", "b", "c"} {
		_, err := svc.Submit(ctx, SubmitFeedbackRequest{RuleID: "NEURO-STROKE", Context: ctxText, Source: "symptom_search", Verdict: "agree"})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, 2, 1)
	require.NoError(t, err)
	assert.Len(t, page.Feedback, 2)
	assert.Equal(t, int64(3), page.Total)

	_, err = svc.List(ctx, 10, -1)
	assert.True(t, domain.IsInvalidInput(err))
}

func TestFeedbackService_ExportImport(t *testing.T) {
	svc, _ := newFeedbackFixture(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, SubmitFeedbackRequest{RuleID: "NEURO-MIGRAINE", Context: "headache", Source: "keyword_search", Verdict: "agree"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(ctx, &buf))
	assert.True(t, strings.Contains(buf.String(), "NEURO-MIGRAINE"))

	other, _ := newFeedbackFixture(t)
	imported, skipped, err := other.Import(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Zero(t, skipped)

	imported, skipped, err = other.Import(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Zero(t, imported)
	assert.Equal(t, 1, skipped)
}
