package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godilite/insighter/internal/repository/models"
	"github.com/godilite/insighter/internal/service/mocks"
	"github.com/godilite/insighter/pkg/oracle"
	"github.com/godilite/insighter/pkg/retry"
)

// Questions carry "tag:<DIM>" and answers carry "rate:<value>" so the scripted
// oracle can answer classification and rating prompts deterministically.
func question(tag models.Dimension) models.Turn {
	return models.Turn{Role: models.RoleInterviewer, Content: "tag:" + string(tag) + " question"}
}

func answer(rate string) models.Turn {
	return models.Turn{Role: models.RoleRespondent, Content: "rate:" + rate + " answer"}
}

func record(id string, turns ...models.Turn) models.Record {
	return models.Record{ID: id, Group: "gpt-4", Turns: turns}
}

// markerValue returns the token following the last occurrence of marker.
func markerValue(prompt, marker string) string {
	i := strings.LastIndex(prompt, marker)
	if i < 0 {
		return ""
	}
	rest := prompt[i+len(marker):]
	end := strings.IndexFunc(rest, func(r rune) bool {
		return r == ' ' || r == '"' || r == '\n' || r == '\\'
	})
	if end < 0 {
		return rest
	}
	return rest[:end]
}

func isGatePrompt(p string) bool           { return strings.Contains(p, "Predict if the following data point") }
func isClassificationPrompt(p string) bool { return strings.Contains(p, "Output the class type") }
func isRatingPrompt(p string) bool         { return strings.Contains(p, "provide a rating on a scale of 1-3") }

// scriptedOracle accepts every gate check, classifies by question tag and
// rates by answer marker.
func scriptedOracle() *mocks.MockOracle {
	return &mocks.MockOracle{
		CompleteFunc: func(ctx context.Context, req oracle.Request) (string, error) {
			switch {
			case isGatePrompt(req.Prompt):
				return "high quality", nil
			case isClassificationPrompt(req.Prompt):
				return markerValue(req.Prompt, "tag:"), nil
			case isRatingPrompt(req.Prompt):
				return markerValue(req.Prompt, "rate:"), nil
			}
			return "", fmt.Errorf("unexpected prompt: %q", req.Prompt)
		},
	}
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Microsecond, MaxDelay: time.Microsecond}
}

type ratingKey struct {
	group string
	dim   models.Dimension
}

// memStore is an in-memory InsightRepository.
type memStore struct {
	mu              sync.Mutex
	audit           []models.AuditRow
	records         map[string][]models.Record
	classifications map[string][]models.ClassificationEntry
	ratings         map[ratingKey][]models.RatingRow
	scores          map[string][]models.RecordScore
	reports         map[string]models.GroupReport
}

func newMemStore() *memStore {
	return &memStore{
		records:         make(map[string][]models.Record),
		classifications: make(map[string][]models.ClassificationEntry),
		ratings:         make(map[ratingKey][]models.RatingRow),
		scores:          make(map[string][]models.RecordScore),
		reports:         make(map[string]models.GroupReport),
	}
}

func (m *memStore) ListGroups(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for g := range m.reports {
		out = append(out, g)
	}
	return out, nil
}

func (m *memStore) LoadRecordScores(ctx context.Context, group string) ([]models.RecordScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scores[group], nil
}

func (m *memStore) LoadGroupReport(ctx context.Context, group string) (models.GroupReport, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[group]
	return r, ok, nil
}

func (m *memStore) SaveAudit(ctx context.Context, rows []models.AuditRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = rows
	return nil
}

func (m *memStore) LoadAudit(ctx context.Context) ([]models.AuditRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audit, nil
}

func (m *memStore) SaveRecords(ctx context.Context, group string, records []models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[group] = records
	return nil
}

func (m *memStore) LoadRecords(ctx context.Context, group string) ([]models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[group], nil
}

func (m *memStore) SaveClassifications(ctx context.Context, group string, entries []models.ClassificationEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classifications[group] = entries
	return nil
}

func (m *memStore) LoadClassifications(ctx context.Context, group string) ([]models.ClassificationEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.classifications[group], nil
}

func (m *memStore) SaveRatings(ctx context.Context, group string, dim models.Dimension, rows []models.RatingRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings[ratingKey{group, dim}] = rows
	return nil
}

func (m *memStore) LoadRatings(ctx context.Context, group string, dim models.Dimension) ([]models.RatingRow, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.ratings[ratingKey{group, dim}]
	return rows, ok, nil
}

func (m *memStore) SaveRecordScores(ctx context.Context, group string, scores []models.RecordScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[group] = scores
	return nil
}

func (m *memStore) SaveGroupReport(ctx context.Context, report models.GroupReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[report.Group] = report
	return nil
}
