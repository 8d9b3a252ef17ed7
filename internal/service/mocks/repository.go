package mocks

import (
	"context"
	"errors"

	"github.com/godilite/insighter/internal/repository/models"
)

// MockInsightRepository is a mock implementation of the InsightRepository
// interface for testing the service layer.
type MockInsightRepository struct {
	ListGroupsFunc          func(ctx context.Context) ([]string, error)
	LoadRecordScoresFunc    func(ctx context.Context, group string) ([]models.RecordScore, error)
	LoadGroupReportFunc     func(ctx context.Context, group string) (models.GroupReport, bool, error)
	SaveAuditFunc           func(ctx context.Context, rows []models.AuditRow) error
	LoadAuditFunc           func(ctx context.Context) ([]models.AuditRow, error)
	SaveRecordsFunc         func(ctx context.Context, group string, records []models.Record) error
	LoadRecordsFunc         func(ctx context.Context, group string) ([]models.Record, error)
	SaveClassificationsFunc func(ctx context.Context, group string, entries []models.ClassificationEntry) error
	LoadClassificationsFunc func(ctx context.Context, group string) ([]models.ClassificationEntry, error)
	SaveRatingsFunc         func(ctx context.Context, group string, dim models.Dimension, rows []models.RatingRow) error
	LoadRatingsFunc         func(ctx context.Context, group string, dim models.Dimension) ([]models.RatingRow, bool, error)
	SaveRecordScoresFunc    func(ctx context.Context, group string, scores []models.RecordScore) error
	SaveGroupReportFunc     func(ctx context.Context, report models.GroupReport) error
}

func (m *MockInsightRepository) ListGroups(ctx context.Context) ([]string, error) {
	if m.ListGroupsFunc != nil {
		return m.ListGroupsFunc(ctx)
	}
	return nil, errors.New("ListGroupsFunc not implemented")
}

func (m *MockInsightRepository) LoadRecordScores(ctx context.Context, group string) ([]models.RecordScore, error) {
	if m.LoadRecordScoresFunc != nil {
		return m.LoadRecordScoresFunc(ctx, group)
	}
	return nil, errors.New("LoadRecordScoresFunc not implemented")
}

func (m *MockInsightRepository) LoadGroupReport(ctx context.Context, group string) (models.GroupReport, bool, error) {
	if m.LoadGroupReportFunc != nil {
		return m.LoadGroupReportFunc(ctx, group)
	}
	return models.GroupReport{}, false, errors.New("LoadGroupReportFunc not implemented")
}

func (m *MockInsightRepository) SaveAudit(ctx context.Context, rows []models.AuditRow) error {
	if m.SaveAuditFunc != nil {
		return m.SaveAuditFunc(ctx, rows)
	}
	return errors.New("SaveAuditFunc not implemented")
}

func (m *MockInsightRepository) LoadAudit(ctx context.Context) ([]models.AuditRow, error) {
	if m.LoadAuditFunc != nil {
		return m.LoadAuditFunc(ctx)
	}
	return nil, errors.New("LoadAuditFunc not implemented")
}

func (m *MockInsightRepository) SaveRecords(ctx context.Context, group string, records []models.Record) error {
	if m.SaveRecordsFunc != nil {
		return m.SaveRecordsFunc(ctx, group, records)
	}
	return errors.New("SaveRecordsFunc not implemented")
}

func (m *MockInsightRepository) LoadRecords(ctx context.Context, group string) ([]models.Record, error) {
	if m.LoadRecordsFunc != nil {
		return m.LoadRecordsFunc(ctx, group)
	}
	return nil, errors.New("LoadRecordsFunc not implemented")
}

func (m *MockInsightRepository) SaveClassifications(ctx context.Context, group string, entries []models.ClassificationEntry) error {
	if m.SaveClassificationsFunc != nil {
		return m.SaveClassificationsFunc(ctx, group, entries)
	}
	return errors.New("SaveClassificationsFunc not implemented")
}

func (m *MockInsightRepository) LoadClassifications(ctx context.Context, group string) ([]models.ClassificationEntry, error) {
	if m.LoadClassificationsFunc != nil {
		return m.LoadClassificationsFunc(ctx, group)
	}
	return nil, errors.New("LoadClassificationsFunc not implemented")
}

func (m *MockInsightRepository) SaveRatings(ctx context.Context, group string, dim models.Dimension, rows []models.RatingRow) error {
	if m.SaveRatingsFunc != nil {
		return m.SaveRatingsFunc(ctx, group, dim, rows)
	}
	return errors.New("SaveRatingsFunc not implemented")
}

func (m *MockInsightRepository) LoadRatings(ctx context.Context, group string, dim models.Dimension) ([]models.RatingRow, bool, error) {
	if m.LoadRatingsFunc != nil {
		return m.LoadRatingsFunc(ctx, group, dim)
	}
	return nil, false, errors.New("LoadRatingsFunc not implemented")
}

func (m *MockInsightRepository) SaveRecordScores(ctx context.Context, group string, scores []models.RecordScore) error {
	if m.SaveRecordScoresFunc != nil {
		return m.SaveRecordScoresFunc(ctx, group, scores)
	}
	return errors.New("SaveRecordScoresFunc not implemented")
}

func (m *MockInsightRepository) SaveGroupReport(ctx context.Context, report models.GroupReport) error {
	if m.SaveGroupReportFunc != nil {
		return m.SaveGroupReportFunc(ctx, report)
	}
	return errors.New("SaveGroupReportFunc not implemented")
}
