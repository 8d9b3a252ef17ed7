package mocks

import (
	"context"
	"errors"

	"github.com/godilite/insighter/internal/repository/models"
	"github.com/godilite/insighter/internal/service"
)

// MockScoringService is a function-field mock of the handlers' ScoringService.
type MockScoringService struct {
	ListGroupsFunc          func(ctx context.Context) ([]string, error)
	GetRecordScoresFunc     func(ctx context.Context, group string) ([]models.RecordScore, error)
	GetGroupReportFunc      func(ctx context.Context, group string) (models.GroupReport, error)
	GetDimensionSummaryFunc func(ctx context.Context, group string) ([]service.DimensionSummary, error)
}

func (m *MockScoringService) ListGroups(ctx context.Context) ([]string, error) {
	if m.ListGroupsFunc != nil {
		return m.ListGroupsFunc(ctx)
	}
	return nil, errors.New("ListGroupsFunc not implemented")
}

func (m *MockScoringService) GetRecordScores(ctx context.Context, group string) ([]models.RecordScore, error) {
	if m.GetRecordScoresFunc != nil {
		return m.GetRecordScoresFunc(ctx, group)
	}
	return nil, errors.New("GetRecordScoresFunc not implemented")
}

func (m *MockScoringService) GetGroupReport(ctx context.Context, group string) (models.GroupReport, error) {
	if m.GetGroupReportFunc != nil {
		return m.GetGroupReportFunc(ctx, group)
	}
	return models.GroupReport{}, errors.New("GetGroupReportFunc not implemented")
}

func (m *MockScoringService) GetDimensionSummary(ctx context.Context, group string) ([]service.DimensionSummary, error) {
	if m.GetDimensionSummaryFunc != nil {
		return m.GetDimensionSummaryFunc(ctx, group)
	}
	return nil, errors.New("GetDimensionSummaryFunc not implemented")
}
