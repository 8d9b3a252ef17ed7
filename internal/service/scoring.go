package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godilite/insighter/internal/repository/models"
	"go.uber.org/zap"
)

const (
	dbTimeout = 1 * time.Second
)

var (
	ErrClassificationFailed = errors.New("classification failed")
	ErrRatingFailed         = errors.New("rating failed")
	ErrNoRecords            = errors.New("no records found")
	ErrGroupNotFound        = errors.New("group not found")
	ErrStorageFailure       = errors.New("storage failure")
)

// ScoringService serves stored reconstruction results.
type ScoringService struct {
	storage ScoreRepository
	logger  *zap.Logger
}

// NewScoringService creates a new ScoringService instance.
func NewScoringService(storage ScoreRepository, logger *zap.Logger) *ScoringService {
	if storage == nil {
		panic("storage must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	return &ScoringService{
		storage: storage,
		logger:  logger,
	}
}

// ListGroups returns the model groups that have stored results.
func (s *ScoringService) ListGroups(ctx context.Context) ([]string, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	groups, err := s.storage.ListGroups(dbCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if len(groups) == 0 {
		return nil, ErrNoRecords
	}
	return groups, nil
}

// GetRecordScores returns the per-record output table of group.
func (s *ScoringService) GetRecordScores(ctx context.Context, group string) ([]models.RecordScore, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	scores, err := s.storage.LoadRecordScores(dbCtx, group)
	if err != nil {
		s.logger.Error("failed to load record scores", zap.String("group", group), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, group)
	}

	s.logger.Debug("fetched record scores",
		zap.String("group", group),
		zap.Int("records", len(scores)))

	return scores, nil
}

// GetGroupReport returns the last stored run report of group.
func (s *ScoringService) GetGroupReport(ctx context.Context, group string) (models.GroupReport, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	report, found, err := s.storage.LoadGroupReport(dbCtx, group)
	if err != nil {
		return models.GroupReport{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if !found {
		return models.GroupReport{}, fmt.Errorf("%w: %s", ErrGroupNotFound, group)
	}
	return report, nil
}

// GetDimensionSummary reduces the record table of group to one row per rated
// dimension.
func (s *ScoringService) GetDimensionSummary(ctx context.Context, group string) ([]DimensionSummary, error) {
	scores, err := s.GetRecordScores(ctx, group)
	if err != nil {
		return nil, err
	}
	return summarize(scores), nil
}

func summarize(scores []models.RecordScore) []DimensionSummary {
	out := make([]DimensionSummary, 0, len(models.RatedDimensions))
	for _, d := range models.RatedDimensions {
		sum := DimensionSummary{Dimension: d, Name: d.Name()}
		var total float64
		for _, rs := range scores {
			score := rs.Scores[d]
			switch score.Kind {
			case models.ScoreValue:
				total += score.Value
				sum.Scored++
			case models.ScoreNA:
				sum.NotAvailable++
			default:
				sum.Empty++
			}
		}
		if sum.Scored > 0 {
			sum.Mean = models.Round2(total / float64(sum.Scored))
		}
		out = append(out, sum)
	}
	return out
}
