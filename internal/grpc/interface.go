package grpc

import (
	"context"
	"time"

	"github.com/godilite/insighter/internal/repository/models"
	"github.com/godilite/insighter/internal/service"
)

// Cacher defines the interface for cache operations.
type Cacher interface {
	Close() error
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

type ScoringService interface {
	ListGroups(ctx context.Context) ([]string, error)
	GetRecordScores(ctx context.Context, group string) ([]models.RecordScore, error)
	GetGroupReport(ctx context.Context, group string) (models.GroupReport, error)
	GetDimensionSummary(ctx context.Context, group string) ([]service.DimensionSummary, error)
}
