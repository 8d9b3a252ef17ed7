package service

import (
	"context"

	"github.com/godilite/insighter/internal/repository/models"
	"github.com/godilite/insighter/pkg/oracle"
)

// Oracle is the text completion service used for gating, classification and
// rating.
type Oracle interface {
	Complete(ctx context.Context, req oracle.Request) (string, error)
}

// ScoreRepository is the read side used by ScoringService.
type ScoreRepository interface {
	ListGroups(ctx context.Context) ([]string, error)
	LoadRecordScores(ctx context.Context, group string) ([]models.RecordScore, error)
	LoadGroupReport(ctx context.Context, group string) (models.GroupReport, bool, error)
}

// InsightRepository defines the storage operations of the pipeline. Every
// Save call replaces what was stored for the same key.
type InsightRepository interface {
	ScoreRepository

	SaveAudit(ctx context.Context, rows []models.AuditRow) error
	LoadAudit(ctx context.Context) ([]models.AuditRow, error)

	SaveRecords(ctx context.Context, group string, records []models.Record) error
	LoadRecords(ctx context.Context, group string) ([]models.Record, error)

	SaveClassifications(ctx context.Context, group string, entries []models.ClassificationEntry) error
	LoadClassifications(ctx context.Context, group string) ([]models.ClassificationEntry, error)

	SaveRatings(ctx context.Context, group string, dim models.Dimension, rows []models.RatingRow) error
	// LoadRatings reports found=false when no rating table was ever saved
	// for (group, dim).
	LoadRatings(ctx context.Context, group string, dim models.Dimension) ([]models.RatingRow, bool, error)

	SaveRecordScores(ctx context.Context, group string, scores []models.RecordScore) error
	SaveGroupReport(ctx context.Context, report models.GroupReport) error
}
