package export

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/godilite/insighter/internal/repository/models"
	"github.com/godilite/insighter/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func readCSV(t *testing.T, p string) [][]string {
	t.Helper()
	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func groupSource() *mocks.MockInsightRepository {
	return &mocks.MockInsightRepository{
		LoadClassificationsFunc: func(ctx context.Context, group string) ([]models.ClassificationEntry, error) {
			return []models.ClassificationEntry{
				{Question: "Did it help, overall?", Answer: "yes", Dimension: models.DimensionNeedFulfillment},
				{Question: "Anything else?", Answer: "no", Dimension: models.DimensionOther},
			}, nil
		},
		LoadRatingsFunc: func(ctx context.Context, group string, dim models.Dimension) ([]models.RatingRow, bool, error) {
			if dim != models.DimensionNeedFulfillment {
				return nil, false, nil
			}
			return []models.RatingRow{
				{Question: "Did it help, overall?", Answer: "yes", Rating: models.AggregateOf(2.5), Trials: []models.Trial{
					models.TrialOf(2), models.TrialOf(3), models.MissingTrial(),
				}},
				{Question: "q", Answer: "a", Rating: models.MissingAggregate(), Trials: []models.Trial{models.TrialOf(1)}},
			}, true, nil
		},
		LoadRecordScoresFunc: func(ctx context.Context, group string) ([]models.RecordScore, error) {
			return []models.RecordScore{
				{RecordID: "r1", Scores: map[models.Dimension]models.Score{
					models.DimensionNeedFulfillment: models.ScoreOf(2.5),
					models.DimensionSatisfaction:    {Kind: models.ScoreNA},
				}},
			}, nil
		},
	}
}

func TestExportGroup(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(groupSource(), dir, zaptest.NewLogger(t))

	paths, err := e.ExportGroup(context.Background(), "openai/gpt-4")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "openai_gpt-4_classifications.csv"),
		filepath.Join(dir, "openai_gpt-4_ratings_RQ2.csv"),
		filepath.Join(dir, "openai_gpt-4_ratings_by_record.csv"),
	}, paths)

	classifications := readCSV(t, paths[0])
	assert.Equal(t, []string{"question", "answer", "classification"}, classifications[0])
	assert.Equal(t, []string{"Did it help, overall?", "yes", "RQ2"}, classifications[1])
	assert.Equal(t, "WILD", classifications[2][2])

	ratings := readCSV(t, paths[1])
	assert.Equal(t, []string{"question", "answer", "classification", "rating", "trial_1", "trial_2", "trial_3"}, ratings[0])
	assert.Equal(t, []string{"Did it help, overall?", "yes", "RQ2", "2.5", "2", "3", "NaN"}, ratings[1])
	assert.Equal(t, []string{"q", "a", "RQ2", "NaN", "1", "NaN", "NaN"}, ratings[2])

	byRecord := readCSV(t, paths[2])
	assert.Equal(t, []string{"uid", "RQ1", "RQ2", "RQ3", "RQ4", "RQ6"}, byRecord[0])
	assert.Equal(t, []string{"r1", "", "2.50", "", "N/A", ""}, byRecord[1])
}

func TestExportGroupLoadFailure(t *testing.T) {
	src := groupSource()
	src.LoadRatingsFunc = func(ctx context.Context, group string, dim models.Dimension) ([]models.RatingRow, bool, error) {
		return nil, false, errors.New("disk gone")
	}

	paths, err := NewExporter(src, t.TempDir(), nil).ExportGroup(context.Background(), "g")
	assert.ErrorContains(t, err, "load ratings RQ1: disk gone")
	assert.Len(t, paths, 1, "classification table was already written")
}

func TestExportAudit(t *testing.T) {
	src := &mocks.MockInsightRepository{
		LoadAuditFunc: func(ctx context.Context) ([]models.AuditRow, error) {
			return []models.AuditRow{
				{RecordID: "a", SessionModel: "gpt-4", InterviewModel: "gpt-4", Quality: models.QualityHigh},
				{RecordID: "b", SessionModel: "gpt-4", InterviewModel: "gpt-4", Quality: models.QualityLow, Reason: "emoji"},
			}, nil
		},
	}

	p, err := NewExporter(src, filepath.Join(t.TempDir(), "nested"), nil).ExportAudit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AuditFile, filepath.Base(p))

	rows := readCSV(t, p)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"b", "gpt-4", "gpt-4", "low-quality", "emoji"}, rows[2])
}

func TestExportStatistics(t *testing.T) {
	src := &mocks.MockInsightRepository{
		LoadGroupReportFunc: func(ctx context.Context, group string) (models.GroupReport, bool, error) {
			if group == "missing" {
				return models.GroupReport{}, false, nil
			}
			return models.GroupReport{Group: group, Stats: models.InterviewStats{
				Interviews: 2, AvgRounds: 3, AvgUserTokens: 10.5, AvgAssistantTokens: 20, AvgEngagementSeconds: 61.25,
			}}, true, nil
		},
	}

	p, err := NewExporter(src, t.TempDir(), nil).ExportStatistics(context.Background(), []string{"gpt-4", "missing"})
	require.NoError(t, err)

	rows := readCSV(t, p)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"gpt-4", "2", "3.00", "10.50", "20.00", "61.25"}, rows[1])
}

func TestFilePrefix(t *testing.T) {
	assert.Equal(t, "meta_llama_3", FilePrefix("meta/llama/3"))
	assert.Equal(t, "gpt-4", FilePrefix("gpt-4"))
}
