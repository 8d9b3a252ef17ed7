package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/godilite/insighter/internal/repository/models"
	"go.uber.org/zap"
)

const (
	AuditFile      = "conversation_quality.csv"
	StatisticsFile = "interview_statistics.csv"
	missingValue   = "NaN"
)

// Source is the read side of the results store.
type Source interface {
	LoadAudit(ctx context.Context) ([]models.AuditRow, error)
	LoadClassifications(ctx context.Context, group string) ([]models.ClassificationEntry, error)
	LoadRatings(ctx context.Context, group string, dim models.Dimension) ([]models.RatingRow, bool, error)
	LoadRecordScores(ctx context.Context, group string) ([]models.RecordScore, error)
	LoadGroupReport(ctx context.Context, group string) (models.GroupReport, bool, error)
}

// Exporter writes stored results as CSV tables into one directory.
type Exporter struct {
	source Source
	dir    string
	logger *zap.Logger
}

func NewExporter(source Source, dir string, logger *zap.Logger) *Exporter {
	if source == nil {
		panic("nil Source provided to NewExporter")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{source: source, dir: dir, logger: logger.Named("export")}
}

// FilePrefix is the file name stem used for group; slashes in model names
// would otherwise create directories.
func FilePrefix(group string) string {
	return strings.ReplaceAll(group, "/", "_")
}

func formatValue(v float64, ok bool) string {
	if !ok {
		return missingValue
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (e *Exporter) write(name string, header []string, rows [][]string) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	p := filepath.Join(e.dir, name)
	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return p, nil
}

// ExportGroup writes the classification table, one rating table per stored
// dimension and the per-record score table of group. It returns the written
// paths.
func (e *Exporter) ExportGroup(ctx context.Context, group string) ([]string, error) {
	prefix := FilePrefix(group)
	var paths []string

	entries, err := e.source.LoadClassifications(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("load classifications: %w", err)
	}
	rows := make([][]string, len(entries))
	for i, c := range entries {
		rows[i] = []string{c.Question, c.Answer, string(c.Dimension)}
	}
	p, err := e.write(prefix+"_classifications.csv", []string{"question", "answer", "classification"}, rows)
	if err != nil {
		return nil, err
	}
	paths = append(paths, p)

	for _, d := range models.RatedDimensions {
		ratings, found, err := e.source.LoadRatings(ctx, group, d)
		if err != nil {
			return paths, fmt.Errorf("load ratings %s: %w", d, err)
		}
		if !found {
			continue
		}
		p, err := e.writeRatings(fmt.Sprintf("%s_ratings_%s.csv", prefix, d), d, ratings)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}

	scores, err := e.source.LoadRecordScores(ctx, group)
	if err != nil {
		return paths, fmt.Errorf("load record scores: %w", err)
	}
	header := []string{"uid"}
	for _, d := range models.RatedDimensions {
		header = append(header, string(d))
	}
	rows = make([][]string, len(scores))
	for i, rs := range scores {
		row := []string{rs.RecordID}
		for _, d := range models.RatedDimensions {
			row = append(row, rs.Scores[d].String())
		}
		rows[i] = row
	}
	p, err = e.write(prefix+"_ratings_by_record.csv", header, rows)
	if err != nil {
		return paths, err
	}
	paths = append(paths, p)

	e.logger.Info("group exported", zap.String("group", group), zap.Int("files", len(paths)))
	return paths, nil
}

func (e *Exporter) writeRatings(name string, d models.Dimension, ratings []models.RatingRow) (string, error) {
	trials := 0
	for _, r := range ratings {
		trials = max(trials, len(r.Trials))
	}

	header := []string{"question", "answer", "classification", "rating"}
	for i := range trials {
		header = append(header, fmt.Sprintf("trial_%d", i+1))
	}

	rows := make([][]string, len(ratings))
	for i, r := range ratings {
		row := []string{r.Question, r.Answer, string(d), formatValue(r.Rating.Value, r.Rating.OK)}
		for j := range trials {
			if j < len(r.Trials) {
				row = append(row, formatValue(r.Trials[j].Value, r.Trials[j].OK))
			} else {
				row = append(row, missingValue)
			}
		}
		rows[i] = row
	}
	return e.write(name, header, rows)
}

// ExportAudit writes the gate decision of every ingested conversation.
func (e *Exporter) ExportAudit(ctx context.Context) (string, error) {
	audit, err := e.source.LoadAudit(ctx)
	if err != nil {
		return "", fmt.Errorf("load audit: %w", err)
	}
	rows := make([][]string, len(audit))
	for i, a := range audit {
		rows[i] = []string{a.RecordID, a.SessionModel, a.InterviewModel, string(a.Quality), a.Reason}
	}
	return e.write(AuditFile, []string{"uid", "session_model", "interview_model", "quality", "reason"}, rows)
}

// ExportStatistics writes one interview statistics row per group that has a
// stored report.
func (e *Exporter) ExportStatistics(ctx context.Context, groups []string) (string, error) {
	var rows [][]string
	for _, g := range groups {
		report, found, err := e.source.LoadGroupReport(ctx, g)
		if err != nil {
			return "", fmt.Errorf("load report %s: %w", g, err)
		}
		if !found {
			continue
		}
		s := report.Stats
		rows = append(rows, []string{
			g,
			strconv.Itoa(s.Interviews),
			strconv.FormatFloat(s.AvgRounds, 'f', 2, 64),
			strconv.FormatFloat(s.AvgUserTokens, 'f', 2, 64),
			strconv.FormatFloat(s.AvgAssistantTokens, 'f', 2, 64),
			strconv.FormatFloat(s.AvgEngagementSeconds, 'f', 2, 64),
		})
	}
	return e.write(StatisticsFile, []string{
		"session_model", "number_of_interviews", "average_rounds",
		"average_user_tokens", "average_assistant_tokens", "average_engagement_time",
	}, rows)
}
