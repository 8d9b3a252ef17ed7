package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/godilite/insighter/internal/repository/models"
)

type InsightRepository struct {
	db *sql.DB
}

func NewInsightRepository(db *sql.DB) *InsightRepository {
	return &InsightRepository{db: db}
}

// scoreColumn maps a rated dimension to its record_scores column.
func scoreColumn(d models.Dimension) string {
	return strings.ToLower(string(d))
}

// replace runs fn inside a transaction after deleting the rows matched by
// deleteQuery.
func (s *InsightRepository) replace(ctx context.Context, deleteQuery string, args []any, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, deleteQuery, args...); err != nil {
		return fmt.Errorf("clear rows: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListGroups returns every group with stored records or a stored report,
// sorted by name.
func (s *InsightRepository) ListGroups(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_name FROM group_reports
		UNION
		SELECT DISTINCT group_name FROM records
		ORDER BY group_name`)
	if err != nil {
		return nil, fmt.Errorf("query ListGroups: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scan ListGroups: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *InsightRepository) SaveAudit(ctx context.Context, audit []models.AuditRow) error {
	return s.replace(ctx, `DELETE FROM audit`, nil, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO audit (position, record_id, session_model, interview_model, quality, reason)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare SaveAudit: %w", err)
		}
		defer stmt.Close()

		for i, a := range audit {
			if _, err := stmt.ExecContext(ctx, i, a.RecordID, a.SessionModel, a.InterviewModel, string(a.Quality), a.Reason); err != nil {
				return fmt.Errorf("insert audit %s: %w", a.RecordID, err)
			}
		}
		return nil
	})
}

func (s *InsightRepository) LoadAudit(ctx context.Context) ([]models.AuditRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, session_model, interview_model, quality, reason
		FROM audit ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query LoadAudit: %w", err)
	}
	defer rows.Close()

	var out []models.AuditRow
	for rows.Next() {
		var a models.AuditRow
		var quality string
		if err := rows.Scan(&a.RecordID, &a.SessionModel, &a.InterviewModel, &quality, &a.Reason); err != nil {
			return nil, fmt.Errorf("scan LoadAudit: %w", err)
		}
		a.Quality = models.Quality(quality)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *InsightRepository) SaveRecords(ctx context.Context, group string, records []models.Record) error {
	return s.replace(ctx, `DELETE FROM records WHERE group_name = ?`, []any{group}, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO records (group_name, position, record_id, started_at, ended_at, turns)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare SaveRecords: %w", err)
		}
		defer stmt.Close()

		for i, r := range records {
			turns, err := json.Marshal(r.Turns)
			if err != nil {
				return fmt.Errorf("encode turns of %s: %w", r.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, group, i, r.ID, r.StartedAt, r.EndedAt, string(turns)); err != nil {
				return fmt.Errorf("insert record %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

func (s *InsightRepository) LoadRecords(ctx context.Context, group string) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, started_at, ended_at, turns
		FROM records WHERE group_name = ? ORDER BY position`, group)
	if err != nil {
		return nil, fmt.Errorf("query LoadRecords: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		r := models.Record{Group: group}
		var turns string
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.EndedAt, &turns); err != nil {
			return nil, fmt.Errorf("scan LoadRecords: %w", err)
		}
		if err := json.Unmarshal([]byte(turns), &r.Turns); err != nil {
			return nil, fmt.Errorf("decode turns of %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *InsightRepository) SaveClassifications(ctx context.Context, group string, entries []models.ClassificationEntry) error {
	return s.replace(ctx, `DELETE FROM classifications WHERE group_name = ?`, []any{group}, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO classifications (group_name, position, question, answer, dimension)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare SaveClassifications: %w", err)
		}
		defer stmt.Close()

		for i, e := range entries {
			if _, err := stmt.ExecContext(ctx, group, i, e.Question, e.Answer, string(e.Dimension)); err != nil {
				return fmt.Errorf("insert classification %d: %w", i, err)
			}
		}
		return nil
	})
}

func (s *InsightRepository) LoadClassifications(ctx context.Context, group string) ([]models.ClassificationEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question, answer, dimension
		FROM classifications WHERE group_name = ? ORDER BY position`, group)
	if err != nil {
		return nil, fmt.Errorf("query LoadClassifications: %w", err)
	}
	defer rows.Close()

	var out []models.ClassificationEntry
	for rows.Next() {
		var e models.ClassificationEntry
		var dim string
		if err := rows.Scan(&e.Question, &e.Answer, &dim); err != nil {
			return nil, fmt.Errorf("scan LoadClassifications: %w", err)
		}
		e.Dimension = models.Dimension(dim)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveRatings replaces the rating table of (group, dim). An empty rows slice
// still records that the table exists.
func (s *InsightRepository) SaveRatings(ctx context.Context, group string, dim models.Dimension, ratings []models.RatingRow) error {
	args := []any{group, string(dim)}
	return s.replace(ctx, `DELETE FROM ratings WHERE group_name = ? AND dimension = ?`, args, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO rating_tables (group_name, dimension) VALUES (?, ?)`, args...); err != nil {
			return fmt.Errorf("register rating table: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO ratings (group_name, dimension, position, question, answer, rating, trials)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare SaveRatings: %w", err)
		}
		defer stmt.Close()

		for i, r := range ratings {
			trials, err := json.Marshal(r.Trials)
			if err != nil {
				return fmt.Errorf("encode trials: %w", err)
			}
			rating := sql.NullFloat64{Float64: r.Rating.Value, Valid: r.Rating.OK}
			if _, err := stmt.ExecContext(ctx, group, string(dim), i, r.Question, r.Answer, rating, string(trials)); err != nil {
				return fmt.Errorf("insert rating %d: %w", i, err)
			}
		}
		return nil
	})
}

func (s *InsightRepository) LoadRatings(ctx context.Context, group string, dim models.Dimension) ([]models.RatingRow, bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rating_tables WHERE group_name = ? AND dimension = ?`,
		group, string(dim)).Scan(&exists)
	if err != nil {
		return nil, false, fmt.Errorf("query rating table: %w", err)
	}
	if exists == 0 {
		return nil, false, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT question, answer, rating, trials
		FROM ratings WHERE group_name = ? AND dimension = ? ORDER BY position`,
		group, string(dim))
	if err != nil {
		return nil, true, fmt.Errorf("query LoadRatings: %w", err)
	}
	defer rows.Close()

	out := []models.RatingRow{}
	for rows.Next() {
		var r models.RatingRow
		var rating sql.NullFloat64
		var trials string
		if err := rows.Scan(&r.Question, &r.Answer, &rating, &trials); err != nil {
			return nil, true, fmt.Errorf("scan LoadRatings: %w", err)
		}
		if rating.Valid {
			r.Rating = models.AggregateOf(rating.Float64)
		}
		if err := json.Unmarshal([]byte(trials), &r.Trials); err != nil {
			return nil, true, fmt.Errorf("decode trials: %w", err)
		}
		out = append(out, r)
	}
	return out, true, rows.Err()
}

func (s *InsightRepository) SaveRecordScores(ctx context.Context, group string, scores []models.RecordScore) error {
	cols := make([]string, len(models.RatedDimensions))
	for i, d := range models.RatedDimensions {
		cols[i] = scoreColumn(d)
	}
	query := fmt.Sprintf(`
		INSERT INTO record_scores (group_name, position, record_id, %s)
		VALUES (?, ?, ?%s)`,
		strings.Join(cols, ", "), strings.Repeat(", ?", len(cols)))

	return s.replace(ctx, `DELETE FROM record_scores WHERE group_name = ?`, []any{group}, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare SaveRecordScores: %w", err)
		}
		defer stmt.Close()

		for i, rs := range scores {
			args := []any{group, i, rs.RecordID}
			for _, d := range models.RatedDimensions {
				args = append(args, rs.Scores[d].String())
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("insert record score %s: %w", rs.RecordID, err)
			}
		}
		return nil
	})
}

func (s *InsightRepository) LoadRecordScores(ctx context.Context, group string) ([]models.RecordScore, error) {
	cols := make([]string, len(models.RatedDimensions))
	for i, d := range models.RatedDimensions {
		cols[i] = scoreColumn(d)
	}
	query := fmt.Sprintf(`
		SELECT record_id, %s
		FROM record_scores WHERE group_name = ? ORDER BY position`, strings.Join(cols, ", "))

	rows, err := s.db.QueryContext(ctx, query, group)
	if err != nil {
		return nil, fmt.Errorf("query LoadRecordScores: %w", err)
	}
	defer rows.Close()

	var out []models.RecordScore
	for rows.Next() {
		var id string
		values := make([]string, len(cols))
		dest := []any{&id}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan LoadRecordScores: %w", err)
		}

		rs := models.RecordScore{RecordID: id, Scores: make(map[models.Dimension]models.Score, len(cols))}
		for i, d := range models.RatedDimensions {
			rs.Scores[d] = models.ParseScore(values[i])
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

func (s *InsightRepository) SaveGroupReport(ctx context.Context, report models.GroupReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO group_reports (group_name, report, created_at) VALUES (?, ?, ?)
		ON CONFLICT (group_name) DO UPDATE SET report = excluded.report, created_at = excluded.created_at`,
		report.Group, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert group report: %w", err)
	}
	return nil
}

func (s *InsightRepository) LoadGroupReport(ctx context.Context, group string) (models.GroupReport, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM group_reports WHERE group_name = ?`, group).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.GroupReport{}, false, nil
		}
		return models.GroupReport{}, false, fmt.Errorf("query LoadGroupReport: %w", err)
	}

	var report models.GroupReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return models.GroupReport{}, false, fmt.Errorf("decode report: %w", err)
	}
	return report, true, nil
}
