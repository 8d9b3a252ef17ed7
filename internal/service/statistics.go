package service

import (
	"strings"
	"time"

	"github.com/godilite/insighter/internal/repository/models"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// engagementSeconds is the interview duration, or 0 when either bound is
// missing or unparsable.
func engagementSeconds(rec models.Record) float64 {
	if rec.StartedAt == "" || rec.EndedAt == "" {
		return 0
	}
	start, ok := parseTimestamp(rec.StartedAt)
	if !ok {
		return 0
	}
	end, ok := parseTimestamp(rec.EndedAt)
	if !ok {
		return 0
	}
	return end.Sub(start).Seconds()
}

// ComputeInterviewStats averages rounds, word counts and engagement time
// over records. Rounds are interviewer to respondent transitions.
func ComputeInterviewStats(records []models.Record) models.InterviewStats {
	stats := models.InterviewStats{Interviews: len(records)}
	if len(records) == 0 {
		return stats
	}

	var rounds, userTokens, assistantTokens int
	var engagement float64
	for _, rec := range records {
		rounds += rec.QAPairCount()
		for _, t := range rec.Turns {
			words := len(strings.Fields(t.Content))
			switch t.Role {
			case models.RoleRespondent:
				userTokens += words
			case models.RoleInterviewer:
				assistantTokens += words
			}
		}
		engagement += engagementSeconds(rec)
	}

	n := float64(len(records))
	stats.AvgRounds = float64(rounds) / n
	stats.AvgUserTokens = float64(userTokens) / n
	stats.AvgAssistantTokens = float64(assistantTokens) / n
	stats.AvgEngagementSeconds = engagement / n
	return stats
}
