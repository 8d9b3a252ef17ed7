package service

import (
	"testing"

	"github.com/godilite/insighter/internal/repository/models"
	"github.com/stretchr/testify/assert"
)

func TestComputeInterviewStats(t *testing.T) {
	a := record("A",
		models.Turn{Role: models.RoleInterviewer, Content: "How was it today?"},
		models.Turn{Role: models.RoleRespondent, Content: "pretty good"},
		models.Turn{Role: models.RoleInterviewer, Content: "Anything else?"},
		models.Turn{Role: models.RoleRespondent, Content: "no"})
	a.StartedAt = "2024-05-01T10:00:00Z"
	a.EndedAt = "2024-05-01T10:02:00Z"

	b := record("B",
		models.Turn{Role: models.RoleInterviewer, Content: "Ready?"},
		models.Turn{Role: models.RoleRespondent, Content: "yes I am ready"})
	b.StartedAt = "2024-05-01T10:00:00.000"
	b.EndedAt = "not a time"

	stats := ComputeInterviewStats([]models.Record{a, b})

	assert.Equal(t, 2, stats.Interviews)
	assert.Equal(t, 1.5, stats.AvgRounds)
	assert.Equal(t, 3.5, stats.AvgUserTokens)
	assert.Equal(t, 3.5, stats.AvgAssistantTokens)
	assert.Equal(t, 60.0, stats.AvgEngagementSeconds)
}

func TestComputeInterviewStats_Empty(t *testing.T) {
	assert.Equal(t, models.InterviewStats{}, ComputeInterviewStats(nil))
}
