package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Role string

const (
	RoleInterviewer Role = "assistant"
	RoleRespondent  Role = "user"
)

type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UnmarshalJSON accepts content either as a plain string or as a list of
// text parts, which are joined with newlines.
func (t *Turn) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    Role            `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Role = raw.Role
	t.Content = ""

	if len(raw.Content) == 0 || string(raw.Content) == "null" {
		return nil
	}

	var text string
	if err := json.Unmarshal(raw.Content, &text); err == nil {
		t.Content = text
		return nil
	}

	var parts []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw.Content, &parts); err != nil {
		return fmt.Errorf("turn content: %w", err)
	}
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		texts = append(texts, p.Text)
	}
	t.Content = strings.Join(texts, "\n")
	return nil
}

// Conversation is one ingested chat session plus the interview about it.
type Conversation struct {
	ID             string `json:"uid,omitempty"`
	SessionModel   string `json:"sessionModel"`
	InterviewModel string `json:"interviewModel"`
	Session        []Turn `json:"session"`
	Interview      []Turn `json:"interview"`
	SessionStart   string `json:"sessionStart,omitempty"`
	SessionEnd     string `json:"sessionEnd,omitempty"`
	InterviewStart string `json:"interviewStart,omitempty"`
	InterviewEnd   string `json:"interviewEnd,omitempty"`
}

// Record is an accepted interview, scoped to the model group that produced
// the session it talks about.
type Record struct {
	ID        string `json:"uid"`
	Group     string `json:"group"`
	Turns     []Turn `json:"interview"`
	StartedAt string `json:"interview_start,omitempty"`
	EndedAt   string `json:"interview_end,omitempty"`
}

// QAPairCount is the number of interviewer turns immediately followed by a
// respondent turn. It decides how many classification entries belong to r.
func (r Record) QAPairCount() int {
	return len(QAPairIndices(r.Turns))
}

// QAPairIndices returns the index of the interviewer turn of every
// (interviewer, respondent) adjacent pair, in order.
func QAPairIndices(turns []Turn) []int {
	var idx []int
	for i := 0; i+1 < len(turns); i++ {
		if turns[i].Role == RoleInterviewer && turns[i+1].Role == RoleRespondent {
			idx = append(idx, i)
		}
	}
	return idx
}

type ClassificationEntry struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Dimension Dimension `json:"classification"`
}

type RatingRow struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Rating   Aggregate `json:"rating"`
	Trials   []Trial   `json:"trials"`
}

type RecordScore struct {
	RecordID string              `json:"uid"`
	Scores   map[Dimension]Score `json:"scores"`
}

type Quality string

const (
	QualityHigh Quality = "high-quality"
	QualityLow  Quality = "low-quality"
)

type AuditRow struct {
	RecordID       string  `json:"uid"`
	SessionModel   string  `json:"session_model"`
	InterviewModel string  `json:"interview_model"`
	Quality        Quality `json:"quality"`
	Reason         string  `json:"reason,omitempty"`
}
