package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/forPelevin/gomoji"
	"github.com/godilite/insighter/internal/repository/models"
	"github.com/godilite/insighter/pkg/oracle"
	"github.com/godilite/insighter/pkg/retry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Rejection reasons recorded in the audit table.
const (
	ReasonShortSession     = "short_session"
	ReasonShortInterview   = "short_interview"
	ReasonTurnTooLong      = "turn_too_long"
	ReasonDisclosurePhrase = "disclosure_phrase"
	ReasonEmoji            = "emoji"
	ReasonOracleLowQuality = "oracle_low_quality"
	ReasonOracleError      = "oracle_error"
)

const (
	defaultMaxTurnLength = 1500
	highQualityMarker    = "high quality"
)

// disclosurePhrases are signs that a respondent pasted assistant output.
var disclosurePhrases = []string{
	"here to assist you", "here to help you", "ready to assist you", "ready to help you",

	"As an AI,", "As an ai,", "as an AI,", "as an ai,",
	"As a virtual assistant", "as a virtual assistant",
	"As a chatbot,", "as a chatbot,",
	"As a large language model,", "as a large language model",
	"As a language model", "as a language model",

	"I'm an AI", "I'm an ai", "I'm the AI", "I'm the ai",
	"I'm just an AI", "I'm just an ai", "I'm just the AI", "I'm just the ai",
	"I'm a chatbot", "I'm a ChatBot", "I'm a Chatbot",
	"I'm the chatbot", "I'm the ChatBot", "I'm the Chatbot",
	"I'm just a chatbot", "I'm just a ChatBot", "I'm just a Chatbot",
	"I'm a virtual assistant", "I'm the virtual assistant",
	"I'm just a virtual assistant", "I'm just the virtual assistant",
	"I'm actually an AI", "I'm actually an ai", "I'm actually the AI", "I'm actually the ai",
	"I'm actually the chatbot",

	"How can I assist", "how can I assist", "How I can assist", "how I can assist",

	"I don't have feelings", "I don't have emotions", "I don't have personal",
	"I don't experience", "I don't have experiences",
	"I don't have the capability", "I don't have access",

	"Users generally", "users generally", "Users typically", "users typically",
	"If a user", "if a user", "Users might", "users might", "were the user",

	"I was able to meet your needs", "I was able to assist",

	"#", "**",
}

// GateDecision is the outcome of screening one conversation.
type GateDecision struct {
	Accepted bool
	Record   models.Record
	Audit    models.AuditRow
}

// QualityGate screens conversations with cheap heuristics first and a single
// oracle judgment second.
type QualityGate struct {
	oracle        Oracle
	model         string
	maxTurnLength int
	policy        retry.Policy
	logger        *zap.Logger
}

func NewQualityGate(o Oracle, model string, maxTurnLength int, policy retry.Policy, logger *zap.Logger) *QualityGate {
	if o == nil {
		panic("oracle must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxTurnLength <= 0 {
		maxTurnLength = defaultMaxTurnLength
	}
	return &QualityGate{
		oracle:        o,
		model:         model,
		maxTurnLength: maxTurnLength,
		policy:        policy,
		logger:        logger,
	}
}

// screen returns the heuristic rejection reason, or "" when conv passes.
func (g *QualityGate) screen(conv models.Conversation) string {
	if len(conv.Session) <= 1 {
		return ReasonShortSession
	}
	if len(conv.Interview) <= 2 {
		return ReasonShortInterview
	}
	for _, t := range conv.Session {
		if t.Role != models.RoleRespondent {
			continue
		}
		if utf8.RuneCountInString(t.Content) >= g.maxTurnLength {
			return ReasonTurnTooLong
		}
		for _, p := range disclosurePhrases {
			if strings.Contains(t.Content, p) {
				return ReasonDisclosurePhrase
			}
		}
		if gomoji.ContainsEmoji(t.Content) {
			return ReasonEmoji
		}
	}
	return ""
}

// Evaluate decides whether conv enters the pipeline. Conversations without an
// id get a fresh one so that the audit row and the record share it. The only
// error returned is a context error.
func (g *QualityGate) Evaluate(ctx context.Context, conv models.Conversation) (GateDecision, error) {
	id := conv.ID
	if id == "" {
		id = uuid.NewString()
	}

	decision := GateDecision{
		Record: models.Record{
			ID:        id,
			Group:     conv.SessionModel,
			Turns:     conv.Interview,
			StartedAt: conv.InterviewStart,
			EndedAt:   conv.InterviewEnd,
		},
		Audit: models.AuditRow{
			RecordID:       id,
			SessionModel:   conv.SessionModel,
			InterviewModel: conv.InterviewModel,
			Quality:        models.QualityLow,
		},
	}

	if reason := g.screen(conv); reason != "" {
		decision.Audit.Reason = reason
		return decision, nil
	}

	resp, err := retry.Do(ctx, g.policy, func(ctx context.Context) (string, error) {
		out, err := g.oracle.Complete(ctx, oracle.Request{
			Model:  g.model,
			Prompt: qualityPrompt(conv.Session, conv.Interview),
		})
		if err != nil && !oracle.IsRetryable(err) {
			return "", retry.Permanent(err)
		}
		return out, err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return GateDecision{}, ctxErr
		}
		g.logger.Warn("quality check failed",
			zap.String("record_id", id),
			zap.Error(err))
		decision.Audit.Reason = ReasonOracleError
		return decision, nil
	}

	if !strings.Contains(resp, highQualityMarker) {
		decision.Audit.Reason = ReasonOracleLowQuality
		return decision, nil
	}

	decision.Accepted = true
	decision.Audit.Quality = models.QualityHigh
	return decision, nil
}
