package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/godilite/insighter/internal/repository/models"
	"github.com/godilite/insighter/pkg/oracle"
	"github.com/godilite/insighter/pkg/retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minRating = 1
	maxRating = 3
)

var nanPattern = regexp.MustCompile(`(?i)\bnan\b`)

// ratingTokens splits text on spaces and punctuation, keeping '.', '-' and
// '+' so that decimals, signs and ranges like "1-3" stay in one token.
func ratingTokens(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		if r == '.' || r == '-' || r == '+' {
			return false
		}
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

// ParseRating extracts a trial from an oracle response. Only standalone
// numbers count; ranges and words containing digits are ignored. The trial
// is missing when the text says NaN, carries no number, carries numbers that
// disagree or carries a value outside 1..3.
func ParseRating(text string) models.Trial {
	if nanPattern.MatchString(text) {
		return models.MissingTrial()
	}

	var (
		value float64
		found bool
	)
	for _, tok := range ratingTokens(text) {
		tok = strings.TrimRight(tok, ".")
		if tok == "" || !strings.ContainsAny(tok, "0123456789") {
			continue
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			continue
		}
		if found && v != value {
			return models.MissingTrial()
		}
		value, found = v, true
	}

	if !found || math.IsNaN(value) || value < minRating || value > maxRating {
		return models.MissingTrial()
	}
	return models.TrialOf(value)
}

// RatingEngine runs the rating trials of classified entries.
type RatingEngine struct {
	oracle     Oracle
	model      string
	rubric     models.Rubric
	policy     retry.Policy
	entryLimit int
	logger     *zap.Logger
}

func NewRatingEngine(o Oracle, model string, rubric models.Rubric, policy retry.Policy, entryLimit int, logger *zap.Logger) *RatingEngine {
	if o == nil {
		panic("oracle must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if entryLimit < 1 {
		entryLimit = 1
	}
	return &RatingEngine{
		oracle:     o,
		model:      model,
		rubric:     rubric,
		policy:     policy,
		entryLimit: entryLimit,
		logger:     logger,
	}
}

type ratingJob struct {
	dim   models.Dimension
	index int
	entry models.ClassificationEntry
}

// Rate returns, per rated dimension, one row per entry carrying that
// dimension, in classification order. Entries are rated concurrently and
// written back by position. Oracle failures only make trials missing; the
// returned error is set when ctx ends.
func (e *RatingEngine) Rate(ctx context.Context, entries []models.ClassificationEntry) (map[models.Dimension][]models.RatingRow, error) {
	out := make(map[models.Dimension][]models.RatingRow)
	var jobs []ratingJob

	for _, entry := range entries {
		if !entry.Dimension.Rated() {
			continue
		}
		d := entry.Dimension
		jobs = append(jobs, ratingJob{dim: d, index: len(out[d]), entry: entry})
		out[d] = append(out[d], models.RatingRow{Question: entry.Question, Answer: entry.Answer})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.entryLimit)

	for _, job := range jobs {
		g.Go(func() error {
			row, err := e.rateEntry(gctx, job.dim, job.entry)
			if err != nil {
				return err
			}
			out[job.dim][job.index] = row
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRatingFailed, err)
	}

	for d, rows := range out {
		e.logger.Debug("rated dimension",
			zap.String("dimension", d.String()),
			zap.Int("entries", len(rows)))
	}
	return out, nil
}

func (e *RatingEngine) rateEntry(ctx context.Context, d models.Dimension, entry models.ClassificationEntry) (models.RatingRow, error) {
	policy := models.PolicyFor(d)
	trials := make([]models.Trial, policy.Trials)
	prompt := ratingPrompt(e.rubric, d, entry.Question, entry.Answer)

	g, gctx := errgroup.WithContext(ctx)
	for i := range trials {
		g.Go(func() error {
			t, err := e.trial(gctx, prompt)
			if err != nil {
				return err
			}
			trials[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.RatingRow{}, err
	}

	return models.RatingRow{
		Question: entry.Question,
		Answer:   entry.Answer,
		Rating:   policy.Aggregate(trials),
		Trials:   trials,
	}, nil
}

// trial performs one judged oracle call. Only context errors are returned;
// everything else degrades to a missing trial.
func (e *RatingEngine) trial(ctx context.Context, prompt string) (models.Trial, error) {
	resp, err := retry.Do(ctx, e.policy, func(ctx context.Context) (string, error) {
		out, err := e.oracle.Complete(ctx, oracle.Request{
			Model:  e.model,
			System: e.rubric.System,
			Prompt: prompt,
		})
		if err != nil && !oracle.IsRetryable(err) {
			return "", retry.Permanent(err)
		}
		return out, err
	}, retry.WithOnRetry(func(attempt int, err error, wait time.Duration) {
		e.logger.Debug("retrying rating call",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}))

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.Trial{}, ctxErr
		}
		level := zap.WarnLevel
		if errors.Is(err, retry.ErrExhausted) {
			level = zap.ErrorLevel
		}
		e.logger.Log(level, "rating trial failed, treating as missing", zap.Error(err))
		return models.MissingTrial(), nil
	}
	return ParseRating(resp), nil
}
