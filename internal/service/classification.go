package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/godilite/insighter/internal/repository/models"
	"github.com/godilite/insighter/pkg/oracle"
	"go.uber.org/zap"
)

// ParseDimension returns the first vocabulary tag found in text, scanning
// RQ1 to RQ6 in order, or OTHER when none is present.
func ParseDimension(text string) models.Dimension {
	for _, d := range models.Dimensions {
		if strings.Contains(text, string(d)) {
			return d
		}
	}
	return models.DimensionOther
}

// Classifier tags every question/answer pair of a group's records.
type Classifier struct {
	oracle Oracle
	model  string
	rubric models.Rubric
	logger *zap.Logger
}

func NewClassifier(o Oracle, model string, rubric models.Rubric, logger *zap.Logger) *Classifier {
	if o == nil {
		panic("oracle must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{oracle: o, model: model, rubric: rubric, logger: logger}
}

// Classify returns one entry per QA pair, in record order then pair order.
// Oracle calls are not retried: the first failure aborts the whole list,
// since a gap would shift every later position.
func (c *Classifier) Classify(ctx context.Context, records []models.Record) ([]models.ClassificationEntry, error) {
	var entries []models.ClassificationEntry

	for _, rec := range records {
		for pair, i := range models.QAPairIndices(rec.Turns) {
			resp, err := c.oracle.Complete(ctx, oracle.Request{
				Model:  c.model,
				System: c.rubric.System,
				Prompt: classificationPrompt(rec.Turns[:i+2]),
			})
			if err != nil {
				return nil, fmt.Errorf("%w: record %s pair %d: %v", ErrClassificationFailed, rec.ID, pair, err)
			}

			d := ParseDimension(resp)
			entries = append(entries, models.ClassificationEntry{
				Question:  rec.Turns[i].Content,
				Answer:    rec.Turns[i+1].Content,
				Dimension: d,
			})
		}
	}

	c.logger.Debug("classified records",
		zap.Int("records", len(records)),
		zap.Int("entries", len(entries)))

	return entries, nil
}
