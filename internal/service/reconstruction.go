package service

import (
	"github.com/godilite/insighter/internal/repository/models"
	"go.uber.org/zap"
)

// cursor is a bounds-checked read position into a frozen list.
type cursor struct {
	pos   int
	limit int
}

func (c *cursor) next() (int, bool) {
	if c.pos >= c.limit {
		return 0, false
	}
	i := c.pos
	c.pos++
	return i, true
}

func (c *cursor) remaining() int {
	return c.limit - c.pos
}

// ReconstructionResult holds per-record scores plus everything observed
// while aligning the lists.
type ReconstructionResult struct {
	Scores            []models.RecordScore
	Discrepancies     []models.Discrepancy
	Cursor            int
	ClassificationLen int
	Unconsumed        map[models.Dimension]int
	MissingFraction   map[models.Dimension]float64
}

// Reconstructor joins records, classification entries and rating lists by
// position. It keeps no state between calls.
type Reconstructor struct {
	logger *zap.Logger
}

func NewReconstructor(logger *zap.Logger) *Reconstructor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconstructor{logger: logger}
}

// Reconstruct walks records in order. Each record owns the next QAPairCount
// classification entries, and each rated entry takes the next rating of its
// dimension. Short lists degrade to missing values; nothing aborts the sweep.
// A dimension absent from ratings behaves like an empty list.
func (r *Reconstructor) Reconstruct(group string, records []models.Record, entries []models.ClassificationEntry, ratings map[models.Dimension][]models.Aggregate) ReconstructionResult {
	log := r.logger.With(zap.String("group", group))

	res := ReconstructionResult{
		Scores:            make([]models.RecordScore, 0, len(records)),
		ClassificationLen: len(entries),
		Unconsumed:        make(map[models.Dimension]int),
		MissingFraction:   make(map[models.Dimension]float64),
	}

	cursors := make(map[models.Dimension]*cursor, len(ratings))
	for d, list := range ratings {
		cursors[d] = &cursor{limit: len(list)}
	}

	report := func(disc models.Discrepancy, msg string) {
		res.Discrepancies = append(res.Discrepancies, disc)
		log.Warn(msg,
			zap.String("kind", string(disc.Kind)),
			zap.String("record_id", disc.RecordID),
			zap.Int("position", disc.Position),
			zap.String("dimension", disc.Dimension.String()))
	}

	seen := make(map[models.Dimension]bool)

	c := 0
	for _, rec := range records {
		n := rec.QAPairCount()

		available := n
		if c+n > len(entries) {
			available = max(len(entries)-c, 0)
			report(models.Discrepancy{
				Kind:     models.DiscrepancyClassificationOverrun,
				RecordID: rec.ID,
				Position: c,
			}, "record expects more classification entries than remain")
		}

		buckets := make(map[models.Dimension][]models.Aggregate)
		for j := range available {
			pos := c + j
			d := entries[pos].Dimension

			if !d.Known() {
				report(models.Discrepancy{
					Kind:      models.DiscrepancyUnknownDimension,
					RecordID:  rec.ID,
					Position:  pos,
					Dimension: d,
				}, "classification entry has unknown dimension")
				continue
			}
			if !d.Rated() {
				continue
			}
			seen[d] = true

			if cur, ok := cursors[d]; ok {
				if idx, ok := cur.next(); ok {
					buckets[d] = append(buckets[d], ratings[d][idx])
					continue
				}
			}

			buckets[d] = append(buckets[d], models.MissingAggregate())
			report(models.Discrepancy{
				Kind:      models.DiscrepancyRatingExhausted,
				RecordID:  rec.ID,
				Position:  pos,
				Dimension: d,
			}, "no rating left for classification entry")
		}

		c += n

		res.Scores = append(res.Scores, models.RecordScore{
			RecordID: rec.ID,
			Scores:   scoreBuckets(buckets),
		})
	}

	res.Cursor = c
	if c != len(entries) {
		report(models.Discrepancy{
			Kind:     models.DiscrepancyCursorMismatch,
			Position: c,
		}, "classification cursor does not match classification length")
	}

	for _, d := range models.RatedDimensions {
		if len(ratings[d]) == 0 {
			// every entry of the dimension took a missing value
			if seen[d] {
				res.MissingFraction[d] = 1
			}
			continue
		}
		cur := cursors[d]
		if left := cur.remaining(); left > 0 {
			res.Unconsumed[d] = left
			log.Warn("unconsumed ratings discarded",
				zap.String("dimension", d.String()),
				zap.Int("count", left))
		}
		res.MissingFraction[d] = missingFraction(ratings[d])
	}

	return res
}

// scoreBuckets turns per-dimension buckets into output cells: empty when no
// entry of the dimension was seen, N/A when every value was missing,
// otherwise the mean rounded to two decimals.
func scoreBuckets(buckets map[models.Dimension][]models.Aggregate) map[models.Dimension]models.Score {
	scores := make(map[models.Dimension]models.Score, len(models.RatedDimensions))
	for _, d := range models.RatedDimensions {
		bucket := buckets[d]
		if len(bucket) == 0 {
			scores[d] = models.Score{Kind: models.ScoreEmpty}
			continue
		}
		var sum float64
		var k int
		for _, a := range bucket {
			if a.OK {
				sum += a.Value
				k++
			}
		}
		if k == 0 {
			scores[d] = models.Score{Kind: models.ScoreNA}
			continue
		}
		scores[d] = models.ScoreOf(models.Round2(sum / float64(k)))
	}
	return scores
}

func missingFraction(list []models.Aggregate) float64 {
	if len(list) == 0 {
		return 0
	}
	var missing int
	for _, a := range list {
		if !a.OK {
			missing++
		}
	}
	return float64(missing) / float64(len(list))
}
