package models

import (
	"encoding/json"
	"math"
	"strconv"
)

// Trial is one oracle judgment. OK is false when the oracle was unconfident
// or could not be reached.
type Trial struct {
	Value float64
	OK    bool
}

func TrialOf(v float64) Trial { return Trial{Value: v, OK: true} }

func MissingTrial() Trial { return Trial{} }

func (t Trial) MarshalJSON() ([]byte, error) {
	if !t.OK {
		return []byte("null"), nil
	}
	return json.Marshal(t.Value)
}

func (t *Trial) UnmarshalJSON(data []byte) error {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == nil || math.IsNaN(*v) {
		*t = MissingTrial()
		return nil
	}
	*t = TrialOf(*v)
	return nil
}

// Aggregate is the quorum-reduced rating of one classification entry.
type Aggregate struct {
	Value float64
	OK    bool
}

func AggregateOf(v float64) Aggregate { return Aggregate{Value: v, OK: true} }

func MissingAggregate() Aggregate { return Aggregate{} }

func (a Aggregate) MarshalJSON() ([]byte, error) {
	return Trial(a).MarshalJSON()
}

func (a *Aggregate) UnmarshalJSON(data []byte) error {
	var t Trial
	if err := t.UnmarshalJSON(data); err != nil {
		return err
	}
	*a = Aggregate(t)
	return nil
}

// QuorumPolicy is the number of trials requested per entry and the minimum
// number of non-missing trials needed for a valid aggregate.
type QuorumPolicy struct {
	Trials    int
	Threshold int
}

// PolicyFor returns the trial policy of a rated dimension: a single trial for
// satisfaction, five trials with a quorum of three otherwise.
func PolicyFor(d Dimension) QuorumPolicy {
	if d == DimensionSatisfaction {
		return QuorumPolicy{Trials: 1, Threshold: 1}
	}
	return QuorumPolicy{Trials: 5, Threshold: 3}
}

// Aggregate returns the mean of the non-missing trials, or a missing
// aggregate when fewer than Threshold trials are present. The mean is not
// rounded.
func (p QuorumPolicy) Aggregate(trials []Trial) Aggregate {
	var sum float64
	var k int
	for _, t := range trials {
		if t.OK {
			sum += t.Value
			k++
		}
	}
	if k == 0 || k < p.Threshold {
		return MissingAggregate()
	}
	return AggregateOf(sum / float64(k))
}

type ScoreKind int

const (
	// ScoreEmpty means no question of the dimension was asked.
	ScoreEmpty ScoreKind = iota
	// ScoreNA means questions were asked but every rating was missing.
	ScoreNA
	ScoreValue
)

const NotAvailable = "N/A"

// Score is one cell of the final output table.
type Score struct {
	Kind  ScoreKind
	Value float64
}

func ScoreOf(v float64) Score { return Score{Kind: ScoreValue, Value: v} }

func (s Score) String() string {
	switch s.Kind {
	case ScoreValue:
		return strconv.FormatFloat(s.Value, 'f', 2, 64)
	case ScoreNA:
		return NotAvailable
	default:
		return ""
	}
}

// ParseScore is the inverse of Score.String. Unparsable text is N/A.
func ParseScore(s string) Score {
	switch s {
	case "":
		return Score{Kind: ScoreEmpty}
	case NotAvailable:
		return Score{Kind: ScoreNA}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return Score{Kind: ScoreNA}
	}
	return ScoreOf(v)
}

func (s Score) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Score) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	*s = ParseScore(text)
	return nil
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
