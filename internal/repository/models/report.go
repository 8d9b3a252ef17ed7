package models

type DiscrepancyKind string

const (
	// DiscrepancyClassificationOverrun: a record expects more entries than the
	// classification list still holds.
	DiscrepancyClassificationOverrun DiscrepancyKind = "classification_overrun"
	// DiscrepancyRatingExhausted: an entry's dimension has no rating left.
	DiscrepancyRatingExhausted DiscrepancyKind = "rating_exhausted"
	// DiscrepancyUnknownDimension: an entry carries a tag outside the vocabulary.
	DiscrepancyUnknownDimension DiscrepancyKind = "unknown_dimension"
	// DiscrepancyCursorMismatch: the final classification cursor differs from
	// the classification list length.
	DiscrepancyCursorMismatch DiscrepancyKind = "cursor_mismatch"
)

type Discrepancy struct {
	Kind      DiscrepancyKind `json:"kind"`
	RecordID  string          `json:"record_id,omitempty"`
	Position  int             `json:"position"`
	Dimension Dimension       `json:"dimension,omitempty"`
}

type GroupStatus string

const (
	GroupCompleted GroupStatus = "completed"
	GroupFailed    GroupStatus = "failed"
)

// InterviewStats summarizes interview interaction volume for one group.
type InterviewStats struct {
	Interviews           int     `json:"interviews"`
	AvgRounds            float64 `json:"average_rounds"`
	AvgUserTokens        float64 `json:"average_user_tokens"`
	AvgAssistantTokens   float64 `json:"average_assistant_tokens"`
	AvgEngagementSeconds float64 `json:"average_engagement_time"`
}

// GroupReport is the per model-group outcome of a run.
type GroupReport struct {
	Group             string                  `json:"group"`
	Status            GroupStatus             `json:"status"`
	Error             string                  `json:"error,omitempty"`
	Records           int                     `json:"records"`
	Entries           int                     `json:"entries"`
	Cursor            int                     `json:"cursor"`
	Discrepancies     int                     `json:"discrepancies"`
	DiscrepancyKinds  map[DiscrepancyKind]int `json:"discrepancy_kinds,omitempty"`
	MissingFraction   map[Dimension]float64   `json:"missing_fraction,omitempty"`
	UnconsumedRatings map[Dimension]int       `json:"unconsumed_ratings,omitempty"`
	Stats             InterviewStats          `json:"stats"`
}

type RunReport struct {
	Accepted int           `json:"accepted"`
	Rejected int           `json:"rejected"`
	Groups   []GroupReport `json:"groups"`
	Audit    []AuditRow    `json:"-"`
}
