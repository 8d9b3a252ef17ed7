package models

type Dimension string

const (
	DimensionUnderstanding   Dimension = "RQ1"
	DimensionNeedFulfillment Dimension = "RQ2"
	DimensionCredibility     Dimension = "RQ3"
	DimensionSatisfaction    Dimension = "RQ4"
	DimensionImprovement     Dimension = "RQ5"
	DimensionGeneral         Dimension = "RQ6"
	DimensionOther           Dimension = "WILD"
)

// Dimensions is the classification vocabulary in the order tags are
// searched for in an oracle response.
var Dimensions = []Dimension{
	DimensionUnderstanding,
	DimensionNeedFulfillment,
	DimensionCredibility,
	DimensionSatisfaction,
	DimensionImprovement,
	DimensionGeneral,
}

// RatedDimensions lists the dimensions that receive ratings, in output
// column order.
var RatedDimensions = []Dimension{
	DimensionUnderstanding,
	DimensionNeedFulfillment,
	DimensionCredibility,
	DimensionSatisfaction,
	DimensionGeneral,
}

var dimensionNames = map[Dimension]string{
	DimensionUnderstanding:   "understanding",
	DimensionNeedFulfillment: "need-fulfillment",
	DimensionCredibility:     "credibility",
	DimensionSatisfaction:    "satisfaction",
	DimensionImprovement:     "improvement",
	DimensionGeneral:         "general",
	DimensionOther:           "other",
}

func (d Dimension) String() string { return string(d) }

// Name returns the human readable label of d, or the raw tag if unknown.
func (d Dimension) Name() string {
	if n, ok := dimensionNames[d]; ok {
		return n
	}
	return string(d)
}

// Known reports whether d is part of the vocabulary, OTHER included.
func (d Dimension) Known() bool {
	_, ok := dimensionNames[d]
	return ok
}

// Rated reports whether entries tagged d receive ratings.
func (d Dimension) Rated() bool {
	return d.Known() && d != DimensionImprovement && d != DimensionOther
}

// Rubric holds the text used to build classification and rating prompts.
type Rubric struct {
	System       string               `yaml:"system"`
	Descriptions map[Dimension]string `yaml:"dimensions"`
}

// Description returns the rubric description of d with a generic fallback.
func (r Rubric) Description(d Dimension) string {
	if desc, ok := r.Descriptions[d]; ok && desc != "" {
		return desc
	}
	return "this aspect"
}

func DefaultRubric() Rubric {
	return Rubric{
		System: "You are a UX researcher. You are an expert at summarizing insights and themes from user experience interviews.",
		Descriptions: map[Dimension]string{
			DimensionUnderstanding:   "how well the ChatBot understood the user's question or request",
			DimensionNeedFulfillment: "how well the ChatBot met their needs or solved their problems",
			DimensionCredibility:     "how well the ChatBot provided coherent, factual, and relevant information",
			DimensionSatisfaction:    "their satisfaction rating",
			DimensionImprovement:     "how the ChatBot can be improved",
			DimensionGeneral:         "what the user thinks and feels about the ChatBot overall",
		},
	}
}
