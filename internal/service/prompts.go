package service

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/godilite/insighter/internal/repository/models"
)

const classificationIntro = "A group of users have been interviewed on their experience using a ChatBot. " +
	"The interviewer's messages (questions) are marked with 'role': 'assistant', " +
	"and the user's responses are marked with 'role': 'user'. " +
	"Classify the last interview question in the chat history based on these types:\n"

const qualityCriteria = `
If any of the following criteria is observed in the input session or interview, this data point is of low quality:
1. If the user used a chatbot to complete the chatbot
2. If the user used a chatbot to complete the interview
3. If the user's responses to the chatbot did not make logical sense (e.g., did not understand the task, responded randomly, etc.)
4. If the user's responses to the interview did not make logical sense (e.g., did not understand the task, responded randomly, etc.)

Predict if the following data point is low quality or not and no need to tell me why.
# First in a new line predict if the passage is of low quality of high quality. Just say "low quality" or "high quality", nothing else in this line.
`

var classificationLabels = map[models.Dimension]string{
	models.DimensionUnderstanding:   "Question asking the user about how well the ChatBot understood the user's question or request.",
	models.DimensionNeedFulfillment: "Question asking the user about how well the ChatBot met their needs or solved their problems.",
	models.DimensionCredibility:     "Question asking the user about how well the ChatBot provided coherent, factual, and relevant information.",
	models.DimensionSatisfaction:    "Question asking the user about how they would rate their satisfaction.",
	models.DimensionImprovement:     "Question asking the user about how the ChatBot can be improved.",
	models.DimensionGeneral:         "General question asking the user about what they think about the ChatBot, overall experience, feelings",
	models.DimensionOther:           "Other questions, are you ready questions, thanking the user",
}

func chatHistory(turns []models.Turn) string {
	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

// classificationPrompt asks for the tag of the last question in prefix.
func classificationPrompt(prefix []models.Turn) string {
	var b strings.Builder
	b.WriteString(classificationIntro)
	for _, d := range append(slices.Clone(models.Dimensions), models.DimensionOther) {
		fmt.Fprintf(&b, "%s: %s\n", d, classificationLabels[d])
	}
	b.WriteString("Chat history:\n")
	b.WriteString(chatHistory(prefix))
	b.WriteString("\n\nOutput the class type and nothing else.")
	return b.String()
}

func ratingPrompt(rubric models.Rubric, d models.Dimension, question, answer string) string {
	return fmt.Sprintf(
		"Based on the following user response about %s, provide a rating on a scale of 1-3. "+
			"Only provide the numeric rating without any explanation. "+
			"If you are not confident about the rating criteria, respond 'NaN'.\n\n"+
			"Question: %s\nAnswer: %s",
		rubric.Description(d), question, answer)
}

func qualityPrompt(session, interview []models.Turn) string {
	s, _ := json.Marshal(session)
	i, _ := json.Marshal(interview)
	return qualityCriteria + fmt.Sprintf("\nsession:\n%s\n\nInterview:\n%s\n", s, i)
}
