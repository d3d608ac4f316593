// Package answer composes the grounded prompt from retrieved chunks and asks the chat
// model for the reply.
package answer

import (
	"strings"

	"github.com/hyperjump/docuchat/internal/models"
)

// FallbackSentence is what the model is told to answer when the context lacks the answer.
const FallbackSentence = "The information is not available in the document."

// ContextSeparator joins retrieved chunks inside the context block.
const ContextSeparator = "\n\n"

// Template is the prompt layout. Render emits the slots in a fixed order: persona,
// constraint, labelled context, labelled question, answer cue.
type Template struct {
	Persona       string
	Constraint    string
	ContextLabel  string
	QuestionLabel string
	AnswerCue     string
}

// DefaultTemplate returns the prompt used for document question answering.
func DefaultTemplate() Template {
	return Template{
		Persona: "You are a helpful assistant that answers questions about the user's uploaded documents.",
		Constraint: "Answer the question as detailed as possible using only the provided context. " +
			"Make sure to provide all the details. If the answer is not in the provided context, reply exactly: \"" +
			FallbackSentence + "\" Do not provide a wrong answer.",
		ContextLabel:  "Context:",
		QuestionLabel: "Question:",
		AnswerCue:     "Answer:",
	}
}

// Render fills the template with context and the question, verbatim.
func (t Template) Render(context, question string) string {
	var sb strings.Builder
	sb.WriteString(t.Persona)
	sb.WriteString("\n")
	sb.WriteString(t.Constraint)
	sb.WriteString("\n\n")
	sb.WriteString(t.ContextLabel)
	sb.WriteString("\n")
	sb.WriteString(context)
	sb.WriteString("\n\n")
	sb.WriteString(t.QuestionLabel)
	sb.WriteString("\n")
	sb.WriteString(question)
	sb.WriteString("\n\n")
	sb.WriteString(t.AnswerCue)
	return sb.String()
}

// BuildContext joins the retrieved chunk contents in retrieval order.
func BuildContext(retrieved *models.RetrievalResult) string {
	return strings.Join(retrieved.Contents(), ContextSeparator)
}
