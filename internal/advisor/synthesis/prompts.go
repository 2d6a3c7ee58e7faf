package synthesis

import (
	"fmt"
	"strings"

	"academic-advisor/internal/models"
)

const (
	chatSystemPrompt = "You are a friendly university academic advisor. Answer briefly and helpfully. " +
		"Reply in the language of the question."

	ragSystemPrompt = "You are a university academic advisor. Answer only from the numbered documents provided. " +
		"If they do not contain the answer, say you don't know. Reply in the language of the question."

	phraseSystemPrompt = "You are a university academic advisor. Rewrite the facts as a short answer to the student's " +
		"question. Do not change, add or drop any number or course code."
)

func buildRAGPrompt(question string, chunks []models.Chunk) string {
	var b strings.Builder
	b.WriteString("Documents:\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, strings.TrimSpace(c.Text))
	}
	fmt.Fprintf(&b, "\nQuestion: %s", question)
	return b.String()
}
