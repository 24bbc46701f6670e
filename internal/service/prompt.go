package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloo-solutions/kbchat/internal/domain"
)

// BuildSystemPrompt returns the grounding instructions sent with every
// generation request.
func BuildSystemPrompt(assistantName, productName string) string {
	return strings.Join([]string{
		fmt.Sprintf("You are %s, %s's helpful AI assistant.", assistantName, productName),
		fmt.Sprintf("Use the Provided Context to answer questions about %s's platform, features, and services.", productName),
		"If the context contains relevant information, provide a helpful and accurate answer.",
		"If the context doesn't contain enough information to answer the question, reply: " + domain.RefusalAnswer,
		"Be conversational, helpful, and concise. When applicable, cite sources as [1], [2] using the provided indices.",
		"If you find partial information that might be helpful, share what you know and suggest contacting support for more details.",
	}, "\n")
}

// formatContext renders kept chunks as numbered passages, 1-based, in rank order.
func formatContext(kept []*domain.RetrievalCandidate) string {
	passages := make([]string, 0, len(kept))
	for i, c := range kept {
		passages = append(passages, fmt.Sprintf("[%d] %s — %s %s", i+1, c.Content, c.Source, c.Section))
	}
	return strings.Join(passages, "\n\n")
}

func buildUserPrompt(message string, profile domain.CallerProfile, kept []*domain.RetrievalCandidate) string {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		profileJSON = []byte("{}")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "User: %s\n\n", message)
	fmt.Fprintf(&b, "User Profile (tone only): %s\n\n", profileJSON)
	fmt.Fprintf(&b, "Provided Context:\n%s\n\n", formatContext(kept))
	b.WriteString(`Please respond in JSON format with an "answer" field.`)
	return b.String()
}
