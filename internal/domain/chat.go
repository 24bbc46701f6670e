package domain

import "strings"

// RefusalAnswer is the canonical reply when the knowledge base cannot ground an answer.
const RefusalAnswer = "I don't have that information."

// Intent is the conversational category of a user message.
type Intent string

const (
	IntentGreeting Intent = "greeting"
	IntentFarewell Intent = "farewell"
	IntentThanks   Intent = "thanks"
	IntentHelp     Intent = "help"
	IntentNone     Intent = "none"
)

// CallerProfile carries per-request caller attributes. They shape tone only
// and never affect retrieval.
type CallerProfile struct {
	Role string `json:"role,omitempty"`
	Plan string `json:"plan,omitempty"`
	Name string `json:"-"`
}

// DisplayName is the name used to address the caller in canned replies.
// Falls back to the role when no explicit name was given.
func (p CallerProfile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Role
}

// ChatResult is the outcome of a single chat request.
type ChatResult struct {
	Answer     string   `json:"answer"`
	Refusal    bool     `json:"refusal"`
	Citations  []int    `json:"citations"`
	ChunksUsed []string `json:"chunks_used"`
	Greeting   bool     `json:"greeting"`
}

// NewRefusalResult builds the result returned when no grounding was found.
func NewRefusalResult() *ChatResult {
	return &ChatResult{
		Answer:     RefusalAnswer,
		Refusal:    true,
		Citations:  []int{},
		ChunksUsed: []string{},
	}
}

// NewGreetingResult builds the result for a guardrail short-circuit.
func NewGreetingResult(answer string) *ChatResult {
	return &ChatResult{
		Answer:     answer,
		Citations:  []int{},
		ChunksUsed: []string{},
		Greeting:   true,
	}
}

// IsRefusal reports whether an answer contains the canonical refusal phrase,
// ignoring case.
func IsRefusal(answer string) bool {
	return strings.Contains(strings.ToLower(answer), strings.ToLower(RefusalAnswer))
}
