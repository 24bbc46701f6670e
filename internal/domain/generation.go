package domain

// GenerationRequest is a single prompt sent to a text generation model.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	// JSONOutput asks the model for a single JSON object.
	JSONOutput bool
}
