package ai

import "context"

// SuggestionInput contains the artefacts needed to propose a grade for an
// exercise attempt.
type SuggestionInput struct {
	AssignmentTitle   string
	Category          string
	Description       string
	MaxScore          float64
	AttemptScore      float64
	AttemptStatus     string
	CompletedArtifact string
	DetectedErrors    string
	TimeSpentSeconds  int
}

// SuggestionResult is the structured proposal returned by the AI suggester.
type SuggestionResult struct {
	Grade     float64                `json:"grade"`
	Rationale string                 `json:"rationale"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Raw       map[string]interface{} `json:"raw,omitempty"`
}

// Suggester describes an AI model capable of proposing grades. Proposals are
// advisory: the teacher's decision is the only one that lands on a submission.
type Suggester interface {
	Suggest(ctx context.Context, input SuggestionInput) (SuggestionResult, error)
}
