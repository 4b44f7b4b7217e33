package service

import (
	"context"

	"github.com/noah-isme/classboard-go-api/internal/models"
	"github.com/noah-isme/classboard-go-api/pkg/ai"
)

type aiGradeSuggester struct {
	suggester ai.Suggester
}

// NewAIGradeSuggester adapts an ai.Suggester into the advisory grading hook.
func NewAIGradeSuggester(suggester ai.Suggester) GradeSuggester {
	return &aiGradeSuggester{suggester: suggester}
}

func (a *aiGradeSuggester) Suggest(ctx context.Context, assignment models.Assignment, attempt models.Attempt) (float64, error) {
	result, err := a.suggester.Suggest(ctx, ai.SuggestionInput{
		AssignmentTitle:   assignment.Title,
		Category:          string(assignment.Category),
		Description:       assignment.Description,
		MaxScore:          assignment.MaxScore,
		AttemptScore:      attempt.Score,
		AttemptStatus:     attempt.Status,
		CompletedArtifact: attempt.CompletedArtifact,
		DetectedErrors:    string(attempt.DetectedErrors),
		TimeSpentSeconds:  attempt.TimeSpentSeconds,
	})
	if err != nil {
		return 0, err
	}

	return result.Grade, nil
}
