package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "classboard",
		Subsystem: "ai",
		Name:      "suggestion_duration_seconds",
		Help:      "Duration of AI grade suggestion requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classboard",
		Subsystem: "ai",
		Name:      "suggestion_failures_total",
		Help:      "Number of AI grade suggestion failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI suggester.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAISuggester implements Suggester against the OpenAI chat completion API.
type OpenAISuggester struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAISuggester builds a new suggester using the provided configuration.
func NewOpenAISuggester(cfg OpenAIConfig) (*OpenAISuggester, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 256
	}

	tracer := otel.Tracer("github.com/noah-isme/classboard-go-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAISuggester{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Suggest sends the attempt to OpenAI and parses the proposed grade.
func (s *OpenAISuggester) Suggest(parent context.Context, input SuggestionInput) (SuggestionResult, error) {
	ctx, span := s.tracer.Start(parent, "openai.suggest", trace.WithAttributes(
		attribute.String("model", s.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: suggesterSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildSuggestionPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := s.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	aiDuration.WithLabelValues(s.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		aiFailures.WithLabelValues(s.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SuggestionResult{}, fmt.Errorf("openai suggest: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		aiFailures.WithLabelValues(s.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SuggestionResult{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := parseSuggestionResponse(content, input.MaxScore)
	if err != nil {
		aiFailures.WithLabelValues(s.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SuggestionResult{}, err
	}

	result.Raw = map[string]interface{}{
		"usage": resp.Usage,
	}

	return result, nil
}

func suggesterSystemPrompt() string {
	return "You are a teaching assistant for a language school. Given an exercise attempt, respond with a JSON object containing" +
		" grade (a number between 0 and the stated maximum score), rationale, and an optional details object breaking down the g" +
		"rade. Weigh the automatic score, detected errors, and completion status."
}

func buildSuggestionPrompt(input SuggestionInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Assignment\n")
	builder.WriteString(input.AssignmentTitle)
	builder.WriteString("\n\n## Category\n")
	builder.WriteString(input.Category)
	if input.Description != "" {
		builder.WriteString("\n\n## Description\n")
		builder.WriteString(input.Description)
	}
	builder.WriteString(fmt.Sprintf("\n\n## Maximum Score\n%.2f", input.MaxScore))
	builder.WriteString(fmt.Sprintf("\n\n## Automatic Score\n%.2f", input.AttemptScore))
	builder.WriteString("\n\n## Completion Status\n")
	builder.WriteString(input.AttemptStatus)
	if input.CompletedArtifact != "" {
		builder.WriteString("\n\n## Student Work\n")
		builder.WriteString(input.CompletedArtifact)
	}
	if input.DetectedErrors != "" {
		builder.WriteString("\n\n## Detected Errors\n")
		builder.WriteString(input.DetectedErrors)
	}
	builder.WriteString(fmt.Sprintf("\n\n## Time Spent (seconds)\n%d", input.TimeSpentSeconds))
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseSuggestionResponse(content string, maxScore float64) (SuggestionResult, error) {
	type payload struct {
		Grade     float64                `json:"grade"`
		Rationale string                 `json:"rationale"`
		Details   map[string]interface{} `json:"details"`
	}

	var data payload
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return SuggestionResult{}, fmt.Errorf("parse suggestion json: %w", err)
	}

	if data.Grade < 0 {
		data.Grade = 0
	}
	if maxScore > 0 && data.Grade > maxScore {
		data.Grade = maxScore
	}

	return SuggestionResult{
		Grade:     data.Grade,
		Rationale: data.Rationale,
		Details:   data.Details,
	}, nil
}
