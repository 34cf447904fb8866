// Package tutor answers student chat messages and explains predictions.
//
// The tutor classifies a code snippet into an error category with an ordered
// keyword table and returns a canned response for that category. Explanations
// mimic the shape of a SHAP/LIME attribution without computing one.
package tutor

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/group03/phychat-backend/internal/chance"
	"github.com/group03/phychat-backend/internal/models"
)

// Confidence bounds for a tutor reply
const (
	MinConfidence = 0.82
	MaxConfidence = 0.95
)

// ErrModelNotLoaded is returned when mock mode is off and no model is available
var ErrModelNotLoaded = errors.New("tutor model not loaded")

// Engine produces tutor replies and explanations
type Engine struct {
	useMock bool
	rng     chance.Source
}

// NewEngine creates a tutor engine. With useMock false every reply fails with
// ErrModelNotLoaded until a real model is wired in.
func NewEngine(useMock bool, rng chance.Source) *Engine {
	if !useMock {
		slog.Warn("mock tutor disabled and no model is available; chat replies will fail")
	}
	return &Engine{useMock: useMock, rng: rng}
}

// UsesMock reports whether replies come from the canned response table
func (e *Engine) UsesMock() bool {
	return e.useMock
}

// Reply answers a message about an optional code snippet. history is accepted
// but does not influence the reply.
func (e *Engine) Reply(message, code string, history []models.ChatMessage) (*models.TutorResponse, error) {
	if !e.useMock {
		return nil, ErrModelNotLoaded
	}

	errorType := Classify(code)
	bundle := bundleFor(errorType)

	slog.Debug("tutor reply",
		"error_type", errorType,
		"message_len", len(message),
		"history", len(history),
	)

	suggestion := bundle.codeSuggestion
	return &models.TutorResponse{
		Reply:             bundle.reply,
		Explanation:       bundle.explanation,
		ConfidenceScore:   chance.Uniform(e.rng, MinConfidence, MaxConfidence),
		CodeSuggestion:    &suggestion,
		ErrorType:         errorType,
		LearningObjective: bundle.learningObjective,
	}, nil
}

// Explain returns the lines that most influenced prediction. It is a pure
// function of code; prediction is not consulted.
func (e *Engine) Explain(code, prediction string) *models.Explanation {
	return &models.Explanation{
		HighlightedLines: HighlightLines(code),
		FeatureImportance: map[string]float64{
			"loop_range":     0.85,
			"list_access":    0.72,
			"variable_usage": 0.45,
		},
		ExplanationText: "The error is most influenced by the loop range and list access pattern.",
	}
}

// Classify returns the first error category whose triggers occur in code.
// Matching is case-insensitive; no match or no code yields LogicError.
func Classify(code string) models.ErrorType {
	if code == "" {
		return models.LogicError
	}

	lower := strings.ToLower(code)
	for _, rule := range classificationRules {
		for _, trigger := range rule.triggers {
			if strings.Contains(lower, trigger) {
				return rule.errorType
			}
		}
	}
	return models.LogicError
}

// maxHighlighted caps the number of lines an explanation points at
const maxHighlighted = 3

var highlightTriggers = []string{"range", "for", "if", "["}

// HighlightLines returns the 1-indexed lines containing a highlight trigger,
// ascending, at most three. The result is never nil.
func HighlightLines(code string) []int {
	lines := []int{}
	if code == "" {
		return lines
	}

	for i, line := range strings.Split(code, "\n") {
		lower := strings.ToLower(line)
		for _, trigger := range highlightTriggers {
			if strings.Contains(lower, trigger) {
				lines = append(lines, i+1)
				break
			}
		}
		if len(lines) == maxHighlighted {
			break
		}
	}
	return lines
}
