package models

import (
	"time"
)

// MessageRole identifies the author of a chat message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is a stored turn of a conversation
type ChatMessage struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	CodeSnippet    string      `json:"code_snippet,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ChatRequest represents a student's message to the tutor
type ChatRequest struct {
	UserID         string  `json:"user_id"`
	Message        string  `json:"message"`
	CodeSnippet    *string `json:"code_snippet,omitempty"`
	ConversationID string  `json:"conversation_id,omitempty"`
}

// Code returns the snippet or "" when none was sent
func (r *ChatRequest) Code() string {
	if r.CodeSnippet == nil {
		return ""
	}
	return *r.CodeSnippet
}

// TutorResponse is the tutor's answer to a chat message
type TutorResponse struct {
	Reply             string    `json:"reply"`
	Explanation       string    `json:"explanation,omitempty"`
	ConfidenceScore   float64   `json:"confidence_score"`
	CodeSuggestion    *string   `json:"code_suggestion,omitempty"`
	ErrorType         ErrorType `json:"error_type"`
	LearningObjective string    `json:"learning_objective"`
}

// ExplainRequest asks for an attribution of a prediction over a snippet
type ExplainRequest struct {
	CodeSnippet     string `json:"code_snippet"`
	ModelPrediction string `json:"model_prediction"`
}

// Explanation is a SHAP/LIME-shaped attribution of a prediction
type Explanation struct {
	HighlightedLines  []int              `json:"highlighted_lines"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
	ExplanationText   string             `json:"explanation_text"`
}
