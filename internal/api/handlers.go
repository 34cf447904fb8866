package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/group03/phychat-backend/internal/models"
	"github.com/group03/phychat-backend/internal/tutor"
)

// Version is reported by the root endpoint
const Version = "1.0.0"

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// maxBodyBytes caps every JSON request body
const maxBodyBytes = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

// decodeJSON reads a size-limited JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errBodyTooLarge
	}
	return err
}

// respondDecodeError answers a body that could not be decoded
func respondDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, "request_too_large",
			fmt.Sprintf("request body exceeds %d bytes", maxBodyBytes))
		return
	}
	respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
}

// Service handlers

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "PhyChat Backend API",
		"status":  "running",
		"version": Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"message":   "PhyChat Backend is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.readiness == nil {
		respondJSON(w, http.StatusOK, map[string]string{
			"status": "ready",
		})
		return
	}

	ready, statuses := s.readiness.Ready()
	if !ready {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":       "not_ready",
			"dependencies": statuses,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ready",
		"dependencies": statuses,
	})
}

// Chat handlers

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "user_id is required")
		return
	}

	resp, err := s.reply(r.Context(), &req)
	if err != nil {
		if errors.Is(err, tutor.ErrModelNotLoaded) {
			respondError(w, http.StatusServiceUnavailable, "model_unavailable", "tutor model is not loaded")
			return
		}
		slog.Error("failed to generate tutor reply", "error", err, "user_id", req.UserID)
		respondError(w, http.StatusInternalServerError, "internal_error", "AI service error")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// reply runs one chat turn: history lookup, tutor reply, then saving both
// messages. History failures are logged and never fail the turn.
func (s *Server) reply(ctx context.Context, req *models.ChatRequest) (*models.TutorResponse, error) {
	history := s.conversationHistory(ctx, req.ConversationID)

	resp, err := s.tutor.Reply(req.Message, req.Code(), history)
	if err != nil {
		return nil, err
	}
	s.metrics.TutorReply(string(resp.ErrorType))

	s.saveTurn(ctx, req, resp)
	return resp, nil
}

func (s *Server) conversationHistory(ctx context.Context, conversationID string) []models.ChatMessage {
	if conversationID == "" || s.history == nil {
		return nil
	}

	history, err := s.history.GetConversationHistory(ctx, conversationID, s.config.History.Limit)
	if err != nil {
		slog.Warn("conversation history unavailable", "conversation_id", conversationID, "error", err)
		s.metrics.StoreFailure("history", "get")
		return nil
	}
	return history
}

func (s *Server) saveTurn(ctx context.Context, req *models.ChatRequest, resp *models.TutorResponse) {
	if req.ConversationID == "" || s.history == nil {
		return
	}

	suggestion := ""
	if resp.CodeSuggestion != nil {
		suggestion = *resp.CodeSuggestion
	}

	turn := []*models.ChatMessage{
		{ConversationID: req.ConversationID, Role: models.RoleUser, Content: req.Message, CodeSnippet: req.Code()},
		{ConversationID: req.ConversationID, Role: models.RoleAssistant, Content: resp.Reply, CodeSnippet: suggestion},
	}
	for _, msg := range turn {
		if err := s.history.SaveMessage(ctx, msg); err != nil {
			slog.Warn("failed to save chat message",
				"conversation_id", req.ConversationID,
				"role", msg.Role,
				"error", err,
			)
			s.metrics.StoreFailure("history", "save")
			return
		}
	}
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req models.ExplainRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, s.tutor.Explain(req.CodeSnippet, req.ModelPrediction))
}

// Recommendation handlers

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "user_id is required")
		return
	}

	respondJSON(w, http.StatusOK, s.recommend(r.Context(), req.UserID))
}

func (s *Server) handleRecommendFor(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if studentID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "student id is required")
		return
	}

	respondJSON(w, http.StatusOK, s.recommend(r.Context(), studentID))
}

func (s *Server) recommend(ctx context.Context, studentID string) *models.Recommendation {
	rec := s.recommender.Recommend(ctx, studentID)
	s.metrics.Recommendation(string(rec.Difficulty))

	if rec.IsTerminal() {
		slog.Info("student completed every challenge", "student_id", studentID)
		return rec
	}

	slog.Info("recommendation served",
		"student_id", studentID,
		"challenge_id", rec.ChallengeID,
		"difficulty", rec.Difficulty,
	)
	return rec
}

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	challenges := s.recommender.Challenges(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"challenges": challenges,
		"total":      len(challenges),
	})
}

// Progress handlers

func (s *Server) handleProgressUpdate(w http.ResponseWriter, r *http.Request) {
	outcome, err := parseOutcome(w, r)
	if errors.Is(err, errBodyTooLarge) {
		respondDecodeError(w, err)
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if outcome.StudentID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "user_id is required")
		return
	}
	if outcome.ChallengeID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "challenge_id is required")
		return
	}
	if outcome.TimeSpent < 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "time_spent must not be negative")
		return
	}

	ack := s.recommender.RecordOutcome(r.Context(), *outcome)
	s.metrics.Outcome(string(ack.Status), outcome.TimeSpent)

	resp := models.ProgressUpdateResponse{
		Status:   "success",
		Message:  "Progress updated successfully",
		Recorded: ack.Recorded,
		AckID:    ack.ID,
	}
	if !ack.Recorded {
		resp.Status = "degraded"
		resp.Message = "Progress accepted but could not be stored"
	}

	respondJSON(w, http.StatusOK, resp)
}

// parseOutcome reads an outcome from a JSON body, or from query parameters
// when the body is empty
func parseOutcome(w http.ResponseWriter, r *http.Request) (*models.Outcome, error) {
	var outcome models.Outcome

	err := decodeJSON(w, r, &outcome)
	if err == nil {
		return &outcome, nil
	}
	if errors.Is(err, errBodyTooLarge) {
		return nil, err
	}
	if !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid JSON body")
	}

	q := r.URL.Query()
	outcome.StudentID = q.Get("user_id")
	outcome.ChallengeID = q.Get("challenge_id")

	if v := q.Get("success"); v != "" {
		success, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("success must be a boolean")
		}
		outcome.Success = success
	}

	if v := q.Get("time_spent"); v != "" {
		spent, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("time_spent must be an integer")
		}
		outcome.TimeSpent = spent
	}

	return &outcome, nil
}

func (s *Server) handleStudentProgress(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if studentID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "student id is required")
		return
	}

	snap := s.recommender.Progress(r.Context(), studentID)

	records := snap.Records()
	if records == nil {
		records = []models.ProgressRecord{}
	}

	respondJSON(w, http.StatusOK, models.StudentProgressResponse{
		StudentID: studentID,
		Available: snap.Available(),
		Reason:    snap.Reason(),
		Records:   records,
	})
}
