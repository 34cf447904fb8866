package models

import (
	"time"
)

// ProgressStatus represents where a student is on a challenge
type ProgressStatus string

const (
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
)

// StatusForOutcome maps an attempt result to the stored status
func StatusForOutcome(success bool) ProgressStatus {
	if success {
		return ProgressCompleted
	}
	return ProgressInProgress
}

// ProgressRecord is one student's status on one challenge
type ProgressRecord struct {
	StudentID   string         `json:"student_id"`
	ChallengeID string         `json:"challenge_id"`
	Status      ProgressStatus `json:"status"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ProgressSnapshot is the result of reading a student's progress.
// It is either available (possibly empty) or unavailable with a reason;
// the zero value is unavailable.
type ProgressSnapshot struct {
	records   []ProgressRecord
	reason    string
	available bool
}

// AvailableProgress wraps records read from the progress store
func AvailableProgress(records []ProgressRecord) ProgressSnapshot {
	return ProgressSnapshot{records: records, available: true}
}

// UnavailableProgress marks the progress store as unreachable for this read
func UnavailableProgress(reason string) ProgressSnapshot {
	return ProgressSnapshot{reason: reason}
}

// Available reports whether the store answered
func (s ProgressSnapshot) Available() bool {
	return s.available
}

// Reason explains why the snapshot is unavailable
func (s ProgressSnapshot) Reason() string {
	return s.reason
}

// Records returns the progress records; always empty when unavailable
func (s ProgressSnapshot) Records() []ProgressRecord {
	if !s.available {
		return nil
	}
	return s.records
}

// Partition splits the snapshot into completed and in-progress challenge ids,
// preserving record order and dropping duplicates
func (s ProgressSnapshot) Partition() (completed, inProgress []string) {
	seen := make(map[string]bool)
	for _, rec := range s.Records() {
		key := string(rec.Status) + "/" + rec.ChallengeID
		if seen[key] {
			continue
		}
		seen[key] = true

		switch rec.Status {
		case ProgressCompleted:
			completed = append(completed, rec.ChallengeID)
		case ProgressInProgress:
			inProgress = append(inProgress, rec.ChallengeID)
		}
	}
	return completed, inProgress
}

// Outcome is a student's attempt at a challenge as reported by the frontend
type Outcome struct {
	StudentID   string `json:"user_id"`
	ChallengeID string `json:"challenge_id"`
	Success     bool   `json:"success"`
	TimeSpent   int    `json:"time_spent"` // seconds
}

// ProgressAck acknowledges a progress update
type ProgressAck struct {
	ID          string         `json:"id,omitempty"`
	StudentID   string         `json:"student_id"`
	ChallengeID string         `json:"challenge_id"`
	Status      ProgressStatus `json:"status"`
	Recorded    bool           `json:"recorded"`
}

// ProgressUpdateResponse is returned by the progress update endpoint
type ProgressUpdateResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Recorded bool   `json:"recorded"`
	AckID    string `json:"ack_id,omitempty"`
}

// StudentProgressResponse is returned by the progress listing endpoint
type StudentProgressResponse struct {
	StudentID string           `json:"student_id"`
	Available bool             `json:"available"`
	Reason    string           `json:"reason,omitempty"`
	Records   []ProgressRecord `json:"records"`
}
