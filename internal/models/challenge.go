package models

// Difficulty is the tier of a debugging challenge
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"

	// DifficultyExpert is only used by the "all challenges completed" result
	DifficultyExpert Difficulty = "Expert"
)

// Valid reports whether d is one of the catalog tiers (Expert is not)
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ErrorType is the category of bug a challenge or snippet exhibits
type ErrorType string

const (
	IndexError     ErrorType = "IndexError"
	NameError      ErrorType = "NameError"
	SyntaxError    ErrorType = "SyntaxError"
	TypeError      ErrorType = "TypeError"
	AttributeError ErrorType = "AttributeError"
	LogicError     ErrorType = "LogicError"
)

// Challenge is a fixed debugging exercise from the catalog
type Challenge struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Difficulty  Difficulty `json:"difficulty" yaml:"difficulty"`
	ErrorType   ErrorType  `json:"error_type" yaml:"error_type"`
}

// Recommendation is the next challenge suggested for a student
type Recommendation struct {
	ChallengeID string     `json:"challenge_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Difficulty  Difficulty `json:"difficulty"`
	Reason      string     `json:"reason"`
	Confidence  float64    `json:"confidence"`
}

// CompletedChallengeID is the sentinel id returned once every challenge is completed
const CompletedChallengeID = "completed"

// IsTerminal returns true for the "all challenges completed" recommendation
func (r *Recommendation) IsTerminal() bool {
	return r.ChallengeID == CompletedChallengeID
}

// RecommendationRequest asks for the next challenge of a student
type RecommendationRequest struct {
	UserID string `json:"user_id"`
}
