package catalog

import (
	"github.com/group03/phychat-backend/internal/models"
)

// Defaults returns the built-in catalog used whenever no catalog source answers.
// The order and contents are fixed; callers get their own copy.
func Defaults() []models.Challenge {
	return []models.Challenge{
		{
			ID:          "1",
			Title:       "Loop Variable Scope Error",
			Description: "Fix the scope issue with the loop counter variable",
			Difficulty:  models.DifficultyEasy,
			ErrorType:   models.NameError,
		},
		{
			ID:          "2",
			Title:       "List Index Out of Range",
			Description: "Debug the array indexing issue",
			Difficulty:  models.DifficultyEasy,
			ErrorType:   models.IndexError,
		},
		{
			ID:          "3",
			Title:       "Function Return Value",
			Description: "Fix the missing return statement",
			Difficulty:  models.DifficultyMedium,
			ErrorType:   models.TypeError,
		},
		{
			ID:          "4",
			Title:       "Syntax Error in Conditional",
			Description: "Find and fix the syntax error",
			Difficulty:  models.DifficultyEasy,
			ErrorType:   models.SyntaxError,
		},
		{
			ID:          "5",
			Title:       "Type Mismatch in Operation",
			Description: "Fix the type incompatibility issue",
			Difficulty:  models.DifficultyMedium,
			ErrorType:   models.TypeError,
		},
		{
			ID:          "6",
			Title:       "Infinite Loop Logic",
			Description: "Fix the loop that never terminates",
			Difficulty:  models.DifficultyHard,
			ErrorType:   models.LogicError,
		},
	}
}
