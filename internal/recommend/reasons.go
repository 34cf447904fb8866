package recommend

import (
	"strings"

	"github.com/group03/phychat-backend/internal/models"
)

// reasonTemplates are the justifications shown with a recommendation.
// A %d verb receives the number of completed challenges.
var reasonTemplates = map[models.Difficulty][]string{
	models.DifficultyEasy: {
		"This is a great starting point to build your debugging foundation.",
		"Master this basic concept before moving to harder challenges.",
		"Perfect for practicing fundamental debugging skills.",
	},
	models.DifficultyMedium: {
		"You've completed %d challenges! Ready for the next level.",
		"This challenge will deepen your understanding of Python errors.",
		"Great job progressing! This will strengthen your problem-solving skills.",
	},
	models.DifficultyHard: {
		"Impressive progress with %d challenges! Time for a challenge.",
		"You're ready for advanced debugging scenarios.",
		"This will test everything you've learned so far.",
	},
}

func reasonTakesCount(template string) bool {
	return strings.Contains(template, "%d")
}
