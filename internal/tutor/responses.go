package tutor

import "github.com/group03/phychat-backend/internal/models"

type rule struct {
	errorType models.ErrorType
	triggers  []string
}

// classificationRules are scanned in order and the first match wins.
// Reordering changes which category ambiguous snippets land in.
var classificationRules = []rule{
	{models.IndexError, []string{"range", "list", "index", "["}},
	{models.NameError, []string{"print(i)", "variable", "scope"}},
	{models.SyntaxError, []string{"if", ":", "def", "indent"}},
	{models.TypeError, []string{"str", "int", "+", "type"}},
	{models.AttributeError, []string{".", "attribute", "method"}},
}

type responseBundle struct {
	reply             string
	explanation       string
	learningObjective string
	codeSuggestion    string
}

var responses = map[models.ErrorType]responseBundle{
	models.IndexError: {
		reply:             "I can see you have an **index error** in your code. This happens when you try to access a list position that doesn't exist.",
		explanation:       "The loop is trying to access `numbers[3]`, but your list only has 3 items (indices 0, 1, 2). Your loop should use `range(len(numbers))` instead of `range(4)`.",
		learningObjective: "Learn to match loop ranges with list lengths",
		codeSuggestion:    "for i in range(len(numbers)):\n    print(numbers[i])",
	},
	models.NameError: {
		reply:             "You're trying to use a variable **outside its scope**. Variables defined inside loops only exist within that loop.",
		explanation:       "The variable `i` is created inside the for-loop and is destroyed when the loop ends. If you need it outside, save it to a variable before the loop ends.",
		learningObjective: "Understand variable scope and lifecycle",
		codeSuggestion:    "last_value = 0\nfor i in range(5):\n    last_value = i\n    print(i)\nprint(last_value)",
	},
	models.SyntaxError: {
		reply:             "There's a **syntax error** in your code. Python requires a colon `:` after `if`, `for`, `while`, and `def` statements.",
		explanation:       "Line 2 is missing a colon. Python uses colons to indicate the start of an indented block.",
		learningObjective: "Master Python's syntax rules for control structures",
		codeSuggestion:    "if x > 5:\n    print('Greater')",
	},
	models.TypeError: {
		reply:             "You have a **type mismatch** error. You can't directly add a string and a number in Python.",
		explanation:       "The variable `age` is a string ('25'), but you're trying to add a number (5) to it. Use `int(age)` to convert it first.",
		learningObjective: "Learn type conversion and when to use it",
		codeSuggestion:    "age = int('25')\nfuture_age = age + years_ahead",
	},
	models.LogicError: {
		reply:             "Let's think through the **logic** of your code. What should happen in each step?",
		explanation:       "I noticed the counter isn't changing. For a loop to end, the condition must eventually become false. Your `counter = counter + 0` keeps it the same forever.",
		learningObjective: "Understand loop termination conditions",
		codeSuggestion:    "counter = counter + 1  # Increment by 1 instead of 0",
	},
}

// bundleFor returns the canned response for a category. Categories without
// their own bundle (AttributeError) share the LogicError one.
func bundleFor(errorType models.ErrorType) responseBundle {
	if b, ok := responses[errorType]; ok {
		return b
	}
	return responses[models.LogicError]
}
