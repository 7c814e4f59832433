package scoring

import "strings"

// StaticExplanation accompanies ratings produced by StaticRating.
const StaticExplanation = "Rated by the built-in story rules"

var (
	pizzaWords    = []string{"pizza", "cheese", "pepperoni", "crust", "slice", "topping", "sauce"}
	creativeWords = []string{"amazing", "incredible", "adventure", "story", "funny", "crazy", "epic"}
	emotionWords  = []string{"love", "hate", "happy", "sad", "excited", "disappointed", "surprised"}
)

// StaticRating rates a story from its length, vocabulary and sentence count.
// It is deterministic and always returns a value in [1,10].
func StaticRating(story string) int {
	text := strings.TrimSpace(story)
	if len(text) < 10 {
		return MinRating
	}
	lower := strings.ToLower(text)
	score := 3

	if len(text) > 100 {
		score++
	}
	if len(text) > 200 {
		score++
	}

	pizza := mentions(lower, pizzaWords)
	if pizza >= 2 {
		score++
	}
	if pizza >= 4 {
		score++
	}

	creative := mentions(lower, creativeWords)
	if creative >= 1 {
		score++
	}
	if creative >= 3 {
		score++
	}

	if mentions(lower, emotionWords) >= 1 {
		score++
	}

	if strings.Count(text, ".")+strings.Count(text, "!")+strings.Count(text, "?") >= 2 {
		score++
	}

	return clamp(score)
}

// mentions counts how many of words occur in text at least once.
func mentions(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

func clamp(n int) int {
	if n < MinRating {
		return MinRating
	}
	if n > MaxRating {
		return MaxRating
	}
	return n
}
