// Package scoring talks to external story scorers and holds the
// deterministic rule used when no scorer is available.
package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	MinRating = 1
	MaxRating = 10
)

// ErrUnparseable is returned when a scorer response carries no rating in [1,10].
var ErrUnparseable = errors.New("scoring: response has no valid rating")

// Scorer sends a story to an external scoring capability and returns its raw response.
type Scorer interface {
	Score(ctx context.Context, story string) (string, error)
}

// Rating is a parsed scorer verdict.
type Rating struct {
	Value       int
	Explanation string
}

type ratingPayload struct {
	Rating      json.Number `json:"rating"`
	Explanation string      `json:"explanation"`
}

// ParseRating extracts a rating from a scorer response. It accepts the first
// JSON object in the text carrying a "rating" field, or a bare integer. A
// missing, fractional or out-of-range rating is ErrUnparseable; it is never
// coerced into range.
func ParseRating(raw string) (Rating, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Rating{}, fmt.Errorf("%w: empty response", ErrUnparseable)
	}

	if n, err := strconv.Atoi(text); err == nil {
		return checkRange(Rating{Value: n})
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Rating{}, fmt.Errorf("%w: no JSON object in %q", ErrUnparseable, truncate(text, 64))
	}
	var payload ratingPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return Rating{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if payload.Rating == "" {
		return Rating{}, fmt.Errorf("%w: rating field missing", ErrUnparseable)
	}
	n, err := strconv.Atoi(payload.Rating.String())
	if err != nil {
		return Rating{}, fmt.Errorf("%w: rating %q is not an integer", ErrUnparseable, payload.Rating)
	}
	return checkRange(Rating{Value: n, Explanation: strings.TrimSpace(payload.Explanation)})
}

func checkRange(r Rating) (Rating, error) {
	if r.Value < MinRating || r.Value > MaxRating {
		return Rating{}, fmt.Errorf("%w: rating %d outside [%d,%d]", ErrUnparseable, r.Value, MinRating, MaxRating)
	}
	return r, nil
}

// Prompt is the instruction sent to remote scorers alongside the story.
func Prompt(story string) string {
	return fmt.Sprintf(`You are a fun pizza story evaluator for a conference coupon system.
Rate this pizza story on a scale of 1-10 based on:
- Creativity and originality (40%%)
- Pizza relevance and enthusiasm (30%%)
- Storytelling quality and engagement (20%%)
- Length and effort (10%%)

Story to evaluate: %q

Respond with ONLY a JSON object like this:
{"rating": 7, "explanation": "one or two sentences"}`, story)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
