// Package learner derives topic suggestions and assessment levels from
// learner activity records.
package learner

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

var (
	// ErrUnknownLearner is returned when a learner has no records.
	ErrUnknownLearner = errors.New("learner not found")
	// ErrInvalidRecord is returned by Validate.
	ErrInvalidRecord = errors.New("invalid learner record")
)

// Record is one learning session submitted by a learner.
type Record struct {
	UserID     int    `json:"user_id"`
	Topic      string `json:"topic"`
	TimeSpent  int    `json:"time_spent"`
	QuizScore  int    `json:"quiz_score"`
	Preference string `json:"preference"`
	Feedback   string `json:"feedback"`
	Rating     int    `json:"rating"`
}

// Validate checks field ranges.
func (r Record) Validate() error {
	switch {
	case r.UserID <= 0:
		return fmt.Errorf("%w: user_id must be positive", ErrInvalidRecord)
	case strings.TrimSpace(r.Topic) == "":
		return fmt.Errorf("%w: topic is required", ErrInvalidRecord)
	case r.TimeSpent < 0:
		return fmt.Errorf("%w: time_spent must not be negative", ErrInvalidRecord)
	case r.QuizScore < 0 || r.QuizScore > 100:
		return fmt.Errorf("%w: quiz_score must be within 0..100", ErrInvalidRecord)
	case r.Rating < 1 || r.Rating > 5:
		return fmt.Errorf("%w: rating must be within 1..5", ErrInvalidRecord)
	}
	return nil
}

// Level is an adaptive assessment difficulty.
type Level string

const (
	Beginner     Level = "Beginner"
	Intermediate Level = "Intermediate"
	Advanced     Level = "Advanced"
)

var sampleQuestions = map[Level][]string{
	Beginner:     {"What is 2 + 2?", "Define variable."},
	Intermediate: {"Solve x: 2x + 5 = 15", "Explain slope in linear equations."},
	Advanced:     {"Differentiate f(x) = x^2 + 3x", "What is an eigenvector?"},
}

// Assessment is the adaptive assessment for one learner.
type Assessment struct {
	Level        Level    `json:"assessment_level"`
	AverageScore float64  `json:"average_score"`
	Questions    []string `json:"questions"`
}

// LevelFor maps an average quiz score to a level.
func LevelFor(avg float64) Level {
	switch {
	case avg >= 80:
		return Advanced
	case avg >= 50:
		return Intermediate
	default:
		return Beginner
	}
}

// Assess builds the assessment for userID from all records.
func Assess(records []Record, userID int) (*Assessment, error) {
	var total, n int
	for _, r := range records {
		if r.UserID == userID {
			total += r.QuizScore
			n++
		}
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLearner, userID)
	}

	avg := float64(total) / float64(n)
	level := LevelFor(avg)
	questions := append([]string(nil), sampleQuestions[level]...)
	return &Assessment{Level: level, AverageScore: avg, Questions: questions}, nil
}

// SuggestTopics samples up to k topics the learner has not studied yet.
// When every topic has been seen, all topics are candidates.
func SuggestTopics(records []Record, userID, k int, rng *rand.Rand) ([]string, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	seen := make(map[string]bool)
	all := make(map[string]bool)
	for _, r := range records {
		all[r.Topic] = true
		if r.UserID == userID {
			seen[r.Topic] = true
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLearner, userID)
	}

	var candidates []string
	for topic := range all {
		if !seen[topic] {
			candidates = append(candidates, topic)
		}
	}
	if len(candidates) == 0 {
		for topic := range all {
			candidates = append(candidates, topic)
		}
	}
	sort.Strings(candidates)

	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}
