package learner_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtech-engine/backend/internal/learner"
)

func records() []learner.Record {
	return []learner.Record{
		{UserID: 1, Topic: "Algebra", QuizScore: 90, Rating: 5},
		{UserID: 1, Topic: "Geometry", QuizScore: 80, Rating: 4},
		{UserID: 2, Topic: "Calculus", QuizScore: 40, Rating: 3},
		{UserID: 2, Topic: "Algebra", QuizScore: 50, Rating: 3},
		{UserID: 3, Topic: "Statistics", QuizScore: 60, Rating: 4},
	}
}

func TestValidate(t *testing.T) {
	valid := learner.Record{UserID: 1, Topic: "Algebra", QuizScore: 70, Rating: 4}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r *learner.Record)
	}{
		{"Zero user", func(r *learner.Record) { r.UserID = 0 }},
		{"Blank topic", func(r *learner.Record) { r.Topic = "  " }},
		{"Negative time", func(r *learner.Record) { r.TimeSpent = -1 }},
		{"Score too high", func(r *learner.Record) { r.QuizScore = 101 }},
		{"Rating too low", func(r *learner.Record) { r.Rating = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			assert.ErrorIs(t, r.Validate(), learner.ErrInvalidRecord)
		})
	}
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, learner.Advanced, learner.LevelFor(80))
	assert.Equal(t, learner.Intermediate, learner.LevelFor(79.9))
	assert.Equal(t, learner.Intermediate, learner.LevelFor(50))
	assert.Equal(t, learner.Beginner, learner.LevelFor(49))
}

func TestAssess(t *testing.T) {
	a, err := learner.Assess(records(), 1)
	require.NoError(t, err)
	assert.Equal(t, learner.Advanced, a.Level)
	assert.InDelta(t, 85.0, a.AverageScore, 1e-9)
	assert.NotEmpty(t, a.Questions)

	a, err = learner.Assess(records(), 2)
	require.NoError(t, err)
	assert.Equal(t, learner.Beginner, a.Level)

	_, err = learner.Assess(records(), 42)
	assert.ErrorIs(t, err, learner.ErrUnknownLearner)
}

func TestSuggestTopics_ExcludesSeen(t *testing.T) {
	topics, err := learner.SuggestTopics(records(), 1, 3, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Calculus", "Statistics"}, topics)
}

func TestSuggestTopics_Bounded(t *testing.T) {
	topics, err := learner.SuggestTopics(records(), 3, 2, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	assert.Len(t, topics, 2)
	assert.NotContains(t, topics, "Statistics")
}

func TestSuggestTopics_FallsBackToAllTopics(t *testing.T) {
	recs := []learner.Record{
		{UserID: 1, Topic: "Algebra"},
		{UserID: 1, Topic: "Geometry"},
	}
	topics, err := learner.SuggestTopics(recs, 1, 5, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Algebra", "Geometry"}, topics)
}

func TestSuggestTopics_Reproducible(t *testing.T) {
	a, err := learner.SuggestTopics(records(), 3, 2, rand.New(rand.NewSource(99)))
	require.NoError(t, err)
	b, err := learner.SuggestTopics(records(), 3, 2, rand.New(rand.NewSource(99)))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSuggestTopics_Errors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := learner.SuggestTopics(records(), 42, 3, rng)
	assert.ErrorIs(t, err, learner.ErrUnknownLearner)

	_, err = learner.SuggestTopics(records(), 1, 0, rng)
	assert.Error(t, err)
}
