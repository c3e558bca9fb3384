package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/edtech-engine/backend/internal/search"
)

// ErrProvider wraps failures reported by the model backend.
var ErrProvider = errors.New("llm provider error")

// StatusError reports a non-200 answer from a model backend.
type StatusError struct {
	Provider   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned status: %d", ErrProvider, e.Provider, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrProvider }

// LLMProvider defines the interface for AI model integration
type LLMProvider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// BuildTutorPrompt grounds the tutor answer on recommended learning resources.
func BuildTutorPrompt(question string, resources []search.Item) string {
	var b strings.Builder
	if len(resources) == 0 {
		b.WriteString("No specific learning resources available.\n")
	}
	for _, r := range resources {
		fmt.Fprintf(&b, "- %s (%s, %s): %s", r.Title, r.Subject, r.Difficulty, r.Description)
		if r.URL != "" {
			fmt.Fprintf(&b, " <%s>", r.URL)
		}
		b.WriteString("\n")
	}

	return "You are a patient tutor on an adaptive learning platform. Answer the student's question.\n" +
		"Point the student to the listed resources when they help; do not invent links.\n\n" +
		"RESOURCES:\n" + b.String() + "\n" +
		"STUDENT QUESTION:\n" + question + "\n\n" +
		"ANSWER:\n"
}

// Sentiment labels returned by feedback classification.
const (
	SentimentPositive = "POSITIVE"
	SentimentNegative = "NEGATIVE"
	SentimentNeutral  = "NEUTRAL"
)

// BuildSentimentPrompt asks the model for a single sentiment label.
func BuildSentimentPrompt(feedback string) string {
	return "Classify the sentiment of the following student feedback about a learning resource.\n" +
		"Reply with exactly one word: POSITIVE, NEGATIVE or NEUTRAL.\n\n" +
		"FEEDBACK:\n" + feedback + "\n\n" +
		"SENTIMENT:\n"
}

// ParseSentiment extracts the first sentiment label from a model answer.
func ParseSentiment(answer string) (string, error) {
	for _, word := range strings.FieldsFunc(strings.ToUpper(answer), func(r rune) bool {
		return r < 'A' || r > 'Z'
	}) {
		switch word {
		case SentimentPositive, SentimentNegative, SentimentNeutral:
			return word, nil
		}
	}
	return "", fmt.Errorf("%w: unrecognized sentiment %q", ErrProvider, answer)
}

// retryingProvider retries failed generations with exponential backoff.
type retryingProvider struct {
	next       LLMProvider
	maxElapsed time.Duration
}

// WithRetry decorates p so transient failures are retried until maxElapsed.
func WithRetry(p LLMProvider, maxElapsed time.Duration) LLMProvider {
	return &retryingProvider{next: p, maxElapsed: maxElapsed}
}

func (r *retryingProvider) Name() string {
	return r.next.Name()
}

func (r *retryingProvider) Generate(ctx context.Context, prompt string) (string, error) {
	var answer string
	operation := func() error {
		out, err := r.next.Generate(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil || isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		answer = out
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = r.maxElapsed

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return answer, nil
}

// isPermanent reports whether the backend rejected the request itself.
// 429 and 5xx are worth retrying; other statuses are not.
func isPermanent(err error) bool {
	status := 0
	var statusErr *StatusError
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &statusErr):
		status = statusErr.StatusCode
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return status != 0 && status < http.StatusInternalServerError && status != http.StatusTooManyRequests
}
