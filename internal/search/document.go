package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Item is one learning resource in the catalog.
// Text fields are never nil; a missing field is the empty string.
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Subject     string `json:"subject"`
	URL         string `json:"url"`
	Difficulty  string `json:"difficulty"`
}

// Text returns the concatenated text that is indexed for the item.
func (it Item) Text() string {
	return it.Title + " " + it.Description + " " + it.Subject
}

// Tokenize splits text into normalized tokens (lowercase words), dropping
// single-rune tokens and English stop words.
func Tokenize(text string) []string {
	f := func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsNumber(c) && c != '_'
	}
	fields := strings.FieldsFunc(text, f)
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if utf8.RuneCountInString(field) < 2 {
			continue
		}
		token := strings.ToLower(field)
		if IsStopWord(token) {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}
