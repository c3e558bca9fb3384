package catalog

import (
	"strings"

	"golang.org/x/net/html"
)

// StripMarkup reduces an HTML fragment to its visible text.
// Plain text passes through with whitespace collapsed.
func StripMarkup(input string) string {
	if !strings.ContainsAny(input, "<&") {
		return cleanText(input)
	}

	tokenizer := html.NewTokenizer(strings.NewReader(input))
	var textBuilder strings.Builder
	inScript := false
	inStyle := false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// io.EOF, or a malformed fragment: keep what was recovered
			return cleanText(textBuilder.String())

		case html.StartTagToken:
			switch tokenizer.Token().Data {
			case "script":
				inScript = true
			case "style":
				inStyle = true
			}

		case html.EndTagToken:
			switch tokenizer.Token().Data {
			case "script":
				inScript = false
			case "style":
				inStyle = false
			}

		case html.TextToken:
			if !inScript && !inStyle {
				text := strings.TrimSpace(tokenizer.Token().Data)
				if text != "" {
					textBuilder.WriteString(text + " ")
				}
			}
		}
	}
}

// cleanText removes excessive whitespace
func cleanText(input string) string {
	return strings.Join(strings.Fields(input), " ")
}
