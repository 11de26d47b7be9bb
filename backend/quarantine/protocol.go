package quarantine

import (
	"strings"
	"unicode"
)

const (
	doneMarker     = "DONE"
	questionMarker = "QUESTION:"
	optionsMarker  = "OPTIONS:"
)

// IsDone reports whether the main agent ended the questioning. The marker
// must be the whole reply or stand on a line of its own, so a question that
// mentions the word is not taken as termination.
func IsDone(reply string) bool {
	if strings.TrimSpace(reply) == doneMarker {
		return true
	}
	for line := range strings.SplitSeq(reply, "\n") {
		if strings.TrimSpace(line) == doneMarker {
			return true
		}
	}
	return false
}

// Question is one multiple choice question asked by the main agent.
type Question struct {
	Text    string
	Options []string
}

// ParseQuestion extracts the question text and its options from a reply of
// the form
//
//	QUESTION: <text>
//	OPTIONS:
//	0: <option>
//	1: <option>
//
// It reports false when either segment is missing or no option survives.
func ParseQuestion(reply string) (Question, bool) {
	questionStart := strings.Index(reply, questionMarker)
	if questionStart < 0 {
		return Question{}, false
	}
	rest := reply[questionStart+len(questionMarker):]

	optionsStart := strings.Index(rest, optionsMarker)
	if optionsStart < 0 {
		return Question{}, false
	}

	text := strings.TrimSpace(rest[:optionsStart])
	if text == "" {
		return Question{}, false
	}

	var options []string
	for line := range strings.SplitSeq(rest[optionsStart+len(optionsMarker):], "\n") {
		option := stripOptionIndex(strings.TrimSpace(line))
		if option != "" {
			options = append(options, option)
		}
	}
	if len(options) == 0 {
		return Question{}, false
	}

	return Question{Text: text, Options: options}, true
}

// stripOptionIndex removes a leading "N:" marker.
func stripOptionIndex(line string) string {
	digits := 0
	for digits < len(line) && unicode.IsDigit(rune(line[digits])) {
		digits++
	}
	if digits == 0 || digits >= len(line) || line[digits] != ':' {
		return line
	}
	return strings.TrimSpace(line[digits+1:])
}
