package quarantine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/furisto/toolgate/backend/model"
)

type State int

const (
	StateInit State = iota
	StateQuestioning
	StateDone
	StateRoundLimitReached
	StateMalformedQuestion
	StateSummarizing
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateQuestioning:
		return "questioning"
	case StateDone:
		return "done"
	case StateRoundLimitReached:
		return "round_limit_reached"
	case StateMalformedQuestion:
		return "malformed_question"
	case StateSummarizing:
		return "summarizing"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

type TranscriptEntry struct {
	Role    model.ChatRole `json:"role"`
	Content string         `json:"content"`
}

// Session is the state of one quarantine run. Transitions return a new
// Session and never modify the receiver's transcript.
type Session struct {
	State State
	// Round counts the questions that were answered.
	Round int
	// Ending is the state that ended the questioning, kept across
	// summarizing and completion.
	Ending     State
	MaxRounds  int
	Transcript []TranscriptEntry
	Pending    Question
	Summary    string
}

func newSession(seedPrompt string, maxRounds int) Session {
	return Session{
		State:      StateInit,
		MaxRounds:  maxRounds,
		Transcript: []TranscriptEntry{{Role: model.ChatRoleUser, Content: seedPrompt}},
	}
}

// asking moves a session into the questioning loop, or ends it when the
// round limit is reached.
func (s Session) asking() Session {
	if s.Round >= s.MaxRounds {
		s.State = StateRoundLimitReached
		s.Ending = StateRoundLimitReached
		return s
	}
	s.State = StateQuestioning
	return s
}

// observeReply appends the main agent's reply and decides whether the
// session continues with a question or stops.
func (s Session) observeReply(reply string) Session {
	s.Transcript = appendEntry(s.Transcript, model.ChatRoleAssistant, reply)
	s.Pending = Question{}

	if IsDone(reply) {
		s.State = StateDone
		s.Ending = StateDone
		return s
	}

	question, ok := ParseQuestion(reply)
	if !ok {
		s.State = StateMalformedQuestion
		s.Ending = StateMalformedQuestion
		return s
	}

	s.Pending = question
	return s
}

// recordAnswer appends the validated answer to the pending question and
// advances the round.
func (s Session) recordAnswer(index int) Session {
	s.Transcript = appendEntry(s.Transcript, model.ChatRoleUser, FormatAnswer(index, s.Pending.Options[index]))
	s.Pending = Question{}
	s.Round++
	return s.asking()
}

func (s Session) summarizing() Session {
	s.State = StateSummarizing
	return s
}

func (s Session) completed(summary string) Session {
	s.State = StateCompleted
	s.Summary = summary
	return s
}

// Terminated reports whether the questioning loop has ended.
func (s Session) Terminated() bool {
	switch s.State {
	case StateDone, StateRoundLimitReached, StateMalformedQuestion, StateSummarizing, StateCompleted:
		return true
	default:
		return false
	}
}

// QAText joins the non-empty turns after the seed prompt.
func (s Session) QAText() string {
	var turns []string
	for _, entry := range s.Transcript[min(1, len(s.Transcript)):] {
		if strings.TrimSpace(entry.Content) != "" {
			turns = append(turns, entry.Content)
		}
	}
	return strings.Join(turns, "\n")
}

func (s Session) messages() []model.ChatMessage {
	messages := make([]model.ChatMessage, len(s.Transcript))
	for i, entry := range s.Transcript {
		messages[i] = model.ChatMessage{Role: entry.Role, Content: entry.Content}
	}
	return messages
}

func FormatAnswer(index int, option string) string {
	return fmt.Sprintf("Answer: %d (%s)", index, option)
}

func appendEntry(transcript []TranscriptEntry, role model.ChatRole, content string) []TranscriptEntry {
	next := slices.Clip(transcript)
	return append(next, TranscriptEntry{Role: role, Content: content})
}
