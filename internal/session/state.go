// Package session holds the per-session state record threaded through the
// support control loop. One State exists per user interaction; it is owned by
// the flow engine for the whole session and is never shared across sessions.
package session

import (
	"github.com/google/uuid"
)

// Message roles in the conversation transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the dialogue transcript.
type Message struct {
	Role    string
	Content string
}

// RetrievalRecord is one completed search attempt. Records are appended to
// the history in order and never rewritten.
type RetrievalRecord struct {
	Query   string
	Context string
	Sources []string
}

// State is the session record mutated by the control loop. Fields mirror the
// lifecycle: product selection, information gathering, retrieval rounds,
// answer/fallback/escalation, clarification, and feedback.
type State struct {
	SessionID string

	// Transcript, append-only via AppendMessage.
	Conversation []Message

	// Canonical product slug, or "general". Set once before gathering.
	Product string

	// Normalised statement of the user's problem. Empty until the gatherer
	// succeeds (or the attempt ceiling forces a best-effort value).
	ClassifiedQuestion string

	GathererAttempts int
	HasEnoughInfo    bool

	// Every search attempt in order, append-only via AppendRetrieval.
	RetrievalHistory []RetrievalRecord

	RetrievalAttempts int
	ContextSufficient bool

	// What the retrieved context is currently missing. Overwritten each
	// assessment round, cleared on success.
	InformationGap string

	FinalAnswer string
	Escalated   bool

	FallbackUsed bool

	// Post-answer clarification bookkeeping. ClarificationDone stays true
	// once a clarification round (empty or not) has occurred.
	Clarification           string
	ClarificationActionable bool
	ClarificationDone       bool

	// Closing feedback.
	UserSatisfied     bool
	FeedbackUncertain bool
	FeedbackCollected bool
}

// New creates a fresh session state with a generated session ID.
func New() *State {
	return &State{
		SessionID: uuid.NewString(),
	}
}

// AppendMessage appends one turn to the transcript.
func (s *State) AppendMessage(role, content string) {
	s.Conversation = append(s.Conversation, Message{Role: role, Content: content})
}

// AppendRetrieval appends one search attempt to the retrieval history.
func (s *State) AppendRetrieval(rec RetrievalRecord) {
	s.RetrievalHistory = append(s.RetrievalHistory, rec)
}

// Queries returns the search queries tried so far, in order.
func (s *State) Queries() []string {
	out := make([]string, 0, len(s.RetrievalHistory))
	for _, rec := range s.RetrievalHistory {
		if rec.Query != "" {
			out = append(out, rec.Query)
		}
	}
	return out
}

// LastAssistantMessage returns the most recent assistant turn, or "".
func (s *State) LastAssistantMessage() string {
	for i := len(s.Conversation) - 1; i >= 0; i-- {
		if s.Conversation[i].Role == RoleAssistant {
			return s.Conversation[i].Content
		}
	}
	return ""
}
