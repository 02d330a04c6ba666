// Package outcome persists session outcomes: an append-only CSV support log
// written once when an answer is presented and once after feedback, and a
// ticket file for sessions that end unresolved.
package outcome

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"deskmate/internal/session"
)

// Status of a support-log row. A session logs a pending_feedback row when
// its answer is presented, then a closing row with one of the other three.
const (
	StatusPendingFeedback = "pending_feedback"
	StatusSuccess         = "success"
	StatusFailure         = "failure"
	StatusEscalated       = "escalated"
)

var supportHeader = []string{
	"timestamp", "session_id", "product", "question", "status",
	"escalated", "fallback_used", "gatherer_attempts", "retrieval_attempts",
	"user_satisfied", "feedback_uncertain", "feedback_collected",
}

var ticketHeader = []string{
	"timestamp", "session_id", "product", "question",
	"answer_given", "escalated", "description",
}

// appendRow writes one CSV row, creating the file and writing the header
// first if the file is new or empty.
func appendRow(path string, header, row []string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// SupportLogger appends session outcome rows to the support log CSV.
type SupportLogger struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewSupportLogger creates a support logger writing to path.
func NewSupportLogger(path string) *SupportLogger {
	return &SupportLogger{path: path, now: time.Now}
}

// Record appends one row reflecting the session's current state.
func (l *SupportLogger) Record(st *session.State, status string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	row := []string{
		l.now().UTC().Format(time.RFC3339),
		st.SessionID,
		st.Product,
		st.ClassifiedQuestion,
		status,
		strconv.FormatBool(st.Escalated),
		strconv.FormatBool(st.FallbackUsed),
		strconv.Itoa(st.GathererAttempts),
		strconv.Itoa(st.RetrievalAttempts),
		strconv.FormatBool(st.UserSatisfied),
		strconv.FormatBool(st.FeedbackUncertain),
		strconv.FormatBool(st.FeedbackCollected),
	}
	return appendRow(l.path, supportHeader, row)
}

// TicketLogger appends rows to the escalation ticket CSV.
type TicketLogger struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewTicketLogger creates a ticket logger writing to path.
func NewTicketLogger(path string) *TicketLogger {
	return &TicketLogger{path: path, now: time.Now}
}

// Open records a ticket for the session with a short human-readable
// description of why it was raised.
func (l *TicketLogger) Open(st *session.State, description string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	row := []string{
		l.now().UTC().Format(time.RFC3339),
		st.SessionID,
		st.Product,
		st.ClassifiedQuestion,
		st.FinalAnswer,
		strconv.FormatBool(st.Escalated),
		description,
	}
	return appendRow(l.path, ticketHeader, row)
}
