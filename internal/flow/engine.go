// Package flow implements the support session state machine: a directed
// graph of named stages driven entirely by the session state. Each stage
// runs to completion, mutates the state, and the engine computes the next
// stage from the result. One engine serves one session at a time; sessions
// share nothing, so independent sessions may run their own engines in
// parallel.
package flow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"deskmate/internal/oracle"
	"deskmate/internal/outcome"
	"deskmate/internal/session"
)

// UserIO is the line-oriented interactive surface: prompts, notices and the
// final rendered answer.
type UserIO interface {
	// Ask prints the prompt and reads one line of input.
	Ask(prompt string) (string, error)
	// Show prints a plain notice.
	Show(text string)
	// Present renders a titled answer block.
	Present(title, body string)
}

// Retriever is the search capability. A miss returns empty context and no
// error; errors are reserved for infrastructure failures.
type Retriever interface {
	Search(ctx context.Context, product, query string) (string, []string, error)
}

// Miner is the document fallback capability, consulted only after retrieval
// exhaustion.
type Miner interface {
	Mine(ctx context.Context, question string, history []session.RetrievalRecord) (string, error)
}

// ProductSource matches raw user input against the product allowlist.
type ProductSource interface {
	Candidates(userInput string, k int) (canonical string, matches []string, exact bool)
}

// SupportLog records session outcome rows.
type SupportLog interface {
	Record(st *session.State, status string) error
}

// TicketLog raises support tickets for unresolved sessions.
type TicketLog interface {
	Open(st *session.State, description string) error
}

// Engine drives a session through the state machine.
type Engine struct {
	oracle    *oracle.Adapter
	retriever Retriever
	miner     Miner
	products  ProductSource
	io        UserIO
	support   SupportLog
	tickets   TicketLog
	log       *zap.Logger

	maxGather    int
	maxRetrieval int
}

// Options configures an Engine. Zero attempt ceilings default to 3.
type Options struct {
	Oracle    *oracle.Adapter
	Retriever Retriever
	Miner     Miner
	Products  ProductSource
	IO        UserIO
	Support   SupportLog
	Tickets   TicketLog
	Logger    *zap.Logger

	MaxGatherAttempts    int
	MaxRetrievalAttempts int
}

// NewEngine builds an engine from options.
func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxGatherAttempts <= 0 {
		opts.MaxGatherAttempts = 3
	}
	if opts.MaxRetrievalAttempts <= 0 {
		opts.MaxRetrievalAttempts = 3
	}
	return &Engine{
		oracle:       opts.Oracle,
		retriever:    opts.Retriever,
		miner:        opts.Miner,
		products:     opts.Products,
		io:           opts.IO,
		support:      opts.Support,
		tickets:      opts.Tickets,
		log:          opts.Logger,
		maxGather:    opts.MaxGatherAttempts,
		maxRetrieval: opts.MaxRetrievalAttempts,
	}
}

// Run drives the session from product selection to the terminal logging
// stage. It returns an error only for host-level failures (user input stream
// closed, log persistence broken); oracle and retrieval failures degrade
// inside the stages and never surface here.
func (e *Engine) Run(ctx context.Context, st *session.State) error {
	stage := StageProductSelection
	for stage != StageDone {
		e.log.Debug("entering stage",
			zap.String("session_id", st.SessionID),
			zap.String("stage", stage.String()),
		)
		next, err := e.step(ctx, stage, st)
		if err != nil {
			return fmt.Errorf("stage %s: %w", stage, err)
		}
		stage = next
	}
	return nil
}

func (e *Engine) step(ctx context.Context, stage Stage, st *session.State) (Stage, error) {
	switch stage {
	case StageProductSelection:
		return e.productSelection(st)
	case StageGatherInformation:
		return e.gatherInformation(ctx, st)
	case StageAskUserForDetails:
		return e.askUserForDetails(st)
	case StageRetrieve:
		return e.retrieve(ctx, st)
	case StageAssessQuality:
		return e.assessQuality(ctx, st)
	case StageFormulateAnswer:
		return e.formulateAnswer(ctx, st)
	case StagePresentAnswer:
		return e.presentAnswer(st)
	case StageAskForClarification:
		return e.askForClarification(st)
	case StageAssessClarification:
		return e.assessClarification(ctx, st)
	case StageDocumentFallback:
		return e.documentFallback(ctx, st)
	case StagePresentFallback:
		return e.presentFallback(st)
	case StageEscalate:
		return e.escalate(st)
	case StageLogPreliminary:
		return e.logPreliminary(st)
	case StageCollectFeedback:
		return e.collectFeedback(ctx, st)
	case StageLogFinal:
		return e.logFinal(st)
	default:
		return StageDone, fmt.Errorf("unknown stage %q", stage)
	}
}

func (e *Engine) logPreliminary(st *session.State) (Stage, error) {
	status := outcome.StatusPendingFeedback
	if st.Escalated {
		status = outcome.StatusEscalated
	}
	if err := e.support.Record(st, status); err != nil {
		return StageDone, err
	}
	// An escalated session has no useful feedback left to collect.
	if st.Escalated {
		return StageLogFinal, nil
	}
	return StageCollectFeedback, nil
}

func (e *Engine) logFinal(st *session.State) (Stage, error) {
	status := outcome.StatusFailure
	switch {
	case st.Escalated:
		status = outcome.StatusEscalated
	case st.UserSatisfied:
		status = outcome.StatusSuccess
	}
	if err := e.support.Record(st, status); err != nil {
		return StageDone, err
	}

	if status == outcome.StatusFailure {
		description := fmt.Sprintf(
			"Customer was not satisfied with the support provided. Product: %s. Question: %s. Escalated: %t. Gatherer attempts: %d. Retrieval attempts: %d.",
			st.Product, st.ClassifiedQuestion, st.Escalated, st.GathererAttempts, st.RetrievalAttempts,
		)
		if err := e.tickets.Open(st, description); err != nil {
			return StageDone, err
		}
	}

	e.io.Show("Session logged successfully.")
	e.log.Info("session finished",
		zap.String("session_id", st.SessionID),
		zap.String("status", status),
		zap.Bool("fallback_used", st.FallbackUsed),
		zap.Int("gatherer_attempts", st.GathererAttempts),
		zap.Int("retrieval_attempts", st.RetrievalAttempts),
	)
	return StageDone, nil
}
