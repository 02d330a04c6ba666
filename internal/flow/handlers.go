package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"deskmate/internal/oracle"
	"deskmate/internal/products"
	"deskmate/internal/session"
)

const (
	answerTitle   = "Technical Support — Answer"
	fallbackTitle = "Technical Support — Additional Information"
	escalateTitle = "Technical Support — Escalation Notice"

	escalationNotice = "We were unable to find a sufficient answer to your query after " +
		"multiple attempts. Your case has been escalated to a human support " +
		"agent who will be in touch shortly."

	// Shown when the answer formulator itself is unavailable.
	answerUnavailable = "I apologise, but I am currently unable to formulate a response. " +
		"Please try again later or contact support directly."

	genericFollowUp = "Could you please provide more details about your issue?"
)

// productSelection captures the product slug and the first user utterance.
func (e *Engine) productSelection(st *session.State) (Stage, error) {
	raw, err := e.io.Ask("\nEnter the product name (or 'general' for a general question): ")
	if err != nil {
		return StageDone, err
	}
	raw = strings.TrimSpace(raw)

	slug := products.General
	if raw != "" && !strings.EqualFold(raw, products.General) {
		slug, err = e.resolveProduct(raw)
		if err != nil {
			return StageDone, err
		}
		e.io.Show(fmt.Sprintf("\nSelected product: %s", slug))
	}
	st.Product = slug

	question, err := e.io.Ask("\nDescribe your technical issue below.\nYou: ")
	if err != nil {
		return StageDone, err
	}
	st.AppendMessage(session.RoleUser, strings.TrimSpace(question))
	return StageGatherInformation, nil
}

func (e *Engine) resolveProduct(raw string) (string, error) {
	if e.products == nil {
		return products.Canonicalise(raw), nil
	}

	canonical, candidates, exact := e.products.Candidates(raw, 10)
	if len(candidates) == 0 {
		if canonical == "" {
			return products.General, nil
		}
		return canonical, nil
	}

	e.io.Show("\nTop matches:")
	for i, c := range candidates {
		marker := ""
		if exact && c == canonical {
			marker = "  <-- exact match"
		}
		e.io.Show(fmt.Sprintf("  %d. %s%s", i+1, c, marker))
	}

	choice, err := e.io.Ask("\nSelect a number (Enter = 1): ")
	if err != nil {
		return "", err
	}
	idx := 0
	if n, convErr := strconv.Atoi(strings.TrimSpace(choice)); convErr == nil && n >= 1 && n <= len(candidates) {
		idx = n - 1
	}
	return candidates[idx], nil
}

// gatherInformation asks the oracle whether the conversation carries enough
// detail to search on. An oracle failure degrades to "not enough" with a
// generic follow-up, consuming a gatherer attempt like any other
// unsuccessful round.
func (e *Engine) gatherInformation(ctx context.Context, st *session.State) (Stage, error) {
	inv := oracle.Invocation{
		Name:        "information_gatherer",
		Instruction: fmt.Sprintf(oracle.GathererInstruction, st.Product),
		Content:     formatConversation(st.Conversation),
		Schema:      oracle.GatherAssessmentSchema(),
	}

	res, err := oracle.Call[oracle.GatherAssessment](ctx, e.oracle, inv)
	switch {
	case err != nil:
		st.HasEnoughInfo = false
		st.GathererAttempts++
		st.AppendMessage(session.RoleAssistant, genericFollowUp)
	case !res.HasEnoughInfo:
		st.HasEnoughInfo = false
		st.GathererAttempts++
		followUp := res.FollowUpQuestion
		if followUp == "" {
			followUp = genericFollowUp
		}
		st.AppendMessage(session.RoleAssistant, followUp)
	default:
		st.HasEnoughInfo = true
		st.ClassifiedQuestion = res.ClassifiedQuestion
		st.AppendMessage(session.RoleAssistant, fmt.Sprintf("Understood. Issue: %s", res.ClassifiedQuestion))
	}

	if st.HasEnoughInfo {
		return StageRetrieve, nil
	}
	if st.GathererAttempts >= e.maxGather {
		// Ceiling reached: proceed with whatever partial detail exists.
		e.log.Info("gatherer attempts exhausted, proceeding to retrieval",
			zap.String("session_id", st.SessionID),
			zap.Int("attempts", st.GathererAttempts),
		)
		return StageRetrieve, nil
	}
	return StageAskUserForDetails, nil
}

func (e *Engine) askUserForDetails(st *session.State) (Stage, error) {
	if question := st.LastAssistantMessage(); question != "" {
		e.io.Show(fmt.Sprintf("\nAgent: %s", question))
	}
	reply, err := e.io.Ask("You: ")
	if err != nil {
		return StageDone, err
	}
	st.AppendMessage(session.RoleUser, strings.TrimSpace(reply))
	return StageGatherInformation, nil
}

// retrieve formulates a search query via the oracle and runs it. If the
// oracle is unavailable the query degrades to "<product> <question>". A
// search miss is recorded like any other attempt; it is data, not an error.
func (e *Engine) retrieve(ctx context.Context, st *session.State) (Stage, error) {
	var parts []string
	parts = append(parts,
		fmt.Sprintf("Product: %s", st.Product),
		fmt.Sprintf("Question: %s", st.ClassifiedQuestion),
	)
	if st.Clarification != "" {
		parts = append(parts, fmt.Sprintf("User's additional information: %s", st.Clarification))
	}
	if st.InformationGap != "" {
		parts = append(parts, fmt.Sprintf("Information gap to address: %s", st.InformationGap))
	}
	parts = append(parts, fmt.Sprintf("Previous search attempts:\n%s", formatPreviousAttempts(st.RetrievalHistory)))

	inv := oracle.Invocation{
		Name:        "search_planner",
		Instruction: oracle.RetrieverInstruction,
		Content:     strings.Join(parts, "\n"),
		Schema:      oracle.SearchPlanSchema(),
	}

	query := ""
	if plan, err := oracle.Call[oracle.SearchPlan](ctx, e.oracle, inv); err == nil {
		query = strings.TrimSpace(plan.SearchQuery)
	}
	if query == "" {
		query = strings.TrimSpace(fmt.Sprintf("%s %s", st.Product, st.ClassifiedQuestion))
	}

	found, sources, err := e.retriever.Search(ctx, st.Product, query)
	if err != nil {
		e.log.Warn("retrieval failed, recording empty attempt",
			zap.String("session_id", st.SessionID),
			zap.String("query", query),
			zap.Error(err),
		)
		found, sources = "", nil
	}
	st.AppendRetrieval(session.RetrievalRecord{Query: query, Context: found, Sources: sources})
	return StageAssessQuality, nil
}

// assessQuality judges the entire accumulated history, not just the latest
// result. Every assessment consumes a retrieval attempt.
func (e *Engine) assessQuality(ctx context.Context, st *session.State) (Stage, error) {
	inv := oracle.Invocation{
		Name:        "quality_checker",
		Instruction: oracle.SufficiencyInstruction,
		Content: fmt.Sprintf("Product: %s\nQuestion: %s\n\nSearch history:\n%s",
			st.Product, st.ClassifiedQuestion, formatHistory(st.RetrievalHistory)),
		Schema: oracle.SufficiencyAssessmentSchema(),
	}

	res, err := oracle.Call[oracle.SufficiencyAssessment](ctx, e.oracle, inv)
	st.RetrievalAttempts++
	switch {
	case err != nil:
		st.ContextSufficient = false
		st.InformationGap = "Unable to assess context quality due to an oracle error"
	case !res.Sufficient:
		st.ContextSufficient = false
		st.InformationGap = res.InformationGap
	default:
		st.ContextSufficient = true
		st.InformationGap = ""
	}

	if st.ContextSufficient {
		return StageFormulateAnswer, nil
	}
	if st.RetrievalAttempts >= e.maxRetrieval {
		return StageDocumentFallback, nil
	}
	return StageRetrieve, nil
}

// formulateAnswer produces the final grounded answer from the concatenation
// of every history entry's context.
func (e *Engine) formulateAnswer(ctx context.Context, st *session.State) (Stage, error) {
	inv := oracle.Invocation{
		Name:        "answer_formulator",
		Instruction: oracle.AnswerInstruction,
		Content: fmt.Sprintf("Product: %s\nQuestion: %s\n\nRetrieved context:\n%s",
			st.Product, st.ClassifiedQuestion, formatAllContext(st.RetrievalHistory)),
		Schema: oracle.AnswerDraftSchema(),
	}

	draft, err := oracle.Call[oracle.AnswerDraft](ctx, e.oracle, inv)
	answer := strings.TrimSpace(draft.Answer)
	if err != nil || answer == "" {
		answer = answerUnavailable
	} else {
		e.log.Info("answer formulated",
			zap.String("session_id", st.SessionID),
			zap.String("confidence", draft.Confidence),
			zap.String("sources_used", draft.SourcesUsed),
		)
	}
	st.FinalAnswer = answer
	st.AppendMessage(session.RoleAssistant, answer)
	return StagePresentAnswer, nil
}

func (e *Engine) presentAnswer(st *session.State) (Stage, error) {
	e.io.Present(answerTitle, st.FinalAnswer)
	// One clarification round per session; a re-presented answer goes
	// straight to logging.
	if st.ClarificationDone {
		return StageLogPreliminary, nil
	}
	return StageAskForClarification, nil
}

func (e *Engine) askForClarification(st *session.State) (Stage, error) {
	e.io.Show("Do you have any additional information that might help? (or press Enter to skip)")
	input, err := e.io.Ask("You: ")
	if err != nil {
		return StageDone, err
	}
	input = strings.TrimSpace(input)
	if input == "" {
		st.Clarification = ""
		st.ClarificationActionable = false
		st.ClarificationDone = true
		return StageLogPreliminary, nil
	}
	st.Clarification = input
	return StageAssessClarification, nil
}

// assessClarification judges whether the new input introduces specifics
// worth one more retrieval cycle. Actionable input resets the retrieval
// counter; gatherer attempts are never reset.
func (e *Engine) assessClarification(ctx context.Context, st *session.State) (Stage, error) {
	queries := st.Queries()
	queriesStr := "(none)"
	if len(queries) > 0 {
		var b strings.Builder
		for i, q := range queries {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "- %s", q)
		}
		queriesStr = b.String()
	}

	inv := oracle.Invocation{
		Name:        "clarification_assessor",
		Instruction: oracle.ClarificationInstruction,
		Content: fmt.Sprintf("Original classified question: %s\n\nUser's new clarification: %s\n\nSearch queries already tried:\n%s",
			st.ClassifiedQuestion, st.Clarification, queriesStr),
		Schema: oracle.ClarificationVerdictSchema(),
	}

	res, err := oracle.Call[oracle.ClarificationVerdict](ctx, e.oracle, inv)
	st.ClarificationDone = true
	if err != nil || !res.Actionable {
		st.ClarificationActionable = false
		return StageLogPreliminary, nil
	}

	st.ClarificationActionable = true
	st.InformationGap = res.InformationGap
	st.RetrievalAttempts = 0
	return StageRetrieve, nil
}

func (e *Engine) documentFallback(ctx context.Context, st *session.State) (Stage, error) {
	excerpt, err := e.miner.Mine(ctx, st.ClassifiedQuestion, st.RetrievalHistory)
	if err != nil || strings.TrimSpace(excerpt) == "" {
		e.log.Info("document fallback unavailable, escalating",
			zap.String("session_id", st.SessionID),
			zap.Error(err),
		)
		return StageEscalate, nil
	}
	st.FallbackUsed = true
	st.FinalAnswer = excerpt
	return StagePresentFallback, nil
}

func (e *Engine) presentFallback(st *session.State) (Stage, error) {
	e.io.Present(fallbackTitle, st.FinalAnswer)
	return StageLogPreliminary, nil
}

func (e *Engine) escalate(st *session.State) (Stage, error) {
	st.Escalated = true
	st.FinalAnswer = escalationNotice
	e.io.Present(escalateTitle, escalationNotice)
	return StageLogPreliminary, nil
}

// collectFeedback reads the closing satisfaction input and classifies it.
// Ambiguity and oracle failure both resolve to satisfied-but-flagged: false
// negatives are cheaper than spurious tickets.
func (e *Engine) collectFeedback(ctx context.Context, st *session.State) (Stage, error) {
	e.io.Show("Was this information sufficient? (yes/no)")
	input, err := e.io.Ask("You: ")
	if err != nil {
		return StageDone, err
	}
	st.AppendMessage(session.RoleUser, strings.TrimSpace(input))

	inv := oracle.Invocation{
		Name:        "feedback_collector",
		Instruction: oracle.FeedbackInstruction,
		Content:     strings.TrimSpace(input),
		Schema:      oracle.FeedbackVerdictSchema(),
	}

	verdict, oerr := oracle.Call[oracle.FeedbackVerdict](ctx, e.oracle, inv)
	switch {
	case oerr != nil || verdict.Uncertain:
		st.UserSatisfied = true
		st.FeedbackUncertain = true
	default:
		st.UserSatisfied = verdict.Satisfied
		st.FeedbackUncertain = false
	}
	st.FeedbackCollected = true
	return StageLogFinal, nil
}

// formatConversation renders the transcript for the gatherer.
func formatConversation(msgs []session.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		role := "User"
		if m.Role == session.RoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s", role, m.Content)
	}
	return b.String()
}

// formatPreviousAttempts summarises prior searches for the query planner,
// truncating each result so the planner sees shape, not bulk.
func formatPreviousAttempts(history []session.RetrievalRecord) string {
	if len(history) == 0 {
		return "(none)"
	}
	parts := make([]string, len(history))
	for i, rec := range history {
		summary := rec.Context
		if runes := []rune(summary); len(runes) > 200 {
			summary = string(runes[:200]) + "..."
		}
		if summary == "" {
			summary = "(no results)"
		}
		parts[i] = fmt.Sprintf("Attempt %d: Query: %q → %s", i+1, rec.Query, summary)
	}
	return strings.Join(parts, "\n")
}

// formatHistory renders the full history for the quality checker.
func formatHistory(history []session.RetrievalRecord) string {
	if len(history) == 0 {
		return "(no previous searches)"
	}
	parts := make([]string, len(history))
	for i, rec := range history {
		result := rec.Context
		if result == "" {
			result = "(empty — no results found)"
		}
		parts[i] = fmt.Sprintf("--- Attempt %d ---\nQuery: %s\nResult: %s", i+1, rec.Query, result)
	}
	return strings.Join(parts, "\n\n")
}

// formatAllContext concatenates every non-empty context for the answer
// formulator.
func formatAllContext(history []session.RetrievalRecord) string {
	var parts []string
	for i, rec := range history {
		if rec.Context == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("--- Search %d: %q ---\n%s", i+1, rec.Query, rec.Context))
	}
	if len(parts) == 0 {
		return "(no relevant context found)"
	}
	return strings.Join(parts, "\n\n")
}
