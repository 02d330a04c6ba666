package oracle

// Typed responses, one per call site. Each has a matching raw JSON schema
// passed to the API via responseJsonSchema so the model is held to the shape
// we decode.

// GatherAssessment is the information gatherer's combined verdict: either the
// question is classified, or a follow-up question is supplied.
type GatherAssessment struct {
	HasEnoughInfo      bool   `json:"has_enough_info"`
	FollowUpQuestion   string `json:"follow_up_question"`
	Reasoning          string `json:"reasoning"`
	ClassifiedQuestion string `json:"classified_question"`
}

// SearchPlan is the retriever's formulated search query.
type SearchPlan struct {
	SearchQuery string `json:"search_query"`
	Reasoning   string `json:"reasoning"`
}

// SufficiencyAssessment judges whether accumulated context can support an
// answer, and if not, what is missing.
type SufficiencyAssessment struct {
	Sufficient     bool   `json:"is_sufficient"`
	InformationGap string `json:"information_gap"`
	Reasoning      string `json:"reasoning"`
}

// AnswerDraft is the formulated final answer. Confidence and sources go to
// the audit log, not the user.
type AnswerDraft struct {
	Answer      string `json:"answer"`
	Confidence  string `json:"confidence"`
	SourcesUsed string `json:"sources_used"`
}

// FeedbackVerdict classifies the user's closing feedback.
type FeedbackVerdict struct {
	Satisfied bool `json:"is_satisfied"`
	Uncertain bool `json:"is_uncertain"`
}

// ClarificationVerdict judges whether post-answer input warrants another
// retrieval cycle.
type ClarificationVerdict struct {
	Actionable     bool   `json:"is_actionable"`
	InformationGap string `json:"information_gap"`
	Reasoning      string `json:"reasoning"`
}

// TOCAnalysis is the fallback miner's table-of-contents verdict over the
// first pages of a long document. Pages are 1-indexed.
type TOCAnalysis struct {
	HasTOC        bool   `json:"has_toc"`
	RelevantPages []int  `json:"relevant_pages"`
	SectionTitle  string `json:"most_relevant_section_title"`
	Reasoning     string `json:"reasoning"`
}

func objectSchema(props map[string]interface{}, required []string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func boolProp() map[string]interface{}   { return map[string]interface{}{"type": "boolean"} }
func stringProp() map[string]interface{} { return map[string]interface{}{"type": "string"} }
func intArrayProp() map[string]interface{} {
	return map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "integer"},
	}
}

// GatherAssessmentSchema matches GatherAssessment.
func GatherAssessmentSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"has_enough_info":     boolProp(),
		"follow_up_question":  stringProp(),
		"reasoning":           stringProp(),
		"classified_question": stringProp(),
	}, []string{"has_enough_info", "follow_up_question", "reasoning", "classified_question"})
}

// SearchPlanSchema matches SearchPlan.
func SearchPlanSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"search_query": stringProp(),
		"reasoning":    stringProp(),
	}, []string{"search_query", "reasoning"})
}

// SufficiencyAssessmentSchema matches SufficiencyAssessment.
func SufficiencyAssessmentSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"is_sufficient":   boolProp(),
		"information_gap": stringProp(),
		"reasoning":       stringProp(),
	}, []string{"is_sufficient", "information_gap", "reasoning"})
}

// AnswerDraftSchema matches AnswerDraft.
func AnswerDraftSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"answer":       stringProp(),
		"confidence":   stringProp(),
		"sources_used": stringProp(),
	}, []string{"answer", "confidence", "sources_used"})
}

// FeedbackVerdictSchema matches FeedbackVerdict.
func FeedbackVerdictSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"is_satisfied": boolProp(),
		"is_uncertain": boolProp(),
	}, []string{"is_satisfied", "is_uncertain"})
}

// ClarificationVerdictSchema matches ClarificationVerdict.
func ClarificationVerdictSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"is_actionable":   boolProp(),
		"information_gap": stringProp(),
		"reasoning":       stringProp(),
	}, []string{"is_actionable", "information_gap", "reasoning"})
}

// TOCAnalysisSchema matches TOCAnalysis.
func TOCAnalysisSchema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"has_toc":                     boolProp(),
		"relevant_pages":              intArrayProp(),
		"most_relevant_section_title": stringProp(),
		"reasoning":                   stringProp(),
	}, []string{"has_toc", "relevant_pages", "most_relevant_section_title", "reasoning"})
}
