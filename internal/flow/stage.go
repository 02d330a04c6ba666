package flow

// Stage names one node of the session state machine. The engine computes the
// next stage from session state alone; stages carry no payload.
type Stage string

const (
	StageProductSelection    Stage = "product_selection"
	StageGatherInformation   Stage = "gather_information"
	StageAskUserForDetails   Stage = "ask_user_for_details"
	StageRetrieve            Stage = "retrieve"
	StageAssessQuality       Stage = "assess_quality"
	StageFormulateAnswer     Stage = "formulate_answer"
	StagePresentAnswer       Stage = "present_answer"
	StageAskForClarification Stage = "ask_for_clarification"
	StageAssessClarification Stage = "assess_clarification"
	StageDocumentFallback    Stage = "document_fallback"
	StagePresentFallback     Stage = "present_fallback_answer"
	StageEscalate            Stage = "escalate"
	StageLogPreliminary      Stage = "log_preliminary"
	StageCollectFeedback     Stage = "collect_feedback"
	StageLogFinal            Stage = "log_final"
	StageDone                Stage = "done"
)

func (s Stage) String() string { return string(s) }
