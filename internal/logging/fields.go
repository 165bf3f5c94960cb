package logging

// Standardized attribute keys used across components. Keeping these in one
// place makes log queries predictable.
const (
	FieldComponent  = "component"
	FieldEventType  = "event_type"
	FieldJobID      = "job_id"
	FieldJobType    = "job_type"
	FieldWorkflowID = "workflow_id"
	FieldStage      = "stage"
	FieldErrorHint  = "error_hint"
	FieldImpact     = "impact"
)
