package intent

// Intent is the classified action type for one transcript segment.
type Intent string

const (
	LeadCreate    Intent = "LEAD_CREATE"
	VisitSchedule Intent = "VISIT_SCHEDULE"
	LeadUpdate    Intent = "LEAD_UPDATE"
	Unknown       Intent = "UNKNOWN"
)

// Source identifies which classifier produced a Classification.
type Source string

const (
	SourceAI    Source = "AI"
	SourceRules Source = "RULE_BASED"
)

// Entities maps extracted field names to raw string values.
// Values are uninterpreted strings until schema validation.
type Entities map[string]string

// Classification is the outcome of classifying a single segment.
type Classification struct {
	Intent     Intent   `json:"intent"`
	Entities   Entities `json:"entities"`
	Confidence float64  `json:"confidence"`
	Source     Source   `json:"source"`
}
