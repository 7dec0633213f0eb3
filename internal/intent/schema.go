package intent

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownIntentSchema is returned when no entity schema exists for an intent.
var ErrUnknownIntentSchema = errors.New("intent: no schema for intent")

// LeadStatuses are the permitted values for the status field.
var LeadStatuses = []string{"NEW", "IN_PROGRESS", "FOLLOW_UP", "WON", "LOST"}

// KnownSources are the recognized lead acquisition channels.
var KnownSources = []string{"instagram", "facebook", "linkedin", "website", "google", "ads"}

// Schema describes the entity contract for one intent.
// Required and Optional are disjoint; Enums constrains specific fields
// to a closed value set.
type Schema struct {
	Required []string
	Optional []string
	Enums    map[string][]string
}

var schemas = map[Intent]Schema{
	LeadCreate: {
		Required: []string{"name", "phone", "city"},
		Optional: []string{"source"},
	},
	VisitSchedule: {
		Required: []string{"lead_id", "visit_time"},
		Optional: []string{"notes"},
	},
	LeadUpdate: {
		Required: []string{"lead_id", "status"},
		Optional: []string{"notes"},
		Enums:    map[string][]string{"status": LeadStatuses},
	},
}

// SchemaFor returns the entity schema for an intent. UNKNOWN has no schema.
func SchemaFor(in Intent) (Schema, error) {
	s, ok := schemas[in]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %s", ErrUnknownIntentSchema, in)
	}
	return s, nil
}

// ValidationState enumerates the outcomes of schema validation.
type ValidationState string

const (
	ValidationOK            ValidationState = "OK"
	ValidationMissingFields ValidationState = "MISSING_FIELDS"
	ValidationInvalidEnum   ValidationState = "INVALID_ENUM_VALUE"
	// ValidationSkipped marks segments that were never validated (UNKNOWN intent).
	ValidationSkipped ValidationState = "SKIPPED"
)

// Validation is the result of checking an entity set against a schema.
type Validation struct {
	State         ValidationState `json:"state"`
	MissingFields []string        `json:"missing_fields,omitempty"`
	Field         string          `json:"field,omitempty"`
	Value         string          `json:"value,omitempty"`
}

// OK reports whether the entity set passed validation.
func (v Validation) OK() bool { return v.State == ValidationOK }

// Validate checks ents against the schema for in. Missing required
// fields take precedence over enum violations.
func Validate(in Intent, ents Entities) (Validation, error) {
	sch, err := SchemaFor(in)
	if err != nil {
		return Validation{}, err
	}

	var missing []string
	for _, field := range sch.Required {
		if strings.TrimSpace(ents[field]) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return Validation{State: ValidationMissingFields, MissingFields: missing}, nil
	}

	for field, allowed := range sch.Enums {
		value, ok := ents[field]
		if !ok {
			continue
		}
		if !containsString(allowed, value) {
			return Validation{State: ValidationInvalidEnum, Field: field, Value: value}, nil
		}
	}

	return Validation{State: ValidationOK}, nil
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
