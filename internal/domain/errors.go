package domain

import "strings"

// ValidationError reports rejected form input. Message is shown to the
// visitor as-is; Fields names the offending inputs when known.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return e.Message + " (" + strings.Join(e.Fields, ", ") + ")"
}
