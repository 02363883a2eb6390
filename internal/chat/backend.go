// Package chat implements the Kadak Adda assistant: bounded-history prompts
// sent to a hosted completion service with retry on overload and fallback
// across a priority list of models.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/domain"
)

// GenerationConfig holds sampling parameters forwarded to the model.
type GenerationConfig struct {
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// Call is a single completion request against one model.
type Call struct {
	Model             string
	Prompt            string
	History           []domain.Turn // already bounded by the caller
	SystemInstruction string
	APIKey            string // direct mode only
	Generation        GenerationConfig
}

// Completion is a successful model reply, before normalization.
type Completion struct {
	Text      string
	Model     string
	ProjectID string
}

// Backend sends one completion call to the remote service.
type Backend interface {
	Send(ctx context.Context, call Call) (*Completion, error)
}

// StatusError is returned for a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("upstream error: %d", e.StatusCode)
}

// IsOverloaded reports whether err is a 503-class response that is worth
// retrying against the same model.
func IsOverloaded(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusServiceUnavailable
}
