package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/domain"
)

// ProjectHeader identifies this site to the shared proxy worker.
const ProjectHeader = "X-Project-ID"

//nolint:staticcheck // Rendered verbatim in the chat transcript.
var errInvalidWorkerResponse = errors.New("Invalid response from worker")

// ProxiedBackend posts flattened conversations to a proxy worker that holds
// the model credential.
type ProxiedBackend struct {
	httpClient *resty.Client
	projectID  string
}

// NewProxiedBackend creates a Resty-backed client for the proxy worker.
func NewProxiedBackend(workerURL, projectID string, timeout time.Duration) *ProxiedBackend {
	return &ProxiedBackend{
		httpClient: resty.New().
			SetBaseURL(workerURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout),
		projectID: projectID,
	}
}

type proxiedRequest struct {
	Message           string  `json:"message"`
	SystemInstruction string  `json:"systemInstruction"`
	Model             string  `json:"model"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"topP"`
	TopK              int     `json:"topK"`
	MaxOutputTokens   int     `json:"maxOutputTokens"`
}

type proxiedResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Model     string `json:"model,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
}

type proxiedError struct {
	Error string `json:"error"`
}

// Send implements Backend.
func (b *ProxiedBackend) Send(ctx context.Context, call Call) (*Completion, error) {
	var (
		result  proxiedResponse
		failure proxiedError
	)
	resp, err := b.httpClient.R().
		SetContext(ctx).
		SetHeader(ProjectHeader, b.projectID).
		SetBody(proxiedRequest{
			Message:           FlattenHistory(call.History, call.Prompt),
			SystemInstruction: call.SystemInstruction,
			Model:             call.Model,
			Temperature:       call.Generation.Temperature,
			TopP:              call.Generation.TopP,
			TopK:              call.Generation.TopK,
			MaxOutputTokens:   call.Generation.MaxOutputTokens,
		}).
		SetResult(&result).
		SetError(&failure).
		Post("")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chatbot service: %w", err)
	}

	if resp.IsError() || !resp.IsSuccess() {
		msg := failure.Error
		if msg == "" {
			msg = fmt.Sprintf("Worker error: %d", resp.StatusCode())
		}
		return nil, &StatusError{StatusCode: resp.StatusCode(), Message: msg}
	}

	if !result.Success || result.Message == "" {
		return nil, errInvalidWorkerResponse
	}

	model := result.Model
	if model == "" {
		model = call.Model
	}
	return &Completion{Text: result.Message, Model: model, ProjectID: result.ProjectID}, nil
}

// FlattenHistory renders prior turns as "User:"/"Bot:" lines and appends the
// new prompt. With no history the prompt is sent as-is.
func FlattenHistory(history []domain.Turn, prompt string) string {
	if len(history) == 0 {
		return prompt
	}
	var sb strings.Builder
	for _, turn := range history {
		if turn.Role == domain.RoleUser {
			sb.WriteString("User: ")
		} else {
			sb.WriteString("Bot: ")
		}
		sb.WriteString(turn.Text)
		sb.WriteByte('\n')
	}
	sb.WriteString("User: ")
	sb.WriteString(prompt)
	return sb.String()
}
