package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrMissingCredential is returned in direct mode when no API key is known
// for the visitor or the server.
//
//nolint:staticcheck // Rendered verbatim in the chat transcript.
var ErrMissingCredential = errors.New("Add your Gemini API key to start chatting")

// DirectBackend calls the model provider's generateContent endpoint with a
// caller-supplied API key.
type DirectBackend struct {
	httpClient *resty.Client
}

// NewDirectBackend creates a Resty-backed client rooted at baseURL
// (e.g. https://generativelanguage.googleapis.com/v1beta).
func NewDirectBackend(baseURL string, timeout time.Duration) *DirectBackend {
	return &DirectBackend{
		httpClient: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout),
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	ModelVersion string `json:"modelVersion,omitempty"`
}

type generateError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Send implements Backend.
func (b *DirectBackend) Send(ctx context.Context, call Call) (*Completion, error) {
	if call.APIKey == "" {
		return nil, ErrMissingCredential
	}

	contents := make([]content, 0, len(call.History)+1)
	for _, turn := range call.History {
		contents = append(contents, content{Role: string(turn.Role), Parts: []part{{Text: turn.Text}}})
	}
	contents = append(contents, content{Role: "user", Parts: []part{{Text: call.Prompt}}})

	body := generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     call.Generation.Temperature,
			MaxOutputTokens: call.Generation.MaxOutputTokens,
		},
	}
	if call.SystemInstruction != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: call.SystemInstruction}}}
	}

	var (
		result  generateResponse
		failure generateError
	)
	resp, err := b.httpClient.R().
		SetContext(ctx).
		SetPathParam("model", call.Model).
		SetQueryParam("key", call.APIKey).
		SetBody(body).
		SetResult(&result).
		SetError(&failure).
		Post("/models/{model}:generateContent")
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect: %w", call.Model, err)
	}

	if resp.IsError() || !resp.IsSuccess() {
		msg := failure.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode())
		}
		return nil, &StatusError{
			StatusCode: resp.StatusCode(),
			Message:    fmt.Sprintf("%s: %s", call.Model, msg),
		}
	}

	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("%s: empty response", call.Model)
	}
	texts := make([]string, 0, len(result.Candidates[0].Content.Parts))
	for _, p := range result.Candidates[0].Content.Parts {
		texts = append(texts, p.Text)
	}
	text := strings.Join(texts, "\n")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: empty response", call.Model)
	}

	return &Completion{Text: text, Model: call.Model}, nil
}
