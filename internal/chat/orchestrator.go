package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/domain"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/metrics"
)

// WarningPrefix marks failure text rendered into the transcript.
const WarningPrefix = "⚠️ "

// BusyMessage replaces raw error text when every model reported overload.
const BusyMessage = "Our chai assistant is busy right now. Please try again in a moment."

var (
	ErrEmptyPrompt = errors.New("prompt is empty")
	ErrSessionBusy = errors.New("a message is already being answered")
)

var speakerLabel = regexp.MustCompile(`(?i)^(Bot|AI|System):\s*`)

// Normalize strips a leading speaker label the model sometimes echoes and
// trims surrounding whitespace.
func Normalize(text string) string {
	return strings.TrimSpace(speakerLabel.ReplaceAllString(text, ""))
}

// State is a step of the per-request state machine.
type State string

const (
	StateIdle         State = "idle"
	StateSending      State = "sending"
	StateRetrying     State = "retrying"
	StateFallbackNext State = "fallback_next"
	StateSuccess      State = "success"
	StateFailed       State = "failed"
)

// Event is emitted on every state transition.
type Event struct {
	State   State  `json:"state"`
	Model   string `json:"model,omitempty"`
	Attempt int    `json:"attempt,omitempty"`
	DelayMS int64  `json:"delay_ms,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Observer receives state events. It is called synchronously.
type Observer func(Event)

// Policy configures the retry and fallback loop.
type Policy struct {
	Models            []string
	RetryCeiling      int // total attempts per model
	RetryBaseDelay    time.Duration
	HistoryLimit      int
	SystemInstruction string
	Generation        GenerationConfig
	ThinkingText      string
}

// Options are per-submission settings.
type Options struct {
	APIKey   string
	Observer Observer
}

// Outcome describes how a submission ended. Upstream failures are reported
// here with OK=false rather than as an error from Submit.
type Outcome struct {
	OK       bool    `json:"ok"`
	Reply    string  `json:"reply"`
	Model    string  `json:"model,omitempty"`
	Attempts int     `json:"attempts"`
	Stale    bool    `json:"stale,omitempty"`
	Message  Message `json:"message"`
	Err      error   `json:"-"`
}

// FailureError aggregates the per-model errors of a fully failed submission.
type FailureError struct {
	Causes     *multierror.Error
	Overloaded bool // every model's final error was a 503
}

func (e *FailureError) Error() string { return e.Causes.Error() }

func (e *FailureError) Unwrap() error { return e.Causes }

// Display returns the user-facing text for a failed submission.
func Display(err error) string {
	var fe *FailureError
	if errors.As(err, &fe) && fe.Overloaded {
		return BusyMessage
	}
	if err == nil || err.Error() == "" {
		return "Unable to connect to chatbot service. Please try again."
	}
	return err.Error()
}

// Orchestrator runs submissions against a Backend.
type Orchestrator struct {
	backend Backend
	policy  Policy
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger
}

// NewOrchestrator creates an orchestrator. A nil logger uses slog.Default().
func NewOrchestrator(backend Backend, policy Policy, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.RetryCeiling <= 0 {
		policy.RetryCeiling = 1
	}
	return &Orchestrator{
		backend: backend,
		policy:  policy,
		sleep:   sleepContext,
		logger:  logger,
	}
}

// SetSleeper replaces the delay function used between retries.
func (o *Orchestrator) SetSleeper(fn func(ctx context.Context, d time.Duration) error) {
	o.sleep = fn
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit sends prompt on behalf of session and renders the result into its
// transcript. It returns ErrEmptyPrompt or ErrSessionBusy without touching
// the session.
func (o *Orchestrator) Submit(ctx context.Context, session *Session, prompt string, opts Options) (Outcome, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		metrics.ChatRequestsTotal.WithLabelValues("rejected").Inc()
		return Outcome{}, ErrEmptyPrompt
	}
	if err := session.TryBegin(); err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("rejected").Inc()
		return Outcome{}, err
	}
	defer session.End()

	emit := func(ev Event) {
		if opts.Observer != nil {
			opts.Observer(ev)
		}
	}
	emit(Event{State: StateIdle})

	call := Call{
		Prompt:            prompt,
		History:           session.recentHistory(o.policy.HistoryLimit),
		SystemInstruction: o.policy.SystemInstruction,
		APIKey:            opts.APIKey,
		Generation:        o.policy.Generation,
	}
	placeholderID := session.appendExchange(prompt, o.policy.ThinkingText)

	completion, attempts, err := o.complete(ctx, call, emit)
	if err != nil {
		text := WarningPrefix + Display(err)
		msg, ok := session.resolve(placeholderID, text)
		emit(Event{State: StateFailed, Error: err.Error()})
		metrics.ChatRequestsTotal.WithLabelValues(failureOutcome(err)).Inc()
		o.logger.Warn("Chat submission failed",
			"session", session.Key(),
			"attempts", attempts,
			"error", err,
		)
		return Outcome{Reply: text, Attempts: attempts, Stale: !ok, Message: msg, Err: err}, nil
	}

	reply := Normalize(completion.Text)
	msg, ok := session.resolve(placeholderID, reply,
		domain.Turn{Role: domain.RoleUser, Text: prompt},
		domain.Turn{Role: domain.RoleModel, Text: reply},
	)
	if !ok {
		o.logger.Info("Discarding reply for cleared session", "session", session.Key())
	}
	emit(Event{State: StateSuccess, Model: completion.Model})
	metrics.ChatRequestsTotal.WithLabelValues("success").Inc()
	return Outcome{
		OK:       true,
		Reply:    reply,
		Model:    completion.Model,
		Attempts: attempts,
		Stale:    !ok,
		Message:  msg,
	}, nil
}

func failureOutcome(err error) string {
	var fe *FailureError
	if errors.As(err, &fe) && fe.Overloaded {
		return "busy"
	}
	return "failed"
}

// complete walks the model list, retrying overloaded models, and returns the
// first successful completion with the total number of attempts made.
func (o *Orchestrator) complete(ctx context.Context, call Call, emit Observer) (*Completion, int, error) {
	var (
		causes     *multierror.Error
		overloaded = true
		attempts   int
	)
	for i, model := range o.policy.Models {
		if i > 0 {
			metrics.ChatFallbacksTotal.WithLabelValues(o.policy.Models[i-1]).Inc()
			emit(Event{State: StateFallbackNext, Model: model})
		}

		call.Model = model
		completion, n, err := o.tryModel(ctx, call, emit)
		attempts += n
		if err == nil {
			return completion, attempts, nil
		}
		if errors.Is(err, ErrMissingCredential) {
			return nil, attempts, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, attempts, fmt.Errorf("chat request cancelled: %w", ctxErr)
		}

		causes = multierror.Append(causes, err)
		if !IsOverloaded(err) {
			overloaded = false
		}
		o.logger.Debug("Model failed", "model", model, "attempts", n, "error", err)
	}

	if causes == nil {
		return nil, attempts, errors.New("no chat models configured")
	}
	causes.ErrorFormat = joinErrors
	return nil, attempts, &FailureError{Causes: causes, Overloaded: overloaded}
}

// tryModel sends call up to RetryCeiling times, sleeping attempt x base
// delay after each overloaded response.
func (o *Orchestrator) tryModel(ctx context.Context, call Call, emit Observer) (*Completion, int, error) {
	ceiling := o.policy.RetryCeiling
	for attempt := 1; ; attempt++ {
		emit(Event{State: StateSending, Model: call.Model, Attempt: attempt})
		completion, err := o.backend.Send(ctx, call)
		if err == nil {
			metrics.ChatAttemptsTotal.WithLabelValues(call.Model, "success").Inc()
			return completion, attempt, nil
		}

		if !IsOverloaded(err) {
			metrics.ChatAttemptsTotal.WithLabelValues(call.Model, "error").Inc()
			return nil, attempt, err
		}
		metrics.ChatAttemptsTotal.WithLabelValues(call.Model, "overloaded").Inc()
		if attempt >= ceiling {
			return nil, attempt, err
		}

		delay := time.Duration(attempt) * o.policy.RetryBaseDelay
		emit(Event{
			State:   StateRetrying,
			Model:   call.Model,
			Attempt: attempt,
			DelayMS: delay.Milliseconds(),
			Error:   err.Error(),
		})
		if sleepErr := o.sleep(ctx, delay); sleepErr != nil {
			return nil, attempt, sleepErr
		}
	}
}

func joinErrors(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return strconv.Itoa(len(parts)) + " models failed: " + strings.Join(parts, "; ")
}
