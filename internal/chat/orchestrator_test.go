package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/domain"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls []Call
	fn    func(call Call, n int) (*Completion, error)
}

func (f *fakeBackend) Send(_ context.Context, call Call) (*Completion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	n := len(f.calls)
	f.mu.Unlock()
	return f.fn(call, n)
}

func (f *fakeBackend) models() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Model
	}
	return out
}

func reply(text string) func(Call, int) (*Completion, error) {
	return func(call Call, _ int) (*Completion, error) {
		return &Completion{Text: text, Model: call.Model}, nil
	}
}

func overloaded() error {
	return &StatusError{StatusCode: http.StatusServiceUnavailable, Message: "model overloaded"}
}

func testPolicy(models ...string) Policy {
	return Policy{
		Models:         models,
		RetryCeiling:   3,
		RetryBaseDelay: 100 * time.Millisecond,
		HistoryLimit:   10,
		ThinkingText:   "🍵 Thinking...",
	}
}

func newTestOrchestrator(b Backend, p Policy) (*Orchestrator, *[]time.Duration) {
	o := NewOrchestrator(b, p, nil)
	var sleeps []time.Duration
	o.SetSleeper(func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	})
	return o, &sleeps
}

func TestSubmitSuccessNormalizesAndRecordsHistory(t *testing.T) {
	b := &fakeBackend{fn: reply("Bot:   Namaste! Try our Masala Chai ☕  ")}
	o, _ := newTestOrchestrator(b, testPolicy("gemma"))
	s := NewSession("v:tab", "hello")

	out, err := o.Submit(context.Background(), s, "  what's good?  ", Options{})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !out.OK || out.Reply != "Namaste! Try our Masala Chai ☕" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.Attempts != 1 || out.Model != "gemma" {
		t.Fatalf("expected 1 attempt on gemma, got %d on %q", out.Attempts, out.Model)
	}

	transcript := s.Transcript()
	if len(transcript) != 3 {
		t.Fatalf("expected greeting + user + bot, got %d messages", len(transcript))
	}
	if transcript[1].Author != AuthorUser || transcript[1].Text != "what's good?" {
		t.Errorf("unexpected user message: %+v", transcript[1])
	}
	if transcript[2].Pending || transcript[2].Text != out.Reply {
		t.Errorf("placeholder not replaced: %+v", transcript[2])
	}

	history := s.History()
	want := []domain.Turn{
		{Role: domain.RoleUser, Text: "what's good?"},
		{Role: domain.RoleModel, Text: "Namaste! Try our Masala Chai ☕"},
	}
	if len(history) != 2 || history[0] != want[0] || history[1] != want[1] {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestSubmitEmptyPromptIsNoop(t *testing.T) {
	b := &fakeBackend{fn: reply("unused")}
	o, _ := newTestOrchestrator(b, testPolicy("gemma"))
	s := NewSession("v:tab", "hello")

	for _, prompt := range []string{"", "   ", "\n\t"} {
		if _, err := o.Submit(context.Background(), s, prompt, Options{}); !errors.Is(err, ErrEmptyPrompt) {
			t.Fatalf("prompt %q: expected ErrEmptyPrompt, got %v", prompt, err)
		}
	}
	if len(b.calls) != 0 {
		t.Errorf("expected no backend calls, got %d", len(b.calls))
	}
	if got := len(s.Transcript()); got != 1 {
		t.Errorf("expected transcript untouched, got %d messages", got)
	}
}

func TestSubmitRetriesOverloadUpToCeiling(t *testing.T) {
	b := &fakeBackend{fn: func(Call, int) (*Completion, error) { return nil, overloaded() }}
	o, sleeps := newTestOrchestrator(b, testPolicy("gemma"))
	s := NewSession("v:tab", "hello")

	var states []State
	out, err := o.Submit(context.Background(), s, "hi", Options{Observer: func(ev Event) { states = append(states, ev.State) }})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if out.OK {
		t.Fatal("expected failure")
	}
	if len(b.calls) != 3 || out.Attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got calls=%d attempts=%d", len(b.calls), out.Attempts)
	}
	if want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}; fmt.Sprint(*sleeps) != fmt.Sprint(want) {
		t.Errorf("expected linear delays %v, got %v", want, *sleeps)
	}
	if out.Reply != WarningPrefix+BusyMessage {
		t.Errorf("expected busy message, got %q", out.Reply)
	}
	if len(s.History()) != 0 {
		t.Error("failed submission must not change history")
	}

	wantStates := []State{
		StateIdle,
		StateSending, StateRetrying,
		StateSending, StateRetrying,
		StateSending,
		StateFailed,
	}
	if fmt.Sprint(states) != fmt.Sprint(wantStates) {
		t.Errorf("states = %v, want %v", states, wantStates)
	}
}

func TestSubmitFallsBackOnNonRetryableError(t *testing.T) {
	b := &fakeBackend{fn: func(call Call, _ int) (*Completion, error) {
		if call.Model == "flash" {
			return nil, &StatusError{StatusCode: http.StatusBadRequest, Message: "flash: bad request"}
		}
		return &Completion{Text: "AI: ok", Model: call.Model}, nil
	}}
	o, sleeps := newTestOrchestrator(b, testPolicy("flash", "lite"))
	s := NewSession("v:tab", "hello")

	var states []State
	out, err := o.Submit(context.Background(), s, "hi", Options{Observer: func(ev Event) { states = append(states, ev.State) }})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !out.OK || out.Reply != "ok" || out.Model != "lite" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if got := b.models(); fmt.Sprint(got) != "[flash lite]" {
		t.Errorf("expected one call per model, got %v", got)
	}
	if len(*sleeps) != 0 {
		t.Errorf("non-retryable errors must not sleep, got %v", *sleeps)
	}
	want := []State{StateIdle, StateSending, StateFallbackNext, StateSending, StateSuccess}
	if fmt.Sprint(states) != fmt.Sprint(want) {
		t.Errorf("states = %v, want %v", states, want)
	}
}

func TestSubmitAggregatesErrorsWhenAllModelsFail(t *testing.T) {
	b := &fakeBackend{fn: func(call Call, _ int) (*Completion, error) {
		if call.Model == "flash" {
			return nil, overloaded()
		}
		return nil, &StatusError{StatusCode: http.StatusForbidden, Message: call.Model + ": permission denied"}
	}}
	o, _ := newTestOrchestrator(b, testPolicy("flash", "lite"))
	s := NewSession("v:tab", "hello")

	out, err := o.Submit(context.Background(), s, "hi", Options{})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if out.OK {
		t.Fatal("expected failure")
	}
	if out.Attempts != 4 {
		t.Errorf("expected 3 attempts on flash + 1 on lite, got %d", out.Attempts)
	}
	if !strings.HasPrefix(out.Reply, WarningPrefix) {
		t.Errorf("expected warning prefix, got %q", out.Reply)
	}
	for _, part := range []string{"model overloaded", "lite: permission denied"} {
		if !strings.Contains(out.Reply, part) {
			t.Errorf("expected %q in aggregated error %q", part, out.Reply)
		}
	}
	var fe *FailureError
	if !errors.As(out.Err, &fe) || fe.Overloaded {
		t.Errorf("expected non-overloaded FailureError, got %#v", out.Err)
	}
	if last := s.Transcript()[2]; last.Text != out.Reply || last.Pending {
		t.Errorf("placeholder not replaced with error: %+v", last)
	}
}

func TestSubmitSendsAtMostHistoryLimitTurns(t *testing.T) {
	b := &fakeBackend{fn: reply("sure")}
	o, _ := newTestOrchestrator(b, testPolicy("gemma"))
	s := NewSession("v:tab", "hello")

	for i := 0; i < 7; i++ {
		if _, err := o.Submit(context.Background(), s, fmt.Sprintf("q%d", i), Options{}); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
	}

	last := b.calls[len(b.calls)-1]
	if len(last.History) != 10 {
		t.Fatalf("expected 10 history turns, got %d", len(last.History))
	}
	if last.History[0].Text != "q1" || last.History[9].Text != "sure" {
		t.Errorf("expected the most recent turns, got first=%q last=%q", last.History[0].Text, last.History[9].Text)
	}
	if got := len(s.History()); got != 14 {
		t.Errorf("full history should keep growing, got %d", got)
	}
}

func TestSubmitRejectsConcurrentSubmission(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	b := &fakeBackend{fn: func(call Call, _ int) (*Completion, error) {
		close(started)
		<-release
		return &Completion{Text: "done", Model: call.Model}, nil
	}}
	o, _ := newTestOrchestrator(b, testPolicy("gemma"))
	s := NewSession("v:tab", "hello")

	done := make(chan Outcome)
	go func() {
		out, _ := o.Submit(context.Background(), s, "first", Options{})
		done <- out
	}()
	<-started

	if _, err := o.Submit(context.Background(), s, "second", Options{}); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}
	close(release)
	if out := <-done; !out.OK {
		t.Fatalf("first submission failed: %+v", out)
	}
	if got := len(s.Transcript()); got != 3 {
		t.Errorf("rejected submission must not touch transcript, got %d messages", got)
	}
}

func TestSubmitDiscardsReplyAfterClear(t *testing.T) {
	s := NewSession("v:tab", "hello")
	b := &fakeBackend{fn: func(call Call, _ int) (*Completion, error) {
		s.Clear()
		return &Completion{Text: "late", Model: call.Model}, nil
	}}
	o, _ := newTestOrchestrator(b, testPolicy("gemma"))

	out, err := o.Submit(context.Background(), s, "hi", Options{})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !out.Stale {
		t.Error("expected stale outcome")
	}
	transcript := s.Transcript()
	if len(transcript) != 1 || transcript[0].Text != "hello" {
		t.Errorf("expected only the greeting, got %+v", transcript)
	}
	if len(s.History()) != 0 {
		t.Error("stale reply must not reach history")
	}
}

func TestSubmitStopsOnMissingCredential(t *testing.T) {
	b := &fakeBackend{fn: func(Call, int) (*Completion, error) { return nil, ErrMissingCredential }}
	o, _ := newTestOrchestrator(b, testPolicy("flash", "lite"))
	s := NewSession("v:tab", "hello")

	out, err := o.Submit(context.Background(), s, "hi", Options{})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(b.calls) != 1 {
		t.Errorf("expected a single call, got %d", len(b.calls))
	}
	if out.Reply != WarningPrefix+ErrMissingCredential.Error() {
		t.Errorf("unexpected reply %q", out.Reply)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Bot: hi", "hi"},
		{"ai:hello there", "hello there"},
		{"SYSTEM:   x ", "x"},
		{"  plain  ", "plain"},
		{"Hi Bot: there", "Hi Bot: there"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
