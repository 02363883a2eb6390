// Package feedback collects customer feedback and scores its sentiment.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/domain"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/metrics"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/store"
)

// StorageKey is the per-visitor item holding the JSON feedback array.
const StorageKey = "kadakFeedback"

const (
	EmptyNotesMessage    = "Please write some feedback before submitting."
	InvalidRatingMessage = "Please choose a rating between 1 and 5."
	TooLongMessage       = "Your feedback is too long."
)

// DateLayout renders submission timestamps for display.
const DateLayout = "1/2/2006, 3:04:05 PM"

// Form is a feedback submission.
type Form struct {
	Name   string `json:"name" validate:"max=80"`
	Rating int    `json:"rating" validate:"min=1,max=5"`
	Notes  string `json:"notes" validate:"required,max=2000"`
}

// Submission is the stored record plus the acknowledgment shown to the visitor.
type Submission struct {
	Record         domain.FeedbackRecord `json:"record"`
	Acknowledgment string                `json:"acknowledgment"`
}

// Collector stores feedback newest first. There is no update or delete path.
type Collector struct {
	items    store.ItemStore
	keywords Keywords
	validate *validator.Validate
	now      func() time.Time
}

// NewCollector creates a collector scoring sentiment with keywords.
func NewCollector(items store.ItemStore, keywords Keywords) *Collector {
	return &Collector{
		items:    items,
		keywords: keywords,
		validate: validator.New(),
		now:      time.Now,
	}
}

// SetClock replaces the time source used to stamp submissions.
func (c *Collector) SetClock(now func() time.Time) { c.now = now }

// Submit validates form and prepends a timestamped record. Blank notes return
// a *domain.ValidationError and store nothing.
func (c *Collector) Submit(ctx context.Context, owner string, form Form) (Submission, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Notes = strings.TrimSpace(form.Notes)

	if form.Notes == "" {
		return Submission{}, &domain.ValidationError{Message: EmptyNotesMessage, Fields: []string{"notes"}}
	}
	if err := c.validate.Struct(form); err != nil {
		return Submission{}, validationError(err)
	}
	if form.Name == "" {
		form.Name = domain.DefaultFeedbackName
	}

	rec := domain.FeedbackRecord{
		ID:     uuid.NewString(),
		Name:   form.Name,
		Rating: form.Rating,
		Notes:  form.Notes,
		Date:   c.now().Format(DateLayout),
	}

	records := append([]domain.FeedbackRecord{rec}, c.List(ctx, owner)...)
	data, err := json.Marshal(records)
	if err != nil {
		return Submission{}, fmt.Errorf("encode feedback: %w", err)
	}
	if err := c.items.SetItem(ctx, owner, StorageKey, string(data)); err != nil {
		return Submission{}, fmt.Errorf("save feedback: %w", err)
	}
	metrics.FeedbackSubmissionsTotal.WithLabelValues(strconv.Itoa(rec.Rating)).Inc()

	return Submission{
		Record:         rec,
		Acknowledgment: fmt.Sprintf("Thanks %s! Your rating (%d/5) has been recorded.", rec.Name, rec.Rating),
	}, nil
}

// List returns stored feedback newest first. Unreadable or malformed data
// yields an empty list.
func (c *Collector) List(ctx context.Context, owner string) []domain.FeedbackRecord {
	raw, ok, err := c.items.GetItem(ctx, owner, StorageKey)
	if err != nil {
		slog.Warn("Failed to read feedback", "visitor_id", owner, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var records []domain.FeedbackRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		slog.Warn("Malformed feedback, ignoring", "visitor_id", owner, "error", err)
		return nil
	}
	return records
}

// Sentiment scores the visitor's stored feedback.
func (c *Collector) Sentiment(ctx context.Context, owner string) Sentiment {
	return c.keywords.Derive(c.List(ctx, owner))
}

func validationError(err error) *domain.ValidationError {
	verr := &domain.ValidationError{Message: InvalidRatingMessage}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return verr
	}
	for _, fe := range fieldErrs {
		verr.Fields = append(verr.Fields, strings.ToLower(fe.Field()))
	}
	for _, fe := range fieldErrs {
		if fe.Field() != "Rating" {
			verr.Message = TooLongMessage
			break
		}
	}
	return verr
}
