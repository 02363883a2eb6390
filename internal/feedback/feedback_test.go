package feedback

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/domain"
	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/store"
)

const owner = "anon_owner"

func newCollector(t *testing.T) (*Collector, store.ItemStore) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	c := NewCollector(repo, DefaultKeywords)
	c.SetClock(func() time.Time { return time.Date(2026, 10, 19, 15, 4, 5, 0, time.UTC) })
	return c, repo
}

func TestSubmitPrependsAndAcknowledges(t *testing.T) {
	c, _ := newCollector(t)
	ctx := context.Background()

	first, err := c.Submit(ctx, owner, Form{Name: "Asha", Rating: 5, Notes: "Loved the kulhad chai"})
	require.NoError(t, err)
	assert.Equal(t, "Thanks Asha! Your rating (5/5) has been recorded.", first.Acknowledgment)
	assert.Equal(t, "10/19/2026, 3:04:05 PM", first.Record.Date)
	assert.NotEmpty(t, first.Record.ID)

	second, err := c.Submit(ctx, owner, Form{Name: "   ", Rating: 2, Notes: "  too sweet  "})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultFeedbackName, second.Record.Name)
	assert.Equal(t, "too sweet", second.Record.Notes)
	assert.Equal(t, "Thanks Anonymous! Your rating (2/5) has been recorded.", second.Acknowledgment)

	list := c.List(ctx, owner)
	require.Len(t, list, 2)
	assert.Equal(t, second.Record, list[0], "newest first")
	assert.Equal(t, first.Record, list[1])
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	c, items := newCollector(t)
	ctx := context.Background()

	tests := []struct {
		form    Form
		message string
	}{
		{Form{Name: "A", Rating: 4, Notes: ""}, EmptyNotesMessage},
		{Form{Name: "A", Rating: 4, Notes: " \n\t "}, EmptyNotesMessage},
		{Form{Name: "A", Rating: 0, Notes: "ok"}, InvalidRatingMessage},
		{Form{Name: "A", Rating: 6, Notes: "ok"}, InvalidRatingMessage},
		{Form{Name: "A", Rating: 3, Notes: strings.Repeat("x", 2001)}, TooLongMessage},
	}
	for _, tt := range tests {
		_, err := c.Submit(ctx, owner, tt.form)
		var verr *domain.ValidationError
		require.True(t, errors.As(err, &verr), "form %+v: got %v", tt.form, err)
		assert.Equal(t, tt.message, verr.Message)
	}

	_, ok, err := items.GetItem(ctx, owner, StorageKey)
	require.NoError(t, err)
	assert.False(t, ok, "rejected submissions must not write")
}

func TestListTreatsMalformedAsEmpty(t *testing.T) {
	c, items := newCollector(t)
	ctx := context.Background()

	assert.Empty(t, c.List(ctx, owner))
	require.NoError(t, items.SetItem(ctx, owner, StorageKey, "not json"))
	assert.Empty(t, c.List(ctx, owner))
	assert.True(t, c.Sentiment(ctx, owner).Empty)

	_, err := c.Submit(ctx, owner, Form{Rating: 4, Notes: "recovered"})
	require.NoError(t, err)
	assert.Len(t, c.List(ctx, owner), 1, "a malformed value is overwritten by the next submission")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		rating int
		notes  string
		want   string
	}{
		{5, "meh", Positive},
		{4, "terrible", Positive},
		{1, "I LOVE it", Positive},
		{2, "great vibe, cold tea", Positive},
		{3, "bad", Neutral},
		{1, "it was fine", Neutral},
		{2, "Okay-ish", Neutral},
		{1, "cold", Negative},
		{2, "", Negative},
	}
	for _, tt := range tests {
		got := DefaultKeywords.Classify(domain.FeedbackRecord{Rating: tt.rating, Notes: tt.notes})
		assert.Equal(t, tt.want, got, "rating=%d notes=%q", tt.rating, tt.notes)
	}
}

func TestDeriveSentiment(t *testing.T) {
	empty := DeriveSentiment(nil)
	assert.True(t, empty.Empty)
	assert.Equal(t, NoFeedbackMessage, empty.Summary)

	s := DeriveSentiment([]domain.FeedbackRecord{
		{Rating: 5, Notes: "a"},
		{Rating: 3, Notes: "b"},
		{Rating: 1, Notes: "c"},
	})
	assert.False(t, s.Empty)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, []int{33, 33, 33}, []int{s.PositivePct, s.NeutralPct, s.NegativePct}, "rounded independently, sum may differ from 100")
	assert.Equal(t, "😊 Positive: 33% | 😐 Neutral: 33% | 😞 Negative: 33%", s.Summary)

	s = DeriveSentiment([]domain.FeedbackRecord{
		{Rating: 5, Notes: "great"},
		{Rating: 2, Notes: "bad"},
	})
	assert.Equal(t, 50, s.PositivePct)
	assert.Equal(t, 0, s.NeutralPct)
	assert.Equal(t, 50, s.NegativePct)

	s = DeriveSentiment([]domain.FeedbackRecord{
		{Rating: 5}, {Rating: 5}, {Rating: 1},
	})
	assert.Equal(t, 67, s.PositivePct)
	assert.Equal(t, 0, s.NeutralPct)
	assert.Equal(t, 33, s.NegativePct)
}
