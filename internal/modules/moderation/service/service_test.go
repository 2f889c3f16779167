package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"anoa.com/forumboard/internal/agent/providers"
	"anoa.com/forumboard/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClassifier struct {
	verdict string
	err     error
	calls   []string
}

func (f *fakeClassifier) Classify(_ context.Context, text string) (string, error) {
	f.calls = append(f.calls, text)
	return f.verdict, f.err
}

func TestModerateVerdicts(t *testing.T) {
	cases := []struct {
		verdict  string
		rejected bool
	}{
		{"safe", false},
		{"SAFE", false},
		{"", false},
		{"I am not sure", false},
		{"unsafe\nS10", true},
		{"UNSAFE", true},
		{"this contains hate speech", true},
		{"Self-Harm", true},
		{"VIOLENCE", true},
		{"harassment", true},
		{"sexual", true},
		{"illegal activity", true},
	}

	for _, tc := range cases {
		t.Run(tc.verdict, func(t *testing.T) {
			g := NewGate(&fakeClassifier{verdict: tc.verdict}, nil)
			err := g.Moderate(context.Background(), "some text")
			if tc.rejected {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperror.ErrModerationRejected)
				assert.Equal(t, http.StatusBadRequest, apperror.MapErrorToStatus(err))
				assert.Equal(t, "Inappropriate or unsafe content detected", err.Error())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestModerateFailsOpen(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, NewGate(nil, nil).Moderate(ctx, "hello"), "no classifier configured")

	rateLimited := &fakeClassifier{err: fmt.Errorf("429: %w", providers.ErrRateLimited)}
	assert.NoError(t, NewGate(rateLimited, nil).Moderate(ctx, "hello"))
	assert.Len(t, rateLimited.calls, 1)

	down := &fakeClassifier{err: errors.New("connection refused")}
	assert.NoError(t, NewGate(down, nil).Moderate(ctx, "hello"))
}

func TestModerateSkipsEmptyText(t *testing.T) {
	c := &fakeClassifier{verdict: "UNSAFE"}
	g := NewGate(c, nil)

	assert.NoError(t, g.Moderate(context.Background(), ""))
	assert.NoError(t, g.Moderate(context.Background(), "   \n\t"))
	assert.Empty(t, c.calls)
}

type scriptedClassifier struct {
	verdicts map[string]string
	calls    []string
}

func (s *scriptedClassifier) Classify(_ context.Context, text string) (string, error) {
	s.calls = append(s.calls, text)
	return s.verdicts[text], nil
}

func TestModerateAllShortCircuits(t *testing.T) {
	c := &scriptedClassifier{verdicts: map[string]string{"bad title": "unsafe"}}
	g := NewGate(c, nil)

	err := ModerateAll(context.Background(), g, "bad title", "fine content")
	assert.ErrorIs(t, err, apperror.ErrModerationRejected)
	assert.Equal(t, []string{"bad title"}, c.calls)

	c.calls = nil
	assert.NoError(t, ModerateAll(context.Background(), g, "title", "content"))
	assert.Equal(t, []string{"title", "content"}, c.calls)
}
