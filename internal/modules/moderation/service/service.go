package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"anoa.com/forumboard/internal/agent/providers"
	"anoa.com/forumboard/pkg/apperror"
	"anoa.com/forumboard/pkg/metrics"
)

// unsafeIndicators is matched against the upper-cased classifier verdict.
var unsafeIndicators = []string{"UNSAFE", "VIOLENCE", "HATE", "HARASSMENT", "SELF-HARM", "SEXUAL", "ILLEGAL"}

const (
	ResultApproved              = "approved"
	ResultRejected              = "rejected"
	ResultDegradedNotConfigured = "degraded_not_configured"
	ResultDegradedRateLimited   = "degraded_rate_limited"
	ResultDegradedUnavailable   = "degraded_unavailable"
)

// Gate screens user text. It returns an error wrapping
// apperror.ErrModerationRejected for flagged text and nil otherwise.
type Gate interface {
	Moderate(ctx context.Context, text string) error
}

type gate struct {
	classifier providers.Classifier
	logger     *slog.Logger
}

// NewGate builds a gate around classifier. A nil classifier approves everything.
func NewGate(classifier providers.Classifier, logger *slog.Logger) Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &gate{classifier: classifier, logger: logger.With("component", "moderation")}
}

func (g *gate) Moderate(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if g.classifier == nil {
		g.degraded(ResultDegradedNotConfigured, nil)
		return nil
	}

	verdict, err := g.classifier.Classify(ctx, text)
	if err != nil {
		if errors.Is(err, providers.ErrRateLimited) {
			g.degraded(ResultDegradedRateLimited, err)
		} else {
			g.degraded(ResultDegradedUnavailable, err)
		}
		// fail open
		return nil
	}

	if IsUnsafe(verdict) {
		metrics.ModerationVerdicts.WithLabelValues(ResultRejected).Inc()
		g.logger.Warn("content flagged", "verdict", verdict, "length", len(text))
		return apperror.New(http.StatusBadRequest, "Inappropriate or unsafe content detected",
			fmt.Errorf("classifier verdict %q: %w", strings.TrimSpace(verdict), apperror.ErrModerationRejected))
	}

	metrics.ModerationVerdicts.WithLabelValues(ResultApproved).Inc()
	return nil
}

func (g *gate) degraded(result string, err error) {
	metrics.ModerationVerdicts.WithLabelValues(result).Inc()
	g.logger.Warn("moderation degraded, allowing content", "reason", strings.TrimPrefix(result, "degraded_"), "error", err)
}

// IsUnsafe reports whether a verdict carries any unsafe indicator.
// Unclear verdicts are treated as safe.
func IsUnsafe(verdict string) bool {
	v := strings.ToUpper(verdict)
	for _, indicator := range unsafeIndicators {
		if strings.Contains(v, indicator) {
			return true
		}
	}
	return false
}

// ModerateAll checks fields in order and stops at the first rejection.
func ModerateAll(ctx context.Context, g Gate, texts ...string) error {
	for _, t := range texts {
		if err := g.Moderate(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
