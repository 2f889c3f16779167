package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ModerationVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "forumboard_moderation_verdicts_total",
	Help: "Number of moderation decisions, by result",
}, []string{"result"})

var AutoReplyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "forumboard_autoreply_outcomes_total",
	Help: "Number of ForumBot auto-reply tasks finished, by trigger and outcome",
}, []string{"trigger", "outcome"})

var AutoReplyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "forumboard_autoreply_duration_seconds",
	Help:    "Time spent generating and posting a ForumBot reply, after the scheduled delay",
	Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
}, []string{"trigger"})

var ScheduledTasks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "forumboard_scheduled_tasks_total",
	Help: "Number of background tasks run by the scheduler, by status",
}, []string{"status"})

var RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "forumboard_rate_limited_total",
	Help: "Number of requests refused by the per-user cooldown, by action",
}, []string{"action"})
