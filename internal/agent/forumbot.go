package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"anoa.com/forumboard/internal/agent/providers"
	"anoa.com/forumboard/internal/entity"
	commentRepo "anoa.com/forumboard/internal/modules/comment/repository"
	comment "anoa.com/forumboard/internal/modules/comment/service"
	threadRepo "anoa.com/forumboard/internal/modules/thread/repository"
	"anoa.com/forumboard/pkg/metrics"
	"anoa.com/forumboard/pkg/sanitizer"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TriggerThread  = "thread"
	TriggerComment = "comment"

	OutcomePosted  = "posted"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

const (
	threadSystemPrompt  = "You are ForumBot, a helpful and friendly AI participant."
	commentSystemPrompt = "You are ForumBot, a helpful and friendly AI participant in forum discussions. Keep your responses concise, engaging, and helpful."

	threadUserPrompt = `You are ForumBot, a friendly and helpful AI who replies to new forum threads.
Encourage discussion or provide helpful context. Keep your tone positive and concise.

Thread title: "%s"
Thread content: "%s"`

	commentUserPrompt = `You are ForumBot, a friendly and helpful AI who engages in forum discussions.
A user just replied to your previous comment. Provide a helpful, engaging, and concise response.
Keep the conversation natural and encourage further discussion.

Thread title: "%s"
Thread context: "%s"
Your previous comment: "%s"
User's reply to you: "%s"`

	replyMaxTokens = 150
)

// EventPublisher gets the comments ForumBot posts.
type EventPublisher interface {
	Publish(ctx context.Context, threadID uuid.UUID, event string, payload any) error
}

type ForumBotConfig struct {
	// BotID is the user id ForumBot posts as. uuid.Nil disables the bot.
	BotID             uuid.UUID
	ThreadReplyDelay  time.Duration
	CommentReplyDelay time.Duration
}

// skip marks a task that ended without posting on purpose.
type skip struct{ reason string }

func (s skip) Error() string { return s.reason }

// ForumBot answers new threads and replies to its own comments. Triggers
// return at once; the work happens on the scheduler.
type ForumBot struct {
	cfg       ForumBotConfig
	completer providers.Completer
	threads   threadRepo.ThreadRepository
	comments  commentRepo.CommentRepository
	scheduler *Scheduler
	sanitizer *sanitizer.Sanitizer
	events    EventPublisher
	logger    *slog.Logger
}

// NewForumBot builds the bot. completer and events may be nil.
func NewForumBot(
	cfg ForumBotConfig,
	completer providers.Completer,
	threads threadRepo.ThreadRepository,
	comments commentRepo.CommentRepository,
	scheduler *Scheduler,
	sanitizer *sanitizer.Sanitizer,
	events EventPublisher,
	logger *slog.Logger,
) *ForumBot {
	if logger == nil {
		logger = slog.Default()
	}
	return &ForumBot{
		cfg:       cfg,
		completer: completer,
		threads:   threads,
		comments:  comments,
		scheduler: scheduler,
		sanitizer: sanitizer,
		events:    events,
		logger:    logger.With("component", "forumbot"),
	}
}

func (b *ForumBot) IsBot(id uuid.UUID) bool {
	return b.cfg.BotID != uuid.Nil && id == b.cfg.BotID
}

func (b *ForumBot) OnThreadCreated(thread entity.Thread) {
	if b.cfg.BotID == uuid.Nil || b.IsBot(thread.AuthorID) {
		b.record(TriggerThread, OutcomeSkipped, 0)
		return
	}

	threadID := thread.ID
	b.scheduler.Submit("forumbot.thread:"+threadID.String(), b.cfg.ThreadReplyDelay, func(ctx context.Context) error {
		return b.observe(TriggerThread, func() error { return b.replyToThread(ctx, threadID) })
	})
}

func (b *ForumBot) OnCommentCreated(c entity.Comment, parent entity.Comment) {
	if !b.IsBot(parent.AuthorID) || b.IsBot(c.AuthorID) {
		b.record(TriggerComment, OutcomeSkipped, 0)
		return
	}

	commentID, parentID := c.ID, parent.ID
	b.scheduler.Submit("forumbot.comment:"+commentID.String(), b.cfg.CommentReplyDelay, func(ctx context.Context) error {
		return b.observe(TriggerComment, func() error { return b.replyToComment(ctx, commentID, parentID) })
	})
}

// observe counts the outcome of fn. A skip is not an error for the scheduler.
func (b *ForumBot) observe(trigger string, fn func() error) (err error) {
	start := time.Now()
	outcome := OutcomeFailed
	defer func() { b.record(trigger, outcome, time.Since(start)) }()

	err = fn()
	var s skip
	switch {
	case err == nil:
		outcome = OutcomePosted
	case errors.As(err, &s):
		outcome = OutcomeSkipped
		b.logger.Info("auto-reply skipped", "trigger", trigger, "reason", s.reason)
		return nil
	}
	return err
}

func (b *ForumBot) record(trigger, outcome string, took time.Duration) {
	metrics.AutoReplyOutcomes.WithLabelValues(trigger, outcome).Inc()
	if took > 0 {
		metrics.AutoReplyDuration.WithLabelValues(trigger).Observe(took.Seconds())
	}
}

func (b *ForumBot) replyToThread(ctx context.Context, threadID uuid.UUID) error {
	if b.completer == nil {
		return skip{"completer not configured"}
	}

	thread, err := b.threads.FindByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return skip{"thread deleted"}
		}
		return fmt.Errorf("load thread: %w", err)
	}

	text, err := b.generate(ctx, providers.CompletionRequest{
		SystemPrompt: threadSystemPrompt,
		UserPrompt:   fmt.Sprintf(threadUserPrompt, thread.Title, thread.Content),
		MaxTokens:    replyMaxTokens,
		Temperature:  0.5,
	})
	if err != nil {
		return err
	}

	if ok, err := b.threads.Exists(ctx, threadID); err != nil {
		return fmt.Errorf("check thread: %w", err)
	} else if !ok {
		return skip{"thread deleted before posting"}
	}

	return b.post(ctx, &entity.Comment{ThreadID: threadID, Content: text})
}

func (b *ForumBot) replyToComment(ctx context.Context, commentID, parentID uuid.UUID) error {
	if b.completer == nil {
		return skip{"completer not configured"}
	}

	parent, err := b.comments.FindByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return skip{"parent comment deleted"}
		}
		return fmt.Errorf("load parent comment: %w", err)
	}
	if !b.IsBot(parent.AuthorID) {
		return skip{"parent is not a bot comment"}
	}

	trigger, err := b.liveComment(ctx, commentID)
	if err != nil {
		return err
	}
	if b.IsBot(trigger.AuthorID) {
		return skip{"reply is from the bot"}
	}

	thread, err := b.threads.FindByID(ctx, trigger.ThreadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return skip{"thread deleted"}
		}
		return fmt.Errorf("load thread: %w", err)
	}

	text, err := b.generate(ctx, providers.CompletionRequest{
		SystemPrompt: commentSystemPrompt,
		UserPrompt:   fmt.Sprintf(commentUserPrompt, thread.Title, thread.Content, parent.Content, trigger.Content),
		MaxTokens:    replyMaxTokens,
		Temperature:  0.6,
	})
	if err != nil {
		return err
	}

	if _, err := b.liveComment(ctx, commentID); err != nil {
		return err
	}

	return b.post(ctx, &entity.Comment{ThreadID: thread.ID, ParentID: &trigger.ID, Content: text})
}

// liveComment loads a comment and turns a missing or hidden one into a skip.
func (b *ForumBot) liveComment(ctx context.Context, id uuid.UUID) (*entity.Comment, error) {
	c, err := b.comments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, skip{"reply deleted"}
		}
		return nil, fmt.Errorf("load reply: %w", err)
	}
	if !c.Visible() {
		return nil, skip{"reply deleted"}
	}
	return c, nil
}

func (b *ForumBot) generate(ctx context.Context, req providers.CompletionRequest) (string, error) {
	text, err := b.completer.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	if b.sanitizer != nil {
		text = b.sanitizer.Content(text)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", skip{"empty completion"}
	}
	return text, nil
}

func (b *ForumBot) post(ctx context.Context, c *entity.Comment) error {
	c.AuthorID = b.cfg.BotID
	c.ModerationStatus = entity.ModerationApproved

	if err := b.comments.Create(ctx, c); err != nil {
		// a thread deleted between the check and the insert fails the FK
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return skip{"thread deleted before posting"}
		}
		return fmt.Errorf("save bot reply: %w", err)
	}
	b.logger.Info("auto-reply posted", "thread_id", c.ThreadID, "comment_id", c.ID)

	if b.events != nil {
		if err := b.events.Publish(ctx, c.ThreadID, comment.EventCommentCreated, comment.ToResponse(c, b.IsBot)); err != nil {
			b.logger.Warn("failed to publish bot comment", "thread_id", c.ThreadID, "error", err)
		}
	}
	return nil
}
