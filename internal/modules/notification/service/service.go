package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event is the JSON message sent to thread subscribers.
type Event struct {
	Event    string    `json:"event"`
	ThreadID uuid.UUID `json:"thread_id"`
	Data     any       `json:"data"`
	SentAt   time.Time `json:"sent_at"`
}

// NotificationService fans thread events out over redis pub/sub. It is a
// push aid for open pages; clients still poll for the authoritative state.
type NotificationService interface {
	Publish(ctx context.Context, threadID uuid.UUID, event string, payload any) error
	Subscribe(ctx context.Context, threadID uuid.UUID) (*redis.PubSub, error)
	Enabled() bool
}

type notificationService struct {
	redisClient *redis.Client
}

func NewNotificationService(redisClient *redis.Client) NotificationService {
	return &notificationService{redisClient: redisClient}
}

func Channel(threadID uuid.UUID) string {
	return fmt.Sprintf("thread_events:%s", threadID.String())
}

func (s *notificationService) Enabled() bool {
	return s.redisClient != nil
}

func (s *notificationService) Publish(ctx context.Context, threadID uuid.UUID, event string, payload any) error {
	if s.redisClient == nil {
		return nil
	}

	msg, err := json.Marshal(Event{Event: event, ThreadID: threadID, Data: payload, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := s.redisClient.Publish(ctx, Channel(threadID), msg).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe returns a confirmed subscription to the thread channel. The
// caller closes it.
func (s *notificationService) Subscribe(ctx context.Context, threadID uuid.UUID) (*redis.PubSub, error) {
	if s.redisClient == nil {
		return nil, fmt.Errorf("redis is not configured")
	}

	pubsub := s.redisClient.Subscribe(ctx, Channel(threadID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", Channel(threadID), err)
	}
	return pubsub, nil
}
