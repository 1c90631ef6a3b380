package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/melodyhub/backend/internal/models"
)

const (
	eventQueueKey    = "wallet:events"
	eventChannelName = "wallet:events:live"
)

// WalletEvent is the post-commit notification payload. Delivery is
// best-effort and happens strictly after the financial write committed;
// a delivery failure never affects the result already returned.
type WalletEvent struct {
	Intent     string                  `json:"intent"`
	UserID     string                  `json:"user_id"`
	Entries    []models.LedgerEntry    `json:"entries"`
	Snapshot   *models.AccountSnapshot `json:"snapshot"`
	OccurredAt time.Time               `json:"occurred_at"`
}

// Notifier pushes committed wallet events onto a Redis queue for the
// notification/analytics consumers and publishes them for live listeners.
type Notifier struct {
	redis *redis.Client
}

func NewNotifier(redisClient *redis.Client) *Notifier {
	return &Notifier{redis: redisClient}
}

func (n *Notifier) Publish(event WalletEvent) {
	if n.redis == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[NOTIFY] Failed to marshal event: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := n.redis.LPush(ctx, eventQueueKey, data).Err(); err != nil {
		log.Printf("[NOTIFY] Failed to queue event for user %s: %v", event.UserID, err)
	}
	if err := n.redis.Publish(ctx, eventChannelName, data).Err(); err != nil {
		log.Printf("[NOTIFY] Failed to publish event for user %s: %v", event.UserID, err)
	}
}
