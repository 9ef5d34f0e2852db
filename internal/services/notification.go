package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopair/internal/models"
)

// RelationshipNotifier is told about committed relationship changes. It is
// only ever called after the store write has completed.
type RelationshipNotifier interface {
	NotifyFriendRequestSent(ctx context.Context, request *models.FriendRequest) error
	NotifyFriendRequestAccepted(ctx context.Context, request *models.FriendRequest) error
}

const (
	RelationshipEventsChannel = "relationships:events"
	userEventsChannelPrefix   = "relationships:user:"

	EventFriendRequestSent     = "friend_request.sent"
	EventFriendRequestAccepted = "friend_request.accepted"
)

// RelationshipEvent is the payload published for each change.
type RelationshipEvent struct {
	Type        string                     `json:"type"`
	RequestID   uuid.UUID                  `json:"request_id"`
	SenderID    uuid.UUID                  `json:"sender_id"`
	RecipientID uuid.UUID                  `json:"recipient_id"`
	Status      models.FriendRequestStatus `json:"status"`
	OccurredAt  time.Time                  `json:"occurred_at"`
}

// UserEventsChannel is the per-user channel a client session subscribes to.
func UserEventsChannel(userID uuid.UUID) string {
	return userEventsChannelPrefix + userID.String()
}

// RedisNotifier fans relationship events out over redis pub/sub: once on the
// global channel and once on the channel of the user who has to react.
type RedisNotifier struct {
	redis RedisClient
	now   func() time.Time
}

func NewRedisNotifier(redis RedisClient) *RedisNotifier {
	return &RedisNotifier{redis: redis, now: time.Now}
}

func (n *RedisNotifier) NotifyFriendRequestSent(ctx context.Context, request *models.FriendRequest) error {
	return n.publish(ctx, EventFriendRequestSent, request, request.RecipientID)
}

func (n *RedisNotifier) NotifyFriendRequestAccepted(ctx context.Context, request *models.FriendRequest) error {
	return n.publish(ctx, EventFriendRequestAccepted, request, request.SenderID)
}

func (n *RedisNotifier) publish(ctx context.Context, eventType string, request *models.FriendRequest, audience uuid.UUID) error {
	payload, err := json.Marshal(RelationshipEvent{
		Type:        eventType,
		RequestID:   request.ID,
		SenderID:    request.SenderID,
		RecipientID: request.RecipientID,
		Status:      request.Status,
		OccurredAt:  n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal relationship event: %w", err)
	}

	if err := n.redis.Publish(ctx, RelationshipEventsChannel, payload); err != nil {
		return fmt.Errorf("publish relationship event: %w", err)
	}
	if err := n.redis.Publish(ctx, UserEventsChannel(audience), payload); err != nil {
		return fmt.Errorf("publish user event: %w", err)
	}
	return nil
}
