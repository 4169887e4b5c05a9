package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/antonvlasov/chatgate-backend/pkg/enums"
	"github.com/antonvlasov/chatgate-backend/pkg/logger"
)

// AccessEvent describes one reconciliation outcome published for downstream
// consumers (notification bots, admin feeds).
type AccessEvent struct {
	Type       enums.AccessEventType `json:"type"`
	UserID     uuid.UUID             `json:"userId"`
	RoleID     *uuid.UUID            `json:"roleId,omitempty"`
	ChannelID  *uuid.UUID            `json:"channelId,omitempty"`
	ChatID     *int64                `json:"chatId,omitempty"`
	Detail     string                `json:"detail,omitempty"`
	OccurredAt time.Time             `json:"occurredAt"`
}

// Envelope is the stable message structure written to the access-events topic.
type Envelope struct {
	EventID string      `json:"eventId"`
	Event   AccessEvent `json:"event"`
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// Publisher emits access events. A nil Publisher (or one built without a
// topic) is a safe no-op so the engine never depends on Pub/Sub availability.
type Publisher struct {
	topic publisher
	logg  *logger.Logger
	now   func() time.Time
}

// NewPublisher wraps the configured topic handle. topic may be nil.
func NewPublisher(topic *gcppubsub.Publisher, logg *logger.Logger) *Publisher {
	return &Publisher{
		topic: newGCPPublisher(topic),
		logg:  logg,
		now:   time.Now,
	}
}

// Emit publishes the event and waits for the broker acknowledgement. Publish
// failures are logged, never propagated: event delivery is best effort.
func (p *Publisher) Emit(ctx context.Context, event AccessEvent) {
	if p == nil || p.topic == nil {
		return
	}
	if !event.Type.IsValid() {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}

	envelope := Envelope{
		EventID: uuid.NewString(),
		Event:   event,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		p.logError(ctx, "encoding access event", err)
		return
	}

	result := p.topic.Publish(ctx, &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_type": string(event.Type),
			"user_id":    event.UserID.String(),
		},
	})
	if result == nil {
		return
	}
	if _, err := result.Get(ctx); err != nil {
		p.logError(ctx, "publishing access event", err)
		return
	}

	if p.logg != nil {
		fields := map[string]any{
			"event_id":   envelope.EventID,
			"event_type": event.Type,
			"user_id":    event.UserID.String(),
		}
		p.logg.Info(p.logg.WithFields(ctx, fields), "access event published")
	}
}

func (p *Publisher) logError(ctx context.Context, msg string, err error) {
	if p == nil || p.logg == nil {
		return
	}
	p.logg.Error(ctx, msg, err)
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
