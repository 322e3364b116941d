// Package escalation hands conversations that need a human to the on-call
// team.
package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/restoration-assistant/internal/domain/chat"
	"github.com/yungbote/restoration-assistant/internal/platform/logger"
)

// Ticket is one escalation event. It is published once per message that
// requires escalation.
type Ticket struct {
	ConversationID string             `json:"conversation_id"`
	MessageID      string             `json:"message_id"`
	Message        string             `json:"message"`
	Intent         string             `json:"intent"`
	ServiceType    chat.ServiceType   `json:"service_type"`
	IsEmergency    bool               `json:"is_emergency"`
	Urgency        chat.Urgency       `json:"urgency"`
	Sentiment      chat.Sentiment     `json:"sentiment"`
	Customer       *chat.CustomerInfo `json:"customer,omitempty"`
	Location       *chat.Location     `json:"location,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

type Notifier interface {
	Notify(ctx context.Context, t Ticket) error
}

// LogNotifier only logs tickets. It is the default when no bus is configured.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogNotifier{log: log.With("service", "EscalationLog")}
}

func (n *LogNotifier) Notify(ctx context.Context, t Ticket) error {
	n.log.Warn("conversation escalated",
		"conversation_id", t.ConversationID,
		"message_id", t.MessageID,
		"intent", t.Intent,
		"service_type", string(t.ServiceType),
		"urgency", string(t.Urgency.Level),
		"emotion", string(t.Sentiment.Emotion),
		"is_emergency", t.IsEmergency,
	)
	return nil
}

// RedisPublisher publishes tickets as JSON on a pub/sub channel.
type RedisPublisher struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	channel string
}

func NewRedisPublisher(log *logger.Logger, rdb goredis.UniversalClient, channel string) (*RedisPublisher, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if channel == "" {
		channel = "assistant:escalations"
	}
	return &RedisPublisher{
		log:     log.With("service", "EscalationPublisher"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (p *RedisPublisher) Notify(ctx context.Context, t Ticket) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
		return fmt.Errorf("publish escalation: %w", err)
	}
	return nil
}

// Subscribe delivers tickets published on the channel to onTicket until ctx
// is done. It returns once the subscription is confirmed.
func (p *RedisPublisher) Subscribe(ctx context.Context, onTicket func(Ticket)) error {
	if onTicket == nil {
		return fmt.Errorf("onTicket callback required")
	}
	sub := p.rdb.Subscribe(ctx, p.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var t Ticket
				if err := json.Unmarshal([]byte(m.Payload), &t); err != nil {
					p.log.Warn("bad escalation payload", "error", err)
					continue
				}
				onTicket(t)
			}
		}
	}()
	return nil
}

// Multi fans a ticket out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, t Ticket) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("escalation: %d notifier(s) failed: %w", len(errs), errs[0])
}
