package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/nitrate/internal/signals"
)

// TaskNotify is the name of the task signal handlers dispatch.
const TaskNotify = "notify"

// EventsChannel returns the Pub/Sub channel notifications are published on.
// Pattern: nitrate:{instance}:events
func EventsChannel(instance string) string {
	return fmt.Sprintf("nitrate:%s:events", instance)
}

// Notification is the message published for a signal.
type Notification struct {
	Signal     string            `json:"signal"`
	ObjectType string            `json:"object_type"`
	ObjectID   string            `json:"object_id"`
	ActorID    string            `json:"actor_id,omitempty"`
	Message    string            `json:"message"`
	Data       map[string]string `json:"data,omitempty"`
	At         time.Time         `json:"at"`
}

// NewNotification builds the notification for a signal event.
func NewNotification(e signals.Event) Notification {
	var b strings.Builder
	b.WriteString(strings.ReplaceAll(string(e.Signal), "_", " "))
	if e.ObjectType != "" {
		fmt.Fprintf(&b, ": %s %s", e.ObjectType, e.ObjectID)
	}
	if e.ActorID != "" {
		fmt.Fprintf(&b, " by %s", e.ActorID)
	}
	if s := e.Data["status"]; s != "" {
		fmt.Fprintf(&b, " (%s)", s)
	}
	return Notification{
		Signal:     string(e.Signal),
		ObjectType: e.ObjectType,
		ObjectID:   e.ObjectID,
		ActorID:    e.ActorID,
		Message:    b.String(),
		Data:       e.Data,
		At:         e.At,
	}
}

// Publisher delivers notifications to Redis subscribers, or to the log when
// no Redis client is configured.
type Publisher struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

// NewPublisher creates a publisher for instance. rdb may be nil.
func NewPublisher(rdb *redis.Client, instance string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{rdb: rdb, channel: EventsChannel(instance), logger: logger}
}

// Publish sends n on the events channel.
func (p *Publisher) Publish(ctx context.Context, n Notification) error {
	if p.rdb == nil {
		p.logger.Info("notification",
			zap.String("signal", n.Signal),
			zap.String("object_id", n.ObjectID),
			zap.String("message", n.Message))
		return nil
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publishing notification: %w", err)
	}
	return nil
}

// NotifyTask returns the notify task body: it decodes a signals.Event and
// publishes the resulting notification.
func NotifyTask(p *Publisher) Func {
	return func(ctx context.Context, payload json.RawMessage) error {
		var e signals.Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("decoding event: %w", err)
		}
		return p.Publish(ctx, NewNotification(e))
	}
}

// ConnectSignals registers the notify task on d and dispatches it for every
// signal sent on bus.
func ConnectSignals(bus *signals.Bus, d *Dispatcher, p *Publisher) {
	d.Register(TaskNotify, NotifyTask(p))
	bus.ConnectAll(func(ctx context.Context, e signals.Event) error {
		return d.Dispatch(ctx, TaskNotify, e)
	})
}
