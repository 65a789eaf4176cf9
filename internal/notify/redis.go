package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// AccountEventsChannel канал Redis, в который публикуются решения по аккаунтам.
const AccountEventsChannel = "account_events"

// Event описывает сообщение, публикуемое для сервиса рассылки.
type Event struct {
	EventType string    `json:"event_type"`
	Message   Message   `json:"message"`
	UniqueID  string    `json:"unique_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RedisPublisher публикует уведомления через Redis Pub/Sub.
type RedisPublisher struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisPublisher создаёт издателя уведомлений поверх клиента Redis.
func NewRedisPublisher(rdb *redis.Client, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, logger: logger}
}

func (p *RedisPublisher) publish(ctx context.Context, event Event) error {
	event.Timestamp = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.rdb.Publish(ctx, AccountEventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	p.logger.Debug("account event published", zap.String("event", event.EventType), zap.String("to", event.Message.To))
	return nil
}

// NotifyApproval публикует событие об одобрении аккаунта.
func (p *RedisPublisher) NotifyApproval(ctx context.Context, a Approval) error {
	msg, err := RenderApproval(a)
	if err != nil {
		return err
	}
	return p.publish(ctx, Event{EventType: "user.approved", Message: msg, UniqueID: a.UniqueID})
}

// NotifyRejection публикует событие об отказе.
func (p *RedisPublisher) NotifyRejection(ctx context.Context, r Rejection) error {
	msg, err := RenderRejection(r)
	if err != nil {
		return err
	}
	return p.publish(ctx, Event{EventType: "user.rejected", Message: msg, Reason: r.Reason})
}

// LogNotifier только пишет уведомления в лог. Используется, когда Redis не настроен.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier создаёт уведомитель, пишущий в лог.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyApproval(ctx context.Context, a Approval) error {
	n.logger.Info("approval notification", zap.String("to", a.Email), zap.String("uniqueID", a.UniqueID))
	return nil
}

func (n *LogNotifier) NotifyRejection(ctx context.Context, r Rejection) error {
	n.logger.Info("rejection notification", zap.String("to", r.Email), zap.String("reason", r.Reason))
	return nil
}
