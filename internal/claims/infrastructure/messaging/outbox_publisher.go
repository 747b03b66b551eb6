package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wyfcoding/claimscortex/internal/claims/domain"
	"github.com/wyfcoding/claimscortex/pkg/db"
	"github.com/wyfcoding/claimscortex/pkg/logger"
	"github.com/wyfcoding/claimscortex/pkg/mq"
)

// 投递状态
const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// OutboxMessage 事务发件箱消息。裁决事件先落库，由 Relay 异步投递，
// 保证裁决写入与事件发布不会出现"发了事件却没有裁决"
type OutboxMessage struct {
	ID        uint   `gorm:"primaryKey"`
	Topic     string `gorm:"type:varchar(100);not null"`
	Key       string `gorm:"type:varchar(64);not null"`
	Payload   []byte `gorm:"type:blob;not null"`
	Status    string `gorm:"type:varchar(10);index;not null;default:pending"`
	Attempts  int    `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定表名
func (OutboxMessage) TableName() string { return "outbox_messages" }

// OutboxEventPublisher 基于 Outbox 模式的裁决事件发布者
type OutboxEventPublisher struct {
	db    *db.DB
	topic string
}

// NewOutboxEventPublisher 创建发布者，事件写入发件箱表
func NewOutboxEventPublisher(database *db.DB, topic string) *OutboxEventPublisher {
	return &OutboxEventPublisher{db: database, topic: topic}
}

// PublishDecisionMade 将裁决事件写入发件箱
func (p *OutboxEventPublisher) PublishDecisionMade(ctx context.Context, event domain.DecisionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal decision event: %w", err)
	}

	msg := OutboxMessage{
		Topic:   p.topic,
		Key:     event.ClaimID,
		Payload: payload,
		Status:  outboxStatusPending,
	}
	if err := p.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return fmt.Errorf("failed to enqueue outbox message: %w", err)
	}
	return nil
}

// Relay 发件箱中继：轮询 pending 消息并投递到 Kafka
type Relay struct {
	db       *db.DB
	producer *mq.KafkaProducer
	interval time.Duration
	batch    int
}

// NewRelay 创建发件箱中继
func NewRelay(database *db.DB, producer *mq.KafkaProducer, interval time.Duration) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	return &Relay{db: database, producer: producer, interval: interval, batch: 100}
}

// Run 周期性投递，直到 context 取消
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drainOnce(ctx); err != nil {
				logger.Error(ctx, "Outbox relay pass failed", "error", err)
			}
		}
	}
}

// drainOnce 投递一批 pending 消息。单条失败只记录并留待下轮重试
func (r *Relay) drainOnce(ctx context.Context) error {
	var messages []OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("id ASC").
		Limit(r.batch).
		Find(&messages).Error
	if err != nil {
		return fmt.Errorf("failed to load pending outbox messages: %w", err)
	}

	for i := range messages {
		msg := &messages[i]
		if err := r.producer.SendMessage(ctx, msg.Topic, msg.Key, json.RawMessage(msg.Payload)); err != nil {
			logger.Warn(ctx, "Failed to relay outbox message",
				"id", msg.ID, "topic", msg.Topic, "key", msg.Key, "error", err)
			r.db.WithContext(ctx).Model(msg).Update("attempts", msg.Attempts+1)
			continue
		}
		if err := r.db.WithContext(ctx).Model(msg).
			Updates(map[string]any{"status": outboxStatusPublished, "attempts": msg.Attempts + 1}).Error; err != nil {
			logger.Warn(ctx, "Failed to mark outbox message published", "id", msg.ID, "error", err)
		}
	}
	return nil
}
