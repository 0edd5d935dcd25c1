package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go-share-portal/internal/interfaces"
	"go-share-portal/pkg/config"
	"go-share-portal/pkg/logger"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

var (
	_ interfaces.Notifier = (*KafkaPublisher)(nil)
	_ interfaces.Auditor  = (*KafkaPublisher)(nil)
)

const (
	topicNotifications = "notifications"
	topicAudit         = "audit"
)

func buildTopicName(prefix, kind string) string {
	return fmt.Sprintf("%s_%s", prefix, kind)
}

func newSaramaConfig(cfg config.KafkaConfig) *sarama.Config {
	kConfig := sarama.NewConfig()
	kConfig.ClientID = cfg.ClientID
	kConfig.Producer.RequiredAcks = sarama.WaitForAll
	kConfig.Producer.Return.Successes = true
	kConfig.Producer.Retry.Max = 3
	kConfig.Consumer.Return.Errors = true
	kConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	kConfig.Version = sarama.V2_8_0_0
	return kConfig
}

// KafkaPublisher 把通知和审计记录写到 Kafka。
// 通知以收件人 ID 为 key，同一用户的通知保持顺序。
type KafkaPublisher struct {
	producer    sarama.SyncProducer
	topicPrefix string
}

func NewKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, newSaramaConfig(cfg))
	if err != nil {
		logger.L.Error("Failed to start Kafka producer", zap.Error(err))
		return nil, fmt.Errorf("failed to start Kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, cfg.TopicPrefix), nil
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topicPrefix string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topicPrefix: topicPrefix}
}

func (p *KafkaPublisher) NotificationsTopic() string {
	return buildTopicName(p.topicPrefix, topicNotifications)
}

func (p *KafkaPublisher) AuditTopic() string {
	return buildTopicName(p.topicPrefix, topicAudit)
}

func (p *KafkaPublisher) Notify(_ context.Context, n interfaces.Notification) error {
	return p.publish(p.NotificationsTopic(), n.RecipientID, n)
}

func (p *KafkaPublisher) Audit(_ context.Context, rec interfaces.AuditRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	return p.publish(p.AuditTopic(), rec.ActorID, rec)
}

func (p *KafkaPublisher) publish(topic string, key uint, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(uint64(key), 10)),
		Value: sarama.ByteEncoder(data),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		logger.L.Error("Failed to send message to Kafka", zap.String("topic", topic), zap.Error(err))
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}
	logger.L.Debug("Message sent to Kafka",
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// KafkaRelay 消费通知主题，投递给本实例 Hub 上的在线连接
type KafkaRelay struct {
	consumer sarama.ConsumerGroup
	topic    string
	hub      *Hub
}

func NewKafkaRelay(cfg config.KafkaConfig, hub *Hub) (*KafkaRelay, error) {
	consumer, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, newSaramaConfig(cfg))
	if err != nil {
		logger.L.Error("Failed to start Kafka consumer group", zap.Error(err))
		return nil, fmt.Errorf("failed to start Kafka consumer group: %w", err)
	}
	return &KafkaRelay{
		consumer: consumer,
		topic:    buildTopicName(cfg.TopicPrefix, topicNotifications),
		hub:      hub,
	}, nil
}

// Run 直到 ctx 取消
func (r *KafkaRelay) Run(ctx context.Context) {
	go func() {
		for err := range r.consumer.Errors() {
			logger.L.Warn("Kafka consumer error", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.L.Info("Stopping Kafka consumer")
			return
		default:
		}
		if err := r.consumer.Consume(ctx, []string{r.topic}, r); err != nil {
			logger.L.Error("Kafka consumer error", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second): // 失败时等待一段时间再重试
			}
		}
	}
}

func (r *KafkaRelay) Close() error {
	return r.consumer.Close()
}

func (r *KafkaRelay) Setup(_ sarama.ConsumerGroupSession) error {
	return nil
}

func (r *KafkaRelay) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

func (r *KafkaRelay) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		r.handle(message.Value)
		session.MarkMessage(message, "")
	}
	return nil
}

// handle 格式错误的消息记录日志后跳过
func (r *KafkaRelay) handle(data []byte) {
	var n interfaces.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		logger.L.Error("Failed to unmarshal notification", zap.Error(err))
		return
	}
	if n.RecipientID == 0 {
		logger.L.Warn("Notification without recipient, skipping")
		return
	}
	if err := r.hub.Deliver(n.RecipientID, data); err != nil {
		logger.L.Warn("Failed to relay notification", zap.Uint("recipientID", n.RecipientID), zap.Error(err))
	}
}
