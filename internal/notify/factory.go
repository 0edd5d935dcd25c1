package notify

import (
	"context"
	"errors"
	"fmt"

	"go-share-portal/internal/interfaces"
	"go-share-portal/pkg/config"
	"go-share-portal/pkg/logger"

	"go.uber.org/zap"
)

// Notifiers 按配置组装好的通知和审计出口
type Notifiers struct {
	Hub       *Hub
	Notifiers []interfaces.Notifier
	Auditors  []interfaces.Auditor

	publisher *KafkaPublisher
	relay     *KafkaRelay
}

// NewNotifiers 根据 messaging.provider 组装：
// none 时直接推给本地 Hub；kafka 时通知先写 Kafka，再由 relay 投递给本地 Hub，审计同时写 Kafka。
func NewNotifiers(cfg config.Config, store interfaces.Auditor) (*Notifiers, error) {
	provider := cfg.Messaging.Provider
	logger.L.Info("Creating notifiers with messaging provider", zap.String("provider", provider))

	n := &Notifiers{Hub: NewHub(HubConfigFrom(cfg.WebSocket))}
	if store != nil {
		n.Auditors = append(n.Auditors, store)
	}

	switch provider {
	case "", "none":
		n.Notifiers = append(n.Notifiers, n.Hub)

	case "kafka":
		publisher, err := NewKafkaPublisher(cfg.Messaging.Kafka)
		if err != nil {
			return nil, err
		}
		relay, err := NewKafkaRelay(cfg.Messaging.Kafka, n.Hub)
		if err != nil {
			publisher.Close()
			return nil, err
		}
		n.publisher, n.relay = publisher, relay
		n.Notifiers = append(n.Notifiers, publisher)
		n.Auditors = append(n.Auditors, publisher)

	default:
		return nil, fmt.Errorf("unsupported messaging provider %q", provider)
	}
	return n, nil
}

// Start 启动 Hub 和 Kafka 消费者，ctx 取消时停止
func (n *Notifiers) Start(ctx context.Context) {
	go n.Hub.Run(ctx)
	if n.relay != nil {
		go n.relay.Run(ctx)
	}
}

func (n *Notifiers) Close() error {
	var errs []error
	if n.relay != nil {
		if err := n.relay.Close(); err != nil {
			logger.L.Error("Failed to close Kafka consumer group", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if n.publisher != nil {
		if err := n.publisher.Close(); err != nil {
			logger.L.Error("Failed to close Kafka producer", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
