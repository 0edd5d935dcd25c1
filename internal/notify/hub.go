// Package notify 把分享通知推送给在线用户，可选地经 Kafka 在多实例之间转发。
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-share-portal/internal/interfaces"
	"go-share-portal/pkg/config"
	"go-share-portal/pkg/logger"

	"go.uber.org/zap"
)

var (
	ErrHubFull    = errors.New("hub delivery queue is full")
	ErrHubStopped = errors.New("hub is not running")
)

var _ interfaces.Notifier = (*Hub)(nil)

type HubConfig struct {
	SendBufferSize int
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	RetryCount     int
	RetryInterval  time.Duration
}

// HubConfigFrom 从 websocket 配置转换，非法值回落到默认值
func HubConfigFrom(wsConfig config.WebSocketConfig) HubConfig {
	cfg := HubConfig{
		SendBufferSize: wsConfig.SendBufferSize,
		WriteWait:      time.Duration(wsConfig.WriteWaitSeconds) * time.Second,
		PongWait:       time.Duration(wsConfig.PongWaitSeconds) * time.Second,
		MaxMessageSize: int64(wsConfig.MaxMessageSize),
		RetryCount:     wsConfig.MessageRetryCount,
		RetryInterval:  time.Duration(wsConfig.MessageRetryIntervalMs) * time.Millisecond,
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 64
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 512
	}
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
		logger.L.Warn("Invalid retryCount, using default", zap.Int("default", cfg.RetryCount))
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 100 * time.Millisecond
		logger.L.Warn("Invalid retryInterval, using default", zap.Duration("default", cfg.RetryInterval))
	}
	return cfg
}

type delivery struct {
	recipientID uint
	data        []byte
}

type countRequest struct {
	userID uint
	reply  chan int
}

// Hub 管理在线连接。一个用户可以同时有多个连接（多个标签页），都会收到通知。
// clients 只在 Run 的 goroutine 中读写。
type Hub struct {
	clients    map[uint]map[*Client]struct{}
	deliver    chan delivery
	register   chan *Client
	unregister chan *Client
	count      chan countRequest
	done       chan struct{}

	cfg HubConfig
}

func NewHub(cfg HubConfig) *Hub {
	return &Hub{
		clients:    make(map[uint]map[*Client]struct{}),
		deliver:    make(chan delivery, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan countRequest),
		done:       make(chan struct{}),
		cfg:        cfg,
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Connections 返回用户当前的在线连接数
func (h *Hub) Connections(userID uint) int {
	req := countRequest{userID: userID, reply: make(chan int, 1)}
	select {
	case h.count <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}

// Notify 序列化成 JSON 推给收件人的所有在线连接；收件人不在线时直接丢弃
func (h *Hub) Notify(_ context.Context, n interfaces.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return h.Deliver(n.RecipientID, data)
}

// Deliver 把已序列化的通知放进投递队列，不阻塞
func (h *Hub) Deliver(recipientID uint, data []byte) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.deliver <- delivery{recipientID: recipientID, data: data}:
		logger.L.Debug("Notification queued for delivery", zap.Uint("recipientID", recipientID))
		return nil
	default:
		logger.L.Warn("Hub delivery queue full. Dropping notification.", zap.Uint("recipientID", recipientID))
		return ErrHubFull
	}
}

func (h *Hub) trySend(client *Client, data []byte) {
	select {
	case client.send <- data:
		// 发送成功
	default:
		for i := 0; i < h.cfg.RetryCount; i++ {
			logger.L.Warn("Client send buffer full, retry attempt",
				zap.Uint("userID", client.UserID),
				zap.Int("attempt", i+1))
			timer := time.NewTimer(h.cfg.RetryInterval)
			select {
			case client.send <- data:
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		// 所有重试失败 关闭连接
		logger.L.Error("Client send buffer still full after retries, closing connection",
			zap.Uint("userID", client.UserID),
			zap.Int("attempts", h.cfg.RetryCount))
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	conns, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := conns[client]; !ok {
		return
	}
	delete(conns, client)
	close(client.send)
	if len(conns) == 0 {
		delete(h.clients, client.UserID)
	}
}

// Run 直到 ctx 取消，退出时关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for _, conns := range h.clients {
			for client := range conns {
				close(client.send)
			}
		}
		h.clients = make(map[uint]map[*Client]struct{})
		logger.L.Info("Notification hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			conns, ok := h.clients[client.UserID]
			if !ok {
				conns = make(map[*Client]struct{})
				h.clients[client.UserID] = conns
			}
			conns[client] = struct{}{}
			logger.L.Info("Client registered", zap.Uint("userID", client.UserID), zap.Int("connections", len(conns)))

		case client := <-h.unregister:
			h.remove(client)
			logger.L.Info("Client unregistered", zap.Uint("userID", client.UserID))

		case req := <-h.count:
			req.reply <- len(h.clients[req.userID])

		case d := <-h.deliver:
			conns, ok := h.clients[d.recipientID]
			if !ok {
				logger.L.Debug("Recipient not connected, notification dropped", zap.Uint("recipientID", d.recipientID))
				continue
			}
			for client := range conns {
				h.trySend(client, d.data)
			}
		}
	}
}
