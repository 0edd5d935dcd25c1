package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"go-share-portal/internal/interfaces"
	"go-share-portal/pkg/config"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func testHubConfig() HubConfig {
	return HubConfig{
		SendBufferSize: 4,
		WriteWait:      time.Second,
		PongWait:       5 * time.Second,
		MaxMessageSize: 512,
		RetryCount:     1,
		RetryInterval:  10 * time.Millisecond,
	}
}

// 测试服务器设置：?user= 指定连接所属用户
func setupTestServer(t *testing.T, hub *Hub) string {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseUint(r.URL.Query().Get("user"), 10, 64)
		if err != nil {
			http.Error(w, "bad user", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		hub.Serve(uint(userID), conn)
	}))
	t.Cleanup(server.Close)

	// 将 http:// 替换为 ws://
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// 创建WebSocket客户端连接
func connectWebSocket(t *testing.T, url string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "Failed to connect to WebSocket server")
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readNotification(t *testing.T, conn *websocket.Conn) interfaces.Notification {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, messageType)
	var n interfaces.Notification
	require.NoError(t, json.Unmarshal(data, &n))
	return n
}

// waitConnections 注册是异步完成的，等到 Hub 看到期望的连接数
func waitConnections(t *testing.T, hub *Hub, userID uint, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.Connections(userID) == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_DeliversToRecipientOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(testHubConfig())
	go hub.Run(ctx)

	url := setupTestServer(t, hub)
	alice := connectWebSocket(t, url+"?user=1")
	bob := connectWebSocket(t, url+"?user=2")
	waitConnections(t, hub, 1, 1)
	waitConnections(t, hub, 2, 1)

	err := hub.Notify(ctx, interfaces.Notification{
		RecipientID: 2,
		Kind:        interfaces.NotificationShareCreated,
		Title:       "New share",
		ActorID:     1,
	})
	require.NoError(t, err)

	got := readNotification(t, bob)
	assert.Equal(t, interfaces.NotificationShareCreated, got.Kind)
	assert.Equal(t, uint(1), got.ActorID)

	alice.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = alice.ReadMessage()
	assert.Error(t, err, "other users must not receive the notification")
}

func TestHub_MultipleConnectionsPerUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(testHubConfig())
	go hub.Run(ctx)

	url := setupTestServer(t, hub)
	tab1 := connectWebSocket(t, url+"?user=3")
	tab2 := connectWebSocket(t, url+"?user=3")
	waitConnections(t, hub, 3, 2)

	require.NoError(t, hub.Notify(ctx, interfaces.Notification{RecipientID: 3, Kind: interfaces.NotificationShareRemoved}))
	assert.Equal(t, interfaces.NotificationShareRemoved, readNotification(t, tab1).Kind)
	assert.Equal(t, interfaces.NotificationShareRemoved, readNotification(t, tab2).Kind)

	// 关闭一个标签页后只剩一个连接
	require.NoError(t, tab1.Close())
	waitConnections(t, hub, 3, 1)
}

func TestHub_OfflineAndStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(testHubConfig())
	go hub.Run(ctx)

	// 收件人不在线：入队成功，投递时丢弃
	assert.NoError(t, hub.Notify(ctx, interfaces.Notification{RecipientID: 99}))

	cancel()
	assert.Eventually(t, func() bool {
		return hub.Deliver(1, []byte("{}")) == ErrHubStopped
	}, time.Second, 10*time.Millisecond)
}

func TestHub_ClosesSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := testHubConfig()
	cfg.SendBufferSize = 1
	hub := NewHub(cfg)
	go hub.Run(ctx)

	probe := &Client{UserID: 9, send: make(chan []byte, 1), hub: hub}
	hub.Register(probe)

	// 没有 WritePump 消费 send，第二条通知会占满缓冲
	client := &Client{UserID: 8, send: make(chan []byte, 1), hub: hub}
	hub.Register(client)

	require.NoError(t, hub.Deliver(8, []byte(`{"n":1}`)))
	require.NoError(t, hub.Deliver(8, []byte(`{"n":2}`)))
	// 投递队列按顺序处理，探测通知到达时前两条已经处理完
	require.NoError(t, hub.Deliver(9, []byte(`{"probe":true}`)))
	select {
	case <-probe.send:
	case <-time.After(2 * time.Second):
		t.Fatal("probe notification was not delivered")
	}

	assert.Equal(t, []byte(`{"n":1}`), <-client.send)
	_, ok := <-client.send
	assert.False(t, ok, "send channel is closed after retries fail")
	assert.Equal(t, 0, hub.Connections(8))
}

func TestHubConfigFrom(t *testing.T) {
	cfg := HubConfigFrom(config.WebSocketConfig{
		SendBufferSize:         16,
		WriteWaitSeconds:       5,
		PongWaitSeconds:        30,
		MaxMessageSize:         1024,
		MessageRetryCount:      2,
		MessageRetryIntervalMs: 50,
	})
	assert.Equal(t, 16, cfg.SendBufferSize)
	assert.Equal(t, 5*time.Second, cfg.WriteWait)
	assert.Equal(t, 30*time.Second, cfg.PongWait)
	assert.Equal(t, int64(1024), cfg.MaxMessageSize)
	assert.Equal(t, 2, cfg.RetryCount)
	assert.Equal(t, 50*time.Millisecond, cfg.RetryInterval)

	defaults := HubConfigFrom(config.WebSocketConfig{})
	assert.Equal(t, 64, defaults.SendBufferSize)
	assert.Equal(t, 3, defaults.RetryCount)
	assert.Equal(t, 100*time.Millisecond, defaults.RetryInterval)
}

func TestNewNotifiers_None(t *testing.T) {
	cfg := config.Config{Messaging: config.MessagingConfig{Provider: "none"}}
	n, err := NewNotifiers(cfg, nil)
	require.NoError(t, err)
	require.Len(t, n.Notifiers, 1)
	assert.Same(t, n.Hub, n.Notifiers[0])
	assert.Empty(t, n.Auditors)
	assert.NoError(t, n.Close())

	_, err = NewNotifiers(config.Config{Messaging: config.MessagingConfig{Provider: "rabbit"}}, nil)
	assert.Error(t, err)
}
