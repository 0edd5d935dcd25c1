package notify

import (
	"time"

	"go-share-portal/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client 一个 websocket 连接。服务端只推送，客户端发来的内容被忽略。
type Client struct {
	UserID uint
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
}

func NewClient(userID uint, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, hub.cfg.SendBufferSize),
		hub:    hub,
	}
}

// Serve 注册连接并启动读写循环
func (h *Hub) Serve(userID uint, conn *websocket.Conn) *Client {
	client := NewClient(userID, conn, h)
	h.Register(client)
	go client.WritePump()
	go client.ReadPump()
	return client
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	pongWait := c.hub.cfg.PongWait
	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.L.Warn("Unexpected websocket close", zap.Uint("userID", c.UserID), zap.Error(err))
			} else {
				logger.L.Debug("Websocket read finished", zap.Uint("userID", c.UserID), zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	writeWait := c.hub.cfg.WriteWait
	ticker := time.NewTicker(c.hub.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道已关闭
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.L.Warn("Failed to write notification", zap.Uint("userID", c.UserID), zap.Error(err))
				return
			}

			// 顺带把积压的通知一起发出去
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					logger.L.Warn("Failed to write batched notification", zap.Uint("userID", c.UserID), zap.Error(err))
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.L.Debug("Failed to send ping", zap.Uint("userID", c.UserID), zap.Error(err))
				return
			}
		}
	}
}
