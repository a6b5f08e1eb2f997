package hub

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

// Client WebSocket 客户端
type Client struct {
	ID          string
	Hub         *Hub
	Conn        *websocket.Conn
	Send        chan []byte
	RemoteAddr  string
	ConnectedAt time.Time
}

// NewClient 创建客户端，conn 为 nil 时只能用于测试
func NewClient(h *Hub, conn *websocket.Conn, bufSize int) *Client {
	if bufSize <= 0 {
		bufSize = 256
	}
	c := &Client{
		ID:          uuid.NewString(),
		Hub:         h,
		Conn:        conn,
		Send:        make(chan []byte, bufSize),
		ConnectedAt: time.Now(),
	}
	if conn != nil {
		c.RemoteAddr = conn.RemoteAddr().String()
	}
	return c
}

// Reply sends msg to this client only. It is dropped if the client has already
// left the hub or its buffer is full.
func (c *Client) Reply(msg []byte) bool {
	return c.Hub.SendTo(c.ID, msg)
}

// ReadPump 读取消息循环，连接断开时注销客户端
func (c *Client) ReadPump(ctx context.Context, handler func(ctx context.Context, client *Client, message []byte)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error",
					logger.ErrorField(err),
					logger.String("client", c.ID))
			}
			return
		}
		// 任何消息都视为活跃
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))

		handler(ctx, c, message)
	}
}

// WritePump 写入消息循环，每条消息单独一帧
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
