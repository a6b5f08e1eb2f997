package hub

import (
	"encoding/json"
	"sync"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/logger"
)

// EventAudioStateUpdated 通知其他客户端刷新状态
const EventAudioStateUpdated = "audio_state_updated"

// Notification 轻量通知，不包含完整快照
type Notification struct {
	Event string           `json:"event"`
	Data  NotificationData `json:"data"`
}

// NotificationData 通知数据
type NotificationData struct {
	EventType string `json:"event_type"`
}

// StateUpdated encodes the fan-out notification for eventType.
func StateUpdated(eventType string) []byte {
	data, _ := json.Marshal(Notification{
		Event: EventAudioStateUpdated,
		Data:  NotificationData{EventType: eventType},
	})
	return data
}

// BroadcastMessage 广播消息
type BroadcastMessage struct {
	Message   []byte
	ExcludeID string // 排除的客户端ID（用于不向发送者回发）
}

// Hub 连接注册表
//
// The Run goroutine owns registration and fan-out; readers take mu. Clients
// are kept in connection order and the earliest one still connected is the
// primary recipient of periodic status.
type Hub struct {
	clients []*Client
	index   map[string]*Client

	// 注册/注销通道
	register   chan *Client
	unregister chan *Client

	// 广播通道
	broadcast chan *BroadcastMessage

	mu sync.RWMutex

	// 关闭信号
	done     chan struct{}
	stopOnce sync.Once

	onJoin  func(count int)
	onLeave func(count int)
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		index:      make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, broadcastBuffer),
		done:       make(chan struct{}),
	}
}

// OnJoin sets a callback run on the hub goroutine after each registration.
// Must be called before Run.
func (h *Hub) OnJoin(fn func(count int)) { h.onJoin = fn }

// OnLeave sets a callback run on the hub goroutine after each removal.
// Must be called before Run.
func (h *Hub) OnLeave(fn func(count int)) { h.onLeave = fn }

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub 并强制关闭所有连接
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if old, exists := h.index[client.ID]; exists {
		h.removeClient(old)
	}
	h.clients = append(h.clients, client)
	h.index[client.ID] = client
	count := len(h.clients)
	h.mu.Unlock()

	logger.Info("client registered",
		logger.String("client", client.ID),
		logger.String("remote", client.RemoteAddr),
		logger.Int("clients", count))

	if h.onJoin != nil {
		h.onJoin(count)
	}
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	removed := h.removeClient(client)
	count := len(h.clients)
	h.mu.Unlock()

	if !removed {
		return
	}

	logger.Info("client unregistered",
		logger.String("client", client.ID),
		logger.Int("clients", count))

	if h.onLeave != nil {
		h.onLeave(count)
	}
}

// removeClient 移除客户端（内部方法，需要持有锁）
func (h *Hub) removeClient(client *Client) bool {
	if h.index[client.ID] != client {
		return false
	}
	delete(h.index, client.ID)
	for i, c := range h.clients {
		if c == client {
			h.clients = append(h.clients[:i], h.clients[i+1:]...)
			break
		}
	}
	close(client.Send)
	return true
}

// broadcastMessage 向除发送者外的所有客户端广播
func (h *Hub) broadcastMessage(msg *BroadcastMessage) {
	h.mu.RLock()
	// 复制客户端列表以避免长时间持有锁
	clientList := make([]*Client, len(h.clients))
	copy(clientList, h.clients)
	h.mu.RUnlock()

	var slow []*Client
	for _, client := range clientList {
		if msg.ExcludeID != "" && client.ID == msg.ExcludeID {
			continue
		}
		select {
		case client.Send <- msg.Message:
		default:
			slow = append(slow, client)
		}
	}

	// 发送缓冲区满，移除客户端
	for _, client := range slow {
		logger.Warn("client send buffer full, dropping", logger.String("client", client.ID))
		h.unregisterClient(client)
	}
}

// cleanup 清理所有连接
func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.Send)
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
	h.clients = nil
	h.index = make(map[string]*Client)
	logger.Info("all clients disconnected")
}

// Register 注册客户端；Hub 已停止时直接关闭该客户端
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// broadcastBuffer 广播队列容量
const broadcastBuffer = 256

// Notify queues msg for every client except excludeID. It never blocks: when
// the queue is full or the hub has stopped the message is dropped and Notify
// returns false.
func (h *Hub) Notify(excludeID string, msg []byte) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.broadcast <- &BroadcastMessage{Message: msg, ExcludeID: excludeID}:
		return true
	default:
		return false
	}
}

// SendTo 发送消息给指定客户端，缓冲区满或客户端不存在时返回 false
func (h *Hub) SendTo(clientID string, msg []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client := h.index[clientID]
	if client == nil {
		return false
	}
	select {
	case client.Send <- msg:
		return true
	default:
		return false
	}
}

// SendPrimary 发送消息给最早连接的客户端
func (h *Hub) SendPrimary(msg []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return false
	}
	select {
	case h.clients[0].Send <- msg:
		return true
	default:
		return false
	}
}

// Count 当前连接数
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClientIDs returns the connected client IDs in connection order.
func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for _, c := range h.clients {
		ids = append(ids, c.ID)
	}
	return ids
}
