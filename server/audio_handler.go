package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/audio"
	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/hub"
	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/player"
	"github.com/sockheadrps/OBS-Stream-Control-Hub/logger"
)

// AudioHandler 音频控制的 WebSocket 与 HTTP 接口
type AudioHandler struct {
	ctx      context.Context
	svc      *player.Service
	library  *audio.Library
	upgrader websocket.Upgrader
}

// NewAudioHandler 创建处理器。ctx 是连接读循环的生命周期，library 可以为 nil
func NewAudioHandler(ctx context.Context, svc *player.Service, library *audio.Library, origins []string) *AudioHandler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &AudioHandler{
		ctx:     ctx,
		svc:     svc,
		library: library,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// OBS 浏览器源和命令行客户端不带 Origin
				return origin == "" || allowed[origin]
			},
		},
	}
}

// WebSocketHandler 处理 /websockets/audio
func (h *AudioHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := h.svc.Connect(conn)
	go client.WritePump()
	go client.ReadPump(h.ctx, h.handleMessage)
}

// handleMessage 解码并提交一条客户端消息，错误只记录不断开
func (h *AudioHandler) handleMessage(_ context.Context, client *hub.Client, message []byte) {
	cmd, err := DecodeCommand(message)
	if err != nil {
		logger.Warn("invalid client message",
			logger.String("client", client.ID),
			logger.ErrorField(err))
		return
	}
	if cmd == nil {
		return
	}

	logger.Debug("command received",
		logger.String("client", client.ID),
		logger.String("kind", cmd.Kind()))

	if ack := Ack(cmd); ack != nil {
		client.Reply(ack)
	}
	h.svc.Submit(client.ID, cmd)
}

// LibraryResponse GET /music 的响应
type LibraryResponse struct {
	Event string   `json:"event"`
	Data  []string `json:"data"`
}

// LibraryHandler 列出音乐目录中的文件
func (h *AudioHandler) LibraryHandler(w http.ResponseWriter, r *http.Request) {
	files := []string{}
	if h.library != nil {
		files = append(files, h.library.Files()...)
	}
	writeJSON(w, http.StatusOK, LibraryResponse{Event: "query_response", Data: files})
}

// StatusHandler 返回最近一次推送的快照
func (h *AudioHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, player.StatusMessage{
		EventType: player.StatusEventPeriodic,
		Data:      h.svc.Latest(),
	})
}

// HealthHandler 健康检查
func (h *AudioHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": h.svc.Hub().Count(),
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response failed", logger.ErrorField(err))
	}
}
