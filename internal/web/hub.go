package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"rpc-feeprobe-go/internal/engine"
	"rpc-feeprobe-go/internal/models"
)

// WSEvent 定义发送到前端的消息结构
type WSEvent struct {
	Data interface{} `json:"data"`
	Type string      `json:"type"` // "snapshot" or "log_entry"
}

const (
	EventSnapshot = "snapshot"
	EventLogEntry = "log_entry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin 允许非浏览器请求、本地开发环境和同源页面
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" || strings.EqualFold(u.Host, r.Host) {
		return true
	}
	slog.Warn("🚫 [Security] Blocked unauthorized WebSocket origin", "origin", origin)
	return false
}

// Client 代表一个连接的前端用户
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub 维护活跃连接并推送新的探测记录
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan interface{}
	register   chan *Client
	unregister chan *Client
	logger     *slog.Logger
	count      atomic.Int64
	done       chan struct{}

	// Backlog 新连接建立时推送的历史记录（可选）
	Backlog func() []models.LogEntry
}

var _ engine.LogSink = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan interface{}, 1024),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     engine.Logger,
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("websocket_hub_started")
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("websocket_hub_stopping")
			for client := range h.clients {
				h.drop(client)
			}
			close(h.done)
			return
		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			h.sendBacklog(client)
			h.logger.Info("ws_client_connected", slog.Int("total_clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Info("ws_client_disconnected", slog.Int("total_clients", len(h.clients)))
			}

		case event := <-h.broadcast:
			message, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("ws_json_marshal_error", slog.String("error", err.Error()))
				continue
			}

			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn("ws_client_blocked_dropping_client")
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	close(client.send)
	delete(h.clients, client)
	h.count.Store(int64(len(h.clients)))
}

func (h *Hub) sendBacklog(client *Client) {
	if h.Backlog == nil {
		return
	}
	message, err := json.Marshal(WSEvent{Type: EventSnapshot, Data: h.Backlog()})
	if err != nil {
		h.logger.Error("ws_json_marshal_error", slog.String("error", err.Error()))
		return
	}
	select {
	case client.send <- message:
	default:
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Broadcast 非阻塞广播，Hub 处理不过来时丢弃
func (h *Hub) Broadcast(event interface{}) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("ws_hub_blocked_dropping_message")
	}
}

func (h *Hub) Name() string { return "websocket" }

// WriteEntries 实现 engine.LogSink
func (h *Hub) WriteEntries(_ context.Context, entries []models.LogEntry) error {
	for _, e := range entries {
		h.Broadcast(WSEvent{Type: EventLogEntry, Data: e})
	}
	return nil
}

// Close 连接由 Run 的 ctx 关闭
func (h *Hub) Close() error {
	return nil
}

// HandleWS 处理 WebSocket 请求
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws_upgrade_failed", slog.String("error", err.Error()))
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump 只处理心跳，客户端消息被忽略
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(message); err != nil {
				c.hub.logger.Warn("ws_write_error", slog.String("err", err.Error()))
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
