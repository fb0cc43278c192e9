// Package push 通过 WebSocket 推送周期结果，并提供查询与指标 HTTP 接口。
package push

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ladder-optimizer/internal/config"
)

// 消息类型
const (
	// MsgLadders 服务端推送的周期结果
	MsgLadders = "ladders"
	// MsgConfig 客户端提交的引擎参数修改，回复时携带生效后的参数
	MsgConfig = "config"
	// MsgError 服务端对无效消息的回复，只发给提交者
	MsgError = "error"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 16
	updateBuffer   = 16
	directBuffer   = 64
)

// Message 推送消息信封
type Message struct {
	// Type 消息类型
	Type string `json:"type"`
	// Data 消息内容
	Data json.RawMessage `json:"data,omitempty"`
}

type outMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Update 一次参数修改及其来源
// 来源为空表示经 HTTP 提交，无法回复。
type Update struct {
	Patch config.EngineUpdate
	from  *client
}

type directMessage struct {
	to  *client
	msg []byte
}

// Hub 管理 WebSocket 连接并广播消息
// 连接集合只由 Run 所在的 goroutine 修改。
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	direct     chan directMessage
	updates    chan Update

	// done 在 Run 退出时关闭
	done chan struct{}

	// lastMu 保护最近一次广播内容（新连接建立时补发）
	lastMu sync.RWMutex
	last   []byte

	count  atomic.Int64
	logger *zap.Logger
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub 创建推送中心
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		direct:     make(chan directMessage, directBuffer),
		updates:    make(chan Update, updateBuffer),
		done:       make(chan struct{}),
		logger:     logger.Named("push"),
	}
}

// Run 运行连接管理循环，ctx 取消时关闭全部连接
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.count.Store(0)
			return
		case c := <-h.register:
			h.clients[c] = true
			h.count.Store(int64(len(h.clients)))
			if last := h.lastPayload(); last != nil {
				c.send <- last
			}
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.count.Store(int64(len(h.clients)))
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// 慢客户端直接断开
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.count.Store(int64(len(h.clients)))
		case d := <-h.direct:
			// 连接已注销时 send 已关闭，直接丢弃
			if !h.clients[d.to] {
				continue
			}
			select {
			case d.to.send <- d.msg:
			default:
			}
		}
	}
}

// Broadcast 广播一条消息；缓冲区满时丢弃
// 参数 msgType: 消息类型
// 参数 v: 消息内容
// 返回: 是否成功投递
func (h *Hub) Broadcast(msgType string, v any) bool {
	b, err := marshalMessage(msgType, v)
	if err != nil {
		h.logger.Error("编码推送消息失败", zap.String("type", msgType), zap.Error(err))
		return false
	}
	if msgType == MsgLadders {
		h.lastMu.Lock()
		h.last = b
		h.lastMu.Unlock()
	}
	select {
	case h.broadcast <- b:
		return true
	default:
		h.logger.Warn("推送缓冲区已满，丢弃消息", zap.String("type", msgType))
		return false
	}
}

// Updates 返回客户端提交的参数修改
func (h *Hub) Updates() <-chan Update {
	return h.updates
}

// Reply 向提交该修改的连接单独回复
// 参数 u: 参数修改
// 参数 msgType: 消息类型
// 参数 v: 消息内容
// 返回: 是否成功投递；HTTP 提交的修改总是返回 false
func (h *Hub) Reply(u Update, msgType string, v any) bool {
	if u.from == nil {
		return false
	}
	return h.sendTo(u.from, msgType, v)
}

// ClientCount 返回当前连接数
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Submit 投递一条参数修改；队列满时返回 false
func (h *Hub) Submit(patch config.EngineUpdate) bool {
	return h.submit(Update{Patch: patch})
}

func (h *Hub) submit(u Update) bool {
	select {
	case h.updates <- u:
		return true
	default:
		return false
	}
}

// sendTo 经 Run 循环向单个连接投递消息
func (h *Hub) sendTo(c *client, msgType string, v any) bool {
	b, err := marshalMessage(msgType, v)
	if err != nil {
		h.logger.Error("编码推送消息失败", zap.String("type", msgType), zap.Error(err))
		return false
	}
	select {
	case h.direct <- directMessage{to: c, msg: b}:
		return true
	default:
		return false
	}
}

func (h *Hub) lastPayload() []byte {
	h.lastMu.RLock()
	defer h.lastMu.RUnlock()
	return h.last
}

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   4096,
	WriteBufferSize:  4096,
	CheckOrigin:      func(r *http.Request) bool { return true },
}

// ServeWS 处理 WebSocket 升级请求
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket 升级失败", zap.Error(err))
		return
	}
	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump 读取客户端消息，识别参数修改请求
func (c *client) readPump() {
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
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handle(data)
	}
}

// handle 处理一条客户端消息
func (c *client) handle(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply(MsgError, "消息格式错误")
		return
	}
	if msg.Type != MsgConfig {
		return
	}

	var patch config.EngineUpdate
	if err := json.Unmarshal(msg.Data, &patch); err != nil {
		c.reply(MsgError, "参数格式错误")
		return
	}
	if !c.hub.submit(Update{Patch: patch, from: c}) {
		c.reply(MsgError, "参数修改队列已满")
	}
}

func (c *client) reply(msgType string, v any) {
	c.hub.sendTo(c, msgType, v)
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
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

func marshalMessage(msgType string, v any) ([]byte, error) {
	return json.Marshal(outMessage{Type: msgType, Data: v})
}
