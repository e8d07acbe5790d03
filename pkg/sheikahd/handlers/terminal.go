package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Fl0rencess720/sheikah/pkg/terminal"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	EventTerminalWrite  = "terminal:write"
	EventTerminalResize = "terminal:resize"
	EventTerminalData   = "terminal:data"
	EventTerminalError  = "terminal:error"
	EventTerminalExit   = "terminal:exit"
	EventFilesChanged   = "files:changed"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// 粘贴大段文本时单帧可能较大
	maxMessageSize = 1 << 20
	sendBufferSize = 1024
)

// Event 终端通道上的消息封装
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ResizeData struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

type ExitData struct {
	Code int `json:"code"`
}

type FilesChangedData struct {
	Paths []string `json:"paths"`
}

// TerminalHandler 把每个 websocket 连接绑定到一个独立的 PTY 会话
type TerminalHandler struct {
	manager  *terminal.Manager
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*wsClient
}

func InitTerminalApi(group *gin.RouterGroup, manager *terminal.Manager) *TerminalHandler {
	h := NewTerminalHandler(manager)
	group.GET("/terminal", h.Serve)
	return h
}

func NewTerminalHandler(manager *terminal.Manager) *TerminalHandler {
	return &TerminalHandler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[string]*wsClient),
	}
}

// Serve 连接建立即创建会话，连接断开即销毁会话
func (h *TerminalHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.L().Warn("Upgrade terminal websocket failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	client := newWSClient(id, conn)
	go client.writePump()

	if _, err := h.manager.Open(id, client); err != nil {
		client.push(encodeEvent(EventTerminalError, err.Error()), true)
		return
	}

	h.register(client)
	defer func() {
		h.unregister(id)
		h.manager.Close(id)
	}()

	zap.L().Info("Terminal client connected", zap.String("session_id", id), zap.String("remote", c.ClientIP()))
	client.readPump(h.handleEvent)
	zap.L().Info("Terminal client disconnected", zap.String("session_id", id))
}

func (h *TerminalHandler) handleEvent(id string, ev Event) {
	switch ev.Event {
	case EventTerminalWrite:
		var data string
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			zap.L().Debug("Invalid terminal write payload", zap.String("session_id", id), zap.Error(err))
			return
		}
		if err := h.manager.Write(id, []byte(data)); err != nil {
			zap.L().Warn("Write to terminal failed", zap.String("session_id", id), zap.Error(err))
		}
	case EventTerminalResize:
		var size ResizeData
		if err := json.Unmarshal(ev.Data, &size); err != nil {
			zap.L().Debug("Invalid terminal resize payload", zap.String("session_id", id), zap.Error(err))
			return
		}
		if err := h.manager.Resize(id, size.Cols, size.Rows); err != nil {
			zap.L().Warn("Resize terminal failed", zap.String("session_id", id), zap.Error(err))
		}
	default:
		zap.L().Debug("Unknown terminal event", zap.String("session_id", id), zap.String("event", ev.Event))
	}
}

// FilesChanged 向所有在线连接广播工作区变更
func (h *TerminalHandler) FilesChanged(paths []string) {
	h.Broadcast(EventFilesChanged, FilesChangedData{Paths: paths})
}

func (h *TerminalHandler) Broadcast(event string, data any) {
	msg := encodeEvent(event, data)
	if msg == nil {
		return
	}
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.offer(msg)
	}
}

func (h *TerminalHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *TerminalHandler) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *TerminalHandler) unregister(id string) {
	h.mu.Lock()
	delete(h.clients, id)
	h.mu.Unlock()
}

func encodeEvent(event string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		zap.L().Error("Marshal terminal event data failed", zap.String("event", event), zap.Error(err))
		return nil
	}
	msg, err := json.Marshal(Event{Event: event, Data: raw})
	if err != nil {
		zap.L().Error("Marshal terminal event failed", zap.String("event", event), zap.Error(err))
		return nil
	}
	return msg
}

type outbound struct {
	payload    []byte
	closeAfter bool
}

// wsClient 单连接的写协程与发送队列，实现 terminal.Sink
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan outbound

	// pending 上一次输出末尾不完整的 UTF-8 字节，只在输出泵协程中访问
	pending []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newWSClient(id string, conn *websocket.Conn) *wsClient {
	return &wsClient{
		id:   id,
		conn: conn,
		send: make(chan outbound, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Send 队列满时阻塞，由此把背压传回 PTY，shell 的写入随之阻塞
func (c *wsClient) Send(data []byte) {
	if len(c.pending) > 0 {
		data = append(c.pending, data...)
		c.pending = nil
	}
	cut := completeUTF8Prefix(data)
	if cut < len(data) {
		c.pending = append([]byte(nil), data[cut:]...)
		data = data[:cut]
	}
	if len(data) == 0 {
		return
	}
	c.push(encodeEvent(EventTerminalData, string(data)), false)
}

func (c *wsClient) Exited(code int) {
	if len(c.pending) > 0 {
		rest := c.pending
		c.pending = nil
		c.push(encodeEvent(EventTerminalData, string(rest)), false)
	}
	c.push(encodeEvent(EventTerminalExit, ExitData{Code: code}), true)
}

// completeUTF8Prefix 返回 data 中不以半个多字节字符结尾的最长前缀长度
func completeUTF8Prefix(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		start := len(data) - i
		if !utf8.RuneStart(data[start]) {
			continue
		}
		if utf8.FullRune(data[start:]) {
			return len(data)
		}
		return start
	}
	return len(data)
}

// push 按序投递，队列满时等待，连接关闭后直接丢弃
func (c *wsClient) push(payload []byte, closeAfter bool) bool {
	if payload == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- outbound{payload: payload, closeAfter: closeAfter}:
		return true
	case <-c.done:
		return false
	}
}

// offer 用于广播通知，队列满时丢弃这一条，不影响终端输出
func (c *wsClient) offer(payload []byte) bool {
	if payload == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- outbound{payload: payload}:
		return true
	case <-c.done:
		return false
	default:
		zap.L().Debug("Terminal client send buffer full, dropping notification", zap.String("session_id", c.id))
		return false
	}
}

func (c *wsClient) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *wsClient) readPump(handle func(id string, ev Event)) {
	defer c.shutdown()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				zap.L().Warn("Terminal websocket read error", zap.String("session_id", c.id), zap.Error(err))
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(message, &ev); err != nil {
			zap.L().Debug("Invalid terminal event", zap.String("session_id", c.id), zap.Error(err))
			continue
		}
		handle(c.id, ev)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
				zap.L().Debug("Write terminal websocket failed", zap.String("session_id", c.id), zap.Error(err))
				return
			}
			if msg.closeAfter {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
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
