package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	authjwt "notika/backend/internal/auth/jwt"
	"notika/backend/internal/domain"
)

// ErrNoSubscribers 组内没有本地连接
var ErrNoSubscribers = errors.New("no subscribers in group")

// 服务端与客户端之间的控制事件
const (
	EventPing  = "ping"
	EventPong  = "pong"
	EventError = "error"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 256
)

// TokenValidator 校验连接携带的访问令牌
type TokenValidator interface {
	ValidateToken(token string) (*authjwt.Claims, error)
}

// Frame 推送给客户端的消息帧
type Frame struct {
	Event     string      `json:"event"`
	Group     string      `json:"group,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Client 代表一个 WebSocket 客户端连接
type Client struct {
	ID     string
	Email  string
	groups []string

	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub 管理所有 WebSocket 连接及其所在的组
//
// 组按收件人邮箱划分，管理员额外加入 admins 组。
type Hub struct {
	clients    map[string]*Client            // clientID -> Client
	groups     map[string]map[string]*Client // group -> clientID -> Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	log            *zap.Logger
	allowedOrigins []string
	tokens         TokenValidator
	connections    prometheus.Gauge
	now            func() time.Time
}

// Option Hub 可选项
type Option func(*Hub)

// WithConnectionGauge 上报当前连接数
func WithConnectionGauge(g prometheus.Gauge) Option {
	return func(h *Hub) { h.connections = g }
}

// NewHub 创建 WebSocket Hub
//
// 参数:
//   - allowedOrigins: 允许的 Origin 列表，为空时允许所有来源
//   - tokens: 访问令牌校验器
func NewHub(allowedOrigins []string, tokens TokenValidator, log *zap.Logger, opts ...Option) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if log == nil {
		log = zap.NewNop()
	}

	h := &Hub{
		clients:        make(map[string]*Client),
		groups:         make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
		log:            log.Named("websocket"),
		allowedOrigins: allowedOrigins,
		tokens:         tokens,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run 启动 Hub，ctx 取消时关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			close(h.done)
			h.closeAllClients()
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// PublishToGroup 向组内所有本地连接推送事件
//
// 组内没有连接时返回 ErrNoSubscribers；单个连接阻塞时跳过该连接。
func (h *Hub) PublishToGroup(ctx context.Context, group, event string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	group = normalizeGroup(group)
	data, err := json.Marshal(Frame{Event: event, Group: group, Data: payload, Timestamp: h.now()})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.groups[group]
	if len(members) == 0 {
		return ErrNoSubscribers
	}

	for _, client := range members {
		select {
		case client.send <- data:
		default:
			h.log.Warn("client channel blocked, skipping",
				zap.String("clientID", client.ID),
				zap.String("group", group))
		}
	}
	return nil
}

// GroupSize 组内本地连接数
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[normalizeGroup(group)])
}

// ConnectionCount 当前连接数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	for _, group := range client.groups {
		if h.groups[group] == nil {
			h.groups[group] = make(map[string]*Client)
		}
		h.groups[group][client.ID] = client
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.reportConnections(count)
	h.log.Info("client connected",
		zap.String("clientID", client.ID),
		zap.String("email", client.Email),
		zap.Strings("groups", client.groups))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	for _, group := range client.groups {
		if members, exists := h.groups[group]; exists {
			delete(members, client.ID)
			if len(members) == 0 {
				delete(h.groups, group)
			}
		}
	}
	delete(h.clients, client.ID)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	h.reportConnections(count)
	h.log.Info("client disconnected",
		zap.String("clientID", client.ID),
		zap.String("email", client.Email))
}

func (h *Hub) reportConnections(n int) {
	if h.connections != nil {
		h.connections.Set(float64(n))
	}
}

// pingAllClients 向所有客户端发送 ping 帧
func (h *Hub) pingAllClients() {
	data, err := json.Marshal(Frame{Event: EventPing, Timestamp: h.now()})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.groups = make(map[string]map[string]*Client)
	h.reportConnections(0)
}

// authenticate 从查询参数或 Authorization 头读取令牌并确定所属组
func (h *Hub) authenticate(c *gin.Context) (*Client, error) {
	token := c.Query("token")
	if token == "" {
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = parts[1]
		}
	}
	if token == "" {
		return nil, errors.New("missing authentication token")
	}
	if h.tokens == nil {
		return nil, errors.New("token validation is not configured")
	}

	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	user := domain.User{Email: claims.Email, Roles: claims.DomainRoles()}
	groups := user.Groups()
	if len(groups) == 0 {
		return nil, errors.New("token carries no email")
	}

	return &Client{
		ID:     uuid.NewString(),
		Email:  domain.NormalizeEmail(claims.Email),
		groups: groups,
	}, nil
}

func (h *Hub) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}
}

// HandleWebSocket 处理 WebSocket 连接
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := hub.upgrader()

	return func(c *gin.Context) {
		client, err := hub.authenticate(c)
		if err != nil {
			hub.log.Warn("websocket authentication failed",
				zap.Error(err),
				zap.String("remote_addr", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "msg": "authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client.conn = conn
		client.hub = hub
		client.send = make(chan []byte, sendBuffer)

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// readPump 读取客户端消息，连接断开时注销
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read error", zap.String("clientID", c.ID), zap.Error(err))
			}
			return
		}
		c.handleFrame(&frame)
	}
}

// writePump 把发送队列写到连接上，并定期发送协议层 ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleFrame(frame *Frame) {
	switch frame.Event {
	case EventPing:
		c.sendFrame(Frame{Event: EventPong, Timestamp: c.hub.now()})
	case EventPong:
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	default:
		c.sendFrame(Frame{Event: EventError, Data: "unsupported event", Timestamp: c.hub.now()})
	}
}

func (c *Client) sendFrame(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.ID]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.log.Warn("client channel blocked", zap.String("clientID", c.ID))
	}
}

func normalizeGroup(group string) string {
	return strings.ToLower(strings.TrimSpace(group))
}
