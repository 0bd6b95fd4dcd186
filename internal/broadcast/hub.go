// Package broadcast streams coordinator operations to websocket clients.
package broadcast

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/livefir/livelist"
	"github.com/livefir/livelist/internal/logger"
	"github.com/livefir/livelist/internal/metrics"
	"github.com/livefir/livelist/internal/render"
	"github.com/livefir/livelist/internal/token"
)

//go:embed static
var static embed.FS

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// MessageType tags messages sent to clients.
type MessageType string

const (
	// MessageSnapshot carries the full list. It is sent on connect and in
	// place of every Reset.
	MessageSnapshot MessageType = "snapshot"
	// MessageOps carries granular operations with the HTML they need.
	MessageOps MessageType = "ops"
)

// OpPayload is an operation plus the rendered rows it inserts or refreshes.
type OpPayload struct {
	livelist.Operation
	HTML []string `json:"html,omitempty"`
}

// Message is one server to client frame.
type Message struct {
	Type  MessageType `json:"type"`
	Seq   uint64      `json:"seq"`
	Count int         `json:"count"`
	Rows  []string    `json:"rows,omitempty"`
	Ops   []OpPayload `json:"ops,omitempty"`
}

// ClientMessage is one client to server frame.
type ClientMessage struct {
	Action string `json:"action"`
}

// ActionFunc handles an action sent by a client, such as "load_more".
type ActionFunc func(ctx context.Context, action string) error

// Hub fans coordinator operations out to every connected client. It
// implements livelist.Notifier; Attach must be called with the coordinator
// before clients connect.
type Hub struct {
	renderer *render.Renderer
	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  *metrics.Collector
	onAction ActionFunc
	tokens   *token.Service
	list     string

	mu      sync.Mutex
	rows    render.Rows
	mirror  []string
	seq     uint64
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// WithMetrics exposes collector on /metrics and counts clients in it.
func WithMetrics(m *metrics.Collector) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithAction registers the handler for client actions.
func WithAction(fn ActionFunc) Option {
	return func(h *Hub) { h.onAction = fn }
}

// WithTokens requires clients to present a connect token issued by svc for
// list. Tokens are handed out on /token.
func WithTokens(svc *token.Service, list string) Option {
	return func(h *Hub) {
		h.tokens = svc
		h.list = list
	}
}

// NewHub returns a hub rendering rows with renderer.
func NewHub(renderer *render.Renderer, opts ...Option) *Hub {
	h := &Hub{
		renderer: renderer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  zap.NewNop(),
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logger.Component(h.logger, "broadcast")
	return h
}

// Attach sets the rows the hub renders from and renders them once.
func (h *Hub) Attach(rows render.Rows) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rows = rows
	_, err := h.resyncLocked()
	return err
}

// View returns the rows as clients currently show them.
func (h *Hub) View() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.mirror...)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Notify implements livelist.Notifier.
func (h *Hub) Notify(ops []livelist.Operation) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rows == nil || h.closed {
		return
	}

	msg, err := h.messageLocked(ops)
	if err != nil {
		h.logger.Error("failed to render operations", zap.Error(err))
		return
	}
	h.broadcastLocked(msg)
}

// messageLocked applies ops to the mirror of what clients show and returns
// the message that brings them in step. A Reset, or a mirror that no longer
// matches the row count, is answered with a snapshot.
func (h *Hub) messageLocked(ops []livelist.Operation) (Message, error) {
	for _, op := range ops {
		if op.Type == livelist.OpReset {
			return h.resyncLocked()
		}
	}

	h.seq++
	msg := Message{Type: MessageOps, Seq: h.seq}
	for _, op := range ops {
		payload := OpPayload{Operation: op}

		switch op.Type {
		case livelist.OpInsert:
			if op.Position < 0 || op.Position > len(h.mirror) {
				return h.driftLocked(op)
			}
			html, err := h.renderer.RenderRow(h.rows, op.Position)
			if err != nil {
				return Message{}, err
			}
			h.mirror = append(h.mirror, "")
			copy(h.mirror[op.Position+1:], h.mirror[op.Position:])
			h.mirror[op.Position] = html
			payload.HTML = []string{html}

		case livelist.OpRemove, livelist.OpRemoveRange:
			n := op.Count
			if op.Type == livelist.OpRemove {
				n = 1
			}
			if op.Position < 0 || op.Position+n > len(h.mirror) {
				return h.driftLocked(op)
			}
			h.mirror = append(h.mirror[:op.Position], h.mirror[op.Position+n:]...)

		case livelist.OpChangeRange:
			if op.Position < 0 || op.Position+op.Count > len(h.mirror) {
				return h.driftLocked(op)
			}
			html, err := h.renderer.RenderRange(h.rows, op.Position, op.Count)
			if err != nil {
				return Message{}, err
			}
			copy(h.mirror[op.Position:], html)
			payload.HTML = html
		}

		msg.Ops = append(msg.Ops, payload)
	}

	if len(h.mirror) != h.rows.RowCount() {
		h.logger.Warn("client view drifted, sending snapshot",
			zap.Int(logger.FieldCount, h.rows.RowCount()),
			zap.Int("mirror", len(h.mirror)))
		h.countDrift()
		return h.resyncLocked()
	}
	msg.Count = len(h.mirror)
	return msg, nil
}

// driftLocked answers an operation that does not fit the mirror with a
// snapshot. Nothing is rendered for the offending operation.
func (h *Hub) driftLocked(op livelist.Operation) (Message, error) {
	h.logger.Warn("operation outside client view, sending snapshot",
		zap.String(logger.FieldOperation, op.String()),
		zap.Int("mirror", len(h.mirror)))
	h.countDrift()
	return h.resyncLocked()
}

func (h *Hub) countDrift() {
	if h.metrics != nil {
		h.metrics.IncrementCustomCounter("render.drift")
	}
}

// resyncLocked re-renders the whole list into the mirror and returns it as
// a snapshot.
func (h *Hub) resyncLocked() (Message, error) {
	rows, err := h.renderer.RenderAll(h.rows)
	if err != nil {
		return Message{}, err
	}
	h.mirror = rows
	return h.snapshotLocked(), nil
}

func (h *Hub) snapshotLocked() Message {
	h.seq++
	return Message{
		Type:  MessageSnapshot,
		Seq:   h.seq,
		Count: len(h.mirror),
		Rows:  append([]string(nil), h.mirror...),
	}
}

func (h *Hub) broadcastLocked(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal message", zap.Error(err))
		return
	}

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("dropping slow client", zap.String(logger.FieldClient, c.id.String()))
			h.removeLocked(c)
		}
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.close()
	if h.metrics != nil {
		h.metrics.IncrementCustomCounter("clients.disconnected")
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// register adds c and queues the current view in one step, so no operation
// can reach the client before the snapshot it applies to.
func (h *Hub) register(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errors.New("hub closed")
	}
	data, err := json.Marshal(h.snapshotLocked())
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	c.send <- data
	h.clients[c] = struct{}{}
	if h.metrics != nil {
		h.metrics.IncrementCustomCounter("clients.connected")
	}
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// Handler returns the HTTP routes of the hub: the viewer page at /, the
// websocket at /ws, connect tokens at /token and the metrics at /metrics.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/metrics", h.serveMetrics)
	mux.HandleFunc("/token", h.serveToken)

	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("/", http.FileServer(http.FS(sub)))
	return mux
}

// ServeWS upgrades the request and streams messages until the client goes
// away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.tokens != nil {
		if _, err := h.tokens.Verify(r.URL.Query().Get("token"), h.list); err != nil {
			h.logger.Warn("websocket connect rejected",
				zap.String(logger.FieldAddress, r.RemoteAddr), zap.Error(err))
			h.count("clients.rejected")
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	log := h.logger.With(
		zap.String(logger.FieldClient, c.id.String()),
		zap.String(logger.FieldAddress, conn.RemoteAddr().String()))

	if err := h.register(c); err != nil {
		log.Error("failed to register client", zap.Error(err))
		conn.Close()
		return
	}
	log.Info("client connected")

	go h.writePump(c, log)
	h.readPump(r.Context(), c, log)

	h.remove(c)
	log.Info("client disconnected")
}

func (h *Hub) readPump(ctx context.Context, c *client, log *zap.Logger) {
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("websocket error", zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn("failed to parse message", zap.Error(err))
			continue
		}
		if h.onAction == nil || msg.Action == "" {
			continue
		}
		if err := h.onAction(ctx, msg.Action); err != nil {
			log.Warn("action failed", zap.String(logger.FieldOperation, msg.Action), zap.Error(err))
		}
	}
}

func (h *Hub) writePump(c *client, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("websocket write failed", zap.Error(err))
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

// MetricsResponse is the body of /metrics.
type MetricsResponse struct {
	metrics.ReconcileMetrics
	ResetRate float64          `json:"reset_rate"`
	ErrorRate float64          `json:"error_rate"`
	Counters  map[string]int64 `json:"counters"`
	Clients   int              `json:"clients"`
}

func (h *Hub) serveMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		http.NotFound(w, r)
		return
	}
	resp := MetricsResponse{
		ReconcileMetrics: h.metrics.GetMetrics(),
		ResetRate:        h.metrics.GetResetRate(),
		ErrorRate:        h.metrics.GetErrorRate(),
		Counters:         h.metrics.GetCustomCounters(),
		Clients:          h.Clients(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Warn("failed to write metrics", zap.Error(err))
	}
}

// TokenResponse is the body served on /token.
type TokenResponse struct {
	Token string `json:"token"`
}

func (h *Hub) serveToken(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		http.NotFound(w, r)
		return
	}
	raw, err := h.tokens.Issue(h.list)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		http.Error(w, "token unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(TokenResponse{Token: raw}); err != nil {
		h.logger.Warn("failed to write token", zap.Error(err))
	}
}

func (h *Hub) count(name string) {
	if h.metrics != nil {
		h.metrics.IncrementCustomCounter(name)
	}
}
