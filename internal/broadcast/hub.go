package broadcast

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/park285/eternal-chess/internal/domain"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	defaultQueueSize = 64
	writeTimeout     = 5 * time.Second
	pingInterval     = 15 * time.Second
)

type client struct {
	id   string
	send chan []byte
}

// Hub serves the websocket event stream. Each client has a bounded queue;
// a full queue drops the event for that client only.
type Hub struct {
	provider  SnapshotProvider
	logger    *zap.Logger
	origins   []string
	queueSize int

	mu      sync.RWMutex
	clients map[*client]struct{}

	dropped   atomic.Int64
	closeOnce sync.Once
	done      chan struct{}
}

type HubOption func(*Hub)

// WithOriginPatterns allows cross-origin websocket connections from the given host patterns.
func WithOriginPatterns(patterns []string) HubOption {
	return func(h *Hub) { h.origins = append([]string(nil), patterns...) }
}

func WithQueueSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

func NewHub(provider SnapshotProvider, logger *zap.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		provider:  provider,
		logger:    logger.Named("hub"),
		queueSize: defaultQueueSize,
		clients:   make(map[*client]struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many per-client messages were discarded on full queues.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (h *Hub) Emit(_ context.Context, event string, snap domain.Snapshot) {
	msg, err := Encode(event, snap)
	if err != nil {
		h.logger.Warn("ws_encode_failed", zap.String("event", event), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped.Add(1)
			h.logger.Debug("ws_send_dropped", zap.String("client", c.id), zap.String("event", event))
		}
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Debug("ws_accept_failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	c := &client{id: uuid.NewString(), send: make(chan []byte, h.queueSize)}
	if err := h.register(r.Context(), c); err != nil {
		h.logger.Warn("ws_snapshot_failed", zap.String("client", c.id), zap.String("error_class", "storage"), zap.Error(err))
		conn.Close(websocket.StatusTryAgainLater, "state unavailable")
		return
	}
	defer h.unregister(c)
	h.logger.Info("ws_client_connected", zap.String("client", c.id), zap.String("remote", r.RemoteAddr))

	// read side is unused; CloseRead cancels ctx when the peer goes away
	ctx := conn.CloseRead(r.Context())

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-h.done:
			conn.Close(websocket.StatusGoingAway, "server shutdown")
			return
		case <-ctx.Done():
			h.logger.Info("ws_client_disconnected", zap.String("client", c.id))
			return
		case msg := <-c.send:
			if err := writeWithTimeout(ctx, conn, msg); err != nil {
				h.logger.Debug("ws_write_failed", zap.String("client", c.id), zap.Error(err))
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				h.logger.Debug("ws_ping_failed", zap.String("client", c.id), zap.Error(err))
				return
			}
		}
	}
}

// register computes the snapshot and queues connection_established while
// holding the hub lock, so no broadcast can reach the client before it.
func (h *Hub) register(ctx context.Context, c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap, err := h.provider.Snapshot(ctx)
	if err != nil {
		return err
	}
	msg, err := Encode(domain.EventConnectionEstablished, snap)
	if err != nil {
		return err
	}
	c.send <- msg
	h.clients[c] = struct{}{}
	return nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func writeWithTimeout(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, msg)
}
