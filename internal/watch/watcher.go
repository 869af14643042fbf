package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/park285/eternal-chess/pkg/eternaldto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type ConnState string

const (
	StateConnecting   ConnState = "CONNECTING"
	StateConnected    ConnState = "CONNECTED"
	StateReconnecting ConnState = "RECONNECTING"
	StateFailed       ConnState = "FAILED"
)

// ErrGaveUp is returned by Watch once every reconnect attempt has failed.
var ErrGaveUp = errors.New("websocket reconnect attempts exhausted")

// Watcher follows the event stream and reconnects with backoff.
type Watcher struct {
	wsURL                string
	maxReconnectAttempts int
	logger               *zap.Logger

	mu      sync.Mutex
	onState func(ConnState)
}

func NewWatcher(wsURL string, maxReconnectAttempts int, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{wsURL: wsURL, maxReconnectAttempts: maxReconnectAttempts, logger: logger.Named("watcher")}
}

func (w *Watcher) OnStateChange(cb func(ConnState)) {
	w.mu.Lock()
	w.onState = cb
	w.mu.Unlock()
}

func (w *Watcher) setState(s ConnState) {
	w.mu.Lock()
	cb := w.onState
	w.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// Watch delivers events to handle until ctx is cancelled. A dropped
// connection is redialled; the attempt counter resets after each success.
func (w *Watcher) Watch(ctx context.Context, handle func(eternaldto.Event)) error {
	failures := 0
	w.setState(StateConnecting)
	for {
		err := w.session(ctx, handle, func() { failures = 0 })
		if ctx.Err() != nil {
			return nil
		}
		failures++
		w.logger.Warn("watch_connection_lost", zap.Int("attempt", failures), zap.Error(err))
		if failures > w.maxReconnectAttempts {
			w.setState(StateFailed)
			return fmt.Errorf("%w: %v", ErrGaveUp, err)
		}
		w.setState(StateReconnecting)
		if err := sleepWithContext(ctx, backoffDuration(failures)); err != nil {
			return nil
		}
	}
}

func (w *Watcher) session(ctx context.Context, handle func(eternaldto.Event), connected func()) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, w.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	cancel()
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	connected()
	w.setState(StateConnected)
	for {
		var ev eternaldto.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return err
		}
		handle(ev)
	}
}
