package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/quizarena/quiz-arena/internal/metrics"
	"github.com/quizarena/quiz-arena/internal/obslog"
)

const sendBuffer = 32

// Conn wraps one WebSocket session. Outbound frames go through a buffered
// channel drained by a single writer goroutine; a full buffer drops the
// frame rather than stalling the sender (best-effort, at-most-once).
type Conn struct {
	id string
	ws *websocket.Conn

	sendCh    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{
		id:     uuid.NewString(),
		ws:     ws,
		sendCh: make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) writeLoop() {
	ctx := context.Background()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.sendCh:
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.ws.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				obslog.L().Debug("conn_write_error",
					zap.String("conn_id", c.id),
					zap.Error(err),
				)
				return
			}
		}
	}
}

func (c *Conn) send(event string, payload any) {
	raw, err := encodeEvent(event, payload)
	if err != nil {
		obslog.L().Error("conn_encode_error",
			zap.String("conn_id", c.id),
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}
	select {
	case c.sendCh <- raw:
	case <-c.done:
	default:
		// slow consumer: drop instead of blocking the broadcast path
		metrics.EventsDropped.WithLabelValues("slow_consumer").Inc()
	}
}

func (c *Conn) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close(code, reason)
	})
}
