package gateway

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/quizarena/quiz-arena/internal/match"
	"github.com/quizarena/quiz-arena/internal/metrics"
	"github.com/quizarena/quiz-arena/internal/obslog"
	"github.com/quizarena/quiz-arena/internal/presence"
)

// MatchLister serves a user's recent finished matches, newest first.
type MatchLister interface {
	ResultsByUser(ctx context.Context, userID string) ([]*match.Result, error)
}

// Server accepts WebSocket sessions and routes their typed events into the
// coordinator. Protocol violations are dropped and logged; the client never
// sees an error frame.
type Server struct {
	hub     *Hub
	reg     *presence.Registry
	coord   *match.Coordinator
	results MatchLister
}

func NewServer(hub *Hub, reg *presence.Registry, coord *match.Coordinator) *Server {
	return &Server{hub: hub, reg: reg, coord: coord}
}

// AttachResults wires the match-history read path behind /api/matches.
func (s *Server) AttachResults(l MatchLister) {
	if s != nil {
		s.results = l
	}
}

// HandleWS upgrades the request and owns the connection's read loop until
// disconnect.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		OriginPatterns:  []string{"*"},
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.Error(err))
		return
	}

	c := newConn(ws)
	s.hub.Register(c)
	metrics.ConnectionsActive.Inc()
	obslog.L().Info("conn_open", zap.String("conn_id", c.id))

	go c.writeLoop()
	defer s.teardown(c)

	ctx := r.Context()
	for {
		_, raw, err := ws.Read(ctx)
		if err != nil {
			obslog.L().Debug("conn_read_end",
				zap.String("conn_id", c.id),
				zap.Error(err),
			)
			return
		}
		if done := s.dispatch(ctx, c, raw); done {
			return
		}
	}
}

// dispatch handles one inbound frame. Returns true when the connection asked
// to terminate.
func (s *Server) dispatch(ctx context.Context, c *Conn, raw []byte) bool {
	ev, err := decodeEvent(raw)
	if err != nil {
		metrics.EventsDropped.WithLabelValues("malformed").Inc()
		obslog.L().Warn("event_drop",
			zap.String("conn_id", c.id),
			zap.String("reason", "malformed"),
			zap.Error(err),
		)
		return false
	}

	switch p := ev.(type) {
	case joinUserPayload:
		s.reg.Attach(c.id, p.UserID)
		s.hub.Bind(c, p.UserID)
		metrics.UsersOnline.Set(float64(s.reg.OnlineUsers()))
		return false
	case disconnectPayload:
		return true
	}

	// Everything below requires a bound identity; the sender's user id is
	// taken from the binding, never from the payload.
	userID, ok := s.reg.UserOf(c.id)
	if !ok {
		metrics.EventsDropped.WithLabelValues("unbound").Inc()
		obslog.L().Warn("event_drop",
			zap.String("conn_id", c.id),
			zap.String("reason", "unbound"),
		)
		return false
	}

	switch p := ev.(type) {
	case joinRoomPayload:
		// Join the broadcast group first: when this join completes the room,
		// the ready broadcast fires inside the coordinator and must reach
		// this connection too.
		s.hub.JoinRoom(c, p.RoomID)
		if err := s.coord.JoinRoom(ctx, p.RoomID, userID); err != nil {
			s.hub.LeaveRoom(c, p.RoomID)
			metrics.EventsDropped.WithLabelValues("join_rejected").Inc()
			return false
		}
	case invitePayload:
		ack, err := s.coord.Invite(ctx, userID, p.ToUserID, p.QuizID)
		if err != nil {
			metrics.EventsDropped.WithLabelValues("invite_rejected").Inc()
			obslog.L().Warn("event_drop",
				zap.String("conn_id", c.id),
				zap.String("reason", "invite_rejected"),
				zap.Error(err),
			)
			return false
		}
		c.send(evInviteAck, ack)
	case progressPayload:
		if err := s.coord.Progress(ctx, p.RoomID, userID, match.Progress{
			Score:         p.Score,
			QuestionIndex: p.QuestionIndex,
			CorrectCount:  p.CorrectCount,
			ElapsedTime:   p.ElapsedTime,
		}); err != nil {
			metrics.EventsDropped.WithLabelValues("progress_rejected").Inc()
		}
	case completedPayload:
		if err := s.coord.Completed(ctx, p.RoomID, userID, p.Score, p.ElapsedTime); err != nil {
			metrics.EventsDropped.WithLabelValues("completion_rejected").Inc()
		}
	}
	return false
}

// teardown runs exactly once per connection, whether the peer closed, the
// read failed or a disconnect event arrived.
func (s *Server) teardown(c *Conn) {
	s.reg.Detach(c.id)
	s.hub.Unregister(c.id)
	c.close(websocket.StatusNormalClosure, "bye")
	metrics.ConnectionsActive.Dec()
	metrics.UsersOnline.Set(float64(s.reg.OnlineUsers()))
	obslog.L().Info("conn_close", zap.String("conn_id", c.id))
}
