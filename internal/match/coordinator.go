package match

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quizarena/quiz-arena/internal/metrics"
	"github.com/quizarena/quiz-arena/internal/obslog"
)

// Outbound event names emitted by the coordinator.
const (
	EvMatchReady       = "match-ready"
	EvOpponentProgress = "opponent-progress"
	EvMatchOver        = "match-over"
	EvRoomInvite       = "room-invite"
)

// Broadcaster fans an event out to a user's connections or to every
// connection joined to a room. Delivery is best-effort, at most once per
// underlying connection.
type Broadcaster interface {
	ToUser(userID, event string, payload any)
	ToRoom(roomID, event string, payload any)
}

// Recorder persists a final match result. Failures are logged and swallowed;
// the live match flow never depends on the recorder.
type Recorder interface {
	SaveResult(ctx context.Context, res *Result) error
}

// QuizSource resolves opaque quiz tokens to display metadata for invites.
type QuizSource interface {
	QuizMeta(ctx context.Context, quizID string) (title string, questionCount int, err error)
}

// ReadyPayload announces that a room reached its expected participant count.
type ReadyPayload struct {
	RoomID  string   `json:"room_id"`
	Players []string `json:"players"`
}

// ProgressUpdate is a progress event relayed to the opponent.
type ProgressUpdate struct {
	RoomID        string  `json:"room_id"`
	UserID        string  `json:"user_id"`
	Score         int     `json:"score"`
	QuestionIndex int     `json:"question_index"`
	CorrectCount  int     `json:"correct_count"`
	ElapsedTime   float64 `json:"elapsed_time"`
}

// InvitePayload is delivered to the invited user and echoed back to the
// sender as the acknowledgement carrying the generated room token.
type InvitePayload struct {
	RoomID        string `json:"room_id"`
	FromUserID    string `json:"from_user_id"`
	QuizID        string `json:"quiz_id"`
	QuizTitle     string `json:"quiz_title,omitempty"`
	QuestionCount int    `json:"question_count,omitempty"`
}

// Coordinator drives the room state machine: formation, progress relay,
// completion detection, winner broadcast and reclamation. It is driven
// purely by externally delivered events plus the periodic idle sweep.
type Coordinator struct {
	store    *Store
	bc       Broadcaster
	recorder Recorder
	quizzes  QuizSource

	idleTTL    time.Duration
	grace      time.Duration
	sweepEvery time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewCoordinator(store *Store, bc Broadcaster, idleTTL, grace, sweepEvery time.Duration) *Coordinator {
	return &Coordinator{
		store:      store,
		bc:         bc,
		idleTTL:    idleTTL,
		grace:      grace,
		sweepEvery: sweepEvery,
		stopCh:     make(chan struct{}),
	}
}

// AttachRecorder wires best-effort persistence of final results.
func (c *Coordinator) AttachRecorder(r Recorder) {
	if c != nil {
		c.recorder = r
	}
}

// AttachQuizSource wires the quiz-content resolver used by invites.
func (c *Coordinator) AttachQuizSource(q QuizSource) {
	if c != nil {
		c.quizzes = q
	}
}

// JoinRoom registers the user in the room and triggers the match-ready
// broadcast at the participant threshold. The readiness check is
// level-triggered: a reconnecting player re-joining re-evaluates it safely.
func (c *Coordinator) JoinRoom(ctx context.Context, roomID, userID string) error {
	count, err := c.store.Join(roomID, userID)
	if err != nil {
		obslog.L().Warn("room_join_drop",
			zap.String("room_id", roomID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return err
	}
	obslog.L().Info("room_join",
		zap.String("room_id", roomID),
		zap.String("user_id", userID),
		zap.Int("participants", count),
	)
	if count == ExpectedPlayers {
		c.bc.ToRoom(roomID, EvMatchReady, ReadyPayload{
			RoomID:  roomID,
			Players: c.store.Participants(roomID),
		})
	}
	metrics.RoomsActive.Set(float64(c.store.Len()))
	return nil
}

// Invite generates a fresh room token, delivers a room-invite to the target
// user's connections and returns the payload for the sender's ack. Quiz
// metadata lookup is best-effort; a failed lookup degrades the invite, it
// never blocks it.
func (c *Coordinator) Invite(ctx context.Context, fromUserID, toUserID, quizID string) (*InvitePayload, error) {
	if fromUserID == "" || toUserID == "" {
		return nil, ErrInvalidArgs
	}
	if fromUserID == toUserID {
		return nil, ErrSelfInvite
	}

	payload := &InvitePayload{
		RoomID:     uuid.NewString(),
		FromUserID: fromUserID,
		QuizID:     quizID,
	}
	if c.quizzes != nil && quizID != "" {
		title, n, err := c.quizzes.QuizMeta(ctx, quizID)
		if err != nil {
			obslog.L().Debug("invite_quiz_meta_error",
				zap.String("quiz_id", quizID),
				zap.Error(err),
			)
		} else {
			payload.QuizTitle = title
			payload.QuestionCount = n
		}
	}

	c.bc.ToUser(toUserID, EvRoomInvite, payload)
	metrics.InvitesSent.Inc()
	obslog.L().Info("room_invite",
		zap.String("room_id", payload.RoomID),
		zap.String("from_user_id", fromUserID),
		zap.String("to_user_id", toUserID),
		zap.String("quiz_id", quizID),
	)
	return payload, nil
}

// Progress records a player's live update and relays it to the other
// participant's connections, never back to the sender. Events referencing
// rooms the sender never joined are dropped.
func (c *Coordinator) Progress(ctx context.Context, roomID, userID string, p Progress) error {
	opponents, err := c.store.RecordProgress(roomID, userID, p)
	if err != nil {
		obslog.L().Warn("progress_drop",
			zap.String("room_id", roomID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return err
	}
	update := ProgressUpdate{
		RoomID:        roomID,
		UserID:        userID,
		Score:         p.Score,
		QuestionIndex: p.QuestionIndex,
		CorrectCount:  p.CorrectCount,
		ElapsedTime:   p.ElapsedTime,
	}
	for _, opp := range opponents {
		c.bc.ToUser(opp, EvOpponentProgress, update)
	}
	return nil
}

// Completed freezes the player's terminal state and, on the transition where
// every participant has finished, computes and broadcasts the result exactly
// once.
func (c *Coordinator) Completed(ctx context.Context, roomID, userID string, finalScore int, finalTime float64) error {
	if err := c.store.RecordCompletion(roomID, userID, finalScore, finalTime); err != nil {
		obslog.L().Warn("completion_drop",
			zap.String("room_id", roomID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return err
	}
	obslog.L().Info("player_finished",
		zap.String("room_id", roomID),
		zap.String("user_id", userID),
		zap.Int("score", finalScore),
		zap.Float64("elapsed", finalTime),
	)

	res, ok := c.store.TryFinalize(roomID)
	if !ok {
		return nil
	}
	c.bc.ToRoom(roomID, EvMatchOver, res)
	metrics.MatchesFinalized.Inc()
	obslog.L().Info("match_finalize",
		zap.String("room_id", roomID),
		zap.String("winner_id", res.WinnerID),
		zap.Bool("draw", res.Draw),
	)
	c.persistResult(ctx, res)
	return nil
}

// Start launches the background idle sweep.
func (c *Coordinator) Start() {
	c.wg.Add(1)
	go c.sweepLoop()
}

// Stop halts the sweep loop and waits for it to drain.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *Coordinator) sweepLoop() {
	defer c.wg.Done()
	t := time.NewTicker(c.sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case now := <-t.C:
			removed := c.store.Sweep(now, c.idleTTL, c.grace)
			metrics.RoomsActive.Set(float64(c.store.Len()))
			if len(removed) == 0 {
				continue
			}
			metrics.RoomsSwept.Add(float64(len(removed)))
			obslog.L().Info("room_sweep",
				zap.Int("removed", len(removed)),
				zap.Strings("room_ids", removed),
			)
		}
	}
}

func (c *Coordinator) persistResult(ctx context.Context, res *Result) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.SaveResult(ctx, res); err != nil {
		obslog.L().Error("result_persist_error",
			zap.String("room_id", res.RoomID),
			zap.Error(err),
		)
		return
	}
	obslog.L().Info("result_persist", zap.String("room_id", res.RoomID))
}
