package match

import "time"

// State represents a room's lifecycle position. Transitions only move
// forward; any non-closed state may jump to StateClosed via the idle sweep.
type State string

const (
	StateForming    State = "FORMING"
	StateReady      State = "READY"
	StateInProgress State = "IN_PROGRESS"
	StateFinalizing State = "FINALIZING"
	StateClosed     State = "CLOSED"
)

// ExpectedPlayers is the participant count that makes a room ready.
// The design is fixed at head-to-head 1v1 play.
const ExpectedPlayers = 2

// PlayerState is the live per-player state inside a room. Every field is
// written only by the owning player's events and read by finalization.
type PlayerState struct {
	UserID        string    `json:"user_id"`
	Score         int       `json:"score"`
	QuestionIndex int       `json:"question_index"`
	CorrectCount  int       `json:"correct_count"`
	ElapsedTime   float64   `json:"elapsed_time"`
	Finished      bool      `json:"finished"`
	JoinedAt      time.Time `json:"joined_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Progress carries one in-match update from a player's client.
type Progress struct {
	Score         int     `json:"score"`
	QuestionIndex int     `json:"question_index"`
	CorrectCount  int     `json:"correct_count"`
	ElapsedTime   float64 `json:"elapsed_time"`
}

// Result is the outcome of a finished match. Computed exactly once per room,
// broadcast, handed to the recorder and then discarded with the room.
type Result struct {
	RoomID      string                  `json:"room_id"`
	WinnerID    string                  `json:"winner_id,omitempty"`
	Draw        bool                    `json:"draw"`
	Ranking     []string                `json:"ranking"`
	Players     map[string]*PlayerState `json:"players"`
	FinalizedAt time.Time               `json:"finalized_at"`
}

type staticErr string

func (e staticErr) Error() string { return string(e) }

var (
	ErrInvalidArgs    = staticErr("invalid arguments")
	ErrUnknownRoom    = staticErr("room not found")
	ErrRoomFull       = staticErr("room already has two participants")
	ErrRoomClosed     = staticErr("room is closed")
	ErrNotParticipant = staticErr("user is not a participant of this room")
	ErrSelfInvite     = staticErr("cannot invite yourself")
)
