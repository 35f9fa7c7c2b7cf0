package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Inbound event names. The set is closed: anything else is a protocol
// violation and is dropped at the connection boundary.
const (
	evJoinUser   = "join-user"
	evJoinRoom   = "join-room"
	evInvite     = "invite"
	evProgress   = "progress"
	evCompleted  = "completed"
	evDisconnect = "disconnect"
)

// Outbound event names owned by the gateway. Match lifecycle events come
// from the match package.
const (
	evOnline    = "online"
	evOffline   = "offline"
	evInviteAck = "invite-ack"
)

var (
	errEmptyEvent   = errors.New("empty event type")
	errUnknownEvent = errors.New("unknown event type")
)

// Envelope is the wire frame for both directions: a type tag plus a typed
// payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type joinUserPayload struct {
	UserID string `json:"user_id"`
}

type joinRoomPayload struct {
	RoomID string `json:"room_id"`
}

type invitePayload struct {
	ToUserID string `json:"to_user_id"`
	QuizID   string `json:"quiz_id"`
}

type progressPayload struct {
	RoomID        string  `json:"room_id"`
	Score         int     `json:"score"`
	QuestionIndex int     `json:"question_index"`
	CorrectCount  int     `json:"correct_count"`
	ElapsedTime   float64 `json:"elapsed_time"`
}

type completedPayload struct {
	RoomID      string  `json:"room_id"`
	Score       int     `json:"score"`
	ElapsedTime float64 `json:"elapsed_time"`
}

type disconnectPayload struct{}

type presencePayload struct {
	UserID string `json:"user_id"`
}

// decodeEvent validates a raw frame into one of the closed event variants.
func decodeEvent(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	typ := strings.TrimSpace(env.Type)
	if typ == "" {
		return nil, errEmptyEvent
	}

	switch typ {
	case evJoinUser:
		var p joinUserPayload
		if err := unmarshalData(env.Data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case evJoinRoom:
		var p joinRoomPayload
		if err := unmarshalData(env.Data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case evInvite:
		var p invitePayload
		if err := unmarshalData(env.Data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case evProgress:
		var p progressPayload
		if err := unmarshalData(env.Data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case evCompleted:
		var p completedPayload
		if err := unmarshalData(env.Data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case evDisconnect:
		return disconnectPayload{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownEvent, typ)
	}
}

func unmarshalData(data json.RawMessage, out any) error {
	if len(data) == 0 {
		return errors.New("missing event data")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode event data: %w", err)
	}
	return nil
}

func encodeEvent(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode event data: %w", err)
		}
		data = raw
	}
	return json.Marshal(Envelope{Type: event, Data: data})
}
