// Package presence tracks which users currently hold at least one live
// connection. A user may be connected from several tabs or devices at once;
// online/offline transitions fire only on the first connect and the last
// disconnect.
package presence

import (
	"hash/fnv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/quizarena/quiz-arena/internal/obslog"
)

const shardCount = 32

// TransitionFunc receives the user id whose presence just flipped.
type TransitionFunc func(userID string)

// Registry binds connection ids to user identities and derives presence from
// the per-user connection set. Entries are sharded by key so unrelated users
// never contend on the same lock.
type Registry struct {
	userShards [shardCount]*userShard
	connShards [shardCount]*connShard

	cbMu      sync.RWMutex
	onOnline  TransitionFunc
	onOffline TransitionFunc
}

type userShard struct {
	mu    sync.Mutex
	conns map[string]map[string]struct{} // userID -> set of connIDs
}

type connShard struct {
	mu    sync.Mutex
	users map[string]string // connID -> userID
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.userShards {
		r.userShards[i] = &userShard{conns: make(map[string]map[string]struct{})}
	}
	for i := range r.connShards {
		r.connShards[i] = &connShard{users: make(map[string]string)}
	}
	return r
}

// Subscribe installs the edge-triggered transition callbacks. Callbacks run
// outside the registry's locks and must not block for long.
func (r *Registry) Subscribe(onOnline, onOffline TransitionFunc) {
	r.cbMu.Lock()
	r.onOnline = onOnline
	r.onOffline = onOffline
	r.cbMu.Unlock()
}

// Attach binds a connection to a user. The binding is immutable for the
// connection's lifetime; attaching an already-bound connection is a no-op.
// Fires the online transition iff this is the user's first connection.
func (r *Registry) Attach(connID, userID string) {
	connID = strings.TrimSpace(connID)
	userID = strings.TrimSpace(userID)
	if connID == "" || userID == "" {
		return
	}

	cs := r.connShards[shardIndex(connID)]
	cs.mu.Lock()
	if _, bound := cs.users[connID]; bound {
		cs.mu.Unlock()
		return
	}
	cs.users[connID] = userID
	cs.mu.Unlock()

	us := r.userShards[shardIndex(userID)]
	us.mu.Lock()
	set, ok := us.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		us.conns[userID] = set
	}
	set[connID] = struct{}{}
	wentOnline := len(set) == 1
	us.mu.Unlock()

	if wentOnline {
		obslog.L().Debug("presence_online", zap.String("user_id", userID))
		r.emit(r.online(), userID)
	}
}

// Detach removes a connection. Idempotent: unknown connections are silently
// absorbed since disconnect events can race with cleanup. Fires the offline
// transition iff the user's last connection just went away.
func (r *Registry) Detach(connID string) {
	connID = strings.TrimSpace(connID)
	if connID == "" {
		return
	}

	cs := r.connShards[shardIndex(connID)]
	cs.mu.Lock()
	userID, ok := cs.users[connID]
	if !ok {
		cs.mu.Unlock()
		return
	}
	delete(cs.users, connID)
	cs.mu.Unlock()

	us := r.userShards[shardIndex(userID)]
	us.mu.Lock()
	wentOffline := false
	if set, ok := us.conns[userID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(us.conns, userID)
			wentOffline = true
		}
	}
	us.mu.Unlock()

	if wentOffline {
		obslog.L().Debug("presence_offline", zap.String("user_id", userID))
		r.emit(r.offline(), userID)
	}
}

// UserOf returns the user bound to a connection, if any.
func (r *Registry) UserOf(connID string) (string, bool) {
	cs := r.connShards[shardIndex(connID)]
	cs.mu.Lock()
	userID, ok := cs.users[connID]
	cs.mu.Unlock()
	return userID, ok
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	us := r.userShards[shardIndex(userID)]
	us.mu.Lock()
	set, ok := us.conns[userID]
	online := ok && len(set) > 0
	us.mu.Unlock()
	return online
}

// BulkStatus returns a point-in-time presence snapshot for the given users.
// Each user's entry is individually consistent: a user is never reported
// online with zero connections.
func (r *Registry) BulkStatus(userIDs []string) map[string]bool {
	out := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out[id] = r.IsOnline(id)
	}
	return out
}

// ConnCount returns the number of live connections for a user.
func (r *Registry) ConnCount(userID string) int {
	us := r.userShards[shardIndex(userID)]
	us.mu.Lock()
	n := len(us.conns[userID])
	us.mu.Unlock()
	return n
}

// OnlineUsers returns the number of distinct online users.
func (r *Registry) OnlineUsers() int {
	total := 0
	for _, us := range r.userShards {
		us.mu.Lock()
		total += len(us.conns)
		us.mu.Unlock()
	}
	return total
}

func (r *Registry) online() TransitionFunc {
	r.cbMu.RLock()
	defer r.cbMu.RUnlock()
	return r.onOnline
}

func (r *Registry) offline() TransitionFunc {
	r.cbMu.RLock()
	defer r.cbMu.RUnlock()
	return r.onOffline
}

func (r *Registry) emit(fn TransitionFunc, userID string) {
	if fn != nil {
		fn(userID)
	}
}

func shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}
