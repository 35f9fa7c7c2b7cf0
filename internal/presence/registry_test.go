package presence

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstConnectionFiresOnline(t *testing.T) {
	r := NewRegistry()
	var online, offline []string
	r.Subscribe(
		func(id string) { online = append(online, id) },
		func(id string) { offline = append(offline, id) },
	)

	r.Attach("c1", "alice")
	require.Equal(t, []string{"alice"}, online)
	assert.True(t, r.IsOnline("alice"))

	// second tab: no duplicate transition
	r.Attach("c2", "alice")
	assert.Equal(t, []string{"alice"}, online)
	assert.Equal(t, 2, r.ConnCount("alice"))

	r.Detach("c1")
	assert.Empty(t, offline)
	assert.True(t, r.IsOnline("alice"))

	r.Detach("c2")
	assert.Equal(t, []string{"alice"}, offline)
	assert.False(t, r.IsOnline("alice"))
	assert.Equal(t, 0, r.ConnCount("alice"))
}

func TestRebindIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Attach("c1", "alice")
	r.Attach("c1", "bob")

	got, ok := r.UserOf("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", got)
	assert.False(t, r.IsOnline("bob"))
}

func TestDetachUnknownConnection(t *testing.T) {
	r := NewRegistry()
	var offlineCount atomic.Int32
	r.Subscribe(nil, func(string) { offlineCount.Add(1) })

	r.Detach("ghost")
	r.Attach("c1", "alice")
	r.Detach("c1")
	r.Detach("c1")

	assert.Equal(t, int32(1), offlineCount.Load())
}

func TestBlankArgumentsIgnored(t *testing.T) {
	r := NewRegistry()
	r.Attach("", "alice")
	r.Attach("c1", "   ")

	assert.False(t, r.IsOnline("alice"))
	_, ok := r.UserOf("c1")
	assert.False(t, ok)
}

func TestBulkStatus(t *testing.T) {
	r := NewRegistry()
	r.Attach("c1", "alice")
	r.Attach("c2", "bob")
	r.Detach("c2")

	got := r.BulkStatus([]string{"alice", "bob", "carol", " "})
	assert.Equal(t, map[string]bool{"alice": true, "bob": false, "carol": false}, got)
}

func TestOnlineUsersCountsDistinctUsers(t *testing.T) {
	r := NewRegistry()
	r.Attach("c1", "alice")
	r.Attach("c2", "alice")
	r.Attach("c3", "bob")

	assert.Equal(t, 2, r.OnlineUsers())
}

func TestConcurrentChurnBalancesTransitions(t *testing.T) {
	r := NewRegistry()
	var online, offline atomic.Int64
	r.Subscribe(
		func(string) { online.Add(1) },
		func(string) { offline.Add(1) },
	)

	const users = 8
	const connsPerUser = 16
	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		for c := 0; c < connsPerUser; c++ {
			wg.Add(1)
			go func(u, c int) {
				defer wg.Done()
				connID := fmt.Sprintf("u%d-c%d", u, c)
				userID := fmt.Sprintf("user-%d", u)
				r.Attach(connID, userID)
				r.Detach(connID)
			}(u, c)
		}
	}
	wg.Wait()

	assert.Equal(t, online.Load(), offline.Load())
	assert.Equal(t, 0, r.OnlineUsers())
	for u := 0; u < users; u++ {
		assert.False(t, r.IsOnline(fmt.Sprintf("user-%d", u)))
	}
}
