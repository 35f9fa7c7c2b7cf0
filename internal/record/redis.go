// Package record persists final match results on a best-effort basis. The
// live match flow never depends on it: a failed write is logged by the
// caller and the match-over broadcast proceeds regardless.
package record

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quizarena/quiz-arena/internal/match"
)

const ttlResult = 24 * time.Hour

// RedisStore keeps recent match results in Redis with a TTL, indexed per
// participant so profile surfaces can list a user's latest matches.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for redis record store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// SaveResult stores the result blob and refreshes each participant's index.
func (s *RedisStore) SaveResult(ctx context.Context, res *match.Result) error {
	if s == nil || s.rdb == nil || res == nil {
		return nil
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, resultKey(res.RoomID), raw, ttlResult).Err(); err != nil {
		return err
	}
	for userID := range res.Players {
		key := userIdxKey(userID)
		if err := s.rdb.SAdd(ctx, key, res.RoomID).Err(); err != nil {
			return err
		}
		// refresh index TTL alongside the result blob so entries age out together
		_ = s.rdb.Expire(ctx, key, ttlResult).Err()
	}
	return nil
}

// ResultByRoom loads a stored result; nil without error when absent or expired.
func (s *RedisStore) ResultByRoom(ctx context.Context, roomID string) (*match.Result, error) {
	if s == nil || s.rdb == nil {
		return nil, nil
	}
	raw, err := s.rdb.Get(ctx, resultKey(roomID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var res match.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ResultsByUser returns a user's recent results, newest first. Index entries
// whose result blob already expired are skipped.
func (s *RedisStore) ResultsByUser(ctx context.Context, userID string) ([]*match.Result, error) {
	if s == nil || s.rdb == nil || strings.TrimSpace(userID) == "" {
		return nil, nil
	}
	roomIDs, err := s.rdb.SMembers(ctx, userIdxKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	var out []*match.Result
	for _, id := range roomIDs {
		res, rerr := s.ResultByRoom(ctx, id)
		if rerr == nil && res != nil {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FinalizedAt.After(out[j].FinalizedAt) })
	return out, nil
}

func resultKey(roomID string) string  { return "match:result:" + strings.TrimSpace(roomID) }
func userIdxKey(userID string) string { return "match:index:user:" + strings.TrimSpace(userID) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
