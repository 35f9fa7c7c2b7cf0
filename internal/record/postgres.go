package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/quizarena/quiz-arena/internal/match"
)

// PostgresRepository upserts final match results into the platform database.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(databaseURL string) (*PostgresRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts one match result keyed by room id. Re-saving the same
// room (a retried best-effort write) overwrites with identical data.
func (r *PostgresRepository) SaveResult(ctx context.Context, res *match.Result) error {
	if r == nil || r.db == nil || res == nil {
		return nil
	}

	rankingRaw, _ := json.Marshal(res.Ranking)
	playersRaw, _ := json.Marshal(res.Players)

	q := `INSERT INTO match_results (
	    room_id, winner_id, draw, ranking, players, finalized_at
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6
	  ) ON CONFLICT (room_id) DO UPDATE SET
	    winner_id=EXCLUDED.winner_id,
	    draw=EXCLUDED.draw,
	    ranking=EXCLUDED.ranking,
	    players=EXCLUDED.players,
	    finalized_at=EXCLUDED.finalized_at`

	_, err := r.db.ExecContext(ctx, q,
		res.RoomID,
		nullIfEmpty(res.WinnerID),
		res.Draw,
		string(rankingRaw),
		string(playersRaw),
		res.FinalizedAt,
	)
	return err
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
