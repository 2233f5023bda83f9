package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"emittr/fourline/internal/game"
)

var ErrNotFound = errors.New("game not found")

type CompletedGame struct {
	ID        string
	Winner    string
	Status    string
	Rows      int
	Cols      int
	Moves     []int
	StartedAt time.Time
	EndedAt   time.Time
}

// Replay rebuilds the final board. PlayerA always opens.
func (g CompletedGame) Replay() (*game.Board, error) {
	return game.FromMoves(g.Rows, g.Cols, game.PlayerA, g.Moves)
}

type LeaderboardRow struct {
	Username string `json:"username"`
	Wins     int    `json:"wins"`
}

type Store interface {
	SaveGame(ctx context.Context, game CompletedGame) error
	GetGame(ctx context.Context, id string) (CompletedGame, error)
	GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error)
}

type PostgresStore struct {
	pool *pgx.Conn
}

func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: conn}, nil
}

func (p *PostgresStore) Close(ctx context.Context) {
	if p.pool != nil {
		_ = p.pool.Close(ctx)
	}
}

func (p *PostgresStore) EnsureTables(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS games (
	id TEXT PRIMARY KEY,
	winner TEXT,
	status TEXT,
	rows INTEGER NOT NULL,
	cols INTEGER NOT NULL,
	moves INTEGER[] NOT NULL DEFAULT '{}',
	started_at TIMESTAMP,
	ended_at TIMESTAMP
);
`)
	return err
}

func (p *PostgresStore) SaveGame(ctx context.Context, g CompletedGame) error {
	if p == nil || p.pool == nil {
		return nil
	}
	moves := make([]int32, len(g.Moves))
	for i, m := range g.Moves {
		moves[i] = int32(m)
	}
	_, err := p.pool.Exec(ctx, `INSERT INTO games (id, winner, status, rows, cols, moves, started_at, ended_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (id) DO NOTHING`,
		g.ID, g.Winner, g.Status, g.Rows, g.Cols, moves, g.StartedAt, g.EndedAt)
	if err != nil {
		log.Error().Err(err).Str("game", g.ID).Msg("failed to save game")
	}
	return err
}

func (p *PostgresStore) GetGame(ctx context.Context, id string) (CompletedGame, error) {
	var (
		g     CompletedGame
		moves []int32
	)
	err := p.pool.QueryRow(ctx, `
SELECT id, COALESCE(winner, ''), COALESCE(status, ''), rows, cols, moves, started_at, ended_at
FROM games WHERE id = $1`, id).
		Scan(&g.ID, &g.Winner, &g.Status, &g.Rows, &g.Cols, &moves, &g.StartedAt, &g.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return CompletedGame{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return CompletedGame{}, err
	}
	g.Moves = make([]int, len(moves))
	for i, m := range moves {
		g.Moves[i] = int(m)
	}
	return g, nil
}

func (p *PostgresStore) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	rows, err := p.pool.Query(ctx, `
SELECT winner, COUNT(*) as wins
FROM games
WHERE winner IS NOT NULL AND winner <> ''
GROUP BY winner
ORDER BY wins DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []LeaderboardRow
	for rows.Next() {
		var row LeaderboardRow
		if err := rows.Scan(&row.Username, &row.Wins); err != nil {
			return nil, err
		}
		res = append(res, row)
	}
	return res, rows.Err()
}
