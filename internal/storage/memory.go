package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps finished games in process. It backs the server when
// no database is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	games map[string]CompletedGame
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{games: make(map[string]CompletedGame)}
}

func (m *MemoryStore) SaveGame(_ context.Context, g CompletedGame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.games[g.ID]; exists {
		return nil
	}
	g.Moves = append([]int(nil), g.Moves...)
	m.games[g.ID] = g
	return nil
}

func (m *MemoryStore) GetGame(_ context.Context, id string) (CompletedGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return CompletedGame{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	g.Moves = append([]int(nil), g.Moves...)
	return g, nil
}

func (m *MemoryStore) GetLeaderboard(_ context.Context, limit int) ([]LeaderboardRow, error) {
	m.mu.RLock()
	wins := make(map[string]int)
	for _, g := range m.games {
		if g.Winner != "" {
			wins[g.Winner]++
		}
	}
	m.mu.RUnlock()

	res := make([]LeaderboardRow, 0, len(wins))
	for name, n := range wins {
		res = append(res, LeaderboardRow{Username: name, Wins: n})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Wins != res[j].Wins {
			return res[i].Wins > res[j].Wins
		}
		return res[i].Username < res[j].Username
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}
