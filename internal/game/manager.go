package game

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	StatusWaiting  = "waiting"
	StatusActive   = "active"
	StatusFinished = "finished"
)

// BotName is the username the bot plays under.
const BotName = "bot"

var (
	ErrInvalidTurn  = errors.New("not your turn")
	ErrGameFinished = errors.New("game already finished")
	ErrGameNotFound = errors.New("game not found")
	ErrNoBot        = errors.New("game has no bot")
)

type GameState struct {
	ID         string
	Board      *Board
	Status     string
	Winner     string
	StartedAt  time.Time
	EndedAt    time.Time
	Turn       Cell
	LastMoveAt time.Time
	Players    map[string]*Player
	Bot        *Bot
	Moves      []int
}

type Player struct {
	Username string
	Slot     Cell
	IsBot    bool
}

type Move struct {
	Username string
	GameID   string
	Column   int
}

type MoveResult struct {
	Board  *Board
	Column int
	Winner Cell
	IsDraw bool
}

type ManagerConfig struct {
	Rows            int
	Cols            int
	ReconnectWindow time.Duration
	Mover           Mover
}

type Manager struct {
	mu         sync.RWMutex
	cfg        ManagerConfig
	waiting    *Player
	games      map[string]*GameState
	userToGame map[string]string
	onFinish   func(*GameState)
}

func NewManager(cfg ManagerConfig, onFinish func(*GameState)) (*Manager, error) {
	if _, err := NewBoard(cfg.Rows, cfg.Cols); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:        cfg,
		games:      make(map[string]*GameState),
		userToGame: make(map[string]string),
		onFinish:   onFinish,
	}, nil
}

func (m *Manager) newGame(players map[string]*Player) *GameState {
	now := time.Now()
	return &GameState{
		ID:         uuid.NewString(),
		Board:      MustNewBoard(m.cfg.Rows, m.cfg.Cols),
		Status:     StatusActive,
		Turn:       PlayerA,
		StartedAt:  now,
		LastMoveAt: now,
		Players:    players,
	}
}

// AssignPlayer pairs username with the waiting player, or parks them as
// the waiting player. The first to arrive plays PlayerA.
func (m *Manager) AssignPlayer(username string) (*GameState, *Player, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rejoin existing game if present.
	if gid, ok := m.userToGame[username]; ok {
		if g, exists := m.games[gid]; exists && g.Status != StatusFinished {
			return g, g.Players[username], false
		}
	}

	if m.waiting == nil || m.waiting.Username == username {
		m.waiting = &Player{Username: username, Slot: PlayerA}
		return nil, m.waiting, true
	}

	opponent := m.waiting
	m.waiting = nil
	game := m.newGame(map[string]*Player{
		opponent.Username: opponent,
		username:          {Username: username, Slot: PlayerB},
	})
	m.games[game.ID] = game
	m.userToGame[username] = game.ID
	m.userToGame[opponent.Username] = game.ID
	return game, game.Players[username], false
}

// StartBotGame opens a game against the search agent. The bot is
// PlayerA and has the first move.
func (m *Manager) StartBotGame(human string) (*GameState, error) {
	if m.cfg.Mover == nil {
		return nil, ErrNoBot
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if gid, ok := m.userToGame[human]; ok {
		if g, exists := m.games[gid]; exists && g.Status != StatusFinished {
			return g, nil
		}
	}
	if m.waiting != nil && m.waiting.Username == human {
		m.waiting = nil
	}

	game := m.newGame(map[string]*Player{
		human:   {Username: human, Slot: PlayerB},
		BotName: {Username: BotName, Slot: PlayerA, IsBot: true},
	})
	game.Bot = NewBot(m.cfg.Mover)
	m.games[game.ID] = game
	m.userToGame[human] = game.ID
	return game, nil
}

func (m *Manager) HandleMove(move Move) (MoveResult, *GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	game, ok := m.games[move.GameID]
	if !ok {
		return MoveResult{}, nil, ErrGameNotFound
	}
	if game.Status == StatusFinished {
		return MoveResult{}, game, ErrGameFinished
	}
	player, ok := game.Players[move.Username]
	if !ok || game.Turn != player.Slot {
		return MoveResult{}, game, ErrInvalidTurn
	}
	next, err := game.Board.GenerateSuccessor(player.Slot, move.Column)
	if err != nil {
		return MoveResult{}, game, err
	}

	now := time.Now()
	game.Board = next
	game.Moves = append(game.Moves, move.Column)
	game.LastMoveAt = now
	res := MoveResult{Board: next, Column: move.Column}
	switch {
	case next.IsGoal(player.Slot):
		res.Winner = player.Slot
		game.Status = StatusFinished
		game.Winner = move.Username
		game.EndedAt = now
		m.finish(game)
	case next.IsFull():
		res.IsDraw = true
		game.Status = StatusFinished
		game.EndedAt = now
		m.finish(game)
	default:
		game.Turn = game.Turn.Opponent()
	}
	return res, game, nil
}

// PlayBotTurn asks the bot for a move and plays it. The search runs
// without holding the manager lock.
func (m *Manager) PlayBotTurn(gameID string) (MoveResult, *GameState, error) {
	m.mu.RLock()
	game, ok := m.games[gameID]
	if !ok {
		m.mu.RUnlock()
		return MoveResult{}, nil, ErrGameNotFound
	}
	if game.Bot == nil {
		m.mu.RUnlock()
		return MoveResult{}, game, ErrNoBot
	}
	if game.Status == StatusFinished {
		m.mu.RUnlock()
		return MoveResult{}, game, ErrGameFinished
	}
	if game.Turn != game.Bot.Player {
		m.mu.RUnlock()
		return MoveResult{}, game, ErrInvalidTurn
	}
	board, bot := game.Board, game.Bot
	m.mu.RUnlock()

	col, err := bot.ChooseMove(board)
	if err != nil {
		return MoveResult{}, game, err
	}
	return m.HandleMove(Move{Username: BotName, GameID: gameID, Column: col})
}

func (m *Manager) finish(g *GameState) {
	if m.onFinish != nil {
		go m.onFinish(g)
	}
}

func (m *Manager) GetGame(gameID string) (*GameState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[gameID]
	return g, ok
}

// GameForUser returns active game id for a username or fallback.
func (m *Manager) GameForUser(username, fallback string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.userToGame[username]; ok {
		return id
	}
	return fallback
}

// GetGameByUser retrieves a game using username if present.
func (m *Manager) GetGameByUser(username string) (*GameState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.userToGame[username]; ok {
		if g, exists := m.games[id]; exists {
			return g, true
		}
	}
	return nil, false
}

// Abandon drops username from the matchmaking queue and forgets their
// finished game. A seat in an unfinished game is kept so the player can
// reconnect before the sweeper forfeits it.
func (m *Manager) Abandon(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.waiting != nil && m.waiting.Username == username {
		m.waiting = nil
	}
	if id, ok := m.userToGame[username]; ok {
		if g, exists := m.games[id]; !exists || g.Status == StatusFinished {
			delete(m.userToGame, username)
		}
	}
}

// UserStatus reports StatusWaiting for a queued player, the status of
// the player's game, or "" for an unknown player.
func (m *Manager) UserStatus(username string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.waiting != nil && m.waiting.Username == username {
		return StatusWaiting
	}
	if id, ok := m.userToGame[username]; ok {
		if g, exists := m.games[id]; exists {
			return g.Status
		}
	}
	return ""
}

// MarkDisconnected updates last seen time so sweeper can forfeit
// after the reconnect window.
func (m *Manager) MarkDisconnected(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.userToGame[username]; ok {
		if g, exists := m.games[id]; exists {
			g.LastMoveAt = time.Now()
		}
	}
}

// SweepDisconnects forfeits games idle past the reconnect window to the
// player who did not have the move.
func (m *Manager) SweepDisconnects() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, g := range m.games {
		if g.Status != StatusFinished && now.Sub(g.LastMoveAt) > m.cfg.ReconnectWindow {
			g.Status = StatusFinished
			g.Winner = idleOpponent(g)
			g.EndedAt = now
			m.finish(g)
			log.Info().Str("game", id).Str("winner", g.Winner).Msg("game forfeited due to timeout")
		}
	}
}

func idleOpponent(g *GameState) string {
	for name, p := range g.Players {
		if p.Slot != g.Turn {
			return name
		}
	}
	return ""
}
