package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"emittr/fourline/internal/analytics"
	"emittr/fourline/internal/game"
	"emittr/fourline/internal/metrics"
	"emittr/fourline/internal/search"
	"emittr/fourline/internal/storage"
)

// Limits for /api/move. Work grows as cols^(2*depth) nodes, each
// costing rows*cols to copy and score.
const (
	MaxRequestDepth  = 4
	MaxRequestCells  = 400
	MaxRequestLeaves = 1e7
)

type Server struct {
	router        *gin.Engine
	manager       *game.Manager
	store         storage.Store
	analytics     *analytics.Producer
	metrics       *metrics.Metrics
	searchOptions []search.Option
	connections   map[string]*wsClient
	connMu        sync.RWMutex
	botDelay      time.Duration
}

type Config struct {
	Rows             int
	Cols             int
	SearchDepth      int
	SearchOptions    []search.Option
	BotFallbackAfter time.Duration
	ReconnectWindow  time.Duration
	Store            storage.Store
	Analytics        *analytics.Producer
	Metrics          *metrics.Metrics
}

func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		cfg.Store = storage.NewMemoryStore()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	opts := append([]search.Option{}, cfg.SearchOptions...)
	opts = append(opts, search.WithObserver(observers{cfg.Metrics, cfg.Analytics}))
	agent, err := search.NewAgent(cfg.SearchDepth, opts...)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	s := &Server{
		router:        router,
		store:         cfg.Store,
		analytics:     cfg.Analytics,
		metrics:       cfg.Metrics,
		searchOptions: cfg.SearchOptions,
		connections:   make(map[string]*wsClient),
		botDelay:      cfg.BotFallbackAfter,
	}
	s.manager, err = game.NewManager(game.ManagerConfig{
		Rows:            cfg.Rows,
		Cols:            cfg.Cols,
		ReconnectWindow: cfg.ReconnectWindow,
		Mover:           agent,
	}, s.onFinish)
	if err != nil {
		return nil, err
	}

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/leaderboard", s.handleLeaderboard)
	router.GET("/games/:id", s.handleGame)
	router.POST("/api/move", s.handleBestMove)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	router.GET("/ws", s.handleWS)

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}
	go s.sweeper(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) sweeper(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.manager.SweepDisconnects()
		}
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	rows, err := s.store.GetLeaderboard(c.Request.Context(), 10)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard unavailable"})
		return
	}
	if rows == nil {
		rows = []storage.LeaderboardRow{}
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleGame(c *gin.Context) {
	g, err := s.store.GetGame(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	board, err := g.Replay()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        g.ID,
		"winner":    g.Winner,
		"status":    g.Status,
		"moves":     g.Moves,
		"board":     board,
		"startedAt": g.StartedAt,
		"endedAt":   g.EndedAt,
	})
}

type bestMoveRequest struct {
	Board *game.Board `json:"board" binding:"required"`
	Depth int         `json:"depth"`
}

// handleBestMove runs one search for PlayerA on a caller-supplied board.
func (s *Server) handleBestMove(c *gin.Context) {
	var req bestMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Depth == 0 {
		req.Depth = 1
	}
	if req.Depth < 0 || req.Depth > MaxRequestDepth {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("depth must be between 1 and %d", MaxRequestDepth)})
		return
	}
	if req.Board.Rows()*req.Board.Cols() > MaxRequestCells {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("board must have at most %d cells", MaxRequestCells)})
		return
	}
	if math.Pow(float64(req.Board.Cols()), float64(2*req.Depth)) > MaxRequestLeaves {
		c.JSON(http.StatusBadRequest, gin.H{"error": "board too wide for the requested depth"})
		return
	}
	opts := append([]search.Option{}, s.searchOptions...)
	opts = append(opts, search.WithObserver(s.metrics))
	agent, err := search.NewAgent(req.Depth, opts...)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := agent.Search(c.Request.Context(), req.Board)
	switch {
	case errors.Is(err, search.ErrExhaustedMoves):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"action":  res.Action,
		"value":   res.Value,
		"values":  res.Values,
		"nodes":   res.Nodes,
		"leaves":  res.Leaves,
		"horizon": res.Horizon,
	})
}

type wsClient struct {
	username string
	conn     *websocket.Conn
	send     chan []byte
	server   *Server
	gameID   string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleWS(c *gin.Context) {
	username := c.Query("username")
	requestGameID := c.Query("gameId")
	if username == "" || username == game.BotName {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := &wsClient{
		username: username,
		conn:     conn,
		send:     make(chan []byte, 16),
		server:   s,
		gameID:   requestGameID,
	}
	s.register(client)

	go client.writePump()
	go client.readPump()
}

func (s *Server) register(c *wsClient) {
	s.connMu.Lock()
	s.connections[c.username] = c
	s.connMu.Unlock()
}

func (s *Server) unregister(c *wsClient) {
	s.connMu.Lock()
	if s.connections[c.username] == c {
		delete(s.connections, c.username)
	}
	s.connMu.Unlock()
	close(c.send)
	c.conn.Close()
}

// isCurrent reports whether c is still the registered connection for
// its user. A reconnect replaces the entry.
func (s *Server) isCurrent(c *wsClient) bool {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.connections[c.username] == c
}

func (c *wsClient) writePump() {
	for msg := range c.send {
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (c *wsClient) readPump() {
	defer c.server.unregister(c)
	s := c.server

	var gameState *game.GameState

	// Rejoin if gameId provided
	if c.gameID != "" {
		if g, ok := s.manager.GetGame(c.gameID); ok {
			if _, exists := g.Players[c.username]; exists {
				gameState = g
				s.pushInit(g, c.username)
			}
		}
	}
	if gameState == nil {
		g, _, waiting := s.manager.AssignPlayer(c.username)
		if waiting {
			c.sendJSON(map[string]any{"type": "waiting", "message": "waiting for opponent"})
			time.AfterFunc(s.botDelay, func() { s.startBotFallback(c.username) })
		} else {
			s.pushInit(g, c.username)
			// notify opponent if online
			for uname, pl := range g.Players {
				if uname == c.username || pl.IsBot {
					continue
				}
				s.pushInit(g, uname)
			}
		}
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if s.isCurrent(c) {
				s.manager.Abandon(c.username)
			}
			s.manager.MarkDisconnected(c.username)
			return
		}
		var msg struct {
			Type   string `json:"type"`
			Column *int   `json:"column"`
		}
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "move" || msg.Column == nil {
			continue
		}
		move := game.Move{
			Username: c.username,
			GameID:   s.manager.GameForUser(c.username, c.gameID),
			Column:   *msg.Column,
		}
		res, g, err := s.manager.HandleMove(move)
		if err != nil {
			c.sendJSON(map[string]any{"type": "error", "message": err.Error()})
			continue
		}
		s.broadcastState(g, res)
		if g.Bot != nil && g.Status == game.StatusActive && g.Turn == g.Bot.Player {
			s.playBotTurn(g)
		}
	}
}

// startBotFallback pairs a player who is still unmatched with the bot.
func (s *Server) startBotFallback(username string) {
	if s.manager.UserStatus(username) != game.StatusWaiting {
		return
	}
	g, err := s.manager.StartBotGame(username)
	if err != nil {
		log.Error().Err(err).Str("user", username).Msg("bot game failed to start")
		return
	}
	s.pushInit(g, username)
	if g.Turn == g.Bot.Player {
		s.playBotTurn(g)
	}
}

func (s *Server) pushInit(g *game.GameState, username string) {
	var slot game.Cell
	if p, ok := g.Players[username]; ok {
		slot = p.Slot
	}
	payload := map[string]any{
		"type":      "init",
		"gameId":    g.ID,
		"board":     g.Board,
		"rows":      g.Board.Rows(),
		"cols":      g.Board.Cols(),
		"turn":      g.Turn,
		"you":       username,
		"slot":      slot,
		"opponent":  s.findOpponent(g, username),
		"status":    g.Status,
		"winner":    g.Winner,
		"timestamp": time.Now().UTC(),
	}
	s.sendToUser(username, payload)
}

func (s *Server) broadcastState(g *game.GameState, res game.MoveResult) {
	s.metrics.MovePlayed()
	payload := map[string]any{
		"type":   "state",
		"board":  res.Board,
		"column": res.Column,
		"turn":   g.Turn,
		"status": g.Status,
		"winner": g.Winner,
	}
	players := humanPlayers(g)
	for _, uname := range players {
		s.sendToUser(uname, payload)
	}
	s.analytics.Publish(context.Background(), analytics.EventMovePlayed, map[string]any{
		"gameId":  g.ID,
		"column":  res.Column,
		"status":  g.Status,
		"winner":  g.Winner,
		"players": players,
	})
}

func humanPlayers(g *game.GameState) []string {
	players := make([]string, 0, len(g.Players))
	for uname, p := range g.Players {
		if !p.IsBot {
			players = append(players, uname)
		}
	}
	return players
}

func (s *Server) sendToUser(username string, payload map[string]any) {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	client, ok := s.connections[username]
	if !ok {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("encode payload failed")
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

func (s *Server) findOpponent(g *game.GameState, username string) string {
	for name := range g.Players {
		if name != username {
			return name
		}
	}
	return ""
}

func (s *Server) onFinish(g *game.GameState) {
	outcome := metrics.OutcomeWin
	switch {
	case g.Winner == "":
		outcome = metrics.OutcomeDraw
	case !g.Board.IsGoal(g.Players[g.Winner].Slot):
		outcome = metrics.OutcomeForfeit
	}
	s.metrics.GameFinished(outcome)

	if err := s.store.SaveGame(context.Background(), storage.CompletedGame{
		ID:        g.ID,
		Winner:    g.Winner,
		Status:    g.Status,
		Rows:      g.Board.Rows(),
		Cols:      g.Board.Cols(),
		Moves:     g.Moves,
		StartedAt: g.StartedAt,
		EndedAt:   g.EndedAt,
	}); err != nil {
		log.Error().Err(err).Str("game", g.ID).Msg("save game failed")
	}

	players := make([]string, 0, len(g.Players))
	for uname := range g.Players {
		players = append(players, uname)
	}
	s.analytics.Publish(context.Background(), analytics.EventGameFinished, map[string]any{
		"gameId":    g.ID,
		"winner":    g.Winner,
		"status":    g.Status,
		"outcome":   outcome,
		"players":   players,
		"moves":     len(g.Moves),
		"duration":  g.EndedAt.Sub(g.StartedAt).Seconds(),
		"startedAt": g.StartedAt,
		"endedAt":   g.EndedAt,
	})
}

func (s *Server) playBotTurn(g *game.GameState) {
	res, next, err := s.manager.PlayBotTurn(g.ID)
	if err != nil {
		log.Error().Err(err).Str("game", g.ID).Msg("bot turn failed")
		return
	}
	s.broadcastState(next, res)
}

func (c *wsClient) sendJSON(v any) {
	data, _ := json.Marshal(v)
	c.server.connMu.RLock()
	defer c.server.connMu.RUnlock()
	if c.server.connections[c.username] != c {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// observers fans a search result out to several observers.
type observers []search.Observer

func (o observers) ObserveSearch(res search.Result) {
	for _, obs := range o {
		obs.ObserveSearch(res)
	}
}
