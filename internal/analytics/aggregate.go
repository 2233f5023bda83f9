package analytics

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Aggregator folds the event stream into running totals.
type Aggregator struct {
	mu            sync.Mutex
	winnerCounts  map[string]int
	gameDurations []float64
	gamesPerDay   map[string]int
	gamesPerHour  map[string]int
	userGames     map[string]int
	totalGames    int
	draws         int
	botWins       int
	searches      int
	searchNodes   int64
	searchMillis  float64
}

type Summary struct {
	TotalGames      int            `json:"totalGames"`
	Draws           int            `json:"draws"`
	BotWins         int            `json:"botWins"`
	AverageDuration float64        `json:"averageDuration"`
	WinnerCounts    map[string]int `json:"winnerCounts"`
	GamesPerDay     map[string]int `json:"gamesPerDay"`
	GamesPerHour    map[string]int `json:"gamesPerHour"`
	UserGames       map[string]int `json:"userGames"`
	Searches        int            `json:"searches"`
	AverageNodes    float64        `json:"averageNodes"`
	AverageSearchMs float64        `json:"averageSearchMs"`
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		winnerCounts: make(map[string]int),
		gamesPerDay:  make(map[string]int),
		gamesPerHour: make(map[string]int),
		userGames:    make(map[string]int),
	}
}

func (a *Aggregator) Record(e Event) {
	switch e.Event {
	case EventGameFinished:
		a.recordGameFinished(e.Payload, e.Timestamp)
	case EventSearchCompleted:
		a.recordSearch(e.Payload)
	}
}

func (a *Aggregator) recordGameFinished(payload map[string]any, timestamp time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalGames++
	switch winner, _ := payload["winner"].(string); winner {
	case "":
		a.draws++
	case "bot":
		a.botWins++
	default:
		a.winnerCounts[winner]++
	}
	if duration, ok := payload["duration"].(float64); ok {
		a.gameDurations = append(a.gameDurations, duration)
	}

	a.gamesPerDay[timestamp.Format("2006-01-02")]++
	a.gamesPerHour[timestamp.Format("2006-01-02 15:00")]++

	if players, ok := payload["players"].([]any); ok {
		for _, p := range players {
			if username, ok := p.(string); ok && username != "bot" {
				a.userGames[username]++
			}
		}
	}
}

func (a *Aggregator) recordSearch(payload map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.searches++
	if nodes, ok := payload["nodes"].(float64); ok {
		a.searchNodes += int64(nodes)
	}
	if ms, ok := payload["elapsedMs"].(float64); ok {
		a.searchMillis += ms
	}
}

func (a *Aggregator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Summary{
		TotalGames:   a.totalGames,
		Draws:        a.draws,
		BotWins:      a.botWins,
		WinnerCounts: copyCounts(a.winnerCounts),
		GamesPerDay:  copyCounts(a.gamesPerDay),
		GamesPerHour: copyCounts(a.gamesPerHour),
		UserGames:    copyCounts(a.userGames),
		Searches:     a.searches,
	}
	if len(a.gameDurations) > 0 {
		sum := 0.0
		for _, d := range a.gameDurations {
			sum += d
		}
		s.AverageDuration = sum / float64(len(a.gameDurations))
	}
	if a.searches > 0 {
		s.AverageNodes = float64(a.searchNodes) / float64(a.searches)
		s.AverageSearchMs = a.searchMillis / float64(a.searches)
	}
	return s
}

func (a *Aggregator) Log(logger zerolog.Logger) {
	s := a.Summary()
	logger.Info().
		Int("totalGames", s.TotalGames).
		Int("draws", s.Draws).
		Int("botWins", s.BotWins).
		Float64("averageDuration", s.AverageDuration).
		Interface("winners", s.WinnerCounts).
		Interface("gamesPerDay", s.GamesPerDay).
		Interface("gamesPerHour", s.GamesPerHour).
		Interface("userGames", s.UserGames).
		Int("searches", s.Searches).
		Float64("averageNodes", s.AverageNodes).
		Float64("averageSearchMs", s.AverageSearchMs).
		Msg("analytics summary")
}

func copyCounts(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
