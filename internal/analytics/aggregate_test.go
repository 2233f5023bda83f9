package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"emittr/fourline/internal/search"
)

// decode round-trips through JSON so payloads look like they do off
// the wire.
func decode(t *testing.T, event string, payload map[string]any, ts time.Time) Event {
	t.Helper()
	data, err := json.Marshal(Event{Event: event, Payload: payload, Timestamp: ts})
	require.NoError(t, err)
	var e Event
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func TestAggregator(t *testing.T) {
	ts := time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)
	a := NewAggregator()

	a.Record(decode(t, EventGameFinished, map[string]any{
		"winner": "alice", "duration": 30.0, "players": []string{"alice", "bob"},
	}, ts))
	a.Record(decode(t, EventGameFinished, map[string]any{
		"winner": "bot", "duration": 10.0, "players": []string{"alice", "bot"},
	}, ts))
	a.Record(decode(t, EventGameFinished, map[string]any{
		"winner": "", "players": []string{"carol", "bob"},
	}, ts.Add(2*time.Hour)))
	a.Record(decode(t, EventSearchCompleted, map[string]any{"nodes": 56, "elapsedMs": 2.0}, ts))
	a.Record(decode(t, EventSearchCompleted, map[string]any{"nodes": 8, "elapsedMs": 4.0}, ts))
	a.Record(decode(t, EventMovePlayed, map[string]any{"gameId": "g1"}, ts))

	s := a.Summary()
	require.Equal(t, 3, s.TotalGames)
	require.Equal(t, 1, s.Draws)
	require.Equal(t, 1, s.BotWins)
	require.Equal(t, map[string]int{"alice": 1}, s.WinnerCounts)
	require.InDelta(t, 20.0, s.AverageDuration, 1e-9)
	require.Equal(t, map[string]int{"2026-03-01": 3}, s.GamesPerDay)
	require.Equal(t, map[string]int{"2026-03-01 14:00": 2, "2026-03-01 16:00": 1}, s.GamesPerHour)
	require.Equal(t, map[string]int{"alice": 2, "bob": 2, "carol": 1}, s.UserGames)
	require.Equal(t, 2, s.Searches)
	require.InDelta(t, 32.0, s.AverageNodes, 1e-9)
	require.InDelta(t, 3.0, s.AverageSearchMs, 1e-9)
}

func TestNilProducerIsSafe(t *testing.T) {
	require.Nil(t, NewProducer(nil, "topic"))
	require.Nil(t, NewProducer([]string{"localhost:9092"}, ""))

	var p *Producer
	require.NotPanics(t, func() {
		p.Publish(context.Background(), EventMovePlayed, nil)
		p.ObserveSearch(search.Result{})
		p.Close()
	})
}
