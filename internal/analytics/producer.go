package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"emittr/fourline/internal/search"
)

const (
	EventMovePlayed      = "move_played"
	EventGameFinished    = "game_finished"
	EventSearchCompleted = "search_completed"
)

type Event struct {
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return &Producer{writer: writer}
}

func (p *Producer) Publish(ctx context.Context, event string, payload map[string]any) {
	if p == nil || p.writer == nil {
		return
	}
	data, err := json.Marshal(Event{Event: event, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode event failed")
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Value: data}); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("kafka publish failed")
	}
}

// ObserveSearch publishes the statistics of a finished search without
// blocking the caller.
func (p *Producer) ObserveSearch(res search.Result) {
	if p == nil {
		return
	}
	payload := map[string]any{
		"depth":     res.Depth,
		"horizon":   res.Horizon,
		"action":    res.Action,
		"value":     res.Value,
		"nodes":     res.Nodes,
		"leaves":    res.Leaves,
		"elapsedMs": float64(res.Elapsed) / float64(time.Millisecond),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p.Publish(ctx, EventSearchCompleted, payload)
	}()
}

func (p *Producer) Close() {
	if p == nil || p.writer == nil {
		return
	}
	_ = p.writer.Close()
}
