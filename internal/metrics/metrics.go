package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"emittr/fourline/internal/search"
)

const (
	OutcomeWin     = "win"
	OutcomeDraw    = "draw"
	OutcomeForfeit = "forfeit"
)

type Metrics struct {
	registry       *prometheus.Registry
	searchTotal    prometheus.Counter
	searchNodes    prometheus.Histogram
	searchDuration prometheus.Histogram
	searchValue    *prometheus.CounterVec
	movesTotal     prometheus.Counter
	gamesTotal     *prometheus.CounterVec
}

// New registers the game and search collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		searchTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "fourline_search_total",
			Help: "Completed minimax searches",
		}),
		searchNodes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fourline_search_nodes",
			Help:    "Successor states generated per search",
			Buckets: prometheus.ExponentialBuckets(10, 4, 10),
		}),
		searchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fourline_search_duration_seconds",
			Help:    "Wall time per search",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		searchValue: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fourline_search_outlook_total",
			Help: "Searches by sign of the chosen value",
		}, []string{"outlook"}),
		movesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "fourline_moves_total",
			Help: "Moves applied to live games",
		}),
		gamesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fourline_games_finished_total",
			Help: "Finished games by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveSearch(res search.Result) {
	m.searchTotal.Inc()
	m.searchNodes.Observe(float64(res.Nodes))
	m.searchDuration.Observe(res.Elapsed.Seconds())
	switch {
	case res.Value > 0:
		m.searchValue.WithLabelValues("winning").Inc()
	case res.Value < 0:
		m.searchValue.WithLabelValues("losing").Inc()
	default:
		m.searchValue.WithLabelValues("neutral").Inc()
	}
}

func (m *Metrics) MovePlayed() {
	m.movesTotal.Inc()
}

func (m *Metrics) GameFinished(outcome string) {
	m.gamesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
