package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"emittr/fourline/internal/game"
)

// Fold accumulators. A ply that has no successors and is allowed to
// fall back returns its accumulator unchanged.
const (
	MaxSentinel = -10000.0
	MinSentinel = 10000.0
)

var (
	ErrExhaustedMoves = errors.New("no legal moves left")
	ErrInvalidDepth   = errors.New("search depth must be positive")
)

type Role int

const (
	Maximize Role = iota
	Minimize
)

// RoleAt returns whose turn it is at the given ply: even plies belong
// to PlayerA, odd plies to PlayerB.
func RoleAt(ply int) Role {
	if ply%2 == 0 {
		return Maximize
	}
	return Minimize
}

func (r Role) Agent() game.Cell {
	if r == Maximize {
		return game.PlayerA
	}
	return game.PlayerB
}

func (r Role) String() string {
	if r == Maximize {
		return "max"
	}
	return "min"
}

func (r Role) sentinel() float64 {
	if r == Maximize {
		return MaxSentinel
	}
	return MinSentinel
}

func (r Role) fold(acc, v float64) float64 {
	if r == Maximize {
		return math.Max(acc, v)
	}
	return math.Min(acc, v)
}

type ActionValue struct {
	Action int     `json:"action"`
	Value  float64 `json:"value"`
}

// Result describes one completed search from the root.
type Result struct {
	Action  int           `json:"action"`
	Value   float64       `json:"value"`
	Values  []ActionValue `json:"values"`
	Nodes   int64         `json:"nodes"`
	Leaves  int64         `json:"leaves"`
	Depth   int           `json:"depth"`
	Horizon int           `json:"horizon"`
	Elapsed time.Duration `json:"elapsed"`
}

type Observer interface {
	ObserveSearch(Result)
}

// Agent picks moves for PlayerA with a plain fixed-depth minimax.
type Agent struct {
	depth      int
	horizon    int
	workers    int
	exhaustion ExhaustionPolicy
	logger     zerolog.Logger
	observer   Observer
}

// NewAgent builds an agent looking depth full rounds ahead, i.e. 2*depth
// plies.
func NewAgent(depth int, options ...Option) (*Agent, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	a := &Agent{
		depth:      depth,
		horizon:    depth * 2,
		workers:    1,
		exhaustion: FailOnExhausted,
		logger:     log.Logger,
	}
	for _, option := range options {
		option(a)
	}
	return a, nil
}

func (a *Agent) Depth() int   { return a.depth }
func (a *Agent) Horizon() int { return a.horizon }

// GetAction returns the column PlayerA should play from state.
func (a *Agent) GetAction(state *game.Board) (int, error) {
	res, err := a.Search(context.Background(), state)
	if err != nil {
		return -1, err
	}
	return res.Action, nil
}

// Search evaluates every legal root move and keeps the leftmost one with
// the strictly greatest value. The context is checked between root
// moves only.
func (a *Agent) Search(ctx context.Context, state *game.Board) (Result, error) {
	start := time.Now()
	actions := state.LegalActions()
	if len(actions) == 0 {
		return Result{}, fmt.Errorf("root: %w", ErrExhaustedMoves)
	}

	values := make([]float64, len(actions))
	stats := make([]counters, len(actions))
	evalRoot := func(i int) error {
		succ, err := state.GenerateSuccessor(game.PlayerA, actions[i])
		if err != nil {
			return err
		}
		stats[i].nodes++
		values[i], err = a.value(succ, 1, &stats[i])
		return err
	}

	if a.workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.workers)
		for i := range actions {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return evalRoot(i)
			})
		}
		if err := g.Wait(); err != nil {
			return Result{}, err
		}
	} else {
		for i := range actions {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			if err := evalRoot(i); err != nil {
				return Result{}, err
			}
		}
	}

	res := Result{
		Action:  actions[0],
		Value:   values[0],
		Values:  make([]ActionValue, len(actions)),
		Depth:   a.depth,
		Horizon: a.horizon,
	}
	for i, col := range actions {
		res.Values[i] = ActionValue{Action: col, Value: values[i]}
		res.Nodes += stats[i].nodes
		res.Leaves += stats[i].leaves
		if values[i] > res.Value {
			res.Value = values[i]
			res.Action = col
		}
	}
	res.Elapsed = time.Since(start)

	a.logger.Debug().
		Int("depth", a.depth).
		Int("horizon", a.horizon).
		Int("action", res.Action).
		Float64("value", res.Value).
		Int64("nodes", res.Nodes).
		Int64("leaves", res.Leaves).
		Dur("elapsed", res.Elapsed).
		Msg("search-completed")
	if a.observer != nil {
		a.observer.ObserveSearch(res)
	}
	return res, nil
}

type counters struct {
	nodes  int64
	leaves int64
}

func (a *Agent) value(state *game.Board, ply int, c *counters) (float64, error) {
	if ply == a.horizon {
		c.leaves++
		return state.Evaluate(), nil
	}

	role := RoleAt(ply)
	actions := state.LegalActions()
	if len(actions) == 0 {
		if a.exhaustion == SentinelOnExhausted {
			return role.sentinel(), nil
		}
		return 0, fmt.Errorf("ply %d (%s): %w", ply, role, ErrExhaustedMoves)
	}

	v := role.sentinel()
	for _, col := range actions {
		succ, err := state.GenerateSuccessor(role.Agent(), col)
		if err != nil {
			return 0, err
		}
		c.nodes++
		sv, err := a.value(succ, ply+1, c)
		if err != nil {
			return 0, err
		}
		v = role.fold(v, sv)
	}
	return v, nil
}
