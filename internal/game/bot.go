package game

import "fmt"

// Mover picks a column for PlayerA. The minimax agent is the production
// implementation.
type Mover interface {
	GetAction(state *Board) (int, error)
}

// MoverFunc adapts a plain function to Mover.
type MoverFunc func(state *Board) (int, error)

func (f MoverFunc) GetAction(state *Board) (int, error) { return f(state) }

// Bot is the computer side of a bot game. It always plays PlayerA, the
// maximizing side, so it also moves first.
type Bot struct {
	Player Cell
	mover  Mover
}

func NewBot(mover Mover) *Bot {
	return &Bot{Player: PlayerA, mover: mover}
}

func (b *Bot) ChooseMove(board *Board) (int, error) {
	col, err := b.mover.GetAction(board)
	if err != nil {
		return -1, fmt.Errorf("bot move: %w", err)
	}
	return col, nil
}
