package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"emittr/fourline/internal/game"
	"emittr/fourline/internal/search"
)

type playOptions struct {
	Rows       int
	Cols       int
	Depth      int
	Workers    int
	HumanFirst bool
}

// play runs one game on the terminal. The bot is PlayerA and the human
// PlayerB. It returns the winner, or game.Empty for a draw.
func play(ctx context.Context, in io.Reader, out io.Writer, opts playOptions) (game.Cell, error) {
	board, err := game.NewBoard(opts.Rows, opts.Cols)
	if err != nil {
		return game.Empty, err
	}
	agent, err := search.NewAgent(opts.Depth,
		search.WithParallel(opts.Workers),
		search.WithExhaustion(search.SentinelOnExhausted),
		search.WithLogger(log.Logger),
	)
	if err != nil {
		return game.Empty, err
	}

	scanner := bufio.NewScanner(in)
	turn := game.PlayerA
	if opts.HumanFirst {
		turn = game.PlayerB
		if err := board.Render(out); err != nil {
			return game.Empty, err
		}
	}

	for !board.IsFull() {
		if turn == game.PlayerA {
			res, err := agent.Search(ctx, board)
			if err != nil {
				return game.Empty, fmt.Errorf("bot move: %w", err)
			}
			if board, err = board.GenerateSuccessor(game.PlayerA, res.Action); err != nil {
				return game.Empty, err
			}
			fmt.Fprintf(out, "bot plays column %d\n", res.Action)
		} else {
			if board, err = readMove(scanner, out, board); err != nil {
				return game.Empty, err
			}
		}

		if err := board.Render(out); err != nil {
			return game.Empty, err
		}
		if board.IsGoal(turn) {
			return turn, nil
		}
		turn = turn.Opponent()
	}
	return game.Empty, nil
}

// readMove prompts until the human names a column that accepts a disc.
func readMove(scanner *bufio.Scanner, out io.Writer, board *game.Board) (*game.Board, error) {
	for {
		fmt.Fprintf(out, "your move (0-%d): ", board.Cols()-1)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.ErrUnexpectedEOF
		}
		col, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
		if err != nil {
			fmt.Fprintln(out, "enter a column number")
			continue
		}
		next, err := board.GenerateSuccessor(game.PlayerB, col)
		switch {
		case errors.Is(err, game.ErrColumnFull):
			fmt.Fprintf(out, "column %d is full\n", col)
		case err != nil:
			fmt.Fprintf(out, "column %d is off the board\n", col)
		default:
			return next, nil
		}
	}
}
