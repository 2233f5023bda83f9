package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"emittr/fourline/internal/game"
)

func TestPlayBotWins(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("a\n9\n1\n1\n1\n")

	winner, err := play(context.Background(), in, &out, playOptions{Rows: 4, Cols: 4, Depth: 1, Workers: 1})
	require.NoError(t, err)
	require.Equal(t, game.PlayerA, winner)

	text := out.String()
	require.Contains(t, text, "enter a column number")
	require.Contains(t, text, "column 9 is off the board")
	require.Equal(t, 4, strings.Count(text, "bot plays column 0"))
}

func TestPlayFullColumnIsReprompted(t *testing.T) {
	var out bytes.Buffer
	// On a 2x3 board the bot opens in column 0 and the human stacks on
	// top, so the human's second attempt at column 0 is refused.
	in := strings.NewReader("0\n0\n2\n2\n")

	_, err := play(context.Background(), in, &out, playOptions{Rows: 2, Cols: 3, Depth: 1, Workers: 1})
	require.NoError(t, err)
	require.Contains(t, out.String(), "column 0 is full")
}

func TestPlayDraw(t *testing.T) {
	var out bytes.Buffer
	winner, err := play(context.Background(), strings.NewReader("1\n"), &out,
		playOptions{Rows: 1, Cols: 2, Depth: 1, Workers: 1})
	require.NoError(t, err)
	require.Equal(t, game.Empty, winner)
}

func TestPlayHumanFirst(t *testing.T) {
	var out bytes.Buffer
	winner, err := play(context.Background(), strings.NewReader("0\n"), &out,
		playOptions{Rows: 1, Cols: 2, Depth: 1, Workers: 1, HumanFirst: true})
	require.NoError(t, err)
	require.Equal(t, game.Empty, winner)
	require.Contains(t, out.String(), "bot plays column 1")
}

func TestPlayInputEnds(t *testing.T) {
	_, err := play(context.Background(), strings.NewReader(""), io.Discard,
		playOptions{Rows: 4, Cols: 4, Depth: 1, Workers: 1})
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestPlayRejectsBadOptions(t *testing.T) {
	_, err := play(context.Background(), strings.NewReader(""), io.Discard,
		playOptions{Rows: 0, Cols: 4, Depth: 1, Workers: 1})
	require.ErrorIs(t, err, game.ErrInvalidDimensions)
}

func TestRootCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader("1\n"))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--rows", "1", "--cols", "2"})

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "draw")
}
