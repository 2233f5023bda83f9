package game

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseGrid(rows ...string) [][]Cell {
	grid := make([][]Cell, len(rows))
	for r, line := range rows {
		line = strings.ReplaceAll(line, " ", "")
		grid[r] = make([]Cell, len(line))
		for c, ch := range line {
			switch ch {
			case 'O':
				grid[r][c] = PlayerA
			case 'X':
				grid[r][c] = PlayerB
			}
		}
	}
	return grid
}

// boardFrom parses rows of '.', 'O' and 'X' into a board.
func boardFrom(t *testing.T, rows ...string) *Board {
	t.Helper()
	b, err := FromGrid(parseGrid(rows...))
	require.NoError(t, err)
	return b
}

// patternFrom is boardFrom without the gravity check, for line
// patterns that could not arise in play.
func patternFrom(t *testing.T, rows ...string) *Board {
	t.Helper()
	grid := parseGrid(rows...)
	b := MustNewBoard(len(grid), len(grid[0]))
	for r, row := range grid {
		copy(b.cells[r*b.cols:], row)
	}
	return b
}

func TestNewBoard(t *testing.T) {
	b, err := NewBoard(6, 7)
	require.NoError(t, err)
	require.Equal(t, 6, b.Rows())
	require.Equal(t, 7, b.Cols())
	for r := 0; r < 6; r++ {
		for c := 0; c < 7; c++ {
			require.Equal(t, Empty, b.At(r, c))
		}
	}

	for _, dims := range [][2]int{{0, 7}, {6, 0}, {-1, 3}} {
		_, err := NewBoard(dims[0], dims[1])
		require.ErrorIs(t, err, ErrInvalidDimensions)
	}
	require.Panics(t, func() { MustNewBoard(0, 0) })
}

func TestLegalActions(t *testing.T) {
	t.Run("empty board offers every column", func(t *testing.T) {
		b := MustNewBoard(4, 5)
		require.Equal(t, []int{0, 1, 2, 3, 4}, b.LegalActions())
	})

	t.Run("full columns are skipped", func(t *testing.T) {
		b := boardFrom(t,
			"O..X",
			"X..O",
			"O.XO",
		)
		require.Equal(t, []int{1, 2}, b.LegalActions())
		require.Equal(t, b.LegalActions(), b.LegalActions(), "repeated queries should agree")
	})

	t.Run("full board has no moves", func(t *testing.T) {
		b := boardFrom(t,
			"OX",
			"XO",
		)
		require.Empty(t, b.LegalActions())
		require.True(t, b.IsFull())
	})
}

func TestGenerateSuccessor(t *testing.T) {
	t.Run("markers fall to the lowest empty cell", func(t *testing.T) {
		b := MustNewBoard(3, 3)
		next, err := b.GenerateSuccessor(PlayerA, 1)
		require.NoError(t, err)
		require.Equal(t, PlayerA, next.At(2, 1))

		next, err = next.GenerateSuccessor(PlayerB, 1)
		require.NoError(t, err)
		require.Equal(t, PlayerB, next.At(1, 1))
		require.Equal(t, PlayerA, next.At(2, 1))
	})

	t.Run("receiver is never mutated", func(t *testing.T) {
		b := boardFrom(t,
			"....",
			"..X.",
			".OOX",
		)
		saved := b.Clone()
		for _, col := range b.LegalActions() {
			_, err := b.GenerateSuccessor(PlayerA, col)
			require.NoError(t, err)
			require.True(t, b.Equal(saved), "column %d mutated the receiver", col)
		}
	})

	t.Run("full column is illegal", func(t *testing.T) {
		b := boardFrom(t,
			"O.",
			"X.",
		)
		_, err := b.GenerateSuccessor(PlayerB, 0)
		require.ErrorIs(t, err, ErrIllegalMove)
		require.ErrorIs(t, err, ErrColumnFull)
	})

	t.Run("out of range column is illegal", func(t *testing.T) {
		b := MustNewBoard(2, 2)
		for _, col := range []int{-1, 2, 10} {
			_, err := b.GenerateSuccessor(PlayerA, col)
			require.ErrorIs(t, err, ErrIllegalMove)
			require.ErrorIs(t, err, ErrInvalidCol)
		}
	})

	t.Run("empty is not an agent", func(t *testing.T) {
		_, err := MustNewBoard(2, 2).GenerateSuccessor(Empty, 0)
		require.ErrorIs(t, err, ErrInvalidAgent)
	})

	t.Run("only columns outside the legal set fail", func(t *testing.T) {
		b := boardFrom(t,
			"X.O..",
			"O.X..",
			"X.O.O",
		)
		legal := map[int]bool{}
		for _, col := range b.LegalActions() {
			legal[col] = true
		}
		for col := 0; col < b.Cols(); col++ {
			_, err := b.GenerateSuccessor(PlayerA, col)
			if legal[col] {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrIllegalMove)
			}
		}
	})
}

func TestFromMoves(t *testing.T) {
	b, err := FromMoves(4, 4, PlayerA, []int{0, 0, 1, 3})
	require.NoError(t, err)
	require.Equal(t, PlayerA, b.At(3, 0))
	require.Equal(t, PlayerB, b.At(2, 0))
	require.Equal(t, PlayerA, b.At(3, 1))
	require.Equal(t, PlayerB, b.At(3, 3))

	_, err = FromMoves(2, 2, PlayerA, []int{0, 0, 0})
	require.ErrorIs(t, err, ErrColumnFull)
}

func TestIsGoal(t *testing.T) {
	cases := []struct {
		name  string
		rows  []string
		wantA bool
		wantB bool
	}{
		{
			name:  "empty",
			rows:  []string{".......", ".......", ".......", ".......", ".......", "......."},
			wantA: false, wantB: false,
		},
		{
			name:  "horizontal",
			rows:  []string{".......", ".......", ".......", ".......", ".......", "..OOOO."},
			wantA: true,
		},
		{
			name:  "broken horizontal",
			rows:  []string{".......", ".......", ".......", ".......", ".......", "OOO.OOO"},
			wantA: false,
		},
		{
			name:  "five in a row counts",
			rows:  []string{".......", ".......", ".......", ".......", ".......", "XXXXX.."},
			wantB: true,
		},
		{
			name:  "vertical",
			rows:  []string{".......", ".......", "...X...", "...X...", "...X...", "...X..."},
			wantB: true,
		},
		{
			name:  "down-right diagonal from top row",
			rows:  []string{".O.....", "..O....", "...O...", "....O..", ".......", "......."},
			wantA: true,
		},
		{
			name:  "down-right diagonal from left edge",
			rows:  []string{".......", ".......", "X......", ".X.....", "..X....", "...X..."},
			wantB: true,
		},
		{
			name:  "down-left diagonal from top row",
			rows:  []string{"......O", ".....O.", "....O..", "...O...", ".......", "......."},
			wantA: true,
		},
		{
			name:  "down-left diagonal from right edge",
			rows:  []string{".......", "......X", ".....X.", "....X..", "...X...", "......."},
			wantB: true,
		},
		{
			name:  "diagonal of three",
			rows:  []string{".......", ".......", ".......", "O......", ".O.....", "..O...."},
			wantA: false,
		},
		{
			name:  "mixed line is no win",
			rows:  []string{".......", ".......", ".......", ".......", ".......", "OOXOO.."},
			wantA: false, wantB: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := patternFrom(t, tc.rows...)
			assert.Equal(t, tc.wantA, b.IsGoal(PlayerA), "PlayerA")
			assert.Equal(t, tc.wantB, b.IsGoal(PlayerB), "PlayerB")
			assert.False(t, b.IsGoal(Empty))
		})
	}
}

func TestEvaluate(t *testing.T) {
	require.Equal(t, 0.0, MustNewBoard(6, 7).Evaluate())

	won := boardFrom(t, "....", "....", "....", "OOOO")
	require.Equal(t, WinScore, won.Evaluate())

	lost := boardFrom(t, "X...", "X...", "X...", "X...")
	require.Equal(t, -WinScore, lost.Evaluate())

	both := boardFrom(t, "X....", "X....", "X....", "XOOOO")
	require.True(t, both.IsGoal(PlayerB))
	require.Equal(t, WinScore, both.Evaluate(), "PlayerA is checked first")
}

func TestCloneEqualHash(t *testing.T) {
	b := boardFrom(t,
		"....",
		"..X.",
		".OOX",
	)
	clone := b.Clone()
	require.True(t, clone.Equal(b))
	require.Equal(t, b.Hash(), clone.Hash())
	require.NotSame(t, b, clone)

	clone.cells[0] = PlayerA
	require.Equal(t, Empty, b.At(0, 0), "clone must not alias the grid")
	require.False(t, clone.Equal(b))

	t.Run("lower rows change the hash", func(t *testing.T) {
		x := boardFrom(t, "....", "....", "O...")
		y := boardFrom(t, "....", "....", ".O..")
		require.False(t, x.Equal(y))
		require.NotEqual(t, x.Hash(), y.Hash())
	})

	t.Run("shape matters", func(t *testing.T) {
		require.False(t, MustNewBoard(2, 3).Equal(MustNewBoard(3, 2)))
		require.NotEqual(t, MustNewBoard(2, 3).Hash(), MustNewBoard(3, 2).Hash())
	})

	t.Run("boards reached by different orders are equal", func(t *testing.T) {
		x, err := FromMoves(6, 7, PlayerA, []int{0, 1, 2, 3})
		require.NoError(t, err)
		y, err := FromMoves(6, 7, PlayerA, []int{2, 3, 0, 1})
		require.NoError(t, err)
		require.True(t, x.Equal(y))
		require.Equal(t, x.Hash(), y.Hash())
	})
}

func TestRender(t *testing.T) {
	b := boardFrom(t,
		"...",
		"O.X",
	)
	var buf bytes.Buffer
	require.NoError(t, b.Render(&buf))
	require.Equal(t, "------\n. . . \nO . X \n------\n", buf.String())
}

func TestBoardJSON(t *testing.T) {
	b := boardFrom(t,
		"..",
		"OX",
	)
	data, err := json.Marshal(b)
	require.NoError(t, err)
	require.JSONEq(t, `[[0,0],[1,2]]`, string(data))

	var decoded Board
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.True(t, decoded.Equal(b))

	require.Error(t, json.Unmarshal([]byte(`[[0,1],[2]]`), &decoded))
	require.Error(t, json.Unmarshal([]byte(`[[0,5]]`), &decoded))
	require.Error(t, json.Unmarshal([]byte(`[]`), &decoded))
	require.Error(t, json.Unmarshal([]byte(`[[-1]]`), &decoded))

	cell, err := json.Marshal(PlayerB)
	require.NoError(t, err)
	require.Equal(t, "2", string(cell))
}

func TestFromGridRejectsFloatingMarkers(t *testing.T) {
	for name, rows := range map[string][]string{
		"marker over empty column": {"O.", "..", ".."},
		"gap inside a column":      {"..", "X.", "..", "O."},
		"gap in the last column":   {"...", "..O", "..."},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromGrid(parseGrid(rows...))
			require.ErrorIs(t, err, ErrFloatingCell)
		})
	}

	var decoded Board
	err := json.Unmarshal([]byte(`[[1,0],[0,0],[0,0]]`), &decoded)
	require.ErrorIs(t, err, ErrFloatingCell)

	settled, err := FromGrid(parseGrid("..", "X.", "OO"))
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, settled.LegalActions())
}

func TestDiagonalStarts(t *testing.T) {
	right, left := DiagonalStarts(6, 7)
	require.Equal(t, []Point{{0, 0}, {0, 1}, {0, 2}, {0, 3}, {1, 0}, {2, 0}}, right)
	require.Equal(t, []Point{{0, 3}, {0, 4}, {0, 5}, {0, 6}, {1, 6}, {2, 6}}, left)

	right, left = DiagonalStarts(3, 3)
	require.Empty(t, right)
	require.Empty(t, left)
}
