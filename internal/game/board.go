package game

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// WinLength is the number of aligned markers needed to win.
const WinLength = 4

// WinScore is the static value of a won position for PlayerA.
const WinScore = 1000.0

type Cell uint8

const (
	Empty Cell = iota
	PlayerA
	PlayerB
)

var (
	ErrColumnFull        = errors.New("column is full")
	ErrInvalidCol        = errors.New("invalid column")
	ErrIllegalMove       = errors.New("illegal move")
	ErrInvalidAgent      = errors.New("invalid agent")
	ErrInvalidDimensions = errors.New("invalid board dimensions")
	ErrFloatingCell      = errors.New("marker above an empty cell")
)

// MarshalJSON writes the cell as a number so grids encode as nested
// arrays rather than base64 strings.
func (c Cell) MarshalJSON() ([]byte, error) {
	return strconv.AppendUint(nil, uint64(c), 10), nil
}

func (c Cell) String() string {
	switch c {
	case PlayerA:
		return "O"
	case PlayerB:
		return "X"
	default:
		return "."
	}
}

// Opponent returns the other player. Empty has no opponent.
func (c Cell) Opponent() Cell {
	switch c {
	case PlayerA:
		return PlayerB
	case PlayerB:
		return PlayerA
	default:
		return Empty
	}
}

// Board is a rows x cols grid. Row 0 is the top; markers fall towards
// the highest row index. Boards are treated as values: every mutating
// operation returns a fresh copy.
type Board struct {
	rows  int
	cols  int
	cells []Cell
}

func NewBoard(rows, cols int) (*Board, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, rows, cols)
	}
	return &Board{rows: rows, cols: cols, cells: make([]Cell, rows*cols)}, nil
}

func MustNewBoard(rows, cols int) *Board {
	b, err := NewBoard(rows, cols)
	if err != nil {
		panic(err)
	}
	return b
}

// FromMoves replays a move list onto an empty board, alternating
// agents starting with first.
func FromMoves(rows, cols int, first Cell, moves []int) (*Board, error) {
	b, err := NewBoard(rows, cols)
	if err != nil {
		return nil, err
	}
	agent := first
	for i, col := range moves {
		b, err = b.GenerateSuccessor(agent, col)
		if err != nil {
			return nil, fmt.Errorf("replay move %d: %w", i, err)
		}
		agent = agent.Opponent()
	}
	return b, nil
}

func (b *Board) Rows() int { return b.rows }
func (b *Board) Cols() int { return b.cols }

func (b *Board) At(row, col int) Cell {
	return b.cells[row*b.cols+col]
}

func (b *Board) inBounds(row, col int) bool {
	return row >= 0 && row < b.rows && col >= 0 && col < b.cols
}

func (b *Board) LegalActions() []int {
	actions := make([]int, 0, b.cols)
	for col := 0; col < b.cols; col++ {
		if b.cells[col] == Empty {
			actions = append(actions, col)
		}
	}
	return actions
}

func (b *Board) IsFull() bool {
	return len(b.LegalActions()) == 0
}

// GenerateSuccessor drops agent's marker into action and returns the
// resulting board. The receiver is left untouched.
func (b *Board) GenerateSuccessor(agent Cell, action int) (*Board, error) {
	if agent != PlayerA && agent != PlayerB {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAgent, agent)
	}
	if action < 0 || action >= b.cols {
		return nil, fmt.Errorf("%w: %w %d", ErrIllegalMove, ErrInvalidCol, action)
	}
	for row := b.rows - 1; row >= 0; row-- {
		if b.At(row, action) == Empty {
			next := b.Clone()
			next.cells[row*b.cols+action] = agent
			return next, nil
		}
	}
	return nil, fmt.Errorf("%w: %w %d", ErrIllegalMove, ErrColumnFull, action)
}

// IsGoal reports whether agent has WinLength or more markers in an
// unbroken row, column or diagonal.
func (b *Board) IsGoal(agent Cell) bool {
	if agent == Empty {
		return false
	}
	for row := 0; row < b.rows; row++ {
		if b.hasRun(Point{Row: row}, 0, 1, agent) {
			return true
		}
	}
	for col := 0; col < b.cols; col++ {
		if b.hasRun(Point{Col: col}, 1, 0, agent) {
			return true
		}
	}
	downRight, downLeft := DiagonalStarts(b.rows, b.cols)
	for _, p := range downRight {
		if b.hasRun(p, 1, 1, agent) {
			return true
		}
	}
	for _, p := range downLeft {
		if b.hasRun(p, 1, -1, agent) {
			return true
		}
	}
	return false
}

func (b *Board) hasRun(start Point, dr, dc int, agent Cell) bool {
	run := 0
	for r, c := start.Row, start.Col; b.inBounds(r, c); r, c = r+dr, c+dc {
		if b.At(r, c) != agent {
			run = 0
			continue
		}
		run++
		if run >= WinLength {
			return true
		}
	}
	return false
}

// Evaluate scores the board from PlayerA's point of view. Only won
// positions carry a value.
func (b *Board) Evaluate() float64 {
	if b.IsGoal(PlayerA) {
		return WinScore
	}
	if b.IsGoal(PlayerB) {
		return -WinScore
	}
	return 0
}

func (b *Board) Clone() *Board {
	cells := make([]Cell, len(b.cells))
	copy(cells, b.cells)
	return &Board{rows: b.rows, cols: b.cols, cells: cells}
}

func (b *Board) Equal(other *Board) bool {
	if b == nil || other == nil {
		return b == other
	}
	if b.rows != other.rows || b.cols != other.cols {
		return false
	}
	for i := range b.cells {
		if b.cells[i] != other.cells[i] {
			return false
		}
	}
	return true
}

// Hash digests the dimensions and every cell, so equal boards always
// collide and boards differing anywhere almost never do.
func (b *Board) Hash() uint64 {
	buf := make([]byte, 16+len(b.cells))
	binary.LittleEndian.PutUint64(buf[0:], uint64(b.rows))
	binary.LittleEndian.PutUint64(buf[8:], uint64(b.cols))
	for i, c := range b.cells {
		buf[16+i] = byte(c)
	}
	return xxhash.Sum64(buf)
}

// Grid returns a row-major copy of the cells.
func (b *Board) Grid() [][]Cell {
	grid := make([][]Cell, b.rows)
	for r := range grid {
		grid[r] = make([]Cell, b.cols)
		copy(grid[r], b.cells[r*b.cols:(r+1)*b.cols])
	}
	return grid
}

// FromGrid builds a board from a rectangular grid. Every marker must
// rest on the bottom row or on another marker.
func FromGrid(grid [][]Cell) (*Board, error) {
	if len(grid) == 0 {
		return nil, fmt.Errorf("%w: empty grid", ErrInvalidDimensions)
	}
	b, err := NewBoard(len(grid), len(grid[0]))
	if err != nil {
		return nil, err
	}
	for r, row := range grid {
		if len(row) != b.cols {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidDimensions, r, len(row), b.cols)
		}
		for c, cell := range row {
			if cell > PlayerB {
				return nil, fmt.Errorf("%w: %d at (%d,%d)", ErrInvalidAgent, cell, r, c)
			}
		}
		copy(b.cells[r*b.cols:], row)
	}
	for c := 0; c < b.cols; c++ {
		for r := 0; r < b.rows-1; r++ {
			if b.At(r, c) != Empty && b.At(r+1, c) == Empty {
				return nil, fmt.Errorf("%w: (%d,%d)", ErrFloatingCell, r, c)
			}
		}
	}
	return b, nil
}

func (b *Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Grid())
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var grid [][]Cell
	if err := json.Unmarshal(data, &grid); err != nil {
		return err
	}
	parsed, err := FromGrid(grid)
	if err != nil {
		return err
	}
	*b = *parsed
	return nil
}

// Render writes the board framed by separator lines two characters
// per column wide.
func (b *Board) Render(w io.Writer) error {
	_, err := io.WriteString(w, b.String())
	return err
}

func (b *Board) String() string {
	var sb strings.Builder
	sep := strings.Repeat("-", 2*b.cols)
	sb.WriteString(sep)
	sb.WriteByte('\n')
	for r := 0; r < b.rows; r++ {
		for c := 0; c < b.cols; c++ {
			sb.WriteString(b.At(r, c).String())
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(sep)
	sb.WriteByte('\n')
	return sb.String()
}
