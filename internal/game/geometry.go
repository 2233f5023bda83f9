package game

type Point struct {
	Row int
	Col int
}

// DiagonalStarts lists where every diagonal long enough to hold a
// winning line begins. Down-right diagonals start on the top row or the
// left edge, down-left ones on the top row or the right edge. The
// result depends only on the dimensions.
func DiagonalStarts(rows, cols int) (downRight, downLeft []Point) {
	for c := 0; c <= cols-WinLength; c++ {
		downRight = append(downRight, Point{Row: 0, Col: c})
	}
	for c := WinLength - 1; c < cols; c++ {
		downLeft = append(downLeft, Point{Row: 0, Col: c})
	}
	for r := 1; r <= rows-WinLength; r++ {
		downRight = append(downRight, Point{Row: r, Col: 0})
		downLeft = append(downLeft, Point{Row: r, Col: cols - 1})
	}
	return downRight, downLeft
}
