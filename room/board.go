// Package room implements the board engine and room state machine
// described in §3 (Board), §4.6 (Room State Machine and
// Rules), grounded on original_source/src/game/Game.{h,cpp} and
// Room.{h,cpp}.
package room

// Piece is a cell state on the board.
type Piece int

const (
	Empty Piece = iota
	Black
	White
)

type point struct {
	x, y int
}

// Board is a size×size grid of cell states plus move history (§3).
// It enforces only shape (bounds, occupancy) and win detection; turn
// order and seat ownership are Room's responsibility (§9 Q4).
type Board struct {
	size    int
	cells   [][]Piece
	history []point
	lastX   int
	lastY   int
}

// NewBoard constructs an empty board of the given size.
func NewBoard(size int) *Board {
	b := &Board{size: size}
	b.Reset(size)
	return b
}

// Reset reinitialises the board, optionally to a new size (used by
// SyncRoomSetting's boardSize edit, which rebuilds the board per the
// original EditRoomSetting).
func (b *Board) Reset(size int) {
	if size <= 0 {
		size = b.size
	}
	b.size = size
	b.cells = make([][]Piece, size)
	for i := range b.cells {
		b.cells[i] = make([]Piece, size)
	}
	b.history = nil
	b.lastX, b.lastY = -1, -1
}

// Size returns the board's edge length.
func (b *Board) Size() int { return b.size }

// At returns the cell state at (x, y); out-of-bounds reads return
// Empty rather than panicking, since callers already bounds-check
// before calling MakeMove.
func (b *Board) At(x, y int) Piece {
	if !b.inBounds(x, y) {
		return Empty
	}
	return b.cells[x][y]
}

func (b *Board) inBounds(x, y int) bool {
	return x >= 0 && x < b.size && y >= 0 && y < b.size
}

// MoveCount returns the number of stones placed (== move-stack depth,
// invariant P4/I5).
func (b *Board) MoveCount() int { return len(b.history) }

// LastMove returns the most recently placed stone's coordinates, or
// (-1, -1) on an empty board.
func (b *Board) LastMove() (int, int) { return b.lastX, b.lastY }

// IsFull reports whether every cell is occupied.
func (b *Board) IsFull() bool { return len(b.history) == b.size*b.size }

// PlaceMove attempts to place color at (x, y). It fails (returns
// false) on out-of-bounds coordinates or an already-occupied cell
// (P9); the board is left unchanged on failure.
func (b *Board) PlaceMove(x, y int, color Piece) bool {
	if !b.inBounds(x, y) {
		return false
	}
	if b.cells[x][y] != Empty {
		return false
	}

	b.cells[x][y] = color
	b.history = append(b.history, point{x, y})
	b.lastX, b.lastY = x, y
	return true
}

// UndoMove reverts the most recent move, restoring the prior last-move
// pointer. Returns false if the board has no moves to undo.
func (b *Board) UndoMove() bool {
	if len(b.history) == 0 {
		return false
	}

	last := b.history[len(b.history)-1]
	b.history = b.history[:len(b.history)-1]
	b.cells[last.x][last.y] = Empty

	if len(b.history) == 0 {
		b.lastX, b.lastY = -1, -1
	} else {
		prev := b.history[len(b.history)-1]
		b.lastX, b.lastY = prev.x, prev.y
	}
	return true
}

// directions lists the four axes that, combined with their opposite
// ray, cover all eight compass directions (§4.6: "four directions ×
// two rays").
var directions = [4]point{
	{1, 0},  // vertical
	{0, 1},  // horizontal
	{1, 1},  // main diagonal
	{1, -1}, // anti-diagonal
}

// countLine walks from (x, y) in direction (dx, dy), not including
// (x, y) itself, counting consecutive stones of color.
func (b *Board) countLine(x, y, dx, dy int, color Piece) int {
	count := 0
	x += dx
	y += dy
	for b.inBounds(x, y) && b.cells[x][y] == color {
		count++
		x += dx
		y += dy
	}
	return count
}

// CheckWinAt checks for five-in-a-row through (x, y) only (not the
// whole board), returning the winning color or Empty (P10). This is
// the hot path Room.MakeMove calls after every placed stone.
func (b *Board) CheckWinAt(x, y int) Piece {
	if !b.inBounds(x, y) {
		return Empty
	}
	color := b.cells[x][y]
	if color == Empty {
		return Empty
	}

	for _, d := range directions {
		forward := b.countLine(x, y, d.x, d.y, color)
		backward := b.countLine(x, y, -d.x, -d.y, color)
		if forward+backward+1 >= 5 {
			return color
		}
	}
	return Empty
}

// CheckWinWholeBoard scans every occupied cell for a winning line,
// for cases where no single last move is known. The MakeMove path
// checks only the placed stone instead.
func (b *Board) CheckWinWholeBoard() Piece {
	for i := 0; i < b.size; i++ {
		for j := 0; j < b.size; j++ {
			if b.cells[i][j] != Empty {
				if w := b.CheckWinAt(i, j); w != Empty {
					return w
				}
			}
		}
	}
	return Empty
}

// History returns the sequence of placed moves in play order, for
// persistence into game_records.moves_json (§6).
func (b *Board) History() [][2]int {
	out := make([][2]int, len(b.history))
	for i, p := range b.history {
		out[i] = [2]int{p.x, p.y}
	}
	return out
}

// Snapshot returns a defensive copy of the grid for read-only
// consumers.
func (b *Board) Snapshot() [][]Piece {
	out := make([][]Piece, b.size)
	for i := range b.cells {
		out[i] = make([]Piece, b.size)
		copy(out[i], b.cells[i])
	}
	return out
}
