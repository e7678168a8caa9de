package tetris

import (
	"errors"
	"fmt"
)

const (
	DefaultColumns = 10 // ボードの幅
	DefaultRows    = 20 // ボードの高さ（表示部分）
)

// ErrOutOfBounds はグリッド範囲外への書き込みです。
// 衝突判定が正しければ到達しないため、発生した場合はロジックの不具合です。
var ErrOutOfBounds = errors.New("grid index out of bounds")

// Field は衝突判定に必要なボードの読み取り専用ビューです。
// Tetrominoはこのインターフェース経由でしかボードを参照しません。
type Field interface {
	Columns() int
	Rows() int
	IsOccupied(x, y int) bool
}

// Grid はテトリスのゲームボードです。
// 各セルは空(nil)か、そのセルに固定されたBlockへの参照を持ちます。
// cells[y][x] でアクセスします。yは行、xは列です。
type Grid struct {
	columns int
	rows    int
	cells   [][]*Block
}

// NewGrid は空のグリッドを作成します。
func NewGrid(columns, rows int) *Grid {
	g := &Grid{columns: columns, rows: rows}
	g.cells = newCells(columns, rows)
	return g
}

func newCells(columns, rows int) [][]*Block {
	cells := make([][]*Block, rows)
	for y := range cells {
		cells[y] = make([]*Block, columns)
	}
	return cells
}

func (g *Grid) Columns() int { return g.columns }
func (g *Grid) Rows() int    { return g.rows }

// IsOccupied は(x, y)が埋まっているかを返します。
// y < 0 は出現中のピースのために常に空、y >= rows は床として常に埋まっている扱いです。
// 左右の範囲外は壁として埋まっている扱いにします。
func (g *Grid) IsOccupied(x, y int) bool {
	if y < 0 {
		return false
	}
	if y >= g.rows || x < 0 || x >= g.columns {
		return true
	}
	return g.cells[y][x] != nil
}

// At は(x, y)に固定されたブロックを返します。範囲外や空セルはnilです。
func (g *Grid) At(x, y int) *Block {
	if !g.inBounds(x, y) {
		return nil
	}
	return g.cells[y][x]
}

// Occupy はブロックをその座標のセルに固定します。
// 既存の参照は上書きされるため、二重固定しないことは呼び出し側の責任です。
func (g *Grid) Occupy(b *Block) {
	if !g.inBounds(b.X, b.Y) {
		panic(fmt.Errorf("occupy (%d, %d): %w", b.X, b.Y, ErrOutOfBounds))
	}
	g.cells[b.Y][b.X] = b
}

// FullRows は全列が埋まっている行のインデックスを上から順に返します。
func (g *Grid) FullRows() []int {
	var full []int
	for y, row := range g.cells {
		isLineFull := true
		for _, cell := range row {
			if cell == nil {
				isLineFull = false
				break
			}
		}
		if isLineFull {
			full = append(full, y)
		}
	}
	return full
}

// ClearAndCompact は指定された行のブロックを削除し、残ったブロックを下に詰めます。
// 残るブロックの新しいyは「元のyより下にある削除行の数」だけ増えます。
// 複数行を同時に消しても、消えた行の間にある行が二重にずれることはありません。
//
// Returns:
//
//	int: 削除されたブロック数
func (g *Grid) ClearAndCompact(rows []int) int {
	cleared := make([]bool, g.rows)
	for _, y := range rows {
		if y >= 0 && y < g.rows {
			cleared[y] = true
		}
	}

	// below[y] = y より下にある削除行の数
	below := make([]int, g.rows)
	count := 0
	for y := g.rows - 1; y >= 0; y-- {
		below[y] = count
		if cleared[y] {
			count++
		}
	}

	removed := 0
	survivors := make([]*Block, 0, g.columns*g.rows)
	for y, row := range g.cells {
		for _, b := range row {
			if b == nil {
				continue
			}
			if cleared[y] {
				removed++
				continue
			}
			b.Y += below[y]
			survivors = append(survivors, b)
		}
	}

	// 残ったブロックの座標からセルを作り直す
	g.cells = newCells(g.columns, g.rows)
	for _, b := range survivors {
		g.Occupy(b)
	}
	return removed
}

// Blocks は固定済みの全ブロックを上の行から順に返します。
func (g *Grid) Blocks() []*Block {
	var blocks []*Block
	for _, row := range g.cells {
		for _, b := range row {
			if b != nil {
				blocks = append(blocks, b)
			}
		}
	}
	return blocks
}

// OccupiedCount は埋まっているセルの数を返します。
func (g *Grid) OccupiedCount() int {
	return len(g.Blocks())
}

func (g *Grid) inBounds(x, y int) bool {
	return x >= 0 && x < g.columns && y >= 0 && y < g.rows
}
