package tetris

import (
	"github.com/progate-hackathon-strawberry-flavor/tetris-core/internal/models/tetris"
)

// Snapshot はドライバー（描画側）に渡すための、ある時点のゲーム状態のコピーです。
// エンジン内部への参照を持たないので、別のゴルーチンに渡しても安全です。
type Snapshot struct {
	Columns        int            `json:"columns"`
	Rows           int            `json:"rows"`
	Board          [][]string     `json:"board"`         // Board[y][x]: 固定済みブロックのShape名、空は ""
	CurrentPiece   *PieceView     `json:"current_piece"` // ゲームオーバー後はnil
	NextShapes     []tetris.Shape `json:"next_shapes"`
	Score          int            `json:"score"`
	LinesCleared   int            `json:"lines_cleared"`
	Level          int            `json:"level"`
	FallIntervalMs int64          `json:"fall_interval_ms"`
	IsGameOver     bool           `json:"is_game_over"`
}

// PieceView は操作中のピースの表示用情報です。
type PieceView struct {
	Shape  tetris.Shape   `json:"shape"`
	Color  string         `json:"color"`
	Blocks []tetris.Point `json:"blocks"`
}

// Snapshot は現在の状態をコピーして返します。
func (e *Engine) Snapshot() Snapshot {
	board := make([][]string, e.grid.Rows())
	for y := range board {
		board[y] = make([]string, e.grid.Columns())
		for x := range board[y] {
			if b := e.grid.At(x, y); b != nil {
				board[y][x] = b.Shape.String()
			}
		}
	}

	snap := Snapshot{
		Columns:        e.grid.Columns(),
		Rows:           e.grid.Rows(),
		Board:          board,
		NextShapes:     e.queue.Peek(),
		Score:          e.score,
		LinesCleared:   e.lines,
		Level:          e.level,
		FallIntervalMs: e.fallInterval.Milliseconds(),
		IsGameOver:     e.status == StatusGameOver,
	}
	if e.current != nil {
		snap.CurrentPiece = &PieceView{
			Shape:  e.current.Shape(),
			Color:  e.current.Shape().Color(),
			Blocks: e.current.Positions(),
		}
	}
	return snap
}
