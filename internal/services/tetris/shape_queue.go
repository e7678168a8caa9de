package tetris

import (
	"math/rand"

	"github.com/progate-hackathon-strawberry-flavor/tetris-core/internal/models/tetris"
)

// DefaultQueueLength はプレビュー用に常に保持する次のピースの数です。
const DefaultQueueLength = 3

// ShapeQueue は次に出現するテトリミノの種類を管理するキューです。
// 長さは常に一定で、先頭の取り出しと末尾へのランダム追加は Next の中でまとめて行われます。
type ShapeQueue struct {
	shapes []tetris.Shape
	rng    *rand.Rand
}

// NewShapeQueue は length 個のランダムなShapeで埋めたキューを作成します。
func NewShapeQueue(length int, rng *rand.Rand) *ShapeQueue {
	q := &ShapeQueue{
		shapes: make([]tetris.Shape, 0, length),
		rng:    rng,
	}
	for i := 0; i < length; i++ {
		q.shapes = append(q.shapes, tetris.RandomShape(rng))
	}
	return q
}

// Next はキューの先頭を取り出し、末尾に新しいランダムなShapeを追加します。
func (q *ShapeQueue) Next() tetris.Shape {
	next := q.shapes[0]
	copy(q.shapes, q.shapes[1:])
	q.shapes[len(q.shapes)-1] = tetris.RandomShape(q.rng)
	return next
}

// Peek はキューの内容のコピーを先頭から順に返します（プレビュー表示用）。
func (q *ShapeQueue) Peek() []tetris.Shape {
	out := make([]tetris.Shape, len(q.shapes))
	copy(out, q.shapes)
	return out
}

func (q *ShapeQueue) Len() int {
	return len(q.shapes)
}
