package tetris

// LockResult はMoveDownの結果です。
// Lockedがtrueの場合、ピースはそれ以上落下できず、Blocksをボードに固定する必要があります。
// 固定とその後の処理（ライン消去、次のピース生成）はエンジン側が行います。
type LockResult struct {
	Locked bool
	Blocks []*Block
}

// Tetromino は操作中のテトリミノです。4つのBlockを所有し、
// 衝突判定のためにボードを読み取り専用で参照します。
type Tetromino struct {
	shape  Shape
	blocks [4]*Block
	field  Field
}

// SpawnOffset は出現位置のオフセットです。ボード中央、ほぼ見えない領域の上に出現します。
func SpawnOffset(columns int) Point {
	return Point{X: columns / 2, Y: -1}
}

// Spawn は指定されたShapeのテトリミノを出現位置に生成します。
//
// Parameters:
//
//	shape : 生成するテトリミノの種類
//	field : 衝突判定に使うボード
func Spawn(shape Shape, field Field) *Tetromino {
	offset := SpawnOffset(field.Columns())
	t := &Tetromino{shape: shape, field: field}
	for i, p := range shape.Offsets() {
		t.blocks[i] = &Block{X: p.X + offset.X, Y: p.Y + offset.Y, Shape: shape}
	}
	return t
}

// Shape はこのテトリミノの種類を返します。
func (t *Tetromino) Shape() Shape {
	return t.shape
}

// Blocks は構成する4つのブロックを返します。0番目が回転の基準ブロックです。
func (t *Tetromino) Blocks() []*Block {
	return t.blocks[:]
}

// Positions は4つのブロックの現在座標を返します。
func (t *Tetromino) Positions() []Point {
	positions := make([]Point, len(t.blocks))
	for i, b := range t.blocks {
		positions[i] = b.Pos()
	}
	return positions
}

// MoveHorizontal はピースを左右に移動します (delta: -1 左, 1 右)。
// 1つでもブロックが衝突する場合は一切移動しません。
//
// Returns:
//
//	bool: 移動した場合はtrue
func (t *Tetromino) MoveHorizontal(delta int) bool {
	for _, b := range t.blocks {
		if b.CollidesHorizontal(b.X+delta, t.field) {
			return false
		}
	}
	for _, b := range t.blocks {
		b.X += delta
	}
	return true
}

// MoveDown はピースを1行下に落とします。
// 下に衝突する場合は移動せず、固定すべきブロックを含むLockResultを返します。
func (t *Tetromino) MoveDown() LockResult {
	for _, b := range t.blocks {
		if b.CollidesVertical(b.Y+1, t.field) {
			return LockResult{Locked: true, Blocks: t.Blocks()}
		}
	}
	for _, b := range t.blocks {
		b.Y++
	}
	return LockResult{}
}

// Rotate はピースを0番目のブロックを中心に時計回りに90度回転させます。
// Oミノは回転しません。回転後の座標が1つでも壁・床・固定済みブロックと重なる場合は回転しません。
// 床の判定は落下時と同じく y >= rows です。
//
// Returns:
//
//	bool: 回転した場合はtrue
func (t *Tetromino) Rotate() bool {
	if t.shape == ShapeO {
		return false
	}

	pivot := t.blocks[0].Pos()
	var candidates [4]Point
	for i, b := range t.blocks {
		p := b.Rotate(pivot)
		if p.X < 0 || p.X >= t.field.Columns() {
			return false
		}
		if p.Y >= t.field.Rows() {
			return false
		}
		if t.field.IsOccupied(p.X, p.Y) {
			return false
		}
		candidates[i] = p
	}

	for i, b := range t.blocks {
		b.X = candidates[i].X
		b.Y = candidates[i].Y
	}
	return true
}
