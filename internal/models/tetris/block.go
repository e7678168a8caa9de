package tetris

// Block はテトリミノを構成する1マスです。
// 固定されるまでは1つのTetrominoが所有し、固定後はGridのセルが所有します。
type Block struct {
	X     int   `json:"x"`
	Y     int   `json:"y"`
	Shape Shape `json:"shape"` // 色はShapeから決まる
}

// Pos はブロックの現在座標を返します。
func (b *Block) Pos() Point {
	return Point{X: b.X, Y: b.Y}
}

// Color はブロックの表示色を返します。
func (b *Block) Color() string {
	return b.Shape.Color()
}

// Rotate はpivotを中心にこのブロックを時計回りに90度回転させた座標を返します。
// 画面座標系（yが下向き）での時計回りなので、ベクトル(dx, dy)は(-dy, dx)になります。
// ブロック自体は変更しません。確定はTetromino.Rotateが全ブロックの検証後に行います。
func (b *Block) Rotate(pivot Point) Point {
	dx := b.X - pivot.X
	dy := b.Y - pivot.Y
	return Point{X: pivot.X - dy, Y: pivot.Y + dx}
}

// CollidesHorizontal はx列に移動した場合に壁または固定済みブロックと衝突するかを判定します。
func (b *Block) CollidesHorizontal(x int, f Field) bool {
	if x < 0 || x >= f.Columns() {
		return true
	}
	return f.IsOccupied(x, b.Y)
}

// CollidesVertical はy行に移動した場合に床または固定済みブロックと衝突するかを判定します。
// y < 0（見えない領域）は衝突しません。
func (b *Block) CollidesVertical(y int, f Field) bool {
	if y >= f.Rows() {
		return true
	}
	return y >= 0 && f.IsOccupied(b.X, y)
}
