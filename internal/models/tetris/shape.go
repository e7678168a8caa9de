package tetris

import (
	"fmt"
	"math/rand"
)

// Shape はテトリミノの種類を表します。
// 形状データと色は shapeCatalog の固定テーブルから引きます（実行時に変更不可）。
type Shape int

const (
	ShapeT Shape = iota // 0: T-ミノ (紫)
	ShapeO              // 1: O-ミノ (黄色)
	ShapeJ              // 2: J-ミノ (青)
	ShapeL              // 3: L-ミノ (オレンジ)
	ShapeI              // 4: I-ミノ (シアン)
	ShapeS              // 5: S-ミノ (緑)
	ShapeZ              // 6: Z-ミノ (赤)

	shapeCount
)

// Point はグリッド上の整数座標です。yは下向きに増加します。
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type shapeDef struct {
	name    string
	color   string
	offsets [4]Point // 0番目が回転の基準ブロック
}

// shapeCatalog は各Shapeの基準ブロックからの相対座標と表示色です。
// この座標は回転・出現位置の計算に直接使われるため、値を変えてはいけません。
var shapeCatalog = [shapeCount]shapeDef{
	ShapeT: {name: "T", color: "#7b217f", offsets: [4]Point{{0, 0}, {-1, 0}, {1, 0}, {0, -1}}},
	ShapeO: {name: "O", color: "#f1e60d", offsets: [4]Point{{0, 0}, {0, -1}, {1, 0}, {1, -1}}},
	ShapeJ: {name: "J", color: "#204b9b", offsets: [4]Point{{0, 0}, {0, -1}, {0, 1}, {-1, 1}}},
	ShapeL: {name: "L", color: "#f07e13", offsets: [4]Point{{0, 0}, {0, -1}, {0, 1}, {1, 1}}},
	ShapeI: {name: "I", color: "#6cc6d9", offsets: [4]Point{{0, 0}, {0, -1}, {0, -2}, {0, 1}}},
	ShapeS: {name: "S", color: "#65b32e", offsets: [4]Point{{0, 0}, {-1, 0}, {0, -1}, {1, -1}}},
	ShapeZ: {name: "Z", color: "#e51b20", offsets: [4]Point{{0, 0}, {1, 0}, {0, -1}, {-1, -1}}},
}

// AllShapes は全7種類のShapeをカタログ順に返します。
func AllShapes() []Shape {
	shapes := make([]Shape, 0, shapeCount)
	for s := Shape(0); s < shapeCount; s++ {
		shapes = append(shapes, s)
	}
	return shapes
}

// RandomShape は一様乱数でShapeを1つ選びます。
func RandomShape(r *rand.Rand) Shape {
	return Shape(r.Intn(int(shapeCount)))
}

// Valid はカタログに存在するShapeかどうかを返します。
func (s Shape) Valid() bool {
	return s >= 0 && s < shapeCount
}

func (s Shape) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Shape(%d)", int(s))
	}
	return shapeCatalog[s].name
}

// Color は表示用のカラーコード ("#rrggbb") を返します。
func (s Shape) Color() string {
	if !s.Valid() {
		return ""
	}
	return shapeCatalog[s].color
}

// Offsets は基準ブロックからの4つの相対座標を返します。
func (s Shape) Offsets() [4]Point {
	return shapeCatalog[s].offsets
}

// MarshalText はShapeを "T" などの文字列としてJSONに書き出すために使われます。
func (s Shape) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown shape %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText は "T", "O" などの文字列をShapeに変換します。
func (s *Shape) UnmarshalText(text []byte) error {
	shape, ok := ParseShape(string(text))
	if !ok {
		return fmt.Errorf("unknown shape %q", string(text))
	}
	*s = shape
	return nil
}

// ParseShape は文字列のテトリミノタイプ（"T", "O" など）をShapeに変換します。
func ParseShape(name string) (Shape, bool) {
	for s := Shape(0); s < shapeCount; s++ {
		if shapeCatalog[s].name == name {
			return s, true
		}
	}
	return ShapeT, false
}
