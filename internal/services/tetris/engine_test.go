package tetris

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progate-hackathon-strawberry-flavor/tetris-core/internal/models/tetris"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig(), WithRand(rand.New(rand.NewSource(1))), WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return e
}

// setPiece は操作中のピースを指定したShapeで出現位置に置き直します。
func setPiece(e *Engine, shape tetris.Shape) {
	e.current = tetris.Spawn(shape, e.grid)
}

func fillRowExcept(g *tetris.Grid, y int, skipX int) {
	for x := 0; x < g.Columns(); x++ {
		if x != skipX {
			g.Occupy(&tetris.Block{X: x, Y: y, Shape: tetris.ShapeZ})
		}
	}
}

// dropCurrent は操作中のピースが固定されるまで自動落下を進めます。
func dropCurrent(t *testing.T, e *Engine) {
	t.Helper()
	piece := e.current
	for i := 0; i < 200; i++ {
		e.OnTick(e.GravityInterval())
		if e.current != piece {
			return
		}
	}
	t.Fatal("piece never locked")
}

func TestNewEngine_InitialState(t *testing.T) {
	e := newTestEngine(t)

	assert.Equal(t, 0, e.Score())
	assert.Equal(t, 0, e.Lines())
	assert.Equal(t, 1, e.Level())
	assert.Equal(t, StatusPlaying, e.Status())
	assert.Equal(t, DefaultFallInterval, e.FallInterval())
	assert.Equal(t, DefaultFallInterval, e.GravityInterval())
	assert.NotNil(t, e.Current())
	assert.Len(t, e.NextShapes(), DefaultQueueLength)
	assert.Equal(t, 0, e.Grid().OccupiedCount())
	assert.True(t, e.gravity.Active())
	assert.False(t, e.horizontal.Active())
	assert.False(t, e.rotate.Active())
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Columns = 2
	_, err := NewEngine(cfg)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	cfg = DefaultConfig()
	cfg.FallInterval = 0
	_, err = NewEngine(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOnTick_GravityStepsOncePerInterval(t *testing.T) {
	e := newTestEngine(t)
	setPiece(e, tetris.ShapeT)
	before := e.Current().Positions()

	assert.False(t, e.OnTick(DefaultFallInterval-time.Millisecond))
	assert.Equal(t, before, e.Current().Positions())

	assert.True(t, e.OnTick(time.Millisecond))
	for i, p := range e.Current().Positions() {
		assert.Equal(t, before[i].Y+1, p.Y)
	}
}

func TestOnInput_HorizontalThrottle(t *testing.T) {
	e := newTestEngine(t)
	setPiece(e, tetris.ShapeT)
	x := e.Current().Blocks()[0].X

	require.True(t, e.OnInput(MoveLeft))
	assert.Equal(t, x-1, e.Current().Blocks()[0].X)

	// スロットル中は左右どちらも受け付けない
	assert.False(t, e.OnInput(MoveLeft))
	assert.False(t, e.OnInput(MoveRight))
	assert.Equal(t, x-1, e.Current().Blocks()[0].X)

	e.OnTick(DefaultHorizontalThrottle)
	assert.False(t, e.horizontal.Active())
	assert.True(t, e.OnInput(MoveRight))
	assert.Equal(t, x, e.Current().Blocks()[0].X)
}

// 壁で移動できなくても、受け付けた入力はスロットルを開始する。
func TestOnInput_BlockedMoveStillThrottles(t *testing.T) {
	e := newTestEngine(t)
	setPiece(e, tetris.ShapeO)
	for e.Current().MoveHorizontal(-1) {
	}

	assert.False(t, e.OnInput(MoveLeft))
	assert.True(t, e.horizontal.Active())
}

func TestOnInput_RotateThrottle(t *testing.T) {
	e := newTestEngine(t)
	setPiece(e, tetris.ShapeT)
	for i := 0; i < 2; i++ {
		e.Current().MoveDown()
	}

	require.True(t, e.OnInput(RotateCW))
	rotated := e.Current().Positions()
	assert.False(t, e.OnInput(RotateCW))
	assert.Equal(t, rotated, e.Current().Positions())

	e.OnTick(DefaultRotateThrottle)
	assert.True(t, e.OnInput(RotateCW))
}

func TestOnInput_SoftDropSwapsGravityOnEdges(t *testing.T) {
	e := newTestEngine(t)
	soft := scaleDuration(DefaultFallInterval, DefaultSoftDropMultiplier)

	assert.False(t, e.OnInput(SoftDropReleased))
	assert.True(t, e.OnInput(SoftDropPressed))
	assert.Equal(t, soft, e.GravityInterval())
	assert.False(t, e.OnInput(SoftDropPressed))
	assert.Equal(t, soft, e.GravityInterval())

	assert.True(t, e.OnInput(SoftDropReleased))
	assert.Equal(t, DefaultFallInterval, e.GravityInterval())
	assert.Equal(t, DefaultFallInterval, e.FallInterval())
}

func TestOnInput_PauseToggleIsIgnored(t *testing.T) {
	e := newTestEngine(t)
	before := e.Current().Positions()

	assert.False(t, e.OnInput(PauseToggle))
	assert.Equal(t, before, e.Current().Positions())
}

func TestFrame_InputBeforeGravity(t *testing.T) {
	e := newTestEngine(t)
	setPiece(e, tetris.ShapeT)
	before := e.Current().Positions()

	assert.True(t, e.Frame(DefaultFallInterval, MoveRight))
	for i, p := range e.Current().Positions() {
		assert.Equal(t, before[i].X+1, p.X)
		assert.Equal(t, before[i].Y+1, p.Y)
	}
}

func TestLock_SpawnsNextShapeFromQueue(t *testing.T) {
	e := newTestEngine(t)
	setPiece(e, tetris.ShapeO)
	queued := e.NextShapes()

	dropCurrent(t, e)

	assert.Equal(t, 4, e.Grid().OccupiedCount())
	for _, b := range e.Grid().Blocks() {
		assert.Equal(t, tetris.ShapeO, b.Shape)
	}
	require.NotNil(t, e.Current())
	assert.Equal(t, queued[0], e.Current().Shape())
	next := e.NextShapes()
	assert.Len(t, next, DefaultQueueLength)
	assert.Equal(t, queued[1:], next[:DefaultQueueLength-1])
	assert.Equal(t, StatusPlaying, e.Status())
}

func TestLock_TetrisScoresByLevel(t *testing.T) {
	tests := []struct {
		name  string
		level int
		want  int
	}{
		{name: "level 1", level: 1, want: 1200},
		{name: "level 3", level: 3, want: 3600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			e.level = tt.level
			for y := 16; y < 20; y++ {
				fillRowExcept(e.grid, y, 5)
			}
			setPiece(e, tetris.ShapeI)

			dropCurrent(t, e)

			assert.Equal(t, tt.want, e.Score())
			assert.Equal(t, 4, e.Lines())
			assert.Equal(t, 0, e.Grid().OccupiedCount())
			assert.Empty(t, e.Grid().FullRows())
		})
	}
}

func TestLock_SingleLineClearShiftsRowsDown(t *testing.T) {
	e := newTestEngine(t)
	fillRowExcept(e.grid, 19, 5)
	marker := &tetris.Block{X: 0, Y: 18, Shape: tetris.ShapeS}
	e.grid.Occupy(marker)
	setPiece(e, tetris.ShapeI)

	dropCurrent(t, e)

	assert.Equal(t, 40, e.Score())
	assert.Equal(t, 1, e.Lines())
	assert.Equal(t, 19, marker.Y)
	assert.Same(t, marker, e.Grid().At(0, 19))
	// I の残り3ブロックも1段下がる
	for y := 17; y <= 19; y++ {
		assert.NotNil(t, e.Grid().At(5, y))
	}
	assert.Equal(t, 4, e.Grid().OccupiedCount())
}

func TestAddScore_LevelUpRule(t *testing.T) {
	e := newTestEngine(t)

	e.addScore(4)
	e.addScore(4)
	e.addScore(2)
	// 10ラインちょうどではまだ上がらない
	assert.Equal(t, 10, e.Lines())
	assert.Equal(t, 1, e.Level())
	assert.Equal(t, DefaultFallInterval, e.FallInterval())

	e.addScore(1)
	assert.Equal(t, 2, e.Level())
	want := scaleDuration(DefaultFallInterval, DefaultLevelUpFallMultiplier)
	assert.Equal(t, want, e.FallInterval())
	assert.Equal(t, want, e.GravityInterval())
	// レベルアップ前のレベルで加点される
	assert.Equal(t, 1200+1200+100+40, e.Score())
}

func TestAddScore_LevelUpWhileSoftDropHeld(t *testing.T) {
	e := newTestEngine(t)
	e.lines = 10
	require.True(t, e.OnInput(SoftDropPressed))

	e.addScore(1)

	fall := scaleDuration(DefaultFallInterval, DefaultLevelUpFallMultiplier)
	assert.Equal(t, fall, e.FallInterval())
	assert.Equal(t, scaleDuration(fall, DefaultSoftDropMultiplier), e.GravityInterval())

	require.True(t, e.OnInput(SoftDropReleased))
	assert.Equal(t, fall, e.GravityInterval())
}

func TestAddScore_OneLevelPerClear(t *testing.T) {
	e := newTestEngine(t)
	e.lines = 9

	e.addScore(4)

	assert.Equal(t, 13, e.Lines())
	assert.Equal(t, 2, e.Level())
}

func TestLineClearScore(t *testing.T) {
	assert.Equal(t, 0, LineClearScore(0, 1))
	assert.Equal(t, 40, LineClearScore(1, 1))
	assert.Equal(t, 200, LineClearScore(2, 2))
	assert.Equal(t, 900, LineClearScore(3, 3))
	assert.Equal(t, 3600, LineClearScore(4, 3))
	assert.Equal(t, 0, LineClearScore(5, 1))
}

// 出現直後に下が塞がっていて、見えない領域で固定されるとゲームオーバー。
func TestGameOver_LockAboveField(t *testing.T) {
	e := newTestEngine(t)
	for y := 0; y < e.grid.Rows(); y++ {
		for x := 3; x <= 7; x++ {
			e.grid.Occupy(&tetris.Block{X: x, Y: y, Shape: tetris.ShapeL})
		}
	}
	setPiece(e, tetris.ShapeT)
	occupied := e.Grid().OccupiedCount()

	e.OnTick(DefaultFallInterval)

	assert.Equal(t, StatusGameOver, e.Status())
	assert.Nil(t, e.Current())
	assert.Equal(t, occupied, e.Grid().OccupiedCount())
	assert.False(t, e.gravity.Active())

	// 終了後の入力と時間経過は何もしない
	assert.False(t, e.OnInput(MoveLeft))
	assert.False(t, e.OnTick(time.Second))
	assert.Equal(t, 0, e.Score())
	assert.True(t, e.Snapshot().IsGameOver)
}

func TestGameOver_SpawnBlocked(t *testing.T) {
	e := newTestEngine(t)
	for x := 4; x <= 6; x++ {
		e.grid.Occupy(&tetris.Block{X: x, Y: 0, Shape: tetris.ShapeJ})
	}
	e.queue.shapes[0] = tetris.ShapeI
	setPiece(e, tetris.ShapeO)
	for e.Current().MoveHorizontal(-1) {
	}

	dropCurrent(t, e)

	assert.Equal(t, StatusGameOver, e.Status())
	assert.Nil(t, e.Current())
}

// ランダムな入力で長時間プレイしても不変条件が保たれることを確認します。
func TestEngine_InvariantsUnderRandomPlay(t *testing.T) {
	e := newTestEngine(t)
	r := rand.New(rand.NewSource(42))
	events := []InputEvent{MoveLeft, MoveRight, RotateCW, SoftDropPressed, SoftDropReleased}

	prevScore, prevLines, prevLevel := 0, 0, 1
	prevFall := e.FallInterval()
	for frame := 0; frame < 20000 && e.Status() == StatusPlaying; frame++ {
		var input []InputEvent
		if r.Intn(3) == 0 {
			input = append(input, events[r.Intn(len(events))])
		}
		e.Frame(16*time.Millisecond, input...)

		require.GreaterOrEqual(t, e.Score(), prevScore)
		require.GreaterOrEqual(t, e.Lines(), prevLines)
		require.Empty(t, e.Grid().FullRows())

		switch e.Level() {
		case prevLevel:
			require.Equal(t, prevFall, e.FallInterval())
		case prevLevel + 1:
			require.Equal(t, scaleDuration(prevFall, DefaultLevelUpFallMultiplier), e.FallInterval())
			require.Less(t, e.FallInterval(), prevFall)
		default:
			t.Fatalf("level jumped from %d to %d", prevLevel, e.Level())
		}

		g := e.Grid()
		for _, b := range g.Blocks() {
			require.Same(t, b, g.At(b.X, b.Y))
		}
		if cur := e.Current(); cur != nil {
			for _, p := range cur.Positions() {
				require.False(t, p.Y >= 0 && g.At(p.X, p.Y) != nil, "piece overlaps locked cell (%d, %d)", p.X, p.Y)
			}
		}

		prevScore, prevLines, prevLevel, prevFall = e.Score(), e.Lines(), e.Level(), e.FallInterval()
	}
}

func TestSnapshot(t *testing.T) {
	e := newTestEngine(t)
	setPiece(e, tetris.ShapeL)
	e.grid.Occupy(&tetris.Block{X: 2, Y: 19, Shape: tetris.ShapeZ})

	snap := e.Snapshot()

	assert.Equal(t, DefaultConfig().Columns, snap.Columns)
	assert.Equal(t, DefaultConfig().Rows, snap.Rows)
	assert.Equal(t, "Z", snap.Board[19][2])
	assert.Equal(t, "", snap.Board[0][0])
	require.NotNil(t, snap.CurrentPiece)
	assert.Equal(t, tetris.ShapeL, snap.CurrentPiece.Shape)
	assert.Equal(t, "#f07e13", snap.CurrentPiece.Color)
	assert.Len(t, snap.CurrentPiece.Blocks, 4)
	assert.Equal(t, e.NextShapes(), snap.NextShapes)
	assert.Equal(t, int64(300), snap.FallIntervalMs)
	assert.False(t, snap.IsGameOver)
}
