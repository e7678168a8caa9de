package tetris

import (
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/progate-hackathon-strawberry-flavor/tetris-core/internal/models/tetris"
)

// Status はエンジンの状態です。GameOverは終端状態で、エラーではありません。
type Status int

const (
	StatusPlaying Status = iota
	StatusGameOver
)

func (s Status) String() string {
	if s == StatusGameOver {
		return "game_over"
	}
	return "playing"
}

// lineClearScores は同時に消したライン数ごとの基本点です（0ラインは加点なし）。
var lineClearScores = [5]int{0, 40, 100, 300, 1200}

// LineClearScore は同時に消したライン数とレベルから加算されるスコアを返します。
func LineClearScore(lines, level int) int {
	if lines < 1 || lines >= len(lineClearScores) {
		return 0
	}
	return lineClearScores[lines] * level
}

// Engine は1人分のゲーム進行を管理します。
// ボード、操作中のピース、タイマー、スコアはすべてEngineが所有し、
// 外部からは読み取り用のメソッドとSnapshotだけを通して参照します。
// Engineはゴルーチンセーフではありません。呼び出しは1つのゴルーチンから行ってください。
type Engine struct {
	cfg     Config
	logger  zerolog.Logger
	rng     *rand.Rand
	grid    *tetris.Grid
	queue   *ShapeQueue
	current *tetris.Tetromino

	gravity    *Timer // 自動落下（繰り返し）
	horizontal *Timer // 左右移動の入力間隔
	rotate     *Timer // 回転の入力間隔

	fallInterval     time.Duration
	softDropInterval time.Duration
	softDropHeld     bool

	score  int
	lines  int
	level  int
	status Status
}

// Option はNewEngineの任意設定です。
type Option func(*Engine)

// WithRand はピース生成に使う乱数生成器を指定します（テストで再現性を持たせる場合など）。
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithLogger はエンジンのログ出力先を指定します。
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine は新しいゲームを開始した状態のエンジンを作成します。
//
// Parameters:
//
//	cfg  : ボードサイズと速度の設定
//	opts : 乱数生成器やロガーの指定
//
// Returns:
//
//	*Engine: 最初のピースが出現し、自動落下タイマーが動いているエンジン
//	error  : 設定が不正な場合は ErrInvalidConfig をラップしたエラー
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:              cfg,
		logger:           log.Logger.With().Str("component", "engine").Logger(),
		fallInterval:     cfg.FallInterval,
		softDropInterval: scaleDuration(cfg.FallInterval, cfg.SoftDropMultiplier),
		level:            1,
		status:           StatusPlaying,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	e.grid = tetris.NewGrid(cfg.Columns, cfg.Rows)
	e.queue = NewShapeQueue(cfg.QueueLength, e.rng)
	e.current = tetris.Spawn(tetris.RandomShape(e.rng), e.grid)

	e.gravity = NewTimer(e.fallInterval, true, e.stepDown)
	e.horizontal = NewTimer(cfg.HorizontalThrottle, false, nil)
	e.rotate = NewTimer(cfg.RotateThrottle, false, nil)
	e.gravity.Activate()

	return e, nil
}

// Frame は1フレーム分の処理を行います。入力を先に処理し、その後タイマーを進めます。
//
// Returns:
//
//	bool: 表示に影響する状態が変化した場合はtrue
func (e *Engine) Frame(elapsed time.Duration, events ...InputEvent) bool {
	changed := false
	for _, ev := range events {
		if e.OnInput(ev) {
			changed = true
		}
	}
	if e.OnTick(elapsed) {
		changed = true
	}
	return changed
}

// OnTick は全タイマーを elapsed だけ進めます。
// 自動落下タイマーが期限に達するとピースを1行落とし、着地していれば固定処理を行います。
//
// Returns:
//
//	bool: 自動落下が発生した場合はtrue
func (e *Engine) OnTick(elapsed time.Duration) bool {
	if e.status == StatusGameOver {
		return false
	}
	stepped := e.gravity.Update(elapsed)
	e.horizontal.Update(elapsed)
	e.rotate.Update(elapsed)

	if e.status == StatusGameOver {
		e.stopTimers()
	}
	return stepped
}

// OnInput はプレイヤーの入力を処理します。
// 左右移動と回転はそれぞれのタイマーが止まっている時だけ受け付け、受け付けた時点で
// 移動の成否に関係なくタイマーを再始動します。
// ソフトドロップは押下・解放の切り替わりでだけ落下間隔を変更します。
//
// Returns:
//
//	bool: ピースが動いた、または落下間隔が変わった場合はtrue
func (e *Engine) OnInput(ev InputEvent) bool {
	if e.status == StatusGameOver || e.current == nil {
		return false
	}

	switch ev {
	case MoveLeft, MoveRight:
		if e.horizontal.Active() {
			return false
		}
		delta := 1
		if ev == MoveLeft {
			delta = -1
		}
		moved := e.current.MoveHorizontal(delta)
		e.horizontal.Activate()
		return moved
	case RotateCW:
		if e.rotate.Active() {
			return false
		}
		rotated := e.current.Rotate()
		e.rotate.Activate()
		return rotated
	case SoftDropPressed:
		if e.softDropHeld {
			return false
		}
		e.softDropHeld = true
		e.gravity.SetDuration(e.softDropInterval)
		return true
	case SoftDropReleased:
		if !e.softDropHeld {
			return false
		}
		e.softDropHeld = false
		e.gravity.SetDuration(e.fallInterval)
		return true
	}
	return false
}

// stepDown は自動落下タイマーから呼ばれ、ピースを1行落とします。
func (e *Engine) stepDown() {
	if e.current == nil {
		return
	}
	if res := e.current.MoveDown(); res.Locked {
		e.lockAndAdvance(res.Blocks)
	}
}

// lockAndAdvance はピースが着地した後の処理をすべて行います。
// ボードへの固定、ライン消去、スコア加算、ゲームオーバー判定、次のピース生成の順です。
func (e *Engine) lockAndAdvance(blocks []*tetris.Block) {
	overflow := false
	for _, b := range blocks {
		if b.Y < 0 {
			// 見えない領域のブロックはボードに入らない。このピースでゲーム終了
			overflow = true
			continue
		}
		e.grid.Occupy(b)
	}
	e.current = nil

	if rows := e.grid.FullRows(); len(rows) > 0 {
		e.grid.ClearAndCompact(rows)
		e.addScore(len(rows))
	}

	if overflow {
		e.endGame("locked above the field")
		return
	}

	next := tetris.Spawn(e.queue.Next(), e.grid)
	for _, p := range next.Positions() {
		if e.grid.IsOccupied(p.X, p.Y) {
			e.endGame("spawn position blocked")
			return
		}
	}
	e.current = next
}

// addScore はライン消去数に応じてスコア・ライン数・レベルを更新します。
// 1回の消去は最大4ラインなので、レベルは1回の消去で最大1つしか上がりません。
func (e *Engine) addScore(cleared int) {
	e.lines += cleared
	e.score += LineClearScore(cleared, e.level)

	if e.lines > e.level*e.cfg.LinesPerLevel {
		e.level++
		e.fallInterval = scaleDuration(e.fallInterval, e.cfg.LevelUpFallMultiplier)
		e.softDropInterval = scaleDuration(e.fallInterval, e.cfg.SoftDropMultiplier)
		if e.softDropHeld {
			e.gravity.SetDuration(e.softDropInterval)
		} else {
			e.gravity.SetDuration(e.fallInterval)
		}
		e.logger.Debug().
			Int("level", e.level).
			Dur("fall_interval", e.fallInterval).
			Msg("level up")
	}
}

func (e *Engine) endGame(reason string) {
	e.status = StatusGameOver
	e.current = nil
	e.stopTimers()
	e.logger.Info().
		Str("reason", reason).
		Int("score", e.score).
		Int("lines", e.lines).
		Int("level", e.level).
		Msg("game over")
}

func (e *Engine) stopTimers() {
	e.gravity.Deactivate()
	e.horizontal.Deactivate()
	e.rotate.Deactivate()
}

// Grid は現在のボードを返します。読み取り専用として扱ってください。
func (e *Engine) Grid() *tetris.Grid { return e.grid }

// Current は操作中のピースを返します。ゲームオーバー後はnilです。
func (e *Engine) Current() *tetris.Tetromino { return e.current }

func (e *Engine) Score() int                  { return e.score }
func (e *Engine) Lines() int                  { return e.lines }
func (e *Engine) Level() int                  { return e.level }
func (e *Engine) Status() Status              { return e.status }
func (e *Engine) FallInterval() time.Duration { return e.fallInterval }

// GravityInterval は現在の自動落下タイマーの間隔（ソフトドロップ中はその間隔）を返します。
func (e *Engine) GravityInterval() time.Duration { return e.gravity.Duration() }

// NextShapes は次に出現するピースの種類を順に返します（プレビュー用のコピー）。
func (e *Engine) NextShapes() []tetris.Shape { return e.queue.Peek() }
