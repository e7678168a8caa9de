package tetris

import (
	"errors"
	"fmt"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/tetris-core/internal/models/tetris"
)

// ゲーム全体の速度設定のデフォルト値です。
const (
	DefaultFallInterval          = 300 * time.Millisecond // 自動落下の間隔（小さいほど速い）
	DefaultHorizontalThrottle    = 75 * time.Millisecond  // 左右移動の連続入力間隔
	DefaultRotateThrottle        = 150 * time.Millisecond // 回転の連続入力間隔
	DefaultSoftDropMultiplier    = 0.3                    // ソフトドロップ中の落下間隔の倍率
	DefaultLevelUpFallMultiplier = 0.75                   // レベルアップ時の落下間隔の倍率
	DefaultLinesPerLevel         = 10                     // レベルアップに必要なライン数
)

// ErrInvalidConfig は不正なConfigでエンジンを作成しようとした場合のエラーです。
var ErrInvalidConfig = errors.New("invalid engine config")

// Config はエンジンの構築時に渡す不変の設定です。
// 実行中に変更されるのは落下間隔だけで、それはエンジン内部の状態として持ちます。
type Config struct {
	Columns               int
	Rows                  int
	FallInterval          time.Duration
	HorizontalThrottle    time.Duration
	RotateThrottle        time.Duration
	SoftDropMultiplier    float64
	LevelUpFallMultiplier float64
	LinesPerLevel         int
	QueueLength           int
}

// DefaultConfig は標準のボードサイズと速度の設定を返します。
func DefaultConfig() Config {
	return Config{
		Columns:               tetris.DefaultColumns,
		Rows:                  tetris.DefaultRows,
		FallInterval:          DefaultFallInterval,
		HorizontalThrottle:    DefaultHorizontalThrottle,
		RotateThrottle:        DefaultRotateThrottle,
		SoftDropMultiplier:    DefaultSoftDropMultiplier,
		LevelUpFallMultiplier: DefaultLevelUpFallMultiplier,
		LinesPerLevel:         DefaultLinesPerLevel,
		QueueLength:           DefaultQueueLength,
	}
}

// Validate は設定値が使用可能かを確認します。
func (c Config) Validate() error {
	switch {
	case c.Columns < 4:
		return fmt.Errorf("%w: columns must be at least 4, got %d", ErrInvalidConfig, c.Columns)
	case c.Rows < 4:
		return fmt.Errorf("%w: rows must be at least 4, got %d", ErrInvalidConfig, c.Rows)
	case c.FallInterval <= 0:
		return fmt.Errorf("%w: fall interval must be positive", ErrInvalidConfig)
	case c.HorizontalThrottle < 0 || c.RotateThrottle < 0:
		return fmt.Errorf("%w: throttles must not be negative", ErrInvalidConfig)
	case c.SoftDropMultiplier <= 0 || c.SoftDropMultiplier > 1:
		return fmt.Errorf("%w: soft drop multiplier must be in (0, 1], got %v", ErrInvalidConfig, c.SoftDropMultiplier)
	case c.LevelUpFallMultiplier <= 0 || c.LevelUpFallMultiplier > 1:
		return fmt.Errorf("%w: level-up multiplier must be in (0, 1], got %v", ErrInvalidConfig, c.LevelUpFallMultiplier)
	case c.LinesPerLevel <= 0:
		return fmt.Errorf("%w: lines per level must be positive", ErrInvalidConfig)
	case c.QueueLength <= 0:
		return fmt.Errorf("%w: queue length must be positive", ErrInvalidConfig)
	}
	return nil
}

func scaleDuration(d time.Duration, factor float64) time.Duration {
	return time.Duration(float64(d) * factor)
}
