package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/progate-hackathon-strawberry-flavor/tetris-core/internal/services/tetris"
)

var ErrInvalidEnv = errors.New("invalid environment variable")

// Config はサーバー全体の設定です。
type Config struct {
	Port               string
	LogLevel           zerolog.Level
	JWTSecret          string // 空の場合は認証なし（匿名プレイヤー）
	CORSAllowedOrigins []string
	Session            tetris.SessionConfig
}

var defaultOrigins = []string{"http://localhost:3000"}

// Load は .env ファイル（本番環境以外）と環境変数から設定を読み込みます。
func Load(logger zerolog.Logger) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil {
			logger.Warn().Err(err).Msg("error loading .env file (this is fine in production)")
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv は getenv から設定を組み立てます。未設定の項目はデフォルト値になります。
//
// Parameters:
//
//	getenv : 環境変数を取得する関数（テストではmapを渡す）
//
// Returns:
//
//	*Config: 検証済みの設定
//	error   : 値が数値として読めない場合や、ゲーム設定が不正な場合
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:               "8080",
		LogLevel:           zerolog.InfoLevel,
		JWTSecret:          getenv("JWT_SECRET"),
		CORSAllowedOrigins: defaultOrigins,
		Session:            tetris.DefaultSessionConfig(),
	}
	if port := getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if level := getenv("LOG_LEVEL"); level != "" {
		parsed, err := zerolog.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("%w: LOG_LEVEL=%q: %v", ErrInvalidEnv, level, err)
		}
		cfg.LogLevel = parsed
	}
	if origins := getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORSAllowedOrigins = splitList(origins)
	}

	p := envParser{getenv: getenv}
	s := &cfg.Session
	p.intVar(&s.FrameRate, "FRAME_RATE")
	p.intVar(&s.BroadcastEvery, "BROADCAST_EVERY")
	p.intVar(&s.Engine.Columns, "TETRIS_COLUMNS")
	p.intVar(&s.Engine.Rows, "TETRIS_ROWS")
	p.intVar(&s.Engine.QueueLength, "TETRIS_QUEUE_LENGTH")
	p.msVar(&s.Engine.FallInterval, "TETRIS_FALL_INTERVAL_MS")
	p.msVar(&s.Engine.HorizontalThrottle, "TETRIS_MOVE_THROTTLE_MS")
	p.msVar(&s.Engine.RotateThrottle, "TETRIS_ROTATE_THROTTLE_MS")
	if p.err != nil {
		return nil, p.err
	}

	if s.FrameRate <= 0 || s.BroadcastEvery <= 0 {
		return nil, fmt.Errorf("%w: FRAME_RATE and BROADCAST_EVERY must be positive", ErrInvalidEnv)
	}
	if err := s.Engine.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AuthEnabled はJWT認証が有効かどうかを返します。
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// envParser は最初のエラーだけを保持します。
type envParser struct {
	getenv func(string) string
	err    error
}

func (p *envParser) intVar(dst *int, key string) {
	raw := p.getenv(key)
	if raw == "" || p.err != nil {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.err = fmt.Errorf("%w: %s=%q: %v", ErrInvalidEnv, key, raw, err)
		return
	}
	*dst = v
}

// msVar はミリ秒の整数を読み込みます。負の値はエラーです。
func (p *envParser) msVar(dst *time.Duration, key string) {
	raw := p.getenv(key)
	if raw == "" || p.err != nil {
		return
	}
	ms, err := strconv.Atoi(raw)
	if err != nil {
		p.err = fmt.Errorf("%w: %s=%q: %v", ErrInvalidEnv, key, raw, err)
		return
	}
	if ms < 0 {
		p.err = fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalidEnv, key, ms)
		return
	}
	*dst = time.Duration(ms) * time.Millisecond
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
