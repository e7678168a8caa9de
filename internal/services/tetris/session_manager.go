package tetris

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionEnded    = errors.New("session has ended")
	ErrInputQueueFull  = errors.New("input queue is full")
)

// セッションの状態
const (
	SessionPaused   = "paused"
	SessionPlaying  = "playing"
	SessionFinished = "finished"
)

const (
	DefaultFrameRate      = 120 // 1秒あたりのフレーム数
	DefaultBroadcastEvery = 30  // 状態に変化がなくても送信するフレーム間隔
	inputQueueSize        = 64
)

// SessionConfig はSessionManagerが各セッションを動かすための設定です。
type SessionConfig struct {
	Engine         Config
	FrameRate      int
	BroadcastEvery int
}

// DefaultSessionConfig は標準のエンジン設定と120fpsのフレームループを返します。
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Engine:         DefaultConfig(),
		FrameRate:      DefaultFrameRate,
		BroadcastEvery: DefaultBroadcastEvery,
	}
}

// SessionState はクライアントに送信するセッションの状態です。
type SessionState struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Snapshot
}

// Client はWebSocket接続を持つ単一のクライアントを表します。
type Client struct {
	UserID    string          // このクライアントに紐づくユーザーのID
	SessionID string          // 接続先のセッションID
	Conn      *websocket.Conn // クライアントとの実際のWebSocketコネクション
	Send      chan []byte     // クライアントへメッセージを送信するためのバッファ付きチャネル
	closed    bool
	mu        sync.Mutex
}

// SafeSend は安全にチャネルにメッセージを送信します（closedチェック付き）
func (c *Client) SafeSend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false // チャネルがフル
	}
}

// SafeClose は安全にチャネルを閉じます
func (c *Client) SafeClose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.Send)
		c.closed = true
	}
}

// Session は1人のプレイヤーのゲームです。
// エンジンを触るのはフレームループのゴルーチンだけで、他のゴルーチンは
// 公開済みのSessionStateを読むか、inboxに入力を送るだけです。
type Session struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time

	engine *Engine
	paused bool // 作成直後は一時停止状態
	frames int
	inbox  chan InputEvent
	done   chan struct{}
	once   sync.Once

	mu       sync.RWMutex
	finished bool
	state    SessionState
	client   *Client
}

func newSession(id, ownerID string, engine *Engine) *Session {
	s := &Session{
		ID:        id,
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
		engine:    engine,
		paused:    true,
		inbox:     make(chan InputEvent, inputQueueSize),
		done:      make(chan struct{}),
	}
	s.state = s.buildState()
	return s
}

// State は最後に公開された状態を返します。
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// advance は溜まっている入力を取り出し、1フレーム分ゲームを進めます。
// 一時停止中は一時停止の切り替え以外の入力を捨て、時間も進めません。
//
// Returns:
//
//	bool: 状態が変化した場合はtrue
func (s *Session) advance(elapsed time.Duration) bool {
	changed := false
	var events []InputEvent
drain:
	for {
		select {
		case ev := <-s.inbox:
			if ev == PauseToggle {
				s.paused = !s.paused
				changed = true
				continue
			}
			if !s.paused {
				events = append(events, ev)
			}
		default:
			break drain
		}
	}

	if !s.paused && s.engine.Frame(elapsed, events...) {
		changed = true
	}
	s.frames++
	return changed
}

func (s *Session) buildState() SessionState {
	s.mu.RLock()
	finished := s.finished
	s.mu.RUnlock()

	status := SessionPlaying
	switch {
	case finished || s.engine.Status() == StatusGameOver:
		status = SessionFinished
	case s.paused:
		status = SessionPaused
	}
	return SessionState{SessionID: s.ID, Status: status, Snapshot: s.engine.Snapshot()}
}

// publish は現在の状態を保存し、接続中のクライアントに送信します。
func (s *Session) publish(logger zerolog.Logger) {
	state := s.buildState()

	s.mu.Lock()
	if s.finished {
		state.Status = SessionFinished
	}
	s.state = state
	client := s.client
	s.mu.Unlock()

	if client == nil {
		return
	}
	payload, err := json.Marshal(state)
	if err != nil {
		logger.Error().Err(err).Msg("failed to marshal session state")
		return
	}
	if !client.SafeSend(payload) {
		logger.Warn().Str("user_id", client.UserID).Msg("failed to send state (channel closed or full)")
	}
}

// stop はフレームループを止め、クライアントの送信チャネルを閉じます。何度呼んでも安全です。
func (s *Session) stop() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.finished = true
		s.state.Status = SessionFinished
		client := s.client
		s.client = nil
		s.mu.Unlock()
		if client != nil {
			client.SafeClose()
		}
	})
}

// SessionManager はゲームセッションとWebSocketクライアント接続の全体を管理します。
// これはアプリケーション内でシングルトンとして動作することが想定されます。
type SessionManager struct {
	cfg      SessionConfig
	logger   zerolog.Logger
	sessions map[string]*Session
	mu       sync.RWMutex
	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
}

// NewSessionManager は新しい SessionManager を作成します。
// 設定値が0の項目はデフォルト値で補います。
func NewSessionManager(cfg SessionConfig, logger zerolog.Logger) (*SessionManager, error) {
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultFrameRate
	}
	if cfg.BroadcastEvery <= 0 {
		cfg.BroadcastEvery = DefaultBroadcastEvery
	}
	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}
	return &SessionManager{
		cfg:      cfg,
		logger:   logger.With().Str("component", "session_manager").Logger(),
		sessions: make(map[string]*Session),
		quit:     make(chan struct{}),
	}, nil
}

// CreateSession は新しいゲームを作成し、そのフレームループをバックグラウンドで開始します。
//
// Parameters:
//
//	ownerID : セッションを作成したプレイヤーのID
//
// Returns:
//
//	*Session: 作成されたセッション（一時停止状態）
//	error   : エンジンの作成に失敗した場合、またはShutdown後の場合は ErrSessionEnded
func (sm *SessionManager) CreateSession(ownerID string) (*Session, error) {
	id := uuid.New().String()
	engine, err := NewEngine(sm.cfg.Engine, WithLogger(sm.logger.With().Str("session_id", id).Logger()))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	s := newSession(id, ownerID, engine)

	// quitの確認とwg.Addはロック内で行い、ShutdownのWaitより前に確定させる
	sm.mu.Lock()
	select {
	case <-sm.quit:
		sm.mu.Unlock()
		return nil, fmt.Errorf("%w: manager is shut down", ErrSessionEnded)
	default:
	}
	sm.sessions[id] = s
	sm.wg.Add(1)
	sm.mu.Unlock()

	go sm.run(s)

	sm.logger.Info().Str("session_id", id).Str("owner_id", ownerID).Msg("session created")
	return s, nil
}

// run はセッションのフレームループです。ゲームオーバーになるか、停止されるまで動きます。
func (sm *SessionManager) run(s *Session) {
	defer sm.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(sm.cfg.FrameRate))
	defer ticker.Stop()

	logger := sm.logger.With().Str("session_id", s.ID).Logger()
	last := time.Now()
	for {
		select {
		case <-sm.quit:
			return
		case <-s.done:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now

			changed := s.advance(elapsed)
			over := s.engine.Status() == StatusGameOver
			if changed || over || s.frames%sm.cfg.BroadcastEvery == 0 {
				s.publish(logger)
			}
			if over {
				logger.Info().Int("score", s.engine.Score()).Int("lines", s.engine.Lines()).Msg("session finished")
				s.stop()
				return
			}
		}
	}
}

// GetSession は指定されたIDのセッションを取得します。
func (sm *SessionManager) GetSession(id string) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.sessions[id]
	return s, ok
}

func (sm *SessionManager) lookup(id string) (*Session, error) {
	s, ok := sm.GetSession(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// SubmitInput はプレイヤーの入力をセッションのキューに追加します。
// 入力は次のフレームでまとめて処理されます。
func (sm *SessionManager) SubmitInput(id string, ev InputEvent) error {
	s, err := sm.lookup(id)
	if err != nil {
		return err
	}
	select {
	case <-s.done:
		return fmt.Errorf("%w: %s", ErrSessionEnded, id)
	default:
	}
	select {
	case s.inbox <- ev:
		return nil
	default:
		return ErrInputQueueFull
	}
}

// EndSession はセッションを終了させ、マップから削除します。
func (sm *SessionManager) EndSession(id string) error {
	sm.mu.Lock()
	s, ok := sm.sessions[id]
	if ok {
		delete(sm.sessions, id)
	}
	sm.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	s.stop()
	sm.logger.Info().Str("session_id", id).Msg("session ended")
	return nil
}

// SessionCount は管理中のセッション数を返します。
func (sm *SessionManager) SessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// AttachClient はWebSocket接続をセッションに登録し、送受信のゴルーチンを開始します。
// 既に接続がある場合は古い接続を閉じて置き換えます（再接続対応）。
func (sm *SessionManager) AttachClient(id, userID string, conn *websocket.Conn) error {
	s, err := sm.lookup(id)
	if err != nil {
		return err
	}

	client := &Client{
		UserID:    userID,
		SessionID: id,
		Conn:      conn,
		Send:      make(chan []byte, 256),
	}

	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionEnded, id)
	}
	previous := s.client
	s.client = client
	state := s.state
	s.mu.Unlock()

	if previous != nil {
		sm.logger.Info().Str("session_id", id).Str("user_id", userID).Msg("replacing existing connection")
		previous.SafeClose()
	}

	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(300 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(300 * time.Second))
		return nil
	})

	go sm.readPump(s, client)
	go client.writePump(sm.logger)

	// 接続直後に現在の状態を送る
	if payload, err := json.Marshal(state); err == nil {
		client.SafeSend(payload)
	}
	sm.logger.Info().Str("session_id", id).Str("user_id", userID).Msg("client attached")
	return nil
}

// clientMessage はクライアントから送られる操作メッセージです。
type clientMessage struct {
	Action string `json:"action"` // "move_left", "rotate", "pause_toggle" など
}

// readPump はクライアントからのWebSocketメッセージを読み込み、セッションの入力キューに送ります。
// 接続が切れたらセッションを終了します。
func (sm *SessionManager) readPump(s *Session, client *Client) {
	logger := sm.logger.With().Str("session_id", s.ID).Str("user_id", client.UserID).Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("panic in readPump")
		}
		client.Conn.Close()

		// 置き換えられた古い接続ではセッションを終了しない
		s.mu.RLock()
		owned := s.client == client || s.finished
		s.mu.RUnlock()
		if owned {
			logger.Info().Msg("client disconnected, ending session")
			if err := sm.EndSession(s.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
				logger.Error().Err(err).Msg("failed to end session")
			}
		}
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("websocket unexpected close")
			} else {
				logger.Debug().Err(err).Msg("websocket closed")
			}
			return
		}
		if len(message) == 0 {
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn().Err(err).Bytes("message", message).Msg("failed to unmarshal input message")
			continue
		}
		ev, ok := ParseInput(msg.Action)
		if !ok {
			logger.Warn().Str("action", msg.Action).Msg("unknown action")
			continue
		}
		if err := sm.SubmitInput(s.ID, ev); err != nil {
			if errors.Is(err, ErrInputQueueFull) {
				logger.Warn().Msg("input queue is full, dropping message")
				continue
			}
			// セッション終了後も最後の状態を送り切るまで読み続ける
			logger.Debug().Err(err).Msg("input rejected")
		}
	}
}

// writePump は Client の Send チャネルからのメッセージをWebSocketコネクションに書き込みます。
func (c *Client) writePump(logger zerolog.Logger) {
	logger = logger.With().Str("user_id", c.UserID).Str("session_id", c.SessionID).Logger()
	ticker := time.NewTicker(60 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// セッション終了またはクライアントの置き換え
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn().Err(err).Msg("error writing message")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn().Err(err).Msg("error sending ping")
				return
			}
		}
	}
}

// Shutdown は全セッションのフレームループを止め、全クライアントを切断します。
// 2回目以降の呼び出しは何もしません。
func (sm *SessionManager) Shutdown() {
	sm.quitOnce.Do(func() {
		sm.logger.Info().Msg("shutting down")

		sm.mu.Lock()
		close(sm.quit)
		sessions := sm.sessions
		sm.sessions = make(map[string]*Session)
		sm.mu.Unlock()

		for _, s := range sessions {
			s.stop()
		}
		sm.wg.Wait()
		sm.logger.Info().Int("sessions", len(sessions)).Msg("shutdown complete")
	})
}
