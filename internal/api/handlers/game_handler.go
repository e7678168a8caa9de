package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/progate-hackathon-strawberry-flavor/tetris-core/internal/api/middleware"
	models "github.com/progate-hackathon-strawberry-flavor/tetris-core/internal/models/tetris"
	"github.com/progate-hackathon-strawberry-flavor/tetris-core/internal/services/tetris" // SessionManager をインポート
)

// GameHandler はゲーム関連のHTTPリクエスト（セッション作成、状態取得、終了、WebSocket接続）を処理します。
type GameHandler struct {
	sessionManager *tetris.SessionManager // ゲームセッションの管理サービス
	upgrader       websocket.Upgrader
	requireOwner   bool // trueの場合、終了と接続はセッション作成者だけに許可する
	logger         zerolog.Logger
}

// NewGameHandler は新しい GameHandler インスタンスを作成します。
//
// Parameters:
//
//	sm             : セッションマネージャーへのポインタ
//	requireOwner   : 認証が有効な場合はtrue（匿名IDはリクエストごとに変わるため）
//	allowedOrigins : WebSocket接続を許可するOrigin（CORSと同じ設定）
//	logger         : ロガー
//
// Returns:
//
//	*GameHandler: 新しく作成された GameHandler のポインタ
func NewGameHandler(sm *tetris.SessionManager, requireOwner bool, allowedOrigins []string, logger zerolog.Logger) *GameHandler {
	return &GameHandler{
		sessionManager: sm,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		requireOwner: requireOwner,
		logger:       logger.With().Str("component", "game_handler").Logger(),
	}
}

// originChecker はWebSocketのアップグレード要求のOriginを許可リストと照合します。
// rs/cors はGETの単純リクエストを拒否しないため、ここで検証します。
// Originヘッダーのない（ブラウザ以外の）クライアントは許可します。
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] {
			return true
		}
		return set[origin]
	}
}

// WriteErrorResponse はエラーレスポンスをJSON形式で書き込みます。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	WriteJSONResponse(w, statusCode, map[string]string{"error": message})
}

// WriteJSONResponse はJSONレスポンスを書き込みます。
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// Health はサーバーの稼働状況を返します。
// GET /api/health
func (h *GameHandler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": h.sessionManager.SessionCount(),
	})
}

// shapeResponse は1種類のテトリミノの定義です。
type shapeResponse struct {
	Name    string          `json:"name"`
	Color   string          `json:"color"`
	Offsets [4]models.Point `json:"offsets"`
}

// ListShapes は描画クライアント向けにテトリミノの形と色の一覧を返します。
// GET /api/shapes
func (h *GameHandler) ListShapes(w http.ResponseWriter, r *http.Request) {
	shapes := models.AllShapes()
	resp := make([]shapeResponse, 0, len(shapes))
	for _, s := range shapes {
		resp = append(resp, shapeResponse{Name: s.String(), Color: s.Color(), Offsets: s.Offsets()})
	}
	WriteJSONResponse(w, http.StatusOK, resp)
}

// CreateSession は新しいゲームセッションを作成します。セッションは一時停止状態で開始します。
// POST /api/sessions
func (h *GameHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		WriteErrorResponse(w, http.StatusUnauthorized, "ユーザーIDが見つかりません")
		return
	}

	session, err := h.sessionManager.CreateSession(userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create session")
		WriteErrorResponse(w, http.StatusInternalServerError, "セッションの作成に失敗しました")
		return
	}

	WriteJSONResponse(w, http.StatusCreated, map[string]interface{}{
		"session_id": session.ID,
		"state":      session.State(),
	})
}

// GetSession は特定のセッションの最新の状態を返します。
// GET /api/sessions/{sessionID}
func (h *GameHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessionManager.GetSession(mux.Vars(r)["sessionID"])
	if !ok {
		WriteErrorResponse(w, http.StatusNotFound, "指定されたセッションは見つかりませんでした")
		return
	}
	WriteJSONResponse(w, http.StatusOK, session.State())
}

// EndSession はセッションを終了します。
// DELETE /api/sessions/{sessionID}
func (h *GameHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authorize(w, r)
	if !ok {
		return
	}
	if err := h.sessionManager.EndSession(session.ID); err != nil {
		h.writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleWebSocketConnection はHTTP接続をWebSocketプロトコルにアップグレードし、
// その後、WebSocketメッセージの送受信をセッションマネージャーに引き渡します。
// GET /api/sessions/{sessionID}/ws
func (h *GameHandler) HandleWebSocketConnection(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authorize(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade が既にエラーレスポンスを書いている
		h.logger.Warn().Err(err).Str("session_id", session.ID).Msg("failed to upgrade to websocket")
		return
	}

	// readPump と writePump はSessionManagerが開始する。コネクションもSessionManagerが閉じる。
	if err := h.sessionManager.AttachClient(session.ID, userID, conn); err != nil {
		h.logger.Warn().Err(err).Str("session_id", session.ID).Msg("failed to attach client")
		conn.WriteJSON(map[string]string{"error": err.Error()})
		conn.Close()
	}
}

// authorize はURLのセッションを取得し、必要であれば作成者本人かを確認します。
func (h *GameHandler) authorize(w http.ResponseWriter, r *http.Request) (*tetris.Session, bool) {
	sessionID := mux.Vars(r)["sessionID"]
	session, ok := h.sessionManager.GetSession(sessionID)
	if !ok {
		WriteErrorResponse(w, http.StatusNotFound, "指定されたセッションは見つかりませんでした")
		return nil, false
	}
	if h.requireOwner {
		userID, _ := middleware.GetUserIDFromContext(r.Context())
		if userID != session.OwnerID {
			WriteErrorResponse(w, http.StatusForbidden, "このセッションを操作する権限がありません")
			return nil, false
		}
	}
	return session, true
}

func (h *GameHandler) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tetris.ErrSessionNotFound):
		WriteErrorResponse(w, http.StatusNotFound, "指定されたセッションは見つかりませんでした")
	case errors.Is(err, tetris.ErrSessionEnded):
		WriteErrorResponse(w, http.StatusConflict, "セッションは既に終了しています")
	default:
		h.logger.Error().Err(err).Msg("unexpected session error")
		WriteErrorResponse(w, http.StatusInternalServerError, "内部エラーが発生しました")
	}
}
