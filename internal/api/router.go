package api

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/progate-hackathon-strawberry-flavor/tetris-core/internal/api/handlers"
	"github.com/progate-hackathon-strawberry-flavor/tetris-core/internal/api/middleware"
)

// NewRouter はAPIのルーティングを組み立てます。
//
// Parameters:
//
//	gh             : ゲームハンドラー
//	auth           : 認証ミドルウェア
//	allowedOrigins : CORSで許可するオリジン
//	logger         : アクセスログに使うロガー
func NewRouter(gh *handlers.GameHandler, auth *middleware.Auth, allowedOrigins []string, logger zerolog.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, requestLogger(logger), chimw.Recoverer)

	// 認証不要な公開エンドポイント
	r.HandleFunc("/api/health", gh.Health).Methods(http.MethodGet)
	r.HandleFunc("/api/shapes", gh.ListShapes).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{sessionID}", gh.GetSession).Methods(http.MethodGet)

	// 認証が必要なエンドポイント
	protected := r.PathPrefix("/api/sessions").Subrouter()
	protected.Use(auth.Middleware)
	protected.HandleFunc("", gh.CreateSession).Methods(http.MethodPost)
	protected.HandleFunc("/{sessionID}", gh.EndSession).Methods(http.MethodDelete)
	protected.HandleFunc("/{sessionID}/ws", gh.HandleWebSocketConnection).Methods(http.MethodGet)

	return middleware.CORSHandler(allowedOrigins)(r)
}

// requestLogger は1リクエストごとにアクセスログを出力します。
func requestLogger(logger zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info().
					Str("request_id", chimw.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("duration", time.Since(start)).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
