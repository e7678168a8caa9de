package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type UserIDKey struct{}

// GetUserIDFromContext retrieves the user ID from the context.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey{}).(string)
	return userID, ok
}

// WithUserID はユーザーIDを設定したContextを返します。
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey{}, userID)
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// Auth はJWTによるプレイヤー認証を行います。
// secretが空の場合は認証を行わず、リクエストごとに匿名のプレイヤーIDを割り当てます。
type Auth struct {
	secret []byte
	logger zerolog.Logger
}

// NewAuth は新しい Auth を作成します。
func NewAuth(secret string, logger zerolog.Logger) *Auth {
	return &Auth{
		secret: []byte(secret),
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// Middleware is a middleware function that checks for a valid JWT token.
// ブラウザのWebSocketはヘッダーを付けられないため、クエリパラメータ "token" も受け付けます。
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.secret) == 0 {
			anonymousID := uuid.New().String()
			a.logger.Debug().Str("user_id", anonymousID).Msg("auth disabled, using anonymous user id")
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), anonymousID)))
			return
		}

		tokenString, err := extractToken(r)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, err.Error())
			return
		}

		userID, err := a.verify(tokenString)
		if err != nil {
			a.logger.Warn().Err(err).Msg("token verification failed")
			writeJSONError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func extractToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
		return "", fmt.Errorf("Authorization header is required")
	}
	tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || tokenString == "" {
		return "", fmt.Errorf("Invalid Authorization header format. Must be 'Bearer <token>'")
	}
	return tokenString, nil
}

// verify はトークンを検証し、'sub' クレームのユーザーIDを返します。
func (a *Auth) verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// アルゴリズムがHMACであることを確認
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("claims missing 'sub' (userID) or wrong type: %v", claims["sub"])
	}
	return userID, nil
}
