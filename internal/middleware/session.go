// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionIDContextKey はリクエストコンテキストにセッションIDを格納するためのキー。
var sessionIDContextKey = contextKey("session_id")

// sessionReplayedContextKey は、セッションIDがクライアントのCookieから提示された
// もの（新規発行ではない）かを示すフラグのキー。
var sessionReplayedContextKey = contextKey("session_replayed")

// SessionConfig はセッションCookieの設定を保持する。
type SessionConfig struct {
	CookieName string
	MaxAge     int // 秒
	Secure     bool
	Domain     string
}

// DefaultSessionConfig はデフォルトのセッションCookie設定を返す。
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		CookieName: "finman_session",
		MaxAge:     86400,
	}
}

// NewSessionMiddleware は匿名セッションを管理するミドルウェアを返す。
// Cookieが無い（または不正な）リクエストには新しいセッションIDを発行し、
// HTTP Only Cookieとして返す。セッションIDはリクエストコンテキストに注入され、
// レート制限のクライアント識別とプロファイルの保存キーに使用される。
func NewSessionMiddleware(config SessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			replayed := false
			if cookie, err := r.Cookie(config.CookieName); err == nil {
				// 改ざんされた値をそのまま識別子に使わない
				if _, err := uuid.Parse(cookie.Value); err == nil {
					sessionID = cookie.Value
					replayed = true
				}
			}

			if sessionID == "" {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     config.CookieName,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   config.MaxAge,
					Domain:   config.Domain,
					Secure:   config.Secure,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), sessionIDContextKey, sessionID)
			if replayed {
				ctx = context.WithValue(ctx, sessionReplayedContextKey, true)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionIDFromContext はリクエストコンテキストからセッションIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionIDFromContext(ctx context.Context) (string, error) {
	sessionID, ok := ctx.Value(sessionIDContextKey).(string)
	if !ok || sessionID == "" {
		return "", fmt.Errorf("session ID not found in context")
	}
	return sessionID, nil
}

// SessionReplayedFromContext はセッションIDがクライアントのCookieから提示された
// ものかを返す。新規発行直後のリクエストではfalse。
func SessionReplayedFromContext(ctx context.Context) bool {
	replayed, _ := ctx.Value(sessionReplayedContextKey).(bool)
	return replayed
}

// ContextWithSessionID はコンテキストに提示済みセッションIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	ctx = context.WithValue(ctx, sessionIDContextKey, sessionID)
	return context.WithValue(ctx, sessionReplayedContextKey, true)
}
