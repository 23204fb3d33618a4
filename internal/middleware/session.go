// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/schoolprofile/internal/model"
)

// ポータルセッションを受け取るリクエストヘッダー。
const (
	HeaderSession = "X-Pronote-Session"
	HeaderSpace   = "X-Pronote-Space"
	HeaderRole    = "X-Pronote-Role"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにポータルセッションを格納するためのキー。
var sessionContextKey = contextKey("portal_session")

// NewSessionMiddleware はリクエストヘッダーからポータルセッションを読み取り、
// リクエストコンテキストに注入するミドルウェアを返す。
// セッションはポータル側で確立済みのものとして扱い、ここでは形式だけを検証する。
// 不正なリクエストには400 Bad Requestを返す。
func NewSessionMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := ParseSessionHeaders(r.Header)
			if err != nil {
				WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidSessionError(err.Error()))
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}

// ParseSessionHeaders はX-Pronote-*ヘッダーからセッションを組み立てる。
// ロールは小文字に正規化する。未知のロールもそのまま受け付ける。
func ParseSessionHeaders(h http.Header) (model.Session, error) {
	id, err := parsePositiveHeader(h, HeaderSession)
	if err != nil {
		return model.Session{}, err
	}
	space, err := parsePositiveHeader(h, HeaderSpace)
	if err != nil {
		return model.Session{}, err
	}

	role := strings.ToLower(strings.TrimSpace(h.Get(HeaderRole)))
	if role == "" {
		return model.Session{}, fmt.Errorf("%s is required", HeaderRole)
	}

	return model.Session{ID: id, Space: space, Role: model.Role(role)}, nil
}

func parsePositiveHeader(h http.Header, name string) (int, error) {
	raw := strings.TrimSpace(h.Get(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return v, nil
}

// SessionFromContext はリクエストコンテキストからポータルセッションを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (model.Session, error) {
	session, ok := ctx.Value(sessionContextKey).(model.Session)
	if !ok {
		return model.Session{}, errors.New("portal session not found in context")
	}
	return session, nil
}

// ContextWithSession はコンテキストにポータルセッションを注入する。
// テストやCLIなどミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
