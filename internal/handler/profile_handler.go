// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/schoolprofile/internal/middleware"
	"github.com/hitoshi/schoolprofile/internal/model"
	"github.com/hitoshi/schoolprofile/internal/pronote"
)

// ProfileAssembler はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileAssembler interface {
	// AssembleProfile はポータルからユーザーパラメータを取得し、正規化したプロフィールを返す。
	AssembleProfile(ctx context.Context, session model.Session) (*model.UserProfile, error)
}

// ProfileHandler はユーザープロフィールのHTTPハンドラー。
type ProfileHandler struct {
	assembler ProfileAssembler
	logger    *slog.Logger
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(assembler ProfileAssembler, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		assembler: assembler,
		logger:    logger,
	}
}

// GetProfile はセッションのプロフィールを返す。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidSessionError(err.Error()))
		return
	}

	profile, err := h.assembler.AssembleProfile(r.Context(), session)
	if err != nil {
		h.logger.Error("プロフィールの組み立てに失敗しました",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.Int("session_id", session.ID),
			slog.String("role", string(session.Role)),
			slog.String("error", err.Error()),
		)
		statusCode, apiErr := mapProfileError(err)
		middleware.WriteErrorResponse(w, statusCode, apiErr)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// mapProfileError はプロフィール組み立てのエラーをHTTPステータスとAPIErrorに変換する。
// ここに届くエラーはすべてポータル呼び出しか応答の解釈に由来する。
func mapProfileError(err error) (int, *model.APIError) {
	var malformed *model.MalformedPayloadError
	var statusErr *pronote.StatusError
	var portalErr *pronote.PortalError
	var timeoutErr interface{ Timeout() bool }

	switch {
	case errors.As(err, &malformed):
		return http.StatusBadGateway, model.NewMalformedPayloadError(malformed.Path)
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &timeoutErr) && timeoutErr.Timeout():
		return http.StatusGatewayTimeout, model.NewPortalTimeoutError()
	case errors.As(err, &statusErr):
		return http.StatusBadGateway, model.NewPortalUnavailableError(http.StatusText(statusErr.StatusCode))
	case errors.As(err, &portalErr):
		return http.StatusBadGateway, model.NewPortalUnavailableError(portalErr.Title)
	default:
		return http.StatusBadGateway, model.NewPortalUnavailableError("通信エラー")
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
