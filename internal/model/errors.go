// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: session, portal, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidSession    = "INVALID_SESSION"
	ErrCodePortalUnavailable = "PORTAL_UNAVAILABLE"
	ErrCodePortalTimeout     = "PORTAL_TIMEOUT"
	ErrCodeMalformedPayload  = "MALFORMED_PAYLOAD"
)

// MalformedPayloadError はポータルの応答に必須フィールドが欠けていることを表す。
// 欠落は参照した時点で検出され、ドメインエラーに変換せずそのまま呼び出し元へ返す。
type MalformedPayloadError struct {
	Path string // 欠落していたフィールドのパス（例: parametresUtilisateur.EDT）
	Err  error  // 値の解釈に失敗した場合の原因。欠落のみの場合はnil
}

// Error はerrorインターフェースを実装する。
func (e *MalformedPayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed payload at %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("malformed payload: missing %s", e.Path)
}

// Unwrap は原因エラーを返す。
func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}

// NewInvalidSessionError はセッション記述子が不正な場合のエラーを生成する。
func NewInvalidSessionError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSession,
		Message:  fmt.Sprintf("セッション情報が不正です: %s", reason),
		Category: "session",
		Action:   "X-Pronote-Session、X-Pronote-Space、X-Pronote-Role ヘッダーを確認してください。",
	}
}

// NewPortalUnavailableError はポータル呼び出し失敗エラーを生成する。
func NewPortalUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodePortalUnavailable,
		Message:  fmt.Sprintf("ポータルからユーザーパラメータを取得できませんでした: %s", reason),
		Category: "portal",
		Action:   "セッションが有効か確認し、しばらく待ってから再度お試しください。",
	}
}

// NewPortalTimeoutError はポータル呼び出しのタイムアウトエラーを生成する。
func NewPortalTimeoutError() *APIError {
	return &APIError{
		Code:     ErrCodePortalTimeout,
		Message:  "ポータルの応答がタイムアウトしました。",
		Category: "portal",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewMalformedPayloadError はポータル応答の形式不正エラーを生成する。
func NewMalformedPayloadError(path string) *APIError {
	return &APIError{
		Code:     ErrCodeMalformedPayload,
		Message:  fmt.Sprintf("ポータルの応答に必要な項目がありません: %s", path),
		Category: "portal",
		Action:   "ポータルのバージョンが対応範囲か確認してください。",
	}
}
