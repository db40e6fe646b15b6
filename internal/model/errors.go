// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"net/http"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法、対応するHTTPステータスを含む。
type APIError struct {
	Code     string `json:"code"`     // エラーコード
	Message  string `json:"message"`  // エラーメッセージ
	Category string `json:"category"` // カテゴリ: validation, config, upstream, rate_limit, system
	Action   string `json:"action"`   // ユーザー向け対処方法
	Status   int    `json:"-"`        // 対応するHTTPステータスコード
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeMissingFields       = "MISSING_FIELDS"
	ErrCodeInvalidParameter    = "INVALID_PARAMETER"
	ErrCodeProfileRequired     = "PROFILE_REQUIRED"
	ErrCodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	ErrCodeAPIKeyMissing       = "API_KEY_MISSING"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
)

// NewInvalidJSONError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidJSONError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
		Status:   http.StatusBadRequest,
	}
}

// NewMissingFieldsError は必須フィールド欠落エラーを生成する。
func NewMissingFieldsError(fields []string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingFields,
		Message:  fmt.Sprintf("必須項目が不足しています: %s", strings.Join(fields, ", ")),
		Category: "validation",
		Action:   "不足している項目を入力して再度お試しください。",
		Status:   http.StatusBadRequest,
	}
}

// NewInvalidParameterError はパラメータ不正エラーを生成する。
func NewInvalidParameterError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidParameter,
		Message:  fmt.Sprintf("パラメータが不正です: %s", reason),
		Category: "validation",
		Action:   "金額・利回り・期間が有効な数値か確認してください。",
		Status:   http.StatusBadRequest,
	}
}

// NewProfileRequiredError はプロフィール未登録エラーを生成する。
// シミュレーションはプロフィール分析の完了を前提とする。
func NewProfileRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileRequired,
		Message:  "先にプロフィール分析を完了してください。",
		Category: "validation",
		Action:   "プロフィール分析（/profile）を実行してから再度お試しください。",
		Status:   http.StatusBadRequest,
	}
}

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエスト数が制限を超えています。",
		Category: "rate_limit",
		Action:   "しばらく待ってから再度お試しください。",
		Status:   http.StatusTooManyRequests,
	}
}

// NewConfigurationError はAPI認証情報未設定エラーを生成する。
// 認証情報の欠如は一時的な障害ではないためリトライ対象にしない。
func NewConfigurationError() *APIError {
	return &APIError{
		Code:     ErrCodeAPIKeyMissing,
		Message:  "アドバイス生成サービスは現在利用できません。",
		Category: "config",
		Action:   "管理者に連絡してください。",
		Status:   http.StatusServiceUnavailable,
	}
}

// NewUpstreamUnavailableError は外部API呼び出し失敗エラーを生成する。
// categoryには最後に観測した失敗分類（timeout, transport, malformed, configuration）を渡す。
func NewUpstreamUnavailableError(category string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  fmt.Sprintf("アドバイスの生成に失敗しました（%s）。", category),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
		Status:   http.StatusServiceUnavailable,
	}
}
