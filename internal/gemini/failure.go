// Package gemini は生成APIへの耐障害性付きアクセスを提供する。
// タイムアウト制御・リトライ・レスポンス形状検証・結果キャッシュを含む。
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// errConfigurationMissing は認証情報未設定を表す。
var errConfigurationMissing = errors.New("API key is not set")

// FailureKind は生成API呼び出し失敗の分類。
// リトライ可否の判定と、リトライ枯渇後にユーザーへ提示する失敗カテゴリに使用する。
type FailureKind int

const (
	// FailureConfiguration は認証情報未設定。一時的な障害ではないためリトライしない。
	FailureConfiguration FailureKind = iota
	// FailureTimeout は試行単位のタイムアウト。リトライ対象。
	FailureTimeout
	// FailureTransport は接続失敗等のネットワーク層エラー。リトライ対象。
	FailureTransport
	// FailureMalformed は上流は応答したがレスポンス形状が不正。リトライ対象。
	FailureMalformed
)

// String は失敗分類の識別子を返す。メトリクスのラベルおよびエラーメッセージに使用する。
func (k FailureKind) String() string {
	switch k {
	case FailureConfiguration:
		return "configuration"
	case FailureTimeout:
		return "timeout"
	case FailureTransport:
		return "transport"
	case FailureMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Retryable は失敗分類がリトライ対象かを返す。
// 設定エラーのみ非対象（リトライで解消しない）。形状不正は上流の一時的な
// 不調の可能性があるため、リトライ目的ではトランスポート失敗と区別しない。
func (k FailureKind) Retryable() bool {
	return k != FailureConfiguration
}

// AttemptError は1回の試行の失敗を分類付きで表す。
type AttemptError struct {
	Kind FailureKind
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *AttemptError) Error() string {
	return fmt.Sprintf("generation attempt failed (%s): %v", e.Kind, e.Err)
}

// Unwrap はラップされた元エラーを返す。
func (e *AttemptError) Unwrap() error {
	return e.Err
}

// UpstreamError は全試行の枯渇を表す。最後に観測した失敗分類を保持する。
type UpstreamError struct {
	LastKind FailureKind
	Attempts int
	Err      error
}

// Error はerrorインターフェースを実装する。
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("generation failed after %d attempts (last: %s): %v", e.Attempts, e.LastKind, e.Err)
}

// Unwrap はラップされた元エラーを返す。
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// classifyTransportError はHTTPクライアントが返したエラーをタイムアウトと
// その他のトランスポート失敗に分類する。
func classifyTransportError(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureTransport
}
