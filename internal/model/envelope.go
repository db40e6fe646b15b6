package model

import "time"

// Envelope は全APIレスポンス共通のラッパー形式。
// 成功時はDataに本体を格納し、失敗時はMessageに人間可読な説明を格納する。
// 成功時でも警告がある場合はMessageを併記できる。
type Envelope struct {
	Success   bool   `json:"success"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
}

// NewSuccessEnvelope は成功レスポンスのEnvelopeを生成する。
func NewSuccessEnvelope(data any) Envelope {
	return Envelope{
		Success:   true,
		Timestamp: time.Now().Format(time.RFC3339),
		Data:      data,
	}
}

// NewSuccessEnvelopeWithWarning は警告メッセージ付きの成功レスポンスを生成する。
// 数値計算は成功したが付随する文章生成が失敗した場合などに使用する。
func NewSuccessEnvelopeWithWarning(data any, warning string) Envelope {
	return Envelope{
		Success:   true,
		Timestamp: time.Now().Format(time.RFC3339),
		Data:      data,
		Message:   warning,
	}
}

// NewFailureEnvelope は失敗レスポンスのEnvelopeを生成する。
// dataには代替ペイロード（モックデータ等）を渡せる。不要な場合はnilを渡す。
func NewFailureEnvelope(message string, data any) Envelope {
	return Envelope{
		Success:   false,
		Timestamp: time.Now().Format(time.RFC3339),
		Data:      data,
		Message:   message,
	}
}
