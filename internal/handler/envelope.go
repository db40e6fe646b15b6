// Package handler はHTTPハンドラーとルーティングを提供する。
// 全エンドポイントの応答は統一エンベロープ形式で返す。
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/finman/internal/model"
)

// writeEnvelope は指定ステータスでエンベロープをJSONとして書き込む。
func writeEnvelope(w http.ResponseWriter, status int, env model.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

// writeSuccess は200の成功エンベロープを書き込む。
func writeSuccess(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, model.NewSuccessEnvelope(data))
}

// writeSuccessWithWarning は警告メッセージ付きの成功エンベロープを書き込む。
func writeSuccessWithWarning(w http.ResponseWriter, data any, warning string) {
	writeEnvelope(w, http.StatusOK, model.NewSuccessEnvelopeWithWarning(data, warning))
}

// writeError はサービス層のエラーを失敗エンベロープへ変換して書き込む。
// *model.APIErrorは保持するステータスで返し、それ以外は詳細を隠して500で返す。
func writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeEnvelope(w, apiErr.Status, model.NewFailureEnvelope(apiErr.Message, apiErr))
		return
	}

	writeEnvelope(w, http.StatusInternalServerError,
		model.NewFailureEnvelope("リクエストの処理中にエラーが発生しました。時間をおいて再度お試しください", nil))
}
