package handler

import (
	"net/http"

	"github.com/hitoshi/finman/internal/market"
)

// MarketHandler はダッシュボード関連のHTTPハンドラー。
type MarketHandler struct {
	service market.DashboardService
}

// NewMarketHandler はMarketHandlerを生成する。
func NewMarketHandler(service market.DashboardService) *MarketHandler {
	return &MarketHandler{service: service}
}

// UpdateData は株価とニュースを集約したダッシュボードデータを返す。
// 上流が利用不可の場合もフォールバックデータで成功し、警告メッセージを併記する。
// GET /api/dashboard/update_data
func (h *MarketHandler) UpdateData(w http.ResponseWriter, r *http.Request) {
	dashboard, warning := h.service.UpdateData(r.Context())
	if warning != "" {
		writeSuccessWithWarning(w, dashboard, warning)
		return
	}
	writeSuccess(w, dashboard)
}
