// Package market は株価・金融ニュースの取得とダッシュボードデータの組み立てを提供する。
// 上流APIが利用不可の場合はRSSフィード、最終的にはモックデータへ段階的に縮退する。
package market

// NewsItem はダッシュボードに表示するニュース1件。
type NewsItem struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Time    string `json:"time"`
}

// Dashboard はダッシュボード更新APIの応答ペイロード。
type Dashboard struct {
	StockPrices map[string]string `json:"stock_prices"`
	News        []NewsItem        `json:"news"`
	Timestamp   string            `json:"timestamp"`
}

// DashboardSymbols はダッシュボードで追跡する米国主要銘柄。
var DashboardSymbols = []string{"AAPL", "MSFT", "AMZN", "GOOG", "META", "TSLA", "NVDA"}

// timeLayout はダッシュボード内の時刻表記。
const timeLayout = "2006-01-02 15:04:05"
