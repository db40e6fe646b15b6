package market

import "time"

// MockQuotes は上流API利用不可時のフォールバック株価。
// 追跡銘柄の一部のみを持ち、エントリの無い銘柄はフォールバック時に省略される。
var MockQuotes = map[string]string{
	"AAPL": "180.25",
	"GOOG": "140.50",
	"MSFT": "375.80",
}

// MockNews は上流API利用不可時のフォールバックニュースを返す。
// 時刻は現在・1時間前・2時間前として生成する。
func MockNews(now time.Time) []NewsItem {
	return []NewsItem{
		{
			Title:   "Market Dynamics Analysis",
			Summary: "Today's market remains stable with tech stocks showing slight gains.",
			Time:    now.Format(timeLayout),
		},
		{
			Title:   "Economic Data Report",
			Summary: "Latest economic data shows steady growth in the economy.",
			Time:    now.Add(-1 * time.Hour).Format(timeLayout),
		},
		{
			Title:   "Industry Trend Analysis",
			Summary: "Technology sector leads the market, with new energy sector showing strong performance.",
			Time:    now.Add(-2 * time.Hour).Format(timeLayout),
		},
	}
}
