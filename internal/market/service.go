package market

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/finman/internal/metrics"
)

// newsLimit はダッシュボードに表示するニュースの最大件数。
const newsLimit = 5

// fallbackWarning はフォールバックデータ使用時にユーザーへ提示する警告。
const fallbackWarning = "最新の市場データを取得できなかったため、参考データを表示しています"

// DashboardService はダッシュボードデータ取得のインターフェース。
type DashboardService interface {
	// UpdateData は株価とニュースを集約したダッシュボードを返す。
	// 上流が利用不可の場合もフォールバックデータで必ず成功し、
	// フォールバックを使用した場合は警告メッセージを返す。
	UpdateData(ctx context.Context) (Dashboard, string)
}

// Service はDashboardServiceの実装。
// 株価は銘柄ごとに上流API→モックの順、ニュースは上流API→RSSフィード→モックの順で縮退する。
type Service struct {
	client    *Client
	feeds     *FeedReader
	collector metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time
}

// NewService は新しいServiceを生成する。
func NewService(client *Client, feeds *FeedReader, collector metrics.MetricsCollector, logger *slog.Logger) *Service {
	return &Service{
		client:    client,
		feeds:     feeds,
		collector: collector,
		logger:    logger,
		now:       time.Now,
	}
}

// インターフェース実装の明示
var _ DashboardService = (*Service)(nil)

// UpdateData は株価とニュースを集約したダッシュボードを返す。
func (s *Service) UpdateData(ctx context.Context) (Dashboard, string) {
	prices, pricesFallback := s.stockPrices(ctx)
	news, newsFallback := s.news(ctx)

	if pricesFallback || newsFallback {
		s.collector.RecordMarketFallback()
	}

	dashboard := Dashboard{
		StockPrices: prices,
		News:        news,
		Timestamp:   s.now().Format(timeLayout),
	}
	if pricesFallback || newsFallback {
		return dashboard, fallbackWarning
	}
	return dashboard, ""
}

// stockPrices は追跡銘柄の価格を集める。取得できない銘柄はモック価格で補い、
// モック価格も無い銘柄はスキップする。
func (s *Service) stockPrices(ctx context.Context) (map[string]string, bool) {
	prices := make(map[string]string, len(DashboardSymbols))
	fallback := false
	for _, symbol := range DashboardSymbols {
		price, err := s.client.QuotePrice(ctx, symbol)
		if err != nil {
			s.logger.Warn("株価取得失敗",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()))
			fallback = true
			if mock, ok := MockQuotes[symbol]; ok {
				prices[symbol] = mock
			}
			continue
		}
		prices[symbol] = price
	}
	return prices, fallback
}

// news は上流API→RSSフィード→モックの順にニュースを取得する。
func (s *Service) news(ctx context.Context) ([]NewsItem, bool) {
	items, err := s.client.News(ctx, newsLimit)
	if err == nil && len(items) > 0 {
		return items, false
	}
	if err != nil {
		s.logger.Warn("ニュース取得失敗", slog.String("error", err.Error()))
	}

	if s.feeds != nil {
		if feedItems := s.feeds.Fetch(ctx, newsLimit); len(feedItems) > 0 {
			return feedItems, true
		}
	}
	return MockNews(s.now()), true
}
