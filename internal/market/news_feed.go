package market

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/finman/internal/security"
	"github.com/mmcdole/gofeed"
)

// FeedReader は設定されたRSS/AtomフィードからニュースをPullする代替ソース。
// 市場データAPIが利用不可のとき、モックデータの前段フォールバックとして使用する。
type FeedReader struct {
	parser    *gofeed.Parser
	sanitizer security.TextSanitizerService
	logger    *slog.Logger
	urls      []string
}

// NewFeedReader は新しいFeedReaderを生成する。
// httpClientには送信ガードで構築したクライアントを渡す。
func NewFeedReader(httpClient *http.Client, sanitizer security.TextSanitizerService, logger *slog.Logger, urls []string) *FeedReader {
	parser := gofeed.NewParser()
	parser.Client = httpClient
	return &FeedReader{
		parser:    parser,
		sanitizer: sanitizer,
		logger:    logger,
		urls:      urls,
	}
}

// Fetch は設定済みフィードを順に読み、最大limit件のニュースを返す。
// 個々のフィードの失敗はログに残してスキップする。
func (r *FeedReader) Fetch(ctx context.Context, limit int) []NewsItem {
	items := make([]NewsItem, 0, limit)
	for _, feedURL := range r.urls {
		if len(items) >= limit {
			break
		}
		feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			r.logger.Warn("ニュースフィード取得失敗",
				slog.String("url", feedURL),
				slog.String("error", err.Error()))
			continue
		}
		for _, entry := range feed.Items {
			if len(items) >= limit {
				break
			}
			item := NewsItem{
				Title:   r.sanitizer.Sanitize(entry.Title),
				Summary: r.sanitizer.Sanitize(entry.Description),
			}
			if entry.PublishedParsed != nil {
				item.Time = entry.PublishedParsed.Format(timeLayout)
			}
			// タイトルの無いエントリはダッシュボードに出せない
			if item.Title == "" {
				continue
			}
			items = append(items, item)
		}
	}
	return items
}
