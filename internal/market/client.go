package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/finman/internal/security"
)

// ErrNotConfigured は市場データAPIの認証情報未設定を表す。
var ErrNotConfigured = errors.New("market API key is not set")

// ErrRateLimited は上流APIのレート制限通知（Noteフィールド）を表す。
var ErrRateLimited = errors.New("market API rate limit reached")

// Client は市場データAPI（Alpha Vantage互換）のワイヤクライアント。
// リトライは行わず、失敗は呼び出し側（Service）がフォールバックで吸収する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	apiKey     string
	timeout    time.Duration
	sanitizer  security.TextSanitizerService
}

// NewClient は新しいClientを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint, apiKey string, timeout time.Duration, sanitizer security.TextSanitizerService) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		apiKey:     apiKey,
		timeout:    timeout,
		sanitizer:  sanitizer,
	}
}

// Configured は認証情報が設定済みかを返す。
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// QuotePrice は指定銘柄の現在価格を取得する。
func (c *Client) QuotePrice(ctx context.Context, symbol string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	var decoded struct {
		GlobalQuote map[string]string `json:"Global Quote"`
		Note        string            `json:"Note"`
	}
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)
	if err := c.get(ctx, params, &decoded); err != nil {
		return "", err
	}

	if decoded.Note != "" {
		c.logger.Warn("市場データAPIレート制限", slog.String("note", decoded.Note))
		return "", ErrRateLimited
	}
	price, ok := decoded.GlobalQuote["05. price"]
	if !ok || price == "" {
		return "", fmt.Errorf("unexpected quote response for %s", symbol)
	}
	return price, nil
}

// News は金融ニュースを最大limit件取得する。
func (c *Client) News(ctx context.Context, limit int) ([]NewsItem, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var decoded struct {
		Feed []struct {
			Title         string `json:"title"`
			Summary       string `json:"summary"`
			TimePublished string `json:"time_published"`
		} `json:"feed"`
		Note string `json:"Note"`
	}
	params := url.Values{}
	params.Set("function", "NEWS_SENTIMENT")
	if err := c.get(ctx, params, &decoded); err != nil {
		return nil, err
	}

	if decoded.Note != "" {
		c.logger.Warn("市場データAPIレート制限", slog.String("note", decoded.Note))
		return nil, ErrRateLimited
	}
	if len(decoded.Feed) == 0 {
		return nil, fmt.Errorf("news response has no feed entries")
	}

	items := make([]NewsItem, 0, limit)
	for _, entry := range decoded.Feed {
		if len(items) >= limit {
			break
		}
		items = append(items, NewsItem{
			Title:   c.sanitizer.Sanitize(entry.Title),
			Summary: c.sanitizer.Sanitize(entry.Summary),
			Time:    formatPublishedTime(entry.TimePublished),
		})
	}
	return items, nil
}

// get はクエリパラメータ付きGETを実行し、JSONレスポンスをoutへデコードする。
func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	params.Set("apikey", c.apiKey)
	u.RawQuery = params.Encode()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// formatPublishedTime は上流の時刻表記（20060102T150405）をダッシュボード表記へ変換する。
// 解析できない場合は原文のまま返す。
func formatPublishedTime(raw string) string {
	t, err := time.Parse("20060102T150405", raw)
	if err != nil {
		return raw
	}
	return t.Format(timeLayout)
}
