package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// generateRequest は生成APIリクエストのワイヤ形式。
type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// generateResponse は生成APIレスポンスのワイヤ形式。
// 形状検証に必要なフィールドのみ定義する。
type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}

// Client は生成APIのワイヤクライアント。1回の試行を実行し、失敗を分類する。
// リトライやキャッシュは行わない（ResilientGeneratorが担う）。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	apiKey     string
	timeout    time.Duration
}

// NewClient は新しいClientを生成する。
// httpClientには送信ガードで構築したクライアントを渡す。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		apiKey:     apiKey,
		timeout:    timeout,
	}
}

// Configured は認証情報が設定済みかを返す。
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Generate はプロンプトを生成APIへ1回送信し、抽出したテキストを返す。
// 失敗時は分類付きの*AttemptErrorを返す。
func (c *Client) Generate(ctx context.Context, promptText string) (string, *AttemptError) {
	if !c.Configured() {
		return "", &AttemptError{Kind: FailureConfiguration, Err: fmt.Errorf("API key is not set")}
	}

	reqURL, err := c.buildURL()
	if err != nil {
		return "", &AttemptError{Kind: FailureConfiguration, Err: fmt.Errorf("invalid endpoint: %w", err)}
	}

	payload := generateRequest{
		Contents: []content{{Parts: []part{{Text: promptText}}}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &AttemptError{Kind: FailureMalformed, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	// 試行単位のタイムアウト。親contextのキャンセルも伝播する。
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", &AttemptError{Kind: FailureTransport, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := classifyTransportError(err)
		c.logger.Warn("生成APIリクエスト失敗",
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()))
		return "", &AttemptError{Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	text, aerr := c.validateResponse(resp)
	if aerr != nil {
		c.logger.Warn("生成APIレスポンス検証失敗",
			slog.Int("status", resp.StatusCode),
			slog.String("error", aerr.Err.Error()))
		return "", aerr
	}
	return text, nil
}

// buildURL はエンドポイントにAPIキーをクエリパラメータとして付加する。
func (c *Client) buildURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// validateResponse はレスポンスの形状を検証し、生成テキストを抽出する。
// ステータス・Content-Type・JSON構造・テキスト存在のいずれかを満たさない場合は
// FailureMalformedとして扱う。
func (c *Client) validateResponse(resp *http.Response) (string, *AttemptError) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// エラー詳細はログ用途に限り、本文は読み捨てる
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &AttemptError{
			Kind: FailureMalformed,
			Err:  fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	ct := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil || !strings.Contains(mediaType, "application/json") {
		return "", &AttemptError{
			Kind: FailureMalformed,
			Err:  fmt.Errorf("unexpected content type: %q", ct),
		}
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &AttemptError{
			Kind: FailureMalformed,
			Err:  fmt.Errorf("failed to decode response: %w", err),
		}
	}

	if len(decoded.Candidates) == 0 {
		return "", &AttemptError{
			Kind: FailureMalformed,
			Err:  fmt.Errorf("response has no candidates"),
		}
	}
	parts := decoded.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].Text == "" {
		return "", &AttemptError{
			Kind: FailureMalformed,
			Err:  fmt.Errorf("candidate has no text part"),
		}
	}
	return parts[0].Text, nil
}
