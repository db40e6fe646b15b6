package gemini

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/finman/internal/cache"
	"github.com/hitoshi/finman/internal/metrics"
	"github.com/hitoshi/finman/internal/prompt"
)

// Generator はプロンプトからテキストを生成するインターフェース。
// 利用側（advisorサービス）が依存するのはこのインターフェースのみ。
type Generator interface {
	// GenerateText はプロンプトに対する生成テキストを返す。
	// 失敗時は*UpstreamErrorまたは*AttemptError（設定エラー）を返す。
	GenerateText(ctx context.Context, p prompt.Prompt) (string, error)
}

// attempter は1回の試行を実行する内部インターフェース。テストで差し替える。
type attempter interface {
	Configured() bool
	Generate(ctx context.Context, promptText string) (string, *AttemptError)
}

// ResilientGenerator はワイヤクライアントをリトライとキャッシュで包む。
//
// 呼び出しの流れ:
//  1. キャッシュ照会（ヒット時はネットワーク試行なしで返す）
//  2. 認証情報チェック（未設定なら試行せず即失敗）
//  3. 最大maxRetries回の試行。失敗間は固定遅延で待機
//  4. 成功結果のみキャッシュに保存
type ResilientGenerator struct {
	client     attempter
	cache      *cache.LRU
	collector  metrics.MetricsCollector
	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration
	// sleepはテストから差し替え可能。contextキャンセルを尊重して待機する。
	sleep func(ctx context.Context, d time.Duration) error
}

// NewResilientGenerator は新しいResilientGeneratorを生成する。
// maxRetriesが0以下の場合は1として扱う（最低1回は試行する）。
func NewResilientGenerator(client *Client, lru *cache.LRU, collector metrics.MetricsCollector, logger *slog.Logger, maxRetries int, retryDelay time.Duration) *ResilientGenerator {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &ResilientGenerator{
		client:     client,
		cache:      lru,
		collector:  collector,
		logger:     logger,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		sleep:      sleepContext,
	}
}

// インターフェース実装の明示
var _ Generator = (*ResilientGenerator)(nil)

// GenerateText はキャッシュとリトライを介して生成テキストを取得する。
func (g *ResilientGenerator) GenerateText(ctx context.Context, p prompt.Prompt) (string, error) {
	key := p.CacheKey()
	if v, ok := g.cache.Get(key); ok {
		g.collector.RecordCacheHit()
		g.logger.Debug("生成キャッシュヒット", slog.String("template", p.Template.String()))
		return v, nil
	}
	g.collector.RecordCacheMiss()

	// 認証情報未設定はネットワーク試行もリトライもしない
	if !g.client.Configured() {
		err := &AttemptError{Kind: FailureConfiguration, Err: errConfigurationMissing}
		g.collector.RecordGenerationFailure(FailureConfiguration.String())
		return "", err
	}

	var lastErr *AttemptError
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		g.collector.RecordGenerationAttempt()
		start := time.Now()

		text, aerr := g.client.Generate(ctx, p.Text)
		if aerr == nil {
			g.collector.RecordGenerationSuccess(time.Since(start))
			if evicted := g.cache.Set(key, text); evicted {
				g.collector.RecordCacheEviction()
			}
			return text, nil
		}

		lastErr = aerr
		g.collector.RecordGenerationFailure(aerr.Kind.String())
		g.logger.Warn("生成試行失敗",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", g.maxRetries),
			slog.String("kind", aerr.Kind.String()),
			slog.String("error", aerr.Err.Error()))

		if !aerr.Kind.Retryable() {
			return "", aerr
		}
		if attempt < g.maxRetries {
			if err := g.sleep(ctx, g.retryDelay); err != nil {
				// 呼び出し側がキャンセルした場合はここで打ち切る
				return "", &UpstreamError{LastKind: lastErr.Kind, Attempts: attempt, Err: err}
			}
		}
	}

	return "", &UpstreamError{LastKind: lastErr.Kind, Attempts: g.maxRetries, Err: lastErr}
}

// sleepContext はcontextキャンセルを尊重してdだけ待機する。
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
