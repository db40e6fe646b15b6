// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 生成クライアント・レートリミッタ・市場データサービスから利用する。
type MetricsCollector interface {
	RecordGenerationAttempt()
	RecordGenerationSuccess(duration time.Duration)
	RecordGenerationFailure(category string)
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheEviction()
	RecordRateLimitRejection(window string)
	RecordMarketFallback()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	genAttempts  prometheus.Counter
	genSuccess   prometheus.Counter
	genFailure   *prometheus.CounterVec
	genLatency   prometheus.Histogram
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	cacheEvicted prometheus.Counter
	rateLimited  *prometheus.CounterVec
	marketFallbk prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		genAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finman_generation_attempts_total",
			Help: "生成APIへのネットワーク試行の合計数",
		}),
		genSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finman_generation_success_total",
			Help: "生成API呼び出し成功の合計数",
		}),
		genFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finman_generation_failure_total",
			Help: "失敗分類別の生成API呼び出し失敗数",
		}, []string{"category"}),
		genLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "finman_generation_latency_seconds",
			Help:    "生成API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finman_cache_hits_total",
			Help: "生成結果キャッシュのヒット数",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finman_cache_misses_total",
			Help: "生成結果キャッシュのミス数",
		}),
		cacheEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finman_cache_evictions_total",
			Help: "生成結果キャッシュの退避数",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finman_rate_limit_rejected_total",
			Help: "ウィンドウ別のレート制限による拒否数",
		}, []string{"window"}),
		marketFallbk: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finman_market_fallback_total",
			Help: "市場データのモックフォールバック発生数",
		}),
	}

	reg.MustRegister(
		c.genAttempts,
		c.genSuccess,
		c.genFailure,
		c.genLatency,
		c.cacheHits,
		c.cacheMisses,
		c.cacheEvicted,
		c.rateLimited,
		c.marketFallbk,
	)

	return c
}

// RecordGenerationAttempt は生成APIへのネットワーク試行を記録する。
func (c *Collector) RecordGenerationAttempt() {
	c.genAttempts.Inc()
}

// RecordGenerationSuccess は生成API呼び出し成功とレイテンシを記録する。
func (c *Collector) RecordGenerationSuccess(duration time.Duration) {
	c.genSuccess.Inc()
	c.genLatency.Observe(duration.Seconds())
}

// RecordGenerationFailure は失敗分類付きで生成API呼び出し失敗を記録する。
func (c *Collector) RecordGenerationFailure(category string) {
	c.genFailure.WithLabelValues(category).Inc()
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordCacheEviction はキャッシュ退避を記録する。
func (c *Collector) RecordCacheEviction() {
	c.cacheEvicted.Inc()
}

// RecordRateLimitRejection はレート制限による拒否をウィンドウ種別付きで記録する。
func (c *Collector) RecordRateLimitRejection(window string) {
	c.rateLimited.WithLabelValues(window).Inc()
}

// RecordMarketFallback は市場データのモックフォールバックを記録する。
func (c *Collector) RecordMarketFallback() {
	c.marketFallbk.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
