package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/finman/internal/metrics"
	"github.com/hitoshi/finman/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
// 全エンドポイント共通の日次・時間クォータと、エンドポイント種別ごとの
// 分単位クォータを独立に管理する。
type RateLimiterConfig struct {
	DailyRate       rate.Limit    // 共通クォータ（日次）のレート（req/sec）
	DailyBurst      int           // 共通クォータ（日次）のバーストサイズ
	HourlyRate      rate.Limit    // 共通クォータ（時間）のレート（req/sec）
	HourlyBurst     int           // 共通クォータ（時間）のバーストサイズ
	ProfileRate     rate.Limit    // プロファイル系エンドポイントのレート（req/sec）
	ProfileBurst    int           // プロファイル系エンドポイントのバーストサイズ
	ChatRate        rate.Limit    // チャットエンドポイントのレート（req/sec）
	ChatBurst       int           // チャットエンドポイントのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// NewRateLimiterConfig はクォータ値（日次・時間・分単位）からレート制限設定を構築する。
// 例: daily=200, hourly=50, profilePerMin=10, chatPerMin=20
func NewRateLimiterConfig(daily, hourly, profilePerMin, chatPerMin int) RateLimiterConfig {
	return RateLimiterConfig{
		DailyRate:       rate.Limit(float64(daily) / (24 * 60 * 60)),
		DailyBurst:      daily,
		HourlyRate:      rate.Limit(float64(hourly) / (60 * 60)),
		HourlyBurst:     hourly,
		ProfileRate:     rate.Limit(float64(profilePerMin) / 60),
		ProfileBurst:    profilePerMin,
		ChatRate:        rate.Limit(float64(chatPerMin) / 60),
		ChatBurst:       chatPerMin,
		CleanupInterval: 5 * time.Minute,
	}
}

// clientLimiter はクライアントごとのリミッターとアクセス時刻を保持する。
// 共通クォータは日次・時間の両方を通過しなければならない。
type clientLimiter struct {
	daily      *rate.Limiter
	hourly     *rate.Limiter
	lastAccess time.Time
}

// classLimiter はエンドポイント種別ごとのリミッターとアクセス時刻を保持する。
type classLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はクライアントごとのレート制限を管理する。
// クライアント識別にはセッションIDを使用する（SessionMiddlewareの後に配置）。
type RateLimiter struct {
	config    RateLimiterConfig
	collector metrics.MetricsCollector

	globalMu       sync.RWMutex
	globalLimiters map[string]*clientLimiter

	profileMu       sync.RWMutex
	profileLimiters map[string]*classLimiter

	chatMu       sync.RWMutex
	chatLimiters map[string]*classLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig, collector metrics.MetricsCollector) *RateLimiter {
	rl := &RateLimiter{
		config:          config,
		collector:       collector,
		globalLimiters:  make(map[string]*clientLimiter),
		profileLimiters: make(map[string]*classLimiter),
		chatLimiters:    make(map[string]*classLimiter),
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GlobalMiddleware は全エンドポイント共通のレート制限ミドルウェアを返す。
// 日次と時間の両クォータを満たさないリクエストは429で拒否する。
func (rl *RateLimiter) GlobalMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientIdentity(r)

			cl := rl.getOrCreateGlobalLimiter(clientID)

			if !cl.daily.Allow() {
				rl.reject(w, clientID, "daily", rl.config.DailyRate)
				return
			}
			if !cl.hourly.Allow() {
				rl.reject(w, clientID, "hourly", rl.config.HourlyRate)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ProfileMiddleware はプロファイル系エンドポイント専用のレート制限ミドルウェアを返す。
// 共通クォータとは独立に動作する。
func (rl *RateLimiter) ProfileMiddleware() func(next http.Handler) http.Handler {
	return rl.classMiddleware("profile", rl.config.ProfileRate, rl.getOrCreateProfileLimiter)
}

// ChatMiddleware はチャットエンドポイント専用のレート制限ミドルウェアを返す。
// 共通クォータとは独立に動作する。
func (rl *RateLimiter) ChatMiddleware() func(next http.Handler) http.Handler {
	return rl.classMiddleware("chat", rl.config.ChatRate, rl.getOrCreateChatLimiter)
}

func (rl *RateLimiter) classMiddleware(window string, limit rate.Limit, lookup func(string) *rate.Limiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientIdentity(r)

			if !lookup(clientID).Allow() {
				rl.reject(w, clientID, window, limit)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIdentity はレート制限のクライアント識別子を返す。
// クライアントがCookieで再提示したセッションIDのみを信頼する。新規発行直後の
// IDで数えると、Cookieを捨て続けるクライアントがリクエストごとに新しい
// クォータを得てしまうため、その場合はリモートアドレス（ポート除く）で数える。
func clientIdentity(r *http.Request) string {
	if SessionReplayedFromContext(r.Context()) {
		if sessionID, err := SessionIDFromContext(r.Context()); err == nil {
			return sessionID
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// GlobalLimiterCount は現在管理されている共通クォータリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GlobalLimiterCount() int {
	rl.globalMu.RLock()
	defer rl.globalMu.RUnlock()
	return len(rl.globalLimiters)
}

// getOrCreateGlobalLimiter はクライアントの共通クォータリミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateGlobalLimiter(sessionID string) *clientLimiter {
	rl.globalMu.RLock()
	cl, exists := rl.globalLimiters[sessionID]
	rl.globalMu.RUnlock()

	if exists {
		rl.globalMu.Lock()
		cl.lastAccess = time.Now()
		rl.globalMu.Unlock()
		return cl
	}

	rl.globalMu.Lock()
	defer rl.globalMu.Unlock()

	// ダブルチェック
	if cl, exists := rl.globalLimiters[sessionID]; exists {
		cl.lastAccess = time.Now()
		return cl
	}

	cl = &clientLimiter{
		daily:      rate.NewLimiter(rl.config.DailyRate, rl.config.DailyBurst),
		hourly:     rate.NewLimiter(rl.config.HourlyRate, rl.config.HourlyBurst),
		lastAccess: time.Now(),
	}
	rl.globalLimiters[sessionID] = cl

	return cl
}

// getOrCreateProfileLimiter はクライアントのプロファイル系リミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateProfileLimiter(sessionID string) *rate.Limiter {
	return getOrCreateClassLimiter(&rl.profileMu, rl.profileLimiters, sessionID, rl.config.ProfileRate, rl.config.ProfileBurst)
}

// getOrCreateChatLimiter はクライアントのチャットリミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateChatLimiter(sessionID string) *rate.Limiter {
	return getOrCreateClassLimiter(&rl.chatMu, rl.chatLimiters, sessionID, rl.config.ChatRate, rl.config.ChatBurst)
}

func getOrCreateClassLimiter(mu *sync.RWMutex, limiters map[string]*classLimiter, sessionID string, limit rate.Limit, burst int) *rate.Limiter {
	mu.RLock()
	cl, exists := limiters[sessionID]
	mu.RUnlock()

	if exists {
		mu.Lock()
		cl.lastAccess = time.Now()
		mu.Unlock()
		return cl.limiter
	}

	mu.Lock()
	defer mu.Unlock()

	// ダブルチェック
	if cl, exists := limiters[sessionID]; exists {
		cl.lastAccess = time.Now()
		return cl.limiter
	}

	limiter := rate.NewLimiter(limit, burst)
	limiters[sessionID] = &classLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2

	now := time.Now()

	rl.globalMu.Lock()
	for sessionID, cl := range rl.globalLimiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.globalLimiters, sessionID)
		}
	}
	rl.globalMu.Unlock()

	cleanupClassLimiters(&rl.profileMu, rl.profileLimiters, now, ttl)
	cleanupClassLimiters(&rl.chatMu, rl.chatLimiters, now, ttl)
}

func cleanupClassLimiters(mu *sync.RWMutex, limiters map[string]*classLimiter, now time.Time, ttl time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	for sessionID, cl := range limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(limiters, sessionID)
		}
	}
}

// reject は429 Too Many Requestsレスポンスを書き込み、拒否を記録する。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func (rl *RateLimiter) reject(w http.ResponseWriter, clientID, window string, limit rate.Limit) {
	rl.collector.RecordRateLimitRejection(window)
	slog.Warn("rate limit exceeded",
		slog.String("client_id", clientID),
		slog.String("window", window),
	)

	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(limit)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	apiErr := model.NewRateLimitError()

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(model.NewFailureEnvelope(apiErr.Message, apiErr))
}
