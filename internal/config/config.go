// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// デフォルトの外部APIエンドポイント。
const (
	DefaultGeminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent"
	DefaultMarketAPIURL = "https://www.alphavantage.co/query"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
//
// GEMINI_API_KEY と ALPHA_VANTAGE_API_KEY は意図的に必須ではない。
// 未設定の場合、生成系はConfigurationError経由のフォールバック応答、
// 市場データ系はモックデータで縮退運転する（起動失敗にはしない）。
// プロキシは標準のHTTP_PROXY/HTTPS_PROXY環境変数経由でhttp.Transportが解釈する。
type Config struct {
	// Generation API
	GeminiAPIKey  string
	GeminiAPIURL  string
	GeminiTimeout time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	CacheCapacity int

	// Market Data API
	MarketAPIKey  string
	MarketAPIURL  string
	MarketTimeout time.Duration
	NewsFeedURLs  []string

	// Database（未設定の場合はインメモリのプロフィールストアを使用）
	DatabaseURL string

	// Session
	SessionMaxAge int

	// Rate Limit
	RateLimitDaily         int
	RateLimitHourly        int
	RateLimitProfilePerMin int
	RateLimitChatPerMin    int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// すべての項目にデフォルト値があるため、環境変数なしでも起動できる。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiAPIURL = getEnvString("GEMINI_API_URL", DefaultGeminiAPIURL)
	cfg.GeminiTimeout = getEnvDuration("GEMINI_TIMEOUT", 30*time.Second)
	cfg.MaxRetries = getEnvInt("MAX_RETRIES", 3)
	cfg.RetryDelay = getEnvDuration("RETRY_DELAY", 2*time.Second)
	cfg.CacheCapacity = getEnvInt("CACHE_CAPACITY", 128)

	cfg.MarketAPIKey = os.Getenv("ALPHA_VANTAGE_API_KEY")
	cfg.MarketAPIURL = getEnvString("MARKET_API_URL", DefaultMarketAPIURL)
	cfg.MarketTimeout = getEnvDuration("MARKET_TIMEOUT", 10*time.Second)
	cfg.NewsFeedURLs = getEnvStringList("NEWS_FEED_URLS")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)

	cfg.RateLimitDaily = getEnvInt("RATE_LIMIT_DAILY", 200)
	cfg.RateLimitHourly = getEnvInt("RATE_LIMIT_HOURLY", 50)
	cfg.RateLimitProfilePerMin = getEnvInt("RATE_LIMIT_PROFILE_PER_MIN", 10)
	cfg.RateLimitChatPerMin = getEnvInt("RATE_LIMIT_CHAT_PER_MIN", 20)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvStringList はカンマ区切りの環境変数を文字列スライスに分解する。
// 空要素は除外する。未設定の場合はnilを返す。
func getEnvStringList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var list []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			list = append(list, s)
		}
	}
	return list
}
