// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/finman/internal/advisor"
	"github.com/hitoshi/finman/internal/cache"
	"github.com/hitoshi/finman/internal/config"
	"github.com/hitoshi/finman/internal/database"
	"github.com/hitoshi/finman/internal/gemini"
	"github.com/hitoshi/finman/internal/handler"
	"github.com/hitoshi/finman/internal/logger"
	"github.com/hitoshi/finman/internal/market"
	"github.com/hitoshi/finman/internal/metrics"
	"github.com/hitoshi/finman/internal/middleware"
	"github.com/hitoshi/finman/internal/repository"
	"github.com/hitoshi/finman/internal/security"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 2. 送信ガードの初期化とエンドポイント検証
	guard := security.NewOutboundGuard()
	if err := guard.ValidateEndpoint(cfg.GeminiAPIURL); err != nil {
		return fmt.Errorf("invalid generation API endpoint: %w", err)
	}
	if err := guard.ValidateEndpoint(cfg.MarketAPIURL); err != nil {
		return fmt.Errorf("invalid market API endpoint: %w", err)
	}
	feedURLs := make([]string, 0, len(cfg.NewsFeedURLs))
	for _, u := range cfg.NewsFeedURLs {
		if err := guard.ValidateEndpoint(u); err != nil {
			slog.Warn("ニュースフィードURLを無視します",
				slog.String("url", u),
				slog.String("error", err.Error()))
			continue
		}
		feedURLs = append(feedURLs, u)
	}

	// 3. プロファイルリポジトリの初期化
	// DATABASE_URL未設定時はインメモリストアで起動する
	var profileRepo repository.ProfileRepository
	if cfg.DatabaseURL != "" {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		slog.Info("database connection established")
		profileRepo = repository.NewPostgresProfileRepo(db)
	} else {
		slog.Warn("DATABASE_URL未設定のためインメモリのプロファイルストアを使用します")
		profileRepo = repository.NewMemoryProfileRepo()
	}

	// 4. 生成クライアントの初期化
	if cfg.GeminiAPIKey == "" {
		slog.Warn("GEMINI_API_KEY未設定のため生成APIはフォールバック応答で動作します")
	}
	geminiClient := gemini.NewClient(
		guard.NewSafeClient(cfg.GeminiTimeout),
		slog.Default(),
		cfg.GeminiAPIURL,
		cfg.GeminiAPIKey,
		cfg.GeminiTimeout,
	)
	generator := gemini.NewResilientGenerator(
		geminiClient,
		cache.NewLRU(cfg.CacheCapacity),
		collector,
		slog.Default(),
		cfg.MaxRetries,
		cfg.RetryDelay,
	)

	// 5. ドメインサービスの初期化
	sanitizer := security.NewTextSanitizer()
	advisorService := advisor.NewService(generator, profileRepo, slog.Default())

	marketClient := market.NewClient(
		guard.NewSafeClient(cfg.MarketTimeout),
		slog.Default(),
		cfg.MarketAPIURL,
		cfg.MarketAPIKey,
		cfg.MarketTimeout,
		sanitizer,
	)
	var feedReader *market.FeedReader
	if len(feedURLs) > 0 {
		feedReader = market.NewFeedReader(
			guard.NewSafeClient(cfg.MarketTimeout), sanitizer, slog.Default(), feedURLs,
		)
	}
	dashboardService := market.NewService(marketClient, feedReader, collector, slog.Default())

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(
		cfg.RateLimitDaily,
		cfg.RateLimitHourly,
		cfg.RateLimitProfilePerMin,
		cfg.RateLimitChatPerMin,
	), collector)
	defer rateLimiter.Stop()

	sessionConfig := middleware.DefaultSessionConfig()
	sessionConfig.MaxAge = cfg.SessionMaxAge
	sessionConfig.Secure = cfg.CookieSecure
	sessionConfig.Domain = cfg.CookieDomain

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		SessionConfig:     sessionConfig,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		AdvisorService:    advisorService,
		DashboardService:  dashboardService,
		MetricsHandler:    metrics.Handler(registry),
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// 生成APIのリトライ予算（最大3試行 × 30秒 + 待機）を収容できる長さにする
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migration")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
