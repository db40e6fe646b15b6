package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/finman/internal/market"
	"github.com/hitoshi/finman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionConfig     middleware.SessionConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// サービス
	AdvisorService   AdvisorServiceInterface
	DashboardService market.DashboardService

	// 運用エンドポイント
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → Session → RateLimit(Global)
//
// /healthと/metricsはセッション・レート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	// --- 運用エンドポイント ---

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- APIルート ---
	// ミドルウェアスタック: Session → RateLimit(Global)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionConfig))
		r.Use(deps.RateLimiter.GlobalMiddleware())

		advisorHandler := NewAdvisorHandler(deps.AdvisorService)
		marketHandler := NewMarketHandler(deps.DashboardService)

		r.Route("/api/engagement", func(r chi.Router) {
			r.Get("/profile/questions", advisorHandler.GetProfileQuestions)

			// プロフィール系は専用レート制限を追加
			r.With(deps.RateLimiter.ProfileMiddleware()).Post("/profile", advisorHandler.AnalyzeProfile)
			r.With(deps.RateLimiter.ProfileMiddleware()).Post("/simulation", advisorHandler.Simulation)

			// チャットは専用レート制限を追加
			r.With(deps.RateLimiter.ChatMiddleware()).Post("/chat", advisorHandler.Chat)

			r.Post("/financial_advice", advisorHandler.FinancialAdvice)
			r.Post("/custom_plan", advisorHandler.CustomPlan)
			r.Post("/update_advice", advisorHandler.UpdateAdvice)
		})

		r.Get("/api/dashboard/update_data", marketHandler.UpdateData)
	})

	return r
}
