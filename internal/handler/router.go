package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/ledgerman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter

	// 台帳
	LedgerService LedgerServiceInterface
	LedgerCache   LedgerCacheInterface

	// 視聴者
	ViewerService ViewerServiceInterface

	// 監視
	MetricsHandler http.Handler
	HealthCheck    http.HandlerFunc
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → RateLimit
//
// 監視ルート（/healthz, /metrics）はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}

	ledgerHandler := NewLedgerHandler(deps.LedgerService, deps.LedgerCache)
	viewerHandler := NewViewerHandler(deps.ViewerService)

	// --- 監視ルート ---
	if deps.HealthCheck != nil {
		r.Get("/healthz", deps.HealthCheck)
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- APIルート ---
	// ミドルウェアスタック: RateLimit(General)
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		// 台帳管理
		r.Route("/api/ledgers", func(r chi.Router) {
			r.Get("/", ledgerHandler.ListLedgers)
			r.Post("/", ledgerHandler.CreateLedger)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", ledgerHandler.GetLedger)
				r.Patch("/", ledgerHandler.RenameLedger)
				r.Delete("/", ledgerHandler.DeleteLedger)

				// GET /api/ledgers/{id}/leaderboard - 台帳ごとのコイン上位者
				r.Get("/leaderboard", viewerHandler.Leaderboard)
			})
		})

		// 視聴者管理
		r.Route("/api/viewers", func(r chi.Router) {
			r.Put("/", viewerHandler.EnsureViewer)
			r.Get("/online", viewerHandler.ListOnline)

			r.Route("/{platform}/{id}", func(r chi.Router) {
				r.Delete("/online", viewerHandler.MarkOffline)
				r.Post("/coins/award", viewerHandler.AwardCoins)
				r.Post("/coins/spend", viewerHandler.SpendCoins)
				r.Post("/karma", viewerHandler.AdjustKarma)
				r.Put("/ledger", viewerHandler.AssignToLedger)
			})
		})
	})

	return r
}
