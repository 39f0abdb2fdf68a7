package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/hitoshi/prodman/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	HTTPMetrics       middleware.HTTPMetricsRecorder // nil可

	// ヘルスチェック
	HealthChecker HealthChecker

	// メトリクス公開（nilの場合は/metricsを公開しない）
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 商品
	ProductService ProductServiceInterface
	ProductMetrics ProductMetricsRecorder // nil可
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → Metrics
//
// 商品の読み取り（GET）は認証不要。書き込みはセッション必須で、
// SessionMiddleware → RateLimit(General) → RateLimit(Mutation) を通る。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルート共通のミドルウェア
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{deps.CORSAllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	productHandler := NewProductHandler(deps.ProductService, deps.ProductMetrics)

	// --- 認証不要のルート ---

	// ヘルスチェック
	r.Get("/health", NewHealthHandler(deps.HealthChecker))

	// Prometheusスクレイプ
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// 認証ルート
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// 商品の読み取り。セッションがあればログ用にユーザーIDを注入する。
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewOptionalSessionMiddleware(deps.SessionFinder))

		r.Get("/api/products", productHandler.ListProducts)
		r.Get("/api/products/{id}", productHandler.GetProduct)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 商品の書き込みには書き込み専用レート制限を追加
		r.With(deps.RateLimiter.MutationMiddleware()).Post("/api/products", productHandler.CreateProduct)
		r.With(deps.RateLimiter.MutationMiddleware()).Put("/api/products/{id}", productHandler.UpdateProduct)
		r.With(deps.RateLimiter.MutationMiddleware()).Delete("/api/products/{id}", productHandler.DeleteProduct)
	})

	return r
}

// NewHealthHandler はヘルスチェックエンドポイントのハンドラーを返す。
// DBへの疎通確認が取れれば200、失敗時は503を返す。
// GET /health
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}

		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
