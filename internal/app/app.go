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

	"github.com/hitoshi/ledgerman/internal/config"
	"github.com/hitoshi/ledgerman/internal/database"
	"github.com/hitoshi/ledgerman/internal/filestore"
	"github.com/hitoshi/ledgerman/internal/handler"
	"github.com/hitoshi/ledgerman/internal/ledger"
	"github.com/hitoshi/ledgerman/internal/logger"
	"github.com/hitoshi/ledgerman/internal/metrics"
	"github.com/hitoshi/ledgerman/internal/middleware"
	"github.com/hitoshi/ledgerman/internal/repository"
	"github.com/hitoshi/ledgerman/internal/viewer"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		// 設定が読めなくてもログは使えるようにしておく
		logger.SetupDefault(w, slog.LevelInfo)
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. 設定されたレベルでログを初期化する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

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
		slog.String("data_dir", cfg.DataDir),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandServe:
		return runServe(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	ledgerRepo := repository.NewPostgresLedgerRepo(db)
	viewerRepo := repository.NewPostgresViewerRepo(db)

	// 4. ドメインサービスの初期化
	ledgerService := ledger.NewService(ledgerRepo, collector)
	ledgerCache := ledger.NewCache(ledgerRepo, collector)
	viewerService := viewer.NewService(viewerRepo, ledgerRepo)

	// 5. キャッシュのウォームアップ
	initCtx, cancelInit := context.WithTimeout(context.Background(), cfg.CacheInitTimeout)
	defer cancelInit()
	if err := ledgerCache.Initialize(initCtx); err != nil {
		return fmt.Errorf("failed to initialize ledger cache: %w", err)
	}

	// 6. ファイルストアの初期化とサーバー状態の復元
	serializer, err := filestore.NewSerializer(cfg.FileFormat)
	if err != nil {
		return fmt.Errorf("failed to create serializer: %w", err)
	}
	store := filestore.NewStore(serializer, collector)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	stateFile := statePath(cfg.DataDir, cfg.FileFormat)
	if state := loadServerState(store, stateFile); state != nil {
		viewerService.RestoreOnline(state.toViewers())
		slog.Info("server state restored",
			slog.Int("online_viewers", len(state.OnlineViewers)),
			slog.Time("shutdown_at", state.ShutdownAt),
		)
	}

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigFromPerMinute(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:      slog.Default(),
		RateLimiter: rateLimiter,

		LedgerService: ledgerService,
		LedgerCache:   ledgerCache,
		ViewerService: viewerService,

		MetricsHandler: metrics.Handler(registry),
		HealthCheck: func(w http.ResponseWriter, r *http.Request) {
			if err := db.PingContext(r.Context()); err != nil {
				middleware.WriteStoreError(w, err)
				return
			}
			w.WriteHeader(http.StatusOK)
		},
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
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

	// 9. サーバー状態の保存
	if err := saveServerState(store, stateFile, viewerService.OnlineViewers()); err != nil {
		slog.Error("failed to save server state", slog.String("error", err.Error()))
	}
	store.Wait()

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
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
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
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
