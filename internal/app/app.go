package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/schoolprofile/internal/config"
	"github.com/hitoshi/schoolprofile/internal/handler"
	"github.com/hitoshi/schoolprofile/internal/logger"
	"github.com/hitoshi/schoolprofile/internal/metrics"
	"github.com/hitoshi/schoolprofile/internal/middleware"
	"github.com/hitoshi/schoolprofile/internal/model"
	"github.com/hitoshi/schoolprofile/internal/profile"
	"github.com/hitoshi/schoolprofile/internal/pronote"
	"github.com/hitoshi/schoolprofile/internal/security"
)

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// ログはwに出力する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envと環境変数から設定を読み込む
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでログを再設定する
	log := logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, log, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// outにはprofileコマンドの結果を、logOutには構造化ログを出力する。
// argsにはos.Args[1:]を渡す。
func Run(out, logOut io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, log, err := Init(logOut)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	svc, err := buildServices(cfg, log)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("portal_url", svc.portalURL.Redacted()),
		slog.String("timezone", cfg.PortalTimezone),
	)

	switch cmd {
	case CommandProfile:
		return runProfile(cfg, svc, out)
	default:
		return runServe(cfg, log, svc)
	}
}

// services はサブコマンド間で共有する依存関係をまとめたもの。
type services struct {
	portalURL *url.URL
	assembler *profile.Assembler
	registry  *prometheus.Registry
}

// buildServices はポータルクライアントからプロフィール組み立てまでの依存関係をワイヤリングする。
func buildServices(cfg *config.Config, log *slog.Logger) (*services, error) {
	// 1. ポータルURLの検証とHTTPクライアントの構築
	// クッキーは呼び出しごとにpronote.Clientが新しいCookieJarで保持する
	portalURL, httpClient, err := newPortalClient(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.PortalAllowPrivate {
		log.Warn("SSRF protection is disabled for the portal client",
			slog.String("portal_url", portalURL.Redacted()),
		)
	}

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. ポータルクライアントとプロフィール組み立て
	client := pronote.NewClient(httpClient, log, collector, portalURL, cfg.FetchMaxSize)
	students := profile.NewStudentBuilder(pronote.NewFileURLBuilder(portalURL))
	extractors := profile.NewExtractors(students, cfg.PortalLocation)
	assembler := profile.NewAssembler(client, extractors, security.NewTextSanitizer(), collector, log)

	return &services{
		portalURL: portalURL,
		assembler: assembler,
		registry:  registry,
	}, nil
}

// newPortalClient はポータルのベースURLを検証し、そのポータル用のHTTPクライアントを返す。
// PortalAllowPrivateが有効な場合は学校内ネットワーク上のポータルを想定し、SSRF保護を外す。
// 返すクライアントはCookieJarを持たない。
func newPortalClient(cfg *config.Config) (*url.URL, *http.Client, error) {
	guard := security.NewPortalGuard(cfg.PortalAllowedPorts...)

	if !cfg.PortalAllowPrivate {
		portalURL, err := guard.ValidatePortalURL(cfg.PortalURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid PORTAL_URL: %w", err)
		}
		return portalURL, guard.NewSafeClient(cfg.FetchTimeout, nil), nil
	}

	portalURL, err := url.Parse(cfg.PortalURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid PORTAL_URL: %w", err)
	}
	if portalURL.Scheme != "http" && portalURL.Scheme != "https" {
		return nil, nil, fmt.Errorf("invalid PORTAL_URL: disallowed scheme: %s", portalURL.Scheme)
	}
	if portalURL.Host == "" {
		return nil, nil, fmt.Errorf("invalid PORTAL_URL: empty host")
	}
	return portalURL, &http.Client{Timeout: cfg.FetchTimeout}, nil
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config, log *slog.Logger, svc *services) error {
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Assembler:         svc.assembler,
		MetricsHandler:    metrics.Handler(svc.registry),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.FetchTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	log.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// runProfile は環境変数で指定したセッションのプロフィールを取得し、JSONでoutに書き出す。
func runProfile(cfg *config.Config, svc *services, out io.Writer) error {
	session, err := sessionFromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	defer cancel()

	userProfile, err := svc.assembler.AssembleProfile(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to assemble profile: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(userProfile); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// sessionFromEnv はPRONOTE_SESSION_ID、PRONOTE_SPACE、PRONOTE_ROLEからセッションを組み立てる。
func sessionFromEnv() (model.Session, error) {
	id, err := positiveEnvInt("PRONOTE_SESSION_ID")
	if err != nil {
		return model.Session{}, err
	}
	space, err := positiveEnvInt("PRONOTE_SPACE")
	if err != nil {
		return model.Session{}, err
	}
	role := strings.ToLower(strings.TrimSpace(os.Getenv("PRONOTE_ROLE")))
	if role == "" {
		return model.Session{}, fmt.Errorf("PRONOTE_ROLE is required")
	}
	return model.Session{ID: id, Space: space, Role: model.Role(role)}, nil
}

func positiveEnvInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer: %q", key, v)
	}
	return n, nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
