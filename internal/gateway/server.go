package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/ticktick-mcp-gateway/internal/audit"
	"github.com/nao1215/ticktick-mcp-gateway/internal/config"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/apierror"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/httpclient"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/middleware"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/oauth"
)

// 各種タイムアウト。
const (
	// shortRequestTimeout はトークン発行やヘルスチェックなど外部呼び出しの無いリクエストのタイムアウト。
	shortRequestTimeout = 5 * time.Second
	// readHeaderTimeout はリクエストヘッダー読み込みのタイムアウト。
	readHeaderTimeout = 10 * time.Second
	// shutdownTimeout はグレースフルシャットダウンの待ち時間。
	shutdownTimeout = 10 * time.Second
)

// Server はOAuth2ゲートウェイのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg は起動時に読み込んだ不変の設定。
	cfg *config.Config
	// store は登録済みクライアントの資格情報。
	store *oauth.CredentialStore
	// issuer はアクセストークンの発行者。
	issuer *oauth.Issuer
	// validator はBearerトークンの検証者。
	validator *oauth.Validator
	// upstream は内部のツール実行エンドポイントへのクライアント。
	upstream *httpclient.Client
	// forwarder は保護されたリクエストを上流へ中継する。
	forwarder *Forwarder
	// metrics はPrometheusのメトリクス。
	metrics *Metrics
	// recorder は監査イベントの記録先。
	recorder audit.Recorder
	// tokenLimiter はトークン発行の送信元IPごとのレート制限。
	tokenLimiter *middleware.KeyRateLimiter
	// closers はClose時に閉じるリソース。
	closers []io.Closer
	// streamCtx はシャットダウン時にSSEストリームを打ち切るためのコンテキスト。
	streamCtx     context.Context
	cancelStreams context.CancelFunc
	closeOnce     sync.Once
}

// Option はServerの生成オプション。
type Option func(*serverOptions)

type serverOptions struct {
	now      func() time.Time
	recorder audit.Recorder
}

// WithClock はトークンの発行・検証に使う現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(o *serverOptions) {
		o.now = now
	}
}

// WithRecorder は監査イベントの記録先を指定する。指定した場合はAUDIT_DB_PATHを無視する。
func WithRecorder(r audit.Recorder) Option {
	return func(o *serverOptions) {
		o.recorder = r
	}
}

// NewServer は新しいゲートウェイサーバーを生成する。
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	o := serverOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	store, err := oauth.NewCredentialStore(cfg.Clients)
	if err != nil {
		return nil, fmt.Errorf("資格情報の読み込みに失敗: %w", err)
	}
	if store.Len() == 0 {
		return nil, config.ErrNoClients
	}

	upstream, err := httpclient.New(cfg.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("上流クライアントの生成に失敗: %w", err)
	}
	upstream.SetPingTimeout(cfg.ReadyTimeout)

	tokenOpts := []oauth.Option{
		oauth.WithClock(o.now),
		oauth.WithIssuerName(cfg.TokenIssuer),
		oauth.WithLeeway(cfg.ClockSkew),
	}

	s := &Server{
		cfg:          cfg,
		store:        store,
		issuer:       oauth.NewIssuer(store, cfg.SigningKey, cfg.TokenTTL, tokenOpts...),
		validator:    oauth.NewValidator(cfg.SigningKey, tokenOpts...),
		upstream:     upstream,
		forwarder:    NewForwarder(upstream),
		metrics:      NewMetrics(),
		tokenLimiter: middleware.NewKeyRateLimiter(cfg.TokenRateLimit, cfg.TokenRateBurst),
	}
	s.streamCtx, s.cancelStreams = context.WithCancel(context.Background())

	switch {
	case o.recorder != nil:
		s.recorder = o.recorder
	case cfg.AuditDBPath != "":
		auditStore, err := audit.Open(context.Background(), cfg.AuditDBPath)
		if err != nil {
			return nil, fmt.Errorf("監査ログの初期化に失敗: %w", err)
		}
		s.closers = append(s.closers, auditStore)
		s.recorder = audit.Logged{Recorder: auditStore}
		log.Printf("[Audit] 監査ログを記録します: %s", cfg.AuditDBPath)
	default:
		s.recorder = audit.Nop{}
	}

	router := gin.New()
	router.RedirectTrailingSlash = false
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	s.router = router
	s.setupRoutes()

	return s, nil
}

// Handler はゲートウェイのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes はルーティングを設定する。
func (s *Server) setupRoutes() {
	// ディスカバリ（認証不要）
	s.router.GET("/", s.handleRoot())
	wellKnown := s.router.Group("/.well-known")
	{
		wellKnown.GET("/mcp.json", s.handleMCPMetadata())
		wellKnown.GET("/oauth-authorization-server", s.handleAuthorizationServerMetadata())
		wellKnown.GET("/oauth-protected-resource", s.handleProtectedResourceMetadata())
	}

	// トークン発行
	s.router.POST("/oauth/token",
		s.countTokenRequests(),
		middleware.RateLimit(s.tokenLimiter),
		middleware.Timeout(shortRequestTimeout),
		s.handleToken(),
	)

	// ヘルスチェック
	s.router.GET("/health", middleware.Timeout(shortRequestTimeout), s.handleHealth())
	s.router.GET("/ready", middleware.Timeout(shortRequestTimeout), s.handleReady())

	if s.cfg.MetricsEnabled {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	// 認証必須のMCPエンドポイント
	auth := middleware.BearerAuth(s.validator)
	discrete := middleware.Timeout(s.cfg.UpstreamTimeout)
	s.router.GET("/sse", s.observe(routeSSE), auth, s.handleStream())
	s.router.POST("/sse", s.observe(routeSSE), auth, discrete, s.handleForward())
	s.router.POST("/messages", s.observe(routeMessages), auth, discrete, s.handleForward())
	// 上流が通知するエンドポイントは末尾スラッシュ付きの場合がある
	s.router.POST("/messages/", s.observe(routeMessages), auth, discrete, s.handleForward())

	s.router.NoRoute(func(c *gin.Context) {
		apierror.Abort(c, apierror.ErrNotFound)
	})
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
// シャットダウン時に開いているSSEストリームは打ち切る。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	// SSEは終わらないため、Shutdown開始と同時に打ち切る
	srv.RegisterOnShutdown(s.cancelStreams)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("シャットダウンに失敗: %w", err)
	}
	return nil
}

// Close はサーバーが保持するリソースを解放する。
func (s *Server) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		s.cancelStreams()
		s.upstream.CloseIdleConnections()
		for _, c := range s.closers {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
