package gateway

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nao1215/authgate/pkg/apperr"
	"github.com/nao1215/authgate/pkg/config"
	"github.com/nao1215/authgate/pkg/httpclient"
	"github.com/nao1215/authgate/pkg/middleware"
)

// serviceName はヘルスチェックとメトリクスで使うサービス名。
const serviceName = "api-gateway"

// Server はAPI GatewayサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// addr はサーバーのリッスンアドレス。
	addr string
	// env はヘルスチェックで返す環境名。
	env string
	// authService は認証サービスへのクライアント。
	authService *httpclient.Client
	// userService はプロフィールサービスへのクライアント。
	userService *httpclient.Client
	// metrics はHTTPメトリクス。
	metrics *middleware.Metrics
	// upstreamFailures は上流に到達できなかった回数。
	upstreamFailures *prometheus.CounterVec
}

// NewServer は新しいGatewayサーバーを生成する。
// 上流への接続はプロセス全体で1つのHTTPクライアントを共有する。
func NewServer(cfg config.Gateway) *Server {
	hc := httpclient.NewHTTPClient(httpclient.DefaultTimeout)
	return newServer(cfg.Server,
		httpclient.New(cfg.AuthServiceURL, httpclient.WithHTTPClient(hc)),
		httpclient.New(cfg.UserServiceURL, httpclient.WithHTTPClient(hc)),
		gin.Logger(),
	)
}

// newServer は依存を注入してサーバーを組み立てる。
func newServer(cfg config.Server, authService, userService *httpclient.Client, extra ...gin.HandlerFunc) *Server {
	router := gin.New()
	metrics := middleware.NewMetrics(serviceName)
	router.Use(extra...)
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(metrics.Middleware())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	upstreamFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_upstream_failures_total",
		Help: "Upstream calls that could not be completed.",
	}, []string{"upstream"})
	metrics.Registry().MustRegister(upstreamFailures)

	s := &Server{
		router:           router,
		addr:             cfg.Addr(),
		env:              cfg.Env,
		authService:      authService,
		userService:      userService,
		metrics:          metrics,
		upstreamFailures: upstreamFailures,
	}
	s.setupRoutes()
	return s
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(s.addr)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// メソッドの判定はForwardで行うため、すべてのメソッドを受け付ける
	s.router.Any("/auth/*path", s.handleProxy("auth", s.authService))
	s.router.Any("/users/*path", s.handleProxy("users", s.userService))

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName, "environment": s.env})
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// handleProxy は指定された上流サービスにリクエストを転送するハンドラを返す。
func (s *Server) handleProxy(name string, upstream *httpclient.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		pr, err := newProxyRequest(c, c.Param("path"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		resp, err := Forward(c.Request.Context(), upstream, pr)
		if err != nil {
			if apperr.Is(err, apperr.KindUpstreamUnavailable) {
				s.upstreamFailures.WithLabelValues(name).Inc()
				log.Printf("プロキシエラー: request_id=%s method=%s url=%s error=%v",
					middleware.GetRequestID(c), pr.Method, upstream.URL(pr.Path), errors.Unwrap(err))
			}
			c.JSON(apperr.Status(apperr.KindOf(err)), gin.H{"error": apperr.Message(err)})
			return
		}
		writeUpstreamResponse(c, resp)
	}
}
