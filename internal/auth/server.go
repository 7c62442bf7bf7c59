package auth

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/authgate/pkg/apperr"
	"github.com/nao1215/authgate/pkg/config"
	"github.com/nao1215/authgate/pkg/database"
	"github.com/nao1215/authgate/pkg/middleware"
	"github.com/nao1215/authgate/pkg/token"
)

// serviceName はヘルスチェックとメトリクスで使うサービス名。
const serviceName = "auth-service"

// Server は認証サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// addr はサーバーのリッスンアドレス。
	addr string
	// env はヘルスチェックで返す環境名。
	env string
	// db はデータベース接続。テストではnil。
	db *database.DB
	// service は登録・ログイン・検証のロジック。
	service *Service
	// authority はトークンの検証に使う。
	authority *token.Authority
	// metrics はHTTPメトリクス。
	metrics *middleware.Metrics
}

// NewServer は新しい認証サーバーを生成する。
// データベースへの接続とマイグレーションを行う。
func NewServer(ctx context.Context, cfg config.Auth) (*Server, error) {
	db, err := database.Open(ctx, cfg.DatabaseURL, migrations())
	if err != nil {
		return nil, fmt.Errorf("データベースの初期化に失敗: %w", err)
	}

	authority, err := token.NewAuthority(cfg.JWTSecret)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("トークン発行者の初期化に失敗: %w", err)
	}

	s := newServer(cfg.Server, NewService(NewSQLStore(db), authority, cfg.TokenTTL), authority, gin.Logger())
	s.db = db
	return s, nil
}

// newServer は依存を注入してサーバーを組み立てる。
// extraはルーティングより前に適用する追加のミドルウェア（アクセスログなど）。
func newServer(cfg config.Server, service *Service, authority *token.Authority, extra ...gin.HandlerFunc) *Server {
	router := gin.New()
	metrics := middleware.NewMetrics(serviceName)
	router.Use(extra...)
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(metrics.Middleware())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	s := &Server{
		router:    router,
		addr:      cfg.Addr(),
		env:       cfg.Env,
		service:   service,
		authority: authority,
		metrics:   metrics,
	}
	s.setupRoutes()
	return s
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(s.addr)
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.POST("/register", s.handleRegister())
	s.router.POST("/login", s.handleLogin())
	s.router.POST("/verify", s.handleVerify())
	s.router.GET("/me", middleware.JWTAuth(s.authority), s.handleMe())

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName, "environment": s.env})
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// credentialsRequest は登録とログインのリクエストのJSON構造。
type credentialsRequest struct {
	// Username はユーザー名。
	Username string `json:"username"`
	// Password は平文のパスワード。
	Password string `json:"password"`
}

// verifyRequest はトークン検証リクエストのJSON構造。
type verifyRequest struct {
	// Token は検証するトークン。
	Token string `json:"token"`
}

// respondError は分類付きエラーをHTTPレスポンスに変換する。
// 内部エラーはログにのみ詳細を出力する。
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		log.Printf("内部エラー: request_id=%s path=%s error=%v", middleware.GetRequestID(c), c.FullPath(), err)
	}
	c.JSON(apperr.Status(kind), gin.H{"error": apperr.Message(err)})
}

// handleRegister はユーザー登録を処理するハンドラを返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgCredentialsRequired})
			return
		}

		if err := s.service.Register(c.Request.Context(), req.Username, req.Password); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
	}
}

// handleLogin はログインを処理するハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgCredentialsRequired})
			return
		}

		result, err := s.service.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": result.Token, "username": result.Username})
	}
}

// handleVerify はトークン検証を処理するハンドラを返す。
func (s *Server) handleVerify() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req verifyRequest
		_ = c.ShouldBindJSON(&req)

		result, err := s.service.Verify(req.Token)
		if err != nil {
			c.JSON(apperr.Status(apperr.KindOf(err)), gin.H{"valid": false, "error": apperr.Message(err)})
			return
		}
		if !result.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "error": result.Reason.String()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"valid": true, "username": result.Subject})
	}
}

// handleMe はベアラートークンの主体を返すハンドラを返す。
func (s *Server) handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"username": middleware.GetUsername(c)})
	}
}
