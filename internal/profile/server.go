package profile

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
)

// serviceName はヘルスチェックとメトリクスで使うサービス名。
const serviceName = "user-service"

// Server はプロフィールサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// addr はサーバーのリッスンアドレス。
	addr string
	// env はヘルスチェックで返す環境名。
	env string
	// db はデータベース接続。
	db *database.DB
	// store はプロフィールのストア。
	store *Store
	// metrics はHTTPメトリクス。
	metrics *middleware.Metrics
}

// NewServer は新しいプロフィールサーバーを生成する。
// データベースへの接続とマイグレーションを行う。
func NewServer(ctx context.Context, cfg config.Profile) (*Server, error) {
	db, err := database.Open(ctx, cfg.DatabaseURL, migrations())
	if err != nil {
		return nil, fmt.Errorf("データベースの初期化に失敗: %w", err)
	}
	return newServer(cfg.Server, db, gin.Logger()), nil
}

// newServer は依存を注入してサーバーを組み立てる。
func newServer(cfg config.Server, db *database.DB, extra ...gin.HandlerFunc) *Server {
	router := gin.New()
	metrics := middleware.NewMetrics(serviceName)
	router.Use(extra...)
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(metrics.Middleware())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	s := &Server{
		router:  router,
		addr:    cfg.Addr(),
		env:     cfg.Env,
		db:      db,
		store:   NewStore(db),
		metrics: metrics,
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
	return s.db.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.POST("/create", s.handleCreate())
	s.router.GET("/get/:id", s.handleGet())
	s.router.PUT("/update/:id", s.handleUpdate())
	s.router.DELETE("/delete/:id", s.handleDelete())
	s.router.GET("/list", s.handleList())

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName, "environment": s.env})
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// respondError は分類付きエラーをHTTPレスポンスに変換する。
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		log.Printf("内部エラー: request_id=%s path=%s error=%v", middleware.GetRequestID(c), c.FullPath(), err)
	}
	c.JSON(apperr.Status(kind), gin.H{"error": apperr.Message(err)})
}

// bindObject はリクエストボディをJSONオブジェクトとして読み込む。
func bindObject(c *gin.Context) (map[string]any, bool) {
	body, err := c.GetRawData()
	if err == nil {
		var fields map[string]any
		if fields, err = decodeObject(body); err == nil {
			return fields, true
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Request body must be a JSON object"})
	return nil, false
}

// bindID はパスパラメータのIDを検証する。
func bindID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !validID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return "", false
	}
	return id, true
}

// handleCreate はプロフィール作成を処理するハンドラを返す。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		fields, ok := bindObject(c)
		if !ok {
			return
		}

		p, err := s.store.Create(c.Request.Context(), fields)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": p.ID, "message": "User created"})
	}
}

// handleGet はプロフィール取得を処理するハンドラを返す。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bindID(c)
		if !ok {
			return
		}

		p, err := s.store.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p.Document())
	}
}

// handleUpdate はプロフィール更新を処理するハンドラを返す。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bindID(c)
		if !ok {
			return
		}
		fields, ok := bindObject(c)
		if !ok {
			return
		}

		if err := s.store.Update(c.Request.Context(), id, fields); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "User updated"})
	}
}

// handleDelete はプロフィール削除を処理するハンドラを返す。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bindID(c)
		if !ok {
			return
		}

		if err := s.store.Delete(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
	}
}

// handleList はプロフィール一覧を処理するハンドラを返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		profiles, err := s.store.List(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		docs := make([]map[string]any, 0, len(profiles))
		for _, p := range profiles {
			docs = append(docs, p.Document())
		}
		c.JSON(http.StatusOK, docs)
	}
}
