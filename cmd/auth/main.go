// 認証サービスのエントリポイント。
// ユーザー登録、ログインによるトークン発行、トークン検証を担当する。
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/authgate/internal/auth"
	"github.com/nao1215/authgate/pkg/config"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalf("認証サービスの起動に失敗: %v", err)
	}
}

// run は設定を読み込んでサーバーを起動する。終了時にはデータベース接続を閉じる。
func run(ctx context.Context) error {
	src, err := config.NewSource()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	cfg, err := config.LoadAuth(src)
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := auth.NewServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("認証サーバーの初期化に失敗: %w", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			log.Printf("データベース接続のクローズに失敗: %v", err)
		}
	}()

	log.Printf("認証サービスを起動します: %s", cfg.Addr())
	return server.Run()
}
