// プロフィールサービスのエントリポイント。
// ユーザープロフィール文書のCRUDを提供する。
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/authgate/internal/profile"
	"github.com/nao1215/authgate/pkg/config"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalf("プロフィールサービスの起動に失敗: %v", err)
	}
}

// run は設定を読み込んでサーバーを起動する。終了時にはデータベース接続を閉じる。
func run(ctx context.Context) error {
	src, err := config.NewSource()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	cfg := config.LoadProfile(src)
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := profile.NewServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("プロフィールサーバーの初期化に失敗: %w", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			log.Printf("データベース接続のクローズに失敗: %v", err)
		}
	}()

	log.Printf("プロフィールサービスを起動します: %s", cfg.Addr())
	return server.Run()
}
