// API Gatewayサービスのエントリポイント。
// /auth/* を認証サービスに、/users/* をプロフィールサービスに転送する。
// 外部からアクセス可能な唯一のサービスとなる。
package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/authgate/internal/gateway"
	"github.com/nao1215/authgate/pkg/config"
)

func main() {
	src, err := config.NewSource()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}
	cfg := config.LoadGateway(src)
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	server := gateway.NewServer(cfg)

	log.Printf("Gatewayサービスを起動します: %s (auth=%s, users=%s)", cfg.Addr(), cfg.AuthServiceURL, cfg.UserServiceURL)
	if err := server.Run(); err != nil {
		log.Fatalf("Gatewayサービスの起動に失敗: %v", err)
	}
}
