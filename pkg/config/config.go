package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Server は全サービス共通のリッスン設定。
type Server struct {
	// Host はリッスンするホスト。デフォルトの "::" はIPv4/IPv6のデュアルスタック。
	Host string
	// Port はリッスンするポート。
	Port string
	// Env はヘルスチェックで返す環境名。
	Env string
	// Debug はGinをデバッグモードで起動するかどうか。
	Debug bool
	// AllowedOrigins はCORSで許可するオリジン。空の場合はすべて許可する。
	AllowedOrigins []string
}

// Addr はリッスンアドレスを返す。
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// Gateway はGatewayサービスの設定。
type Gateway struct {
	Server
	// AuthServiceURL は /auth/* の転送先。末尾のスラッシュは除去済み。
	AuthServiceURL string
	// UserServiceURL は /users/* の転送先。末尾のスラッシュは除去済み。
	UserServiceURL string
}

// Auth は認証サービスの設定。
type Auth struct {
	Server
	// DatabaseURL はSQLiteのファイルパスまたはPostgreSQLの接続URL。
	DatabaseURL string
	// JWTSecret はトークン署名用の共有秘密鍵。
	JWTSecret string
	// TokenTTL は発行したトークンの有効期間。
	TokenTTL time.Duration
}

// Profile はプロフィールサービスの設定。
type Profile struct {
	Server
	// DatabaseURL はSQLiteのファイルパスまたはPostgreSQLの接続URL。
	DatabaseURL string
}

func loadServer(s *Source, defaultPort string) Server {
	return Server{
		Host:           s.String("HOST", "::"),
		Port:           s.String("PORT", defaultPort),
		Env:            s.String("ENV", "production"),
		Debug:          s.Bool("DEBUG"),
		AllowedOrigins: s.List("CORS_ALLOW_ORIGINS"),
	}
}

// LoadGateway はGatewayの設定を読み込む。
func LoadGateway(s *Source) Gateway {
	return Gateway{
		Server:         loadServer(s, "8000"),
		AuthServiceURL: strings.TrimRight(s.String("AUTH_SERVICE_URL", "http://localhost:5001"), "/"),
		UserServiceURL: strings.TrimRight(s.String("USER_SERVICE_URL", "http://localhost:5002"), "/"),
	}
}

// LoadAuth は認証サービスの設定を読み込む。
func LoadAuth(s *Source) (Auth, error) {
	hours, err := s.Int("JWT_EXPIRATION_HOURS", 1)
	if err != nil {
		return Auth{}, err
	}
	if hours <= 0 {
		return Auth{}, fmt.Errorf("JWT_EXPIRATION_HOURS は正の値である必要があります: %d", hours)
	}
	return Auth{
		Server:      loadServer(s, "8001"),
		DatabaseURL: s.String("DATABASE_URL", "/data/auth.db"),
		JWTSecret:   s.String("JWT_SECRET_KEY", "secret-key-123"),
		TokenTTL:    time.Duration(hours) * time.Hour,
	}, nil
}

// LoadProfile はプロフィールサービスの設定を読み込む。
func LoadProfile(s *Source) Profile {
	return Profile{
		Server:      loadServer(s, "8002"),
		DatabaseURL: s.String("DATABASE_URL", "/data/profile.db"),
	}
}
