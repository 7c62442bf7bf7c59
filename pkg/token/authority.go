package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims はトークンのクレーム。
// 既存クライアントとの互換のため、主体は "username" クレームに格納する。
type Claims struct {
	jwt.RegisteredClaims
	// Username はトークンの主体となるユーザー名。
	Username string `json:"username"`
}

// Reason は検証に失敗した理由。
type Reason int

const (
	// ReasonNone は検証に成功したことを示す。
	ReasonNone Reason = iota
	// ReasonExpired は有効期限切れ。
	ReasonExpired
	// ReasonInvalid は署名不一致、構造の破損、未対応のアルゴリズムなど。
	ReasonInvalid
)

// String はクライアントに返すエラーメッセージを返す。
func (r Reason) String() string {
	switch r {
	case ReasonExpired:
		return "Token expired"
	case ReasonInvalid:
		return "Invalid token"
	default:
		return ""
	}
}

// Result はValidateの結果。
type Result struct {
	// Valid は検証に成功したかどうか。
	Valid bool
	// Subject はValidがtrueの場合のユーザー名。
	Subject string
	// Reason はValidがfalseの場合の理由。
	Reason Reason
}

// Issued は発行したトークン。
type Issued struct {
	// Value は署名済みトークン文字列。
	Value string
	// ExpiresAt は有効期限。
	ExpiresAt time.Time
}

// Authority はトークンの発行と検証を行う。
// 生成後は不変のため、複数のゴルーチンから同時に使用できる。
type Authority struct {
	// secret はHS256署名用の共有秘密鍵。
	secret []byte
	// now は現在時刻の取得関数。テストで差し替える。
	now func() time.Time
}

// Option はAuthorityの設定を変更する。
type Option func(*Authority)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(a *Authority) {
		a.now = now
	}
}

// NewAuthority は共有秘密鍵からAuthorityを生成する。
func NewAuthority(secret string, opts ...Option) (*Authority, error) {
	if secret == "" {
		return nil, errors.New("token: 署名用の秘密鍵が空です")
	}
	a := &Authority{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Issue はsubjectを主体とし、現在時刻からttl後に失効するトークンを発行する。
// 失敗は設定の誤りであり、実行時の条件では起きない。
func (a *Authority) Issue(subject string, ttl time.Duration) (Issued, error) {
	now := a.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username: subject,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return Issued{}, fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return Issued{Value: signed, ExpiresAt: expiresAt}, nil
}

// Validate はトークンの署名と有効期限を検証する。
// 副作用はなく、ストアやネットワークを参照しない。
func (a *Authority) Validate(tokenString string) Result {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Result{Reason: ReasonExpired}
	case err != nil, !token.Valid, claims.Username == "":
		return Result{Reason: ReasonInvalid}
	}
	return Result{Valid: true, Subject: claims.Username}
}
