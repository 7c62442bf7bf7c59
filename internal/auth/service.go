package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/authgate/pkg/apperr"
	"github.com/nao1215/authgate/pkg/password"
	"github.com/nao1215/authgate/pkg/token"
)

// 認証失敗時のメッセージ。ユーザーの有無を区別しない。
const (
	msgCredentialsRequired = "Username and password required"
	msgInvalidCredentials  = "Invalid credentials"
	msgTokenRequired       = "Token required"
	msgPasswordTooLong     = "Password must be at most 72 bytes"
)

// Service は登録、ログイン、トークン検証を行う。
type Service struct {
	// store は認証情報のストア。
	store CredentialStore
	// authority はトークンの発行と検証を行う。
	authority *token.Authority
	// ttl は発行するトークンの有効期間。
	ttl time.Duration
	// now は現在時刻の取得関数。
	now func() time.Time
}

// NewService は新しいServiceを生成する。
func NewService(store CredentialStore, authority *token.Authority, ttl time.Duration) *Service {
	return &Service{store: store, authority: authority, ttl: ttl, now: time.Now}
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	// Token は発行したベアラートークン。
	Token string
	// Username はログインしたユーザー名。
	Username string
	// ExpiresAt はトークンの有効期限。
	ExpiresAt time.Time
}

// Register は新しいユーザーを登録する。
func (s *Service) Register(ctx context.Context, username, plain string) error {
	if username == "" || plain == "" {
		return apperr.New(apperr.KindValidation, msgCredentialsRequired)
	}

	hash, err := password.Hash(plain)
	if errors.Is(err, password.ErrTooLong) {
		return apperr.New(apperr.KindValidation, msgPasswordTooLong)
	}
	if err != nil {
		return err
	}
	if err := s.store.Create(ctx, Credential{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}); err != nil {
		return fmt.Errorf("ユーザー登録に失敗: %w", err)
	}
	return nil
}

// Login はユーザー名とパスワードを照合し、トークンを発行する。
// ユーザーが存在しない場合とパスワードが違う場合は同じエラーを返す。
func (s *Service) Login(ctx context.Context, username, plain string) (LoginResult, error) {
	if username == "" || plain == "" {
		return LoginResult{}, apperr.New(apperr.KindValidation, msgCredentialsRequired)
	}

	cred, err := s.store.Get(ctx, username)
	if apperr.Is(err, apperr.KindNotFound) {
		password.VerifyDummy(plain)
		return LoginResult{}, apperr.New(apperr.KindInvalidCredentials, msgInvalidCredentials)
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("ログインに失敗: %w", err)
	}

	if err := password.Verify(cred.PasswordHash, plain); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return LoginResult{}, apperr.New(apperr.KindInvalidCredentials, msgInvalidCredentials)
		}
		return LoginResult{}, fmt.Errorf("ユーザー %q のパスワード照合に失敗: %w", username, err)
	}

	issued, err := s.authority.Issue(cred.Username, s.ttl)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: issued.Value, Username: cred.Username, ExpiresAt: issued.ExpiresAt}, nil
}

// Verify はトークンを検証する。トークンが空の場合のみエラーを返し、
// 無効なトークンはResult.Validがfalseの結果として返す。
func (s *Service) Verify(tokenString string) (token.Result, error) {
	if tokenString == "" {
		return token.Result{}, apperr.New(apperr.KindValidation, msgTokenRequired)
	}
	return s.authority.Validate(tokenString), nil
}
