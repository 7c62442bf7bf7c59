package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/authgate/pkg/apperr"
	"github.com/nao1215/authgate/pkg/database"
)

// Credential は保存された認証情報。作成後は更新しない。
type Credential struct {
	// Username は一意のユーザー名。
	Username string
	// PasswordHash はパスワードの一方向ハッシュ。平文は保存しない。
	PasswordHash string
	// CreatedAt は登録日時。
	CreatedAt time.Time
}

// CredentialStore は認証情報の永続化を行う。
// Createはユーザー名の一意性をストア側で保証しなければならない。
type CredentialStore interface {
	// Create は認証情報を保存する。同名のユーザーが存在する場合はKindConflictを返す。
	Create(ctx context.Context, cred Credential) error
	// Get はユーザー名で認証情報を取得する。存在しない場合はKindNotFoundを返す。
	Get(ctx context.Context, username string) (Credential, error)
}

// SQLStore はSQLiteまたはPostgreSQLに保存するCredentialStore。
type SQLStore struct {
	db *database.DB
}

// NewSQLStore は新しいSQLStoreを生成する。
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db}
}

// ON CONFLICT DO NOTHING により、同時登録の競合もストア側で1件に絞られる。
const insertCredential = `INSERT INTO credentials (username, password_hash, created_at)
VALUES (?, ?, ?)
ON CONFLICT (username) DO NOTHING`

const selectCredential = `SELECT username, password_hash, created_at
FROM credentials
WHERE username = ?`

// Create は認証情報を保存する。
func (s *SQLStore) Create(ctx context.Context, cred Credential) error {
	res, err := s.db.ExecContext(ctx, s.db.Dialect.Rebind(insertCredential),
		cred.Username, cred.PasswordHash, cred.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("認証情報の保存に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("保存件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return apperr.New(apperr.KindConflict, "User already exists")
	}
	return nil
}

// Get はユーザー名で認証情報を取得する。
func (s *SQLStore) Get(ctx context.Context, username string) (Credential, error) {
	var cred Credential
	err := s.db.QueryRowContext(ctx, s.db.Dialect.Rebind(selectCredential), username).
		Scan(&cred.Username, &cred.PasswordHash, &cred.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, apperr.New(apperr.KindNotFound, "User not found")
	}
	if err != nil {
		return Credential{}, fmt.Errorf("認証情報の取得に失敗: %w", err)
	}
	return cred, nil
}
