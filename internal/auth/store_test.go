package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nao1215/authgate/pkg/apperr"
	"github.com/nao1215/authgate/pkg/database"
)

// openTestDB はマイグレーション済みのインメモリSQLiteを開く。
func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:", migrations())
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newMockStore はsqlmockを使うSQLStoreを生成する。
func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmockの作成に失敗: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return NewSQLStore(&database.DB{DB: sqlDB, Dialect: database.SQLite}), mock
}

// TestSQLStore はSQLStoreを検証する。
func TestSQLStore(t *testing.T) {
	t.Parallel()

	t.Run("保存した認証情報を取得できること", func(t *testing.T) {
		t.Parallel()
		store := NewSQLStore(openTestDB(t))
		ctx := context.Background()
		created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

		if err := store.Create(ctx, Credential{Username: "alice", PasswordHash: "hash", CreatedAt: created}); err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		got, err := store.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if got.Username != "alice" || got.PasswordHash != "hash" {
			t.Errorf("Get() = %+v", got)
		}
		if !got.CreatedAt.Equal(created) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
		}
	})

	t.Run("同じユーザー名の2回目の保存は競合になること", func(t *testing.T) {
		t.Parallel()
		store := NewSQLStore(openTestDB(t))
		ctx := context.Background()

		if err := store.Create(ctx, Credential{Username: "bob", PasswordHash: "h1", CreatedAt: time.Now()}); err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		err := store.Create(ctx, Credential{Username: "bob", PasswordHash: "h2", CreatedAt: time.Now()})
		if !apperr.Is(err, apperr.KindConflict) {
			t.Fatalf("Create() error = %v, want conflict", err)
		}

		got, _ := store.Get(ctx, "bob")
		if got.PasswordHash != "h1" {
			t.Errorf("既存のレコードが上書きされた: %q", got.PasswordHash)
		}
	})

	t.Run("同時に同じユーザー名を登録しても1件だけ成功すること", func(t *testing.T) {
		t.Parallel()
		store := NewSQLStore(openTestDB(t))
		ctx := context.Background()

		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = store.Create(ctx, Credential{Username: "carol", PasswordHash: "h", CreatedAt: time.Now()})
			}()
		}
		wg.Wait()

		success, conflict := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				success++
			case apperr.Is(err, apperr.KindConflict):
				conflict++
			default:
				t.Errorf("予期しないエラー: %v", err)
			}
		}
		if success != 1 || conflict != workers-1 {
			t.Errorf("成功 = %d, 競合 = %d", success, conflict)
		}
	})

	t.Run("存在しないユーザーはNotFoundになること", func(t *testing.T) {
		t.Parallel()
		store := NewSQLStore(openTestDB(t))

		_, err := store.Get(context.Background(), "nobody")
		if !apperr.Is(err, apperr.KindNotFound) {
			t.Errorf("Get() error = %v, want not found", err)
		}
	})

	t.Run("保存に失敗した場合は分類なしのエラーを返すこと", func(t *testing.T) {
		t.Parallel()
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO credentials")).
			WillReturnError(errors.New("disk I/O error"))

		err := store.Create(context.Background(), Credential{Username: "dave", PasswordHash: "h", CreatedAt: time.Now()})
		if err == nil || apperr.KindOf(err) != apperr.KindInternal {
			t.Errorf("Create() error = %v, want internal", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("取得に失敗した場合は分類なしのエラーを返すこと", func(t *testing.T) {
		t.Parallel()
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT username, password_hash, created_at")).
			WithArgs("erin").
			WillReturnError(errors.New("connection reset"))

		_, err := store.Get(context.Background(), "erin")
		if err == nil || apperr.KindOf(err) != apperr.KindInternal {
			t.Errorf("Get() error = %v, want internal", err)
		}
	})
}

// legacyHash は旧形式のソルトなしSHA-256ダイジェストを返す。
func legacyHash(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
