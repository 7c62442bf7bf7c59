package profile

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/nao1215/authgate/pkg/apperr"
	"github.com/nao1215/authgate/pkg/database"
)

// reservedKeys はストアが管理するため、クライアントの文書からは取り除くキー。
var reservedKeys = []string{"id", "_id", "created_at", "updated_at"}

// Profile は保存されたプロフィール文書。
type Profile struct {
	// ID はストアが生成した識別子。
	ID string
	// Fields はクライアントが保存した任意のキーと値。
	Fields map[string]any
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は最終更新日時。未更新の場合はnil。
	UpdatedAt *time.Time
}

// Document はレスポンス用の文書を返す。日時はISO-8601文字列にする。
func (p Profile) Document() map[string]any {
	doc := make(map[string]any, len(p.Fields)+3)
	maps.Copy(doc, p.Fields)
	doc["id"] = p.ID
	doc["created_at"] = p.CreatedAt.UTC().Format(time.RFC3339Nano)
	if p.UpdatedAt != nil {
		doc["updated_at"] = p.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return doc
}

// Store はプロフィール文書の永続化を行う。
type Store struct {
	db  *database.DB
	now func() time.Time
}

// NewStore は新しいStoreを生成する。
func NewStore(db *database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// errNotFound はプロフィールが存在しないことを示す。
func errNotFound() error {
	return apperr.New(apperr.KindNotFound, "User not found")
}

// Create は文書を保存し、生成したIDを持つProfileを返す。
func (s *Store) Create(ctx context.Context, fields map[string]any) (Profile, error) {
	fields = withoutReserved(fields)
	data, err := json.Marshal(fields)
	if err != nil {
		return Profile{}, fmt.Errorf("プロフィールのシリアライズに失敗: %w", err)
	}

	now := s.now().UTC()
	p := Profile{ID: newID(now), Fields: fields, CreatedAt: now}
	if _, err := s.db.ExecContext(ctx,
		s.db.Dialect.Rebind("INSERT INTO profiles (id, data, created_at) VALUES (?, ?, ?)"),
		p.ID, string(data), p.CreatedAt); err != nil {
		return Profile{}, fmt.Errorf("プロフィールの保存に失敗: %w", err)
	}
	return p, nil
}

// Get はIDでプロフィールを取得する。
func (s *Store) Get(ctx context.Context, id string) (Profile, error) {
	row := s.db.QueryRowContext(ctx,
		s.db.Dialect.Rebind("SELECT id, data, created_at, updated_at FROM profiles WHERE id = ?"), id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, errNotFound()
	}
	if err != nil {
		return Profile{}, fmt.Errorf("プロフィールの取得に失敗: %w", err)
	}
	return p, nil
}

// List はすべてのプロフィールを作成順に返す。
func (s *Store) List(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, data, created_at, updated_at FROM profiles ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("プロフィール一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	profiles := []Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("プロフィールの読み込みに失敗: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// Update はfieldsのトップレベルのキーを既存の文書に上書きし、更新日時を記録する。
// 読み込みから書き込みまでを1つのトランザクションで行う。
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := "SELECT data FROM profiles WHERE id = ?"
	if s.db.Dialect == database.Postgres {
		query += " FOR UPDATE"
	}
	var raw string
	err = tx.QueryRowContext(ctx, s.db.Dialect.Rebind(query), id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return errNotFound()
	}
	if err != nil {
		return fmt.Errorf("プロフィールの取得に失敗: %w", err)
	}

	current, err := decodeObject([]byte(raw))
	if err != nil {
		return fmt.Errorf("保存済みプロフィールの解析に失敗: %w", err)
	}
	maps.Copy(current, withoutReserved(fields))
	data, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("プロフィールのシリアライズに失敗: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		s.db.Dialect.Rebind("UPDATE profiles SET data = ?, updated_at = ? WHERE id = ?"),
		string(data), s.now().UTC(), id); err != nil {
		return fmt.Errorf("プロフィールの更新に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// Delete はIDでプロフィールを削除する。
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Dialect.Rebind("DELETE FROM profiles WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("プロフィールの削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return errNotFound()
	}
	return nil
}

// scanner はsql.Rowとsql.Rowsの共通インターフェース。
type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(sc scanner) (Profile, error) {
	var (
		p         Profile
		raw       string
		updatedAt sql.NullTime
	)
	if err := sc.Scan(&p.ID, &raw, &p.CreatedAt, &updatedAt); err != nil {
		return Profile{}, err
	}
	fields, err := decodeObject([]byte(raw))
	if err != nil {
		return Profile{}, err
	}
	p.Fields = fields
	if updatedAt.Valid {
		t := updatedAt.Time
		p.UpdatedAt = &t
	}
	return p, nil
}

// decodeObject はJSONオブジェクトをデコードする。数値の精度を保つためjson.Numberを使う。
func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("JSONオブジェクトではありません")
	}
	if dec.More() {
		return nil, errors.New("JSONの後に余分なデータがあります")
	}
	return obj, nil
}

// withoutReserved は予約キーを除いたコピーを返す。
func withoutReserved(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	maps.Copy(out, fields)
	for _, k := range reservedKeys {
		delete(out, k)
	}
	return out
}
