// Package database はサービスのデータストアへの接続とマイグレーションを扱う。
//
// 接続先がPostgreSQLのURLであればpgxドライバとgooseで、それ以外は
// SQLiteのファイルパスとみなしてmodernc.org/sqliteと組み込みの
// マイグレーションランナーで初期化する。
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/nao1215/authgate/pkg/migration"
)

// Dialect はSQL方言。
type Dialect int

const (
	// SQLite はmodernc.org/sqliteで接続するSQLite。
	SQLite Dialect = iota
	// Postgres はpgxで接続するPostgreSQL。
	Postgres
)

// String は方言の名前を返す。
func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Rebind はクエリ中の ? プレースホルダを方言に合わせて書き換える。
// クエリ文字列リテラルに ? を含めてはならない。
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Migrations は方言ごとのマイグレーションファイル。
type Migrations struct {
	// SQLite は 000001_name.up.sql 形式のファイルを持つFS。
	SQLite fs.FS
	// Postgres はgoose形式のファイルを持つFS。
	Postgres fs.FS
}

// DB は方言付きのデータベース接続。
type DB struct {
	*sql.DB
	// Dialect は接続先の方言。
	Dialect Dialect
}

// DialectOf は接続文字列から方言を判定する。
func DialectOf(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// Open はデータベースに接続し、マイグレーションを適用する。
func Open(ctx context.Context, dsn string, m Migrations) (*DB, error) {
	switch DialectOf(dsn) {
	case Postgres:
		return openPostgres(ctx, dsn, m.Postgres)
	default:
		return openSQLite(ctx, dsn, m.SQLite)
	}
}

func openSQLite(ctx context.Context, dsn string, fsys fs.FS) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		// インメモリDBは接続ごとに別のDBになるため1本に制限する
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("データベース接続の確認に失敗: %w", err)
	}
	if fsys != nil {
		if _, err := migration.Run(ctx, sqlDB, fsys, "."); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
		}
	}
	return &DB{DB: sqlDB, Dialect: SQLite}, nil
}

// sqliteDSN はファイルパスにビジータイムアウトとWALのプラグマを付与する。
// 既にクエリパラメータを持つDSNはそのまま使う。
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	if strings.Contains(dsn, ":memory:") {
		return dsn + "?_pragma=busy_timeout(5000)"
	}
	return dsn + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// gooseUp はgooseでPostgreSQLのマイグレーションを適用する。
// gooseの設定はパッケージ全体で共有されるため、起動時にのみ呼び出す。
func gooseUp(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	goose.SetBaseFS(fsys)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func openPostgres(ctx context.Context, dsn string, fsys fs.FS) (*DB, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("データベース接続の確認に失敗: %w", err)
	}
	if fsys != nil {
		if err := gooseUp(ctx, sqlDB, fsys); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("マイグレーションの適用に失敗: %w", err)
		}
	}
	return &DB{DB: sqlDB, Dialect: Postgres}, nil
}
