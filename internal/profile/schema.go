package profile

import (
	"embed"
	"io/fs"

	"github.com/nao1215/authgate/pkg/database"
)

//go:embed migrations
var migrationFiles embed.FS

// migrations は方言ごとのマイグレーションファイルを返す。
func migrations() database.Migrations {
	sqlite, _ := fs.Sub(migrationFiles, "migrations/sqlite")
	postgres, _ := fs.Sub(migrationFiles, "migrations/postgres")
	return database.Migrations{SQLite: sqlite, Postgres: postgres}
}
