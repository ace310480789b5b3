package migration

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

// openTestDB はテスト用のインメモリSQLiteを開く。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリSQLiteの接続に失敗: %v", err)
	}
	// インメモリDBは接続ごとに別のデータベースになるため1本に固定する
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

// TestRun はRun関数を検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/000002_add_index.up.sql":      {Data: []byte("CREATE INDEX idx_items_name ON items(name);")},
		"migrations/000001_create_items.up.sql":   {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL);")},
		"migrations/000001_create_items.down.sql": {Data: []byte("DROP TABLE items;")},
		"migrations/README.md":                    {Data: []byte("ignored")},
	}

	t.Run("バージョン順に適用されること", func(t *testing.T) {
		t.Parallel()

		sqlDB := openTestDB(t)
		n, err := Run(context.Background(), sqlDB, fsys, "migrations")
		if err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}
		if n != 2 {
			t.Errorf("適用件数 = %d, want %d", n, 2)
		}

		var count int
		if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("schema_migrationsの参照に失敗: %v", err)
		}
		if count != 2 {
			t.Errorf("schema_migrationsの件数 = %d, want %d", count, 2)
		}
	})

	t.Run("2回目は何も適用しないこと", func(t *testing.T) {
		t.Parallel()

		sqlDB := openTestDB(t)
		if _, err := Run(context.Background(), sqlDB, fsys, "migrations"); err != nil {
			t.Fatalf("1回目のRun()でエラーが発生: %v", err)
		}
		n, err := Run(context.Background(), sqlDB, fsys, "migrations")
		if err != nil {
			t.Fatalf("2回目のRun()でエラーが発生: %v", err)
		}
		if n != 0 {
			t.Errorf("適用件数 = %d, want %d", n, 0)
		}
	})

	t.Run("SQLが不正な場合はエラーになり記録されないこと", func(t *testing.T) {
		t.Parallel()

		sqlDB := openTestDB(t)
		broken := fstest.MapFS{
			"migrations/000001_broken.up.sql": {Data: []byte("CREATE TABLES nope;")},
		}
		if _, err := Run(context.Background(), sqlDB, broken, "migrations"); err == nil {
			t.Fatal("Run()がエラーを返すべきだが、nilが返った")
		}

		var count int
		if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("schema_migrationsの参照に失敗: %v", err)
		}
		if count != 0 {
			t.Errorf("schema_migrationsの件数 = %d, want %d", count, 0)
		}
	})

	t.Run("バージョンが重複している場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		sqlDB := openTestDB(t)
		dup := fstest.MapFS{
			"migrations/000001_a.up.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
			"migrations/000001_b.up.sql": {Data: []byte("CREATE TABLE b (id INTEGER);")},
		}
		if _, err := Run(context.Background(), sqlDB, dup, "migrations"); err == nil {
			t.Fatal("Run()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("ディレクトリが存在しない場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		sqlDB := openTestDB(t)
		if _, err := Run(context.Background(), sqlDB, fstest.MapFS{}, "missing"); err == nil {
			t.Fatal("Run()がエラーを返すべきだが、nilが返った")
		}
	})
}
