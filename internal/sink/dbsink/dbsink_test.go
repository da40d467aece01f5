package dbsink

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/doubantop/internal/domain"
	"github.com/John-Robertt/doubantop/internal/sink"
)

var sample = []domain.MovieRecord{
	{Title: "肖申克的救赎", Rating: "9.7", ReviewCount: "3071449", Tagline: "希望让人自由。"},
	{Title: "霸王别姬", Rating: "9.6", ReviewCount: "2260341", Tagline: "风华绝代。"},
	{Title: "阿甘正传", Rating: "9.5", ReviewCount: "2283521", Tagline: domain.NoTagline},
}

func sqliteSink(t *testing.T, path string, create bool) *Sink {
	t.Helper()
	s, err := New(Config{Driver: DriverSQLite, Database: path, CreateTable: create})
	require.NoError(t, err)
	return s
}

func openSQLite(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestPersist_CommitsAllRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "douban.db")
	s := sqliteSink(t, path, true)

	n, err := s.Persist(context.Background(), sample)
	require.NoError(t, err)
	require.Equal(t, len(sample), n)

	db := openSQLite(t, path)
	require.Equal(t, len(sample), countRows(t, db, DefaultTable))

	rows, err := db.Query("SELECT title, rating, people, quote FROM movies ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	var got []domain.MovieRecord
	for rows.Next() {
		var r domain.MovieRecord
		require.NoError(t, rows.Scan(&r.Title, &r.Rating, &r.ReviewCount, &r.Tagline))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, sample, got)
}

func TestPersist_RollsBackWhenOneInsertFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "douban.db")
	db := openSQLite(t, path)
	s := sqliteSink(t, path, true)
	_, err := db.Exec(s.schema())
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TRIGGER reject_boom BEFORE INSERT ON movies
WHEN NEW.title = 'boom'
BEGIN
    SELECT RAISE(ABORT, 'boom rejected');
END;`)
	require.NoError(t, err)

	records := append(append([]domain.MovieRecord{}, sample[:2]...), domain.MovieRecord{Title: "boom"}, sample[2])
	n, err := s.Persist(context.Background(), records)
	require.Error(t, err)
	require.Zero(t, n)

	var we *WriteError
	require.True(t, errors.As(err, &we), "期望 *WriteError，实际=%v", err)
	require.Equal(t, 2, we.Row)
	require.Equal(t, domain.ErrCodeDBWriteFailed, sink.ErrorCode(err))

	require.Equal(t, 0, countRows(t, db, DefaultTable))
}

func TestPersist_EmptyInputIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "douban.db")
	s := sqliteSink(t, path, true)

	n, err := s.Persist(context.Background(), nil)
	require.ErrorIs(t, err, sink.ErrNothingToWrite)
	require.Zero(t, n)

	db := openSQLite(t, path)
	var name string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='movies'").Scan(&name)
	require.ErrorIs(t, err, sql.ErrNoRows, "空输入不应建表")
}

func TestPersist_ConnectFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "douban.db")
	s := sqliteSink(t, path, true)

	_, err := s.Persist(context.Background(), sample)
	var ce *ConnectError
	require.True(t, errors.As(err, &ce), "期望 *ConnectError，实际=%v", err)
	require.Equal(t, domain.ErrCodeDBConnectFailed, sink.ErrorCode(err))
}

func TestPersist_MySQLConnectRefused(t *testing.T) {
	s, err := New(Config{Driver: DriverMySQL, Host: "127.0.0.1", Port: 1, Password: "x"})
	require.NoError(t, err)

	_, err = s.Persist(context.Background(), sample)
	var ce *ConnectError
	require.True(t, errors.As(err, &ce), "期望 *ConnectError，实际=%v", err)
	require.Equal(t, DriverMySQL, ce.Driver)
}

func TestPersist_MissingTableWithoutCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "douban.db")
	s := sqliteSink(t, path, false)

	_, err := s.Persist(context.Background(), sample)
	var we *WriteError
	require.True(t, errors.As(err, &we), "期望 *WriteError，实际=%v", err)
	require.Equal(t, -1, we.Row, "表不存在应归为整体失败而非第 0 条")
	require.Equal(t, DefaultTable, we.Table)
	require.NotContains(t, we.Error(), "第 0 条")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Driver: "postgres"})
	require.Error(t, err)

	for _, bad := range []string{"1movies", "movies;DROP TABLE x", "my-table", "电影"} {
		_, err := New(Config{Driver: DriverSQLite, Database: "x.db", Table: bad})
		require.Error(t, err, "表名 %q 应被拒绝", bad)
	}

	s, err := New(Config{})
	require.NoError(t, err)
	require.Equal(t, DriverMySQL, s.cfg.Driver)
	require.Equal(t, DefaultTable, s.cfg.Table)
	require.Equal(t, DefaultCharset, s.cfg.Charset)
	require.Equal(t, "db", s.Name())
}

func TestDataSourceName(t *testing.T) {
	dsn, err := Config{
		Driver: DriverMySQL, Host: "db.local", Port: 3307, User: "u", Password: "p",
		Database: "douban_spider", Charset: "utf8mb4",
	}.DataSourceName()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dsn, "u:p@tcp(db.local:3307)/douban_spider?"), dsn)
	require.Contains(t, dsn, "charset=utf8mb4")

	dsn, err = Config{Driver: DriverMySQL, DSN: "explicit"}.DataSourceName()
	require.NoError(t, err)
	require.Equal(t, "explicit", dsn)

	_, err = Config{Driver: DriverSQLite}.DataSourceName()
	require.Error(t, err)
}

func TestSchema_UsesTableName(t *testing.T) {
	s, err := New(Config{Driver: DriverSQLite, Database: "x.db", Table: "top250"})
	require.NoError(t, err)
	require.Contains(t, s.schema(), "CREATE TABLE IF NOT EXISTS top250")
	require.NotContains(t, s.schema(), "{{table}}")
	require.Equal(t, "INSERT INTO top250 (title, rating, people, quote) VALUES (?, ?, ?, ?)", insertSQL("top250"))
}
