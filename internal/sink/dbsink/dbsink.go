// Package dbsink 在单个事务内把记录写入关系库表 (title, rating, people, quote)。
package dbsink

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/John-Robertt/doubantop/internal/domain"
	"github.com/John-Robertt/doubantop/internal/sink"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// 默认连接参数（密码不设默认）。
const (
	DefaultHost     = "localhost"
	DefaultPort     = 3306
	DefaultUser     = "root"
	DefaultDatabase = "douban_spider"
	DefaultCharset  = "utf8mb4"
	DefaultTable    = "movies"
)

const connectTimeout = 5 * time.Second

//go:embed schema/mysql.sql
var mysqlSchema string

//go:embed schema/sqlite.sql
var sqliteSchema string

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config 是连接与写入参数。DSN 非空时优先于 Host/Port/User/Password/Database/Charset。
//
// sqlite 下 Database 为数据库文件路径。
type Config struct {
	Driver      string
	DSN         string
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	Charset     string
	Table       string
	CreateTable bool
}

// DataSourceName 生成驱动可用的 DSN。
func (c Config) DataSourceName() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	switch c.Driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		mc.DBName = c.Database
		mc.Timeout = connectTimeout
		if c.Charset != "" {
			mc.Params = map[string]string{"charset": c.Charset}
		}
		return mc.FormatDSN(), nil
	case DriverSQLite:
		if c.Database == "" {
			return "", errors.New("sqlite 需要 database（数据库文件路径）")
		}
		return c.Database, nil
	default:
		return "", fmt.Errorf("不支持的数据库驱动：%q", c.Driver)
	}
}

// ValidateTable 校验表名只含字母、数字、下划线且不以数字开头。
func ValidateTable(name string) error {
	if !tableNameRe.MatchString(name) {
		return fmt.Errorf("非法表名：%q", name)
	}
	return nil
}

// Sink 每次 Persist 建立一次连接，结束时关闭。
type Sink struct {
	cfg Config
}

// New 补全默认值并校验驱动与表名。
func New(cfg Config) (*Sink, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverMySQL
	}
	if cfg.Driver != DriverMySQL && cfg.Driver != DriverSQLite {
		return nil, fmt.Errorf("不支持的数据库驱动：%q", cfg.Driver)
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if err := ValidateTable(cfg.Table); err != nil {
		return nil, err
	}
	if cfg.Driver == DriverMySQL {
		if cfg.Host == "" {
			cfg.Host = DefaultHost
		}
		if cfg.Port == 0 {
			cfg.Port = DefaultPort
		}
		if cfg.User == "" {
			cfg.User = DefaultUser
		}
		if cfg.Database == "" {
			cfg.Database = DefaultDatabase
		}
		if cfg.Charset == "" {
			cfg.Charset = DefaultCharset
		}
	}
	return &Sink{cfg: cfg}, nil
}

func (s *Sink) Name() string { return "db" }

// Persist 连接后在一个事务内逐条插入；任意一条失败则回滚整个事务。
//
// 输入为空时仍会先连接（连通性问题照常上报），随后关闭连接并返回 sink.ErrNothingToWrite。
func (s *Sink) Persist(ctx context.Context, records []domain.MovieRecord) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := s.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if len(records) == 0 {
		return 0, sink.ErrNothingToWrite
	}

	if s.cfg.CreateTable {
		if _, err := db.ExecContext(ctx, s.schema()); err != nil {
			return 0, &WriteError{Table: s.cfg.Table, Row: -1, Err: err}
		}
	}

	if err := s.insertAll(ctx, db, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *Sink) connect(ctx context.Context) (*sql.DB, error) {
	dsn, err := s.cfg.DataSourceName()
	if err != nil {
		return nil, &ConnectError{Driver: s.cfg.Driver, Err: err}
	}
	db, err := sql.Open(s.cfg.Driver, dsn)
	if err != nil {
		return nil, &ConnectError{Driver: s.cfg.Driver, Err: err}
	}
	pctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, &ConnectError{Driver: s.cfg.Driver, Err: err}
	}
	return db, nil
}

func (s *Sink) insertAll(ctx context.Context, db *sql.DB, records []domain.MovieRecord) error {
	table := s.cfg.Table
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return &WriteError{Table: table, Row: -1, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// 部分驱动把“表不存在”推迟到首次 Exec 才报告；先探测一次，让它归入 Row=-1。
	if err := tableExists(ctx, tx, table); err != nil {
		return &WriteError{Table: table, Row: -1, Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(table))
	if err != nil {
		return &WriteError{Table: table, Row: -1, Err: err}
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Title, r.Rating, r.ReviewCount, r.Tagline); err != nil {
			return &WriteError{Table: table, Row: i, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &WriteError{Table: table, Row: -1, Err: err}
	}
	committed = true
	return nil
}

func (s *Sink) schema() string {
	ddl := mysqlSchema
	if s.cfg.Driver == DriverSQLite {
		ddl = sqliteSchema
	}
	return strings.ReplaceAll(ddl, "{{table}}", s.cfg.Table)
}

func tableExists(ctx context.Context, tx *sql.Tx, table string) error {
	rows, err := tx.QueryContext(ctx, "SELECT 1 FROM "+table+" LIMIT 0")
	if err != nil {
		return err
	}
	return rows.Close()
}

func insertSQL(table string) string {
	return "INSERT INTO " + table + " (title, rating, people, quote) VALUES (?, ?, ?, ?)"
}
