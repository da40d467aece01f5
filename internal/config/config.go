package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/titanous/json5"

	"github.com/John-Robertt/doubantop/internal/sink/dbsink"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// FileName 是工作目录下默认读取的配置文件名（可选）。
	FileName = "doubantop.json"
	// LocalFileName 与 FileName 同目录，存在时逐字段覆盖 FileName（适合放本机密码等）。
	LocalFileName = "doubantop.local.json"

	DefaultBaseURL   = "https://movie.douban.com/top250"
	DefaultPages     = 2
	DefaultPageSize  = 25
	DefaultTimeout   = "10s"
	DefaultDelay     = "2s"
	DefaultCSVPath   = "douban_movies.csv"
	DefaultLogLevel  = "info"
	UserAgentPool    = "pool"
	UserAgentFake    = "fake"
	envPrefix        = "DOUBANTOP"
	defaultUASource  = UserAgentPool
	defaultDBDriver  = dbsink.DriverMySQL
	defaultDBSQLPath = "douban.db"
)

// CLIArgs 是 CLI 暴露的覆盖项，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --pages 1 必须能覆盖 config.pages=5。
type CLIArgs struct {
	// ConfigPath 非空时该文件必须存在。
	ConfigPath string

	Pages    int
	PagesSet bool

	PageSize    int
	PageSizeSet bool

	CSVPath string
	NoCSV   bool

	// DB=true 强制启用数据库 sink。
	DB bool

	LogLevel string
}

// FileConfig 对应 doubantop.json 的解析结构（允许 JSON5 注释与尾逗号）。
//
// 默认值为 true 的开关用 *bool，以区分“未填写”与显式 false；合并时不解引用指针。
type FileConfig struct {
	Pages            int         `json:"pages"`
	PageSize         int         `json:"page_size"`
	BaseURL          string      `json:"base_url"`
	Timeout          string      `json:"timeout"`
	Delay            string      `json:"delay"`
	RetryMax         int         `json:"retry_max"`
	RotateUserAgent  *bool       `json:"rotate_user_agent"`
	UserAgentSource  string      `json:"user_agent_source"`
	CloudflareBypass bool        `json:"cloudflare_bypass"`
	Proxy            ProxyConfig `json:"proxy"`
	CSV              CSVConfig   `json:"csv"`
	DB               DBConfig    `json:"db"`
	SnapshotDir      string      `json:"snapshot_dir"`
	MetricsTextfile  string      `json:"metrics_textfile"`
	Log              LogConfig   `json:"log"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

type CSVConfig struct {
	Enabled *bool  `json:"enabled"`
	Path    string `json:"path"`
}

type DBConfig struct {
	Enabled     bool   `json:"enabled"`
	Driver      string `json:"driver"`
	DSN         string `json:"dsn"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	User        string `json:"user"`
	Password    string `json:"password"`
	Database    string `json:"database"`
	Charset     string `json:"charset"`
	Table       string `json:"table"`
	CreateTable *bool  `json:"create_table"`
}

type LogConfig struct {
	Level string `json:"level"`
	// Pretty 为 nil 时由 CLI 按 stderr 是否为终端决定。
	Pretty *bool `json:"pretty"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigFiles 是实际读到的配置文件（按合并顺序）。
	ConfigFiles []string

	BaseURL  string
	Pages    int
	PageSize int
	Timeout  time.Duration
	Delay    time.Duration
	RetryMax int

	RotateUserAgent  bool
	UserAgentSource  string
	CloudflareBypass bool
	ProxyURL         string

	CSV CSVOutput
	DB  DBOutput

	SnapshotDir     string
	MetricsTextfile string

	LogLevel  string
	LogPretty *bool
}

type CSVOutput struct {
	Enabled bool
	Path    string
}

// DBOutput 是数据库 sink 的参数；Enabled=false 时其余字段仍保留默认值，方便展示。
type DBOutput struct {
	Enabled bool
	dbsink.Config
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Defaults 返回内置默认配置（每次返回新值，可安全修改）。
func Defaults() FileConfig {
	t := true
	create := true
	return FileConfig{
		Pages:           DefaultPages,
		PageSize:        DefaultPageSize,
		BaseURL:         DefaultBaseURL,
		Timeout:         DefaultTimeout,
		Delay:           DefaultDelay,
		RotateUserAgent: &t,
		UserAgentSource: defaultUASource,
		CSV:             CSVConfig{Enabled: &t, Path: DefaultCSVPath},
		DB: DBConfig{
			Driver:      defaultDBDriver,
			Host:        dbsink.DefaultHost,
			Port:        dbsink.DefaultPort,
			User:        dbsink.DefaultUser,
			Database:    dbsink.DefaultDatabase,
			Charset:     dbsink.DefaultCharset,
			Table:       dbsink.DefaultTable,
			CreateTable: &create,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// LoadEffective 发现并读取配置文件，叠加环境变量与 CLI 参数，得到最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：读取该文件（必选），同目录的 doubantop.local.json 可选
// 2) 否则：读取 <cwd>/doubantop.json 与 <cwd>/doubantop.local.json（均可选）
//
// 覆盖优先级（固定）：CLI > 环境变量 > local 文件 > 配置文件 > 内置默认。
// 相对路径（csv.path/snapshot_dir/metrics_textfile/sqlite database）以 cwd 为基准。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		required = true
	}

	fc, files, err := readLayered(cfgPath, required)
	if err != nil {
		return EffectiveConfig{}, err
	}

	applyEnvOverrides(&fc)

	if err := mergo.Merge(&fc, Defaults(), mergo.WithoutDereference); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	eff, err := merge(cwdAbs, cli, fc)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.ConfigFiles = files
	return eff, nil
}

// readLayered 读取主文件与同目录的 local 覆盖文件，用 mergo 逐字段覆盖。
func readLayered(cfgPath string, required bool) (FileConfig, []string, error) {
	files := make([]string, 0, 2)

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return FileConfig{}, nil, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists && required {
		return FileConfig{}, nil, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if exists {
		files = append(files, cfgPath)
	}

	localPath := filepath.Join(filepath.Dir(cfgPath), LocalFileName)
	local, exists, err := readFileConfig(localPath)
	if err != nil {
		return FileConfig{}, nil, &Error{Code: ErrCodeInvalid, Path: localPath, Err: err}
	}
	if exists {
		if err := mergo.Merge(&fc, local, mergo.WithOverride, mergo.WithoutDereference); err != nil {
			return FileConfig{}, nil, &Error{Code: ErrCodeInvalid, Path: localPath, Err: err}
		}
		files = append(files, localPath)
	}
	return fc, files, nil
}

// applyEnvOverrides 只覆盖适合放在环境变量里的字段（连接信息、密码、代理、日志级别）。
func applyEnvOverrides(fc *FileConfig) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)

	_ = v.BindEnv("db_dsn", envPrefix+"_DB_DSN")
	_ = v.BindEnv("db_host", envPrefix+"_DB_HOST")
	_ = v.BindEnv("db_user", envPrefix+"_DB_USER")
	_ = v.BindEnv("db_password", envPrefix+"_DB_PASSWORD")
	_ = v.BindEnv("proxy_url", envPrefix+"_PROXY_URL")
	_ = v.BindEnv("log_level", envPrefix+"_LOG_LEVEL")

	if s := v.GetString("db_dsn"); s != "" {
		fc.DB.DSN = s
	}
	if s := v.GetString("db_host"); s != "" {
		fc.DB.Host = s
	}
	if s := v.GetString("db_user"); s != "" {
		fc.DB.User = s
	}
	if s := v.GetString("db_password"); s != "" {
		fc.DB.Password = s
	}
	if s := v.GetString("proxy_url"); s != "" {
		fc.Proxy.URL = s
	}
	if s := v.GetString("log_level"); s != "" {
		fc.Log.Level = s
	}
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	pages := fc.Pages
	if cli.PagesSet {
		pages = cli.Pages
	}
	if pages < 1 {
		return EffectiveConfig{}, fmt.Errorf("pages 必须 >= 1，实际是 %d", pages)
	}

	pageSize := fc.PageSize
	if cli.PageSizeSet {
		pageSize = cli.PageSize
	}
	if pageSize < 1 {
		return EffectiveConfig{}, fmt.Errorf("page_size 必须 >= 1，实际是 %d", pageSize)
	}

	baseURL := strings.TrimSpace(fc.BaseURL)
	if err := validateHTTPURL("base_url", baseURL); err != nil {
		return EffectiveConfig{}, err
	}

	timeout, err := parseDuration("timeout", fc.Timeout)
	if err != nil {
		return EffectiveConfig{}, err
	}
	if timeout <= 0 {
		return EffectiveConfig{}, fmt.Errorf("timeout 必须 > 0：%q", fc.Timeout)
	}
	delay, err := parseDuration("delay", fc.Delay)
	if err != nil {
		return EffectiveConfig{}, err
	}
	if delay <= 0 {
		return EffectiveConfig{}, fmt.Errorf("delay 必须 > 0：%q", fc.Delay)
	}

	// 文档约定：范围 [0, 5]；超出截断。
	retryMax := fc.RetryMax
	if retryMax < 0 {
		retryMax = 0
	}
	if retryMax > 5 {
		retryMax = 5
	}

	uaSource := strings.ToLower(strings.TrimSpace(fc.UserAgentSource))
	if uaSource != UserAgentPool && uaSource != UserAgentFake {
		return EffectiveConfig{}, fmt.Errorf("user_agent_source 只能是 pool 或 fake，实际是 %q", fc.UserAgentSource)
	}

	proxyURL := strings.TrimSpace(fc.Proxy.URL)
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return EffectiveConfig{}, fmt.Errorf("proxy.url 无效：%w", err)
		}
	}

	csvOut := CSVOutput{Enabled: boolOr(fc.CSV.Enabled, true), Path: fc.CSV.Path}
	if cli.CSVPath != "" {
		csvOut.Path = cli.CSVPath
		csvOut.Enabled = true
	}
	if cli.NoCSV {
		csvOut.Enabled = false
	}
	csvOut.Path = absCleanFrom(cwdAbs, csvOut.Path)

	dbOut, err := mergeDB(cwdAbs, fc.DB)
	if err != nil {
		return EffectiveConfig{}, err
	}
	if cli.DB {
		dbOut.Enabled = true
	}

	level := strings.ToLower(strings.TrimSpace(fc.Log.Level))
	if cli.LogLevel != "" {
		level = strings.ToLower(strings.TrimSpace(cli.LogLevel))
	}
	if _, err := zerolog.ParseLevel(level); err != nil || level == "" {
		return EffectiveConfig{}, fmt.Errorf("log.level 无效：%q", level)
	}

	return EffectiveConfig{
		BaseURL:          baseURL,
		Pages:            pages,
		PageSize:         pageSize,
		Timeout:          timeout,
		Delay:            delay,
		RetryMax:         retryMax,
		RotateUserAgent:  boolOr(fc.RotateUserAgent, true),
		UserAgentSource:  uaSource,
		CloudflareBypass: fc.CloudflareBypass,
		ProxyURL:         proxyURL,
		CSV:              csvOut,
		DB:               dbOut,
		SnapshotDir:      absCleanFrom(cwdAbs, fc.SnapshotDir),
		MetricsTextfile:  absCleanFrom(cwdAbs, fc.MetricsTextfile),
		LogLevel:         level,
		LogPretty:        fc.Log.Pretty,
	}, nil
}

func mergeDB(cwdAbs string, c DBConfig) (DBOutput, error) {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	if driver != dbsink.DriverMySQL && driver != dbsink.DriverSQLite {
		return DBOutput{}, fmt.Errorf("db.driver 只能是 mysql 或 sqlite，实际是 %q", c.Driver)
	}
	if err := dbsink.ValidateTable(c.Table); err != nil {
		return DBOutput{}, fmt.Errorf("db.table 无效：%w", err)
	}
	if c.Port < 0 || c.Port > 65535 {
		return DBOutput{}, fmt.Errorf("db.port 超出范围：%d", c.Port)
	}

	database := c.Database
	if driver == dbsink.DriverSQLite {
		// mysql 的默认库名对 sqlite 没有意义，改用本地文件。
		if database == "" || database == dbsink.DefaultDatabase {
			database = defaultDBSQLPath
		}
		database = absCleanFrom(cwdAbs, database)
	}

	return DBOutput{
		Enabled: c.Enabled,
		Config: dbsink.Config{
			Driver:      driver,
			DSN:         strings.TrimSpace(c.DSN),
			Host:        c.Host,
			Port:        c.Port,
			User:        c.User,
			Password:    c.Password,
			Database:    database,
			Charset:     c.Charset,
			Table:       c.Table,
			CreateTable: boolOr(c.CreateTable, true),
		},
	}, nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", field, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", field, raw)
	}
	return nil
}

func parseDuration(field, s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%s 无效：%q", field, s)
	}
	return d, nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 为空：返回空串
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON5 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json5.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
