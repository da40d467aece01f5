package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/doubantop/internal/app"
	"github.com/John-Robertt/doubantop/internal/app/run"
	"github.com/John-Robertt/doubantop/internal/config"
	"github.com/John-Robertt/doubantop/internal/domain"
	"github.com/John-Robertt/doubantop/internal/logging"
	"github.com/John-Robertt/doubantop/internal/metrics"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// exitCodeError 携带 run 自身决定的退出码；cobra 返回的其它错误都按参数错误处理。
type exitCodeError struct{ code int }

func (e *exitCodeError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	c, err := root.ExecuteC()
	if err == nil {
		return 0
	}
	var ec *exitCodeError
	if errors.As(err, &ec) {
		return ec.code
	}
	fmt.Fprintf(stderr, "参数错误：%v\n\n", err)
	fmt.Fprint(stderr, c.UsageString())
	return 2
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "doubantop",
		Short:         "抓取豆瓣电影 Top250 并写入 CSV / 数据库",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newRunCmd(stdout, stderr))
	return root
}

type runFlags struct {
	config   string
	pages    int
	pageSize int
	csv      string
	noCSV    bool
	db       bool
	logLevel string
}

func newRunCmd(stdout, stderr io.Writer) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "顺序抓取若干页并写入启用的 sink",
		Long: `顺序抓取榜单页（start=0, page_size, 2*page_size...），页间按 delay 暂停，
最后把全部记录交给启用的 sink（CSV 与数据库彼此独立）。

stdout 为终端时输出汇总表；否则 stdout 只输出一个 RunReport JSON，日志走 stderr。
退出码：0 没有 sink 失败；1 有 sink 失败；2 参数/配置错误。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ca := config.CLIArgs{
				ConfigPath:  f.config,
				Pages:       f.pages,
				PagesSet:    cmd.Flags().Changed("pages"),
				PageSize:    f.pageSize,
				PageSizeSet: cmd.Flags().Changed("page-size"),
				CSVPath:     f.csv,
				NoCSV:       f.noCSV,
				DB:          f.db,
				LogLevel:    f.logLevel,
			}
			if code := runCmd(ca, stdout, stderr); code != 0 {
				return &exitCodeError{code: code}
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.config, "config", "", "配置文件路径（指定后必须存在；默认读取 ./"+config.FileName+"）")
	fl.IntVar(&f.pages, "pages", config.DefaultPages, "抓取页数")
	fl.IntVar(&f.pageSize, "page-size", config.DefaultPageSize, "每页条目数（决定 start 步长）")
	fl.StringVar(&f.csv, "csv", "", "CSV 输出路径（同时启用 CSV sink）")
	fl.BoolVar(&f.noCSV, "no-csv", false, "禁用 CSV sink")
	fl.BoolVar(&f.db, "db", false, "启用数据库 sink")
	fl.StringVar(&f.logLevel, "log-level", "", "日志级别：trace|debug|info|warn|error")
	cmd.MarkFlagsMutuallyExclusive("csv", "no-csv")
	return cmd
}

func runCmd(ca config.CLIArgs, stdout, stderr io.Writer) int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, ca)
	if err != nil {
		fmt.Fprintf(stderr, "配置错误（%s）：%v\n", config.Code(err), err)
		return 2
	}

	lc := logging.DefaultConfig()
	lc.Output = stderr
	lc.Pretty = isTTY(stderr)
	if eff.LogPretty != nil {
		lc.Pretty = *eff.LogPretty
	}
	if eff.LogLevel != "" {
		lc.Level = eff.LogLevel
	}
	logger := logging.Setup(lc)

	m := metrics.New()
	obs := app.Multi{
		newLogObserver(logging.Component(logger, "run")),
		m.Observer(),
	}

	rr := run.ExecuteWithObserver(context.Background(), eff, obs)

	if eff.MetricsTextfile != "" {
		if err := m.WriteTextfile(eff.MetricsTextfile); err != nil {
			logger.Error().Err(err).Str("path", eff.MetricsTextfile).Msg("写入指标文件失败")
		}
	}

	emitReport(stdout, stderr, rr)
	if rr.OK() {
		return 0
	}
	return 1
}

func emitReport(stdout, stderr io.Writer, rr domain.RunReport) {
	if isTTY(stdout) {
		renderReport(stdout, rr)
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(stderr, summaryLine(rr))
}

func summaryLine(rr domain.RunReport) string {
	s := rr.Summary
	return fmt.Sprintf("完成：pages=%d failed=%d empty=%d records=%d skipped=%d sinks_failed=%d",
		s.PagesAttempted, s.PagesFailed, s.PagesEmpty, s.Records, s.ItemsSkipped, s.SinksFailed,
	)
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
