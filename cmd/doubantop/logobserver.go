package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/doubantop/internal/app"
	"github.com/John-Robertt/doubantop/internal/config"
	"github.com/John-Robertt/doubantop/internal/domain"
)

var _ app.Observer = (*logObserver)(nil)

// logObserver 把 run 事件转成结构化日志行（写 stderr，不污染 stdout 的 JSON 输出契约）。
//
// 数据库密码与 DSN 可能含凭据，一律不输出。
type logObserver struct {
	log zerolog.Logger
}

func newLogObserver(logger zerolog.Logger) *logObserver {
	return &logObserver{log: logger}
}

func (o *logObserver) OnStart(eff config.EffectiveConfig) {
	ev := o.log.Info().
		Strs("config_files", nonNil(eff.ConfigFiles)).
		Str("base_url", eff.BaseURL).
		Int("pages", eff.Pages).
		Int("page_size", eff.PageSize).
		Dur("timeout", eff.Timeout).
		Dur("delay", eff.Delay).
		Int("retry_max", eff.RetryMax).
		Str("user_agent_source", eff.UserAgentSource).
		Bool("rotate_user_agent", eff.RotateUserAgent).
		Str("proxy", formatProxy(eff.ProxyURL)).
		Bool("csv", eff.CSV.Enabled).
		Bool("db", eff.DB.Enabled)
	if eff.CSV.Enabled {
		ev = ev.Str("csv_path", eff.CSV.Path)
	}
	if eff.DB.Enabled {
		ev = ev.Str("db_driver", eff.DB.Driver).Str("db_table", eff.DB.Table)
	}
	if eff.SnapshotDir != "" {
		ev = ev.Str("snapshot_dir", eff.SnapshotDir)
	}
	ev.Msg("开始抓取")
}

func (o *logObserver) OnPageDone(res domain.PageResult, total int) {
	ev := o.log.Info()
	if res.ErrorCode != "" {
		ev = o.log.Warn()
	}
	ev = ev.
		Int("page", res.Index+1).
		Int("total", total).
		Int("offset", res.Offset).
		Str("status", res.Status).
		Int("records", res.Records).
		Int("skipped", res.Skipped).
		Int64("duration_ms", res.DurationMS)
	if res.StatusCode != 0 {
		ev = ev.Int("status_code", res.StatusCode)
	}
	if res.ErrorCode != "" {
		ev = ev.Str("error_code", res.ErrorCode).Str("error", truncate(res.ErrorMsg, 160))
	}
	ev.Msg("页完成")
}

func (o *logObserver) OnSinkDone(res domain.SinkResult) {
	ev := o.log.Info()
	if res.Status == domain.SinkStatusFailed {
		ev = o.log.Error()
	}
	ev = ev.Str("sink", res.Sink).Str("status", res.Status).Int("written", res.Written)
	if res.ErrorCode != "" {
		ev = ev.Str("error_code", res.ErrorCode).Str("error", truncate(res.ErrorMsg, 160))
	}
	ev.Msg("sink 完成")
}

func (o *logObserver) OnFinish(rr domain.RunReport) {
	s := rr.Summary
	o.log.Info().
		Int("pages_attempted", s.PagesAttempted).
		Int("pages_failed", s.PagesFailed).
		Int("pages_empty", s.PagesEmpty).
		Int("records", s.Records).
		Int("items_skipped", s.ItemsSkipped).
		Int("sinks_failed", s.SinksFailed).
		Dur("elapsed", rr.FinishedAt.Sub(rr.StartedAt)).
		Msg("抓取结束")
}

// formatProxy 只展示 scheme/host 与是否带认证，不输出用户名密码。
func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

// truncate 按 rune 截断，避免切坏中文错误信息。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
