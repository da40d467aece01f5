package domain

import (
	"encoding/json"
	"time"
)

const (
	PageStatusOK     = "ok"
	PageStatusEmpty  = "empty"
	PageStatusFailed = "failed"
)

const (
	SinkStatusOK       = "ok"
	SinkStatusSkipped  = "skipped"
	SinkStatusFailed   = "failed"
	SinkStatusDisabled = "disabled"
)

const (
	ErrCodeTransportFailed = "transport_failed"
	ErrCodeHTTPStatus      = "http_status"
	ErrCodeParseFailed     = "parse_failed"
	ErrCodeSnapshotFailed  = "snapshot_failed"
	ErrCodeCSVIOFailed     = "csv_io_failed"
	ErrCodeDBConnectFailed = "db_connect_failed"
	ErrCodeDBWriteFailed   = "db_write_failed"
	ErrCodeConfigNotFound  = "config_not_found"
	ErrCodeConfigInvalid   = "config_invalid"
)

// PageResult 记录单页的抓取/解析结果。
//
// Status 区分三种情况：
// - ok：请求成功且至少解析出一条记录
// - empty：请求成功但页面没有条目（通常意味着已越过榜单末尾）
// - failed：HTTP 非 200 或传输层失败（页面按 0 条处理）
type PageResult struct {
	Index      int    `json:"index"`
	Offset     int    `json:"offset"`
	URL        string `json:"url"`
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	Records    int    `json:"records"`
	Skipped    int    `json:"skipped"`
	ErrorCode  string `json:"error_code"`
	ErrorMsg   string `json:"error_msg"`
	DurationMS int64  `json:"duration_ms"`
}

// SinkResult 记录单个 sink 的落盘结果。
type SinkResult struct {
	Sink      string `json:"sink"`
	Status    string `json:"status"`
	Written   int    `json:"written"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// RunReport 是对外稳定输出（stdout JSON）的结构。
type RunReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Pages   []PageResult  `json:"pages"`
	Sinks   []SinkResult  `json:"sinks"`
}

type ReportSummary struct {
	PagesAttempted int `json:"pages_attempted"`
	PagesFailed    int `json:"pages_failed"`
	PagesEmpty     int `json:"pages_empty"`
	Records        int `json:"records"`
	ItemsSkipped   int `json:"items_skipped"`
	SinksFailed    int `json:"sinks_failed"`
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) summary 由 pages/sinks 计算得出
//
// pages 保持抓取顺序，不排序。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Pages == nil {
		r.Pages = []PageResult{}
	}
	if r.Sinks == nil {
		r.Sinks = []SinkResult{}
	}

	var s ReportSummary
	for _, p := range r.Pages {
		s.PagesAttempted++
		switch p.Status {
		case PageStatusFailed:
			s.PagesFailed++
		case PageStatusEmpty:
			s.PagesEmpty++
		}
		s.Records += p.Records
		s.ItemsSkipped += p.Skipped
	}
	for _, sr := range r.Sinks {
		if sr.Status == SinkStatusFailed {
			s.SinksFailed++
		}
	}
	r.Summary = s
}

// OK 表示没有任何 sink 失败（页失败不算 run 失败）。
func (r RunReport) OK() bool { return r.Summary.SinksFailed == 0 }

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
