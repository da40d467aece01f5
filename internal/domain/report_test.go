package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SummaryAndUTC(t *testing.T) {
	r := RunReport{
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Pages: []PageResult{
			{Index: 0, Status: PageStatusOK, Records: 25, Skipped: 1},
			{Index: 1, Status: PageStatusFailed, StatusCode: 418, ErrorCode: ErrCodeHTTPStatus},
			{Index: 2, Status: PageStatusEmpty},
		},
		Sinks: []SinkResult{
			{Sink: "csv", Status: SinkStatusOK, Written: 25},
			{Sink: "db", Status: SinkStatusFailed, ErrorCode: ErrCodeDBConnectFailed},
		},
	}

	r.Finalize()

	want := ReportSummary{PagesAttempted: 3, PagesFailed: 1, PagesEmpty: 1, Records: 25, ItemsSkipped: 1, SinksFailed: 1}
	if r.Summary != want {
		t.Fatalf("summary 统计不正确：got=%+v want=%+v", r.Summary, want)
	}
	if r.OK() {
		t.Fatalf("db sink 失败时 OK() 应为 false")
	}
	// 页顺序必须保持抓取顺序。
	if r.Pages[0].Index != 0 || r.Pages[1].Index != 1 || r.Pages[2].Index != 2 {
		t.Fatalf("pages 顺序被改变：%+v", r.Pages)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	// time.Time 在 UTC 下应输出 'Z' 后缀。
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestRunReport_Finalize_NilSlicesEncodeAsArrays(t *testing.T) {
	var r RunReport
	r.Finalize()

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte(`"pages":[]`)) || !bytes.Contains(b, []byte(`"sinks":[]`)) {
		t.Fatalf("空 pages/sinks 应输出 []：%s", string(b))
	}
	if !r.OK() {
		t.Fatalf("没有 sink 时 OK() 应为 true")
	}
}
