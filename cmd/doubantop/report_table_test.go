package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/John-Robertt/doubantop/internal/domain"
)

func TestRenderReport(t *testing.T) {
	rr := domain.RunReport{
		Pages: []domain.PageResult{
			{Index: 0, Offset: 0, Status: domain.PageStatusOK, StatusCode: 200, Records: 25},
			{Index: 1, Offset: 25, Status: domain.PageStatusFailed, StatusCode: 403, ErrorCode: domain.ErrCodeHTTPStatus, ErrorMsg: "HTTP 403"},
			{Index: 2, Offset: 50, Status: domain.PageStatusFailed, ErrorCode: domain.ErrCodeTransportFailed, ErrorMsg: "connection reset"},
		},
		Sinks: []domain.SinkResult{
			{Sink: "csv", Status: domain.SinkStatusOK, Written: 25},
			{Sink: "db", Status: domain.SinkStatusFailed, ErrorCode: domain.ErrCodeDBConnectFailed, ErrorMsg: "refused"},
		},
	}
	rr.Finalize()

	var buf bytes.Buffer
	renderReport(&buf, rr)
	out := buf.String()

	for _, want := range []string{
		"403",
		"http_status: HTTP 403",
		"transport_failed: connection reset",
		"csv",
		"db_connect_failed: refused",
		"完成：pages=3 failed=2 empty=0 records=25 skipped=0 sinks_failed=1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("汇总表缺少 %q：\n%s", want, out)
		}
	}
}

func TestErrorCell(t *testing.T) {
	if got := errorCell("", "ignored"); got != "" {
		t.Fatalf("无错误码时应为空：%q", got)
	}
	if got := errorCell(domain.ErrCodeParseFailed, ""); got != domain.ErrCodeParseFailed {
		t.Fatalf("无信息时只展示错误码：%q", got)
	}
}
