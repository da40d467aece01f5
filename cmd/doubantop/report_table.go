package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/John-Robertt/doubantop/internal/domain"
)

// renderReport 在交互终端输出页/sink 两张汇总表和一行摘要。
func renderReport(w io.Writer, rr domain.RunReport) {
	pt := table.NewWriter()
	pt.SetOutputMirror(w)
	pt.SetTitle("页")
	pt.AppendHeader(table.Row{"#", "start", "状态", "HTTP", "记录", "跳过", "错误"})
	for _, p := range rr.Pages {
		pt.AppendRow(table.Row{
			p.Index + 1,
			p.Offset,
			p.Status,
			statusCodeCell(p.StatusCode),
			p.Records,
			p.Skipped,
			errorCell(p.ErrorCode, p.ErrorMsg),
		})
	}
	pt.AppendFooter(table.Row{"", "", "", "合计", rr.Summary.Records, rr.Summary.ItemsSkipped, ""})
	pt.SetStyle(table.StyleRounded)
	pt.Render()

	st := table.NewWriter()
	st.SetOutputMirror(w)
	st.SetTitle("sink")
	st.AppendHeader(table.Row{"sink", "状态", "写入", "错误"})
	for _, s := range rr.Sinks {
		st.AppendRow(table.Row{s.Sink, s.Status, s.Written, errorCell(s.ErrorCode, s.ErrorMsg)})
	}
	st.SetStyle(table.StyleRounded)
	st.Render()

	fmt.Fprintln(w, summaryLine(rr))
}

func statusCodeCell(code int) string {
	if code == 0 {
		return "-"
	}
	return strconv.Itoa(code)
}

func errorCell(code, msg string) string {
	if code == "" {
		return ""
	}
	if msg == "" {
		return code
	}
	return code + ": " + truncate(msg, 60)
}
