// Package metrics 用独立的 Prometheus registry 统计一次 run 的页/记录/sink 结果。
//
// 指标：
//   - doubantop_pages_total{status} (Counter)：按 ok/empty/failed 统计的页数
//   - doubantop_records_total (Counter)：解析出的记录数
//   - doubantop_items_skipped_total (Counter)：因缺少标题被跳过的条目数
//   - doubantop_page_duration_seconds (Histogram)：单页抓取+解析耗时
//   - doubantop_sink_results_total{sink, status} (Counter)：sink 结果
//   - doubantop_sink_rows_total{sink} (Counter)：sink 写入行数
//   - doubantop_last_run_success (Gauge)：最近一次 run 是否没有 sink 失败
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/John-Robertt/doubantop/internal/config"
	"github.com/John-Robertt/doubantop/internal/domain"
)

// Metrics 持有一组注册在私有 registry 上的指标。
type Metrics struct {
	Registry *prometheus.Registry

	pages        *prometheus.CounterVec
	records      prometheus.Counter
	skipped      prometheus.Counter
	pageDuration prometheus.Histogram
	sinkResults  *prometheus.CounterVec
	sinkRows     *prometheus.CounterVec
	lastSuccess  prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		pages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "doubantop_pages_total",
			Help: "Pages processed by status",
		}, []string{"status"}),
		records: f.NewCounter(prometheus.CounterOpts{
			Name: "doubantop_records_total",
			Help: "Records extracted",
		}),
		skipped: f.NewCounter(prometheus.CounterOpts{
			Name: "doubantop_items_skipped_total",
			Help: "List items skipped for missing title",
		}),
		pageDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "doubantop_page_duration_seconds",
			Help:    "Fetch and extract duration per page",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		sinkResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "doubantop_sink_results_total",
			Help: "Sink results by sink and status",
		}, []string{"sink", "status"}),
		sinkRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "doubantop_sink_rows_total",
			Help: "Rows written by sink",
		}, []string{"sink"}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "doubantop_last_run_success",
			Help: "1 if the last run had no sink failure",
		}),
	}
}

// WriteTextfile 以 node_exporter textfile 格式写出全部指标。
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

// Observer 把运行事件转成指标。
func (m *Metrics) Observer() *Observer { return &Observer{m: m} }

type Observer struct {
	m *Metrics
}

func (o *Observer) OnStart(config.EffectiveConfig) {}

func (o *Observer) OnPageDone(res domain.PageResult, _ int) {
	o.m.pages.WithLabelValues(res.Status).Inc()
	o.m.records.Add(float64(res.Records))
	o.m.skipped.Add(float64(res.Skipped))
	o.m.pageDuration.Observe((time.Duration(res.DurationMS) * time.Millisecond).Seconds())
}

func (o *Observer) OnSinkDone(res domain.SinkResult) {
	o.m.sinkResults.WithLabelValues(res.Sink, res.Status).Inc()
	o.m.sinkRows.WithLabelValues(res.Sink).Add(float64(res.Written))
}

func (o *Observer) OnFinish(rr domain.RunReport) {
	if rr.OK() {
		o.m.lastSuccess.Set(1)
		return
	}
	o.m.lastSuccess.Set(0)
}
