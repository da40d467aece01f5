package run

import (
	"context"
	"fmt"
	"time"

	"github.com/John-Robertt/doubantop/internal/app"
	"github.com/John-Robertt/doubantop/internal/app/collect"
	"github.com/John-Robertt/doubantop/internal/config"
	"github.com/John-Robertt/doubantop/internal/domain"
	"github.com/John-Robertt/doubantop/internal/infra/httpx"
	"github.com/John-Robertt/doubantop/internal/infra/snapshot"
	"github.com/John-Robertt/doubantop/internal/pace"
	"github.com/John-Robertt/doubantop/internal/page"
	"github.com/John-Robertt/doubantop/internal/sink"
	"github.com/John-Robertt/doubantop/internal/sink/csvsink"
	"github.com/John-Robertt/doubantop/internal/sink/dbsink"
)

// Execute 执行一次完整 run（抓取全部页，然后依次落盘），并返回对外稳定的 RunReport。
// 该函数把错误“降级”为页级/ sink 级失败：单页失败不影响其他页，单个 sink 失败不影响其他 sink。
func Execute(ctx context.Context, eff config.EffectiveConfig) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, obs app.Observer) domain.RunReport {
	if ctx == nil {
		ctx = context.Background()
	}
	obs = app.OrNop(obs)
	obs.OnStart(eff)

	rr := domain.RunReport{
		StartedAt: time.Now().UTC(),
		Pages:     make([]domain.PageResult, 0, eff.Pages),
		Sinks:     make([]domain.SinkResult, 0, 2),
	}

	collector, err := newCollector(eff, obs)
	if err != nil {
		// 抓取链路无法构造：不发请求，所有已启用的 sink 记为失败，保证退出码非 0。
		for _, name := range enabledSinks(eff) {
			res := domain.SinkResult{
				Sink:      name,
				Status:    domain.SinkStatusFailed,
				ErrorCode: domain.ErrCodeConfigInvalid,
				ErrorMsg:  fmt.Sprintf("未执行：%v", err),
			}
			rr.Sinks = append(rr.Sinks, res)
			obs.OnSinkDone(res)
		}
		return finish(rr, obs)
	}

	records, pages := collector.Collect(ctx, eff.Pages, eff.PageSize)
	rr.Pages = pages

	rr.Sinks = persist(ctx, eff, records, obs)
	return finish(rr, obs)
}

func finish(rr domain.RunReport, obs app.Observer) domain.RunReport {
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	obs.OnFinish(rr)
	return rr
}

// newCollector 按配置组装 身份池 -> HeaderFactory -> http.Client -> Fetcher -> Collector。
func newCollector(eff config.EffectiveConfig, obs app.Observer) (*collect.Collector, error) {
	var id httpx.Identity = httpx.SharedPool()
	if eff.UserAgentSource == config.UserAgentFake {
		id = httpx.FakeIdentity{}
	}
	headers := httpx.NewHeaderFactory(id, eff.BaseURL, eff.RotateUserAgent)

	client, err := httpx.NewClient(httpx.Options{
		ProxyURL:         eff.ProxyURL,
		Timeout:          eff.Timeout,
		RetryMax:         eff.RetryMax,
		CloudflareBypass: eff.CloudflareBypass,
	})
	if err != nil {
		return nil, fmt.Errorf("proxy.url 无效：%w", err)
	}

	c := &collect.Collector{
		BaseURL:  eff.BaseURL,
		Fetcher:  page.NewFetcher(client, headers, eff.Timeout),
		Pacer:    pace.For(eff.Delay),
		Observer: obs,
	}
	if eff.SnapshotDir != "" {
		c.Snapshots = snapshot.New(eff.SnapshotDir)
	}
	return c, nil
}

// persist 按 csv、db 的固定顺序落盘；未启用的 sink 以 disabled 记录。
func persist(ctx context.Context, eff config.EffectiveConfig, records domain.RunResult, obs app.Observer) []domain.SinkResult {
	out := make([]domain.SinkResult, 0, 2)
	emit := func(res domain.SinkResult) {
		out = append(out, res)
		obs.OnSinkDone(res)
	}
	run := func(s sink.Sink) {
		sink.PersistAll(ctx, records, []sink.Sink{s}, emit)
	}

	if eff.CSV.Enabled {
		run(csvsink.New(eff.CSV.Path))
	} else {
		emit(sink.Disabled("csv"))
	}

	if !eff.DB.Enabled {
		emit(sink.Disabled("db"))
		return out
	}
	db, err := dbsink.New(eff.DB.Config)
	if err != nil {
		emit(domain.SinkResult{
			Sink:      "db",
			Status:    domain.SinkStatusFailed,
			ErrorCode: domain.ErrCodeConfigInvalid,
			ErrorMsg:  err.Error(),
		})
		return out
	}
	run(db)
	return out
}

func enabledSinks(eff config.EffectiveConfig) []string {
	names := make([]string, 0, 2)
	if eff.CSV.Enabled {
		names = append(names, "csv")
	}
	if eff.DB.Enabled {
		names = append(names, "db")
	}
	return names
}
