// Package collect 按页遍历榜单：抓取、解析、限速并累积记录。
package collect

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/John-Robertt/doubantop/internal/app"
	"github.com/John-Robertt/doubantop/internal/domain"
	"github.com/John-Robertt/doubantop/internal/extract"
	"github.com/John-Robertt/doubantop/internal/pace"
	"github.com/John-Robertt/doubantop/internal/page"
)

// DefaultPageSize 是榜单每页条目数，也是 start 参数的步长。
const DefaultPageSize = 25

// Fetcher 是 collect 对抓取层的最小依赖（*page.Fetcher 满足它）。
type Fetcher interface {
	Fetch(ctx context.Context, url string) page.Outcome
}

// Snapshots 接收每个成功页面的原始 HTML（可选）。
type Snapshots interface {
	WritePage(offset int, body []byte) error
}

// Collector 串行处理所有页；任何单页失败都只影响该页。
type Collector struct {
	BaseURL   string
	Fetcher   Fetcher
	Pacer     pace.Pacer
	Snapshots Snapshots
	Observer  app.Observer
}

// Collect 依次请求 pageCount 页（offset = i*pageSize），返回累积记录与逐页明细。
//
// 相邻两页之间由 Pacer 等待；最后一页之后不等待。
// ctx 取消时停止后续页，已得到的记录照常返回。
func (c *Collector) Collect(ctx context.Context, pageCount, pageSize int) (domain.RunResult, []domain.PageResult) {
	records := make(domain.RunResult, 0, max(pageCount, 0)*DefaultPageSize)
	pages := make([]domain.PageResult, 0, max(pageCount, 0))
	if pageCount <= 0 {
		return records, pages
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if ctx == nil {
		ctx = context.Background()
	}

	obs := app.OrNop(c.Observer)
	pacer := c.Pacer
	if pacer == nil {
		pacer = pace.None{}
	}

	for i := 0; i < pageCount; i++ {
		if i > 0 {
			if err := pacer.Wait(ctx); err != nil {
				break
			}
		}

		res, recs := c.collectPage(ctx, i, i*pageSize)
		records = append(records, recs...)
		pages = append(pages, res)
		obs.OnPageDone(res, pageCount)
	}
	return records, pages
}

func (c *Collector) collectPage(ctx context.Context, index, offset int) (domain.PageResult, []domain.MovieRecord) {
	started := time.Now()
	res := domain.PageResult{Index: index, Offset: offset}

	u, err := PageURL(c.BaseURL, offset)
	if err != nil {
		res.Status = domain.PageStatusFailed
		res.ErrorCode = domain.ErrCodeConfigInvalid
		res.ErrorMsg = err.Error()
		res.DurationMS = time.Since(started).Milliseconds()
		return res, nil
	}
	res.URL = u

	if c.Fetcher == nil {
		res.Status = domain.PageStatusFailed
		res.ErrorCode = domain.ErrCodeTransportFailed
		res.ErrorMsg = "未配置 fetcher"
		res.DurationMS = time.Since(started).Milliseconds()
		return res, nil
	}

	out := c.Fetcher.Fetch(ctx, u)
	res.StatusCode = out.StatusCode
	if out.Kind != page.Success {
		res.Status = domain.PageStatusFailed
		res.ErrorCode = errorCode(out)
		if e := out.Err(); e != nil {
			res.ErrorMsg = e.Error()
		}
		res.DurationMS = time.Since(started).Milliseconds()
		return res, nil
	}

	if c.Snapshots != nil {
		if err := c.Snapshots.WritePage(offset, out.Body); err != nil {
			// 快照只用于排查选择器，失败不影响本页结果。
			res.ErrorCode = domain.ErrCodeSnapshotFailed
			res.ErrorMsg = err.Error()
		}
	}

	ex, err := extract.ExtractDetailed(out.Body)
	if err != nil {
		res.Status = domain.PageStatusFailed
		res.ErrorCode = domain.ErrCodeParseFailed
		res.ErrorMsg = err.Error()
		res.DurationMS = time.Since(started).Milliseconds()
		return res, nil
	}

	res.Records = len(ex.Records)
	res.Skipped = ex.Skipped
	res.Status = domain.PageStatusOK
	if len(ex.Records) == 0 {
		res.Status = domain.PageStatusEmpty
	}
	res.DurationMS = time.Since(started).Milliseconds()
	return res, ex.Records
}

func errorCode(out page.Outcome) string {
	switch out.Kind {
	case page.HTTPError:
		return domain.ErrCodeHTTPStatus
	default:
		return domain.ErrCodeTransportFailed
	}
}

// PageURL 在 base 上设置 start=<offset>，保留其他查询参数。
func PageURL(base string, offset int) (string, error) {
	if base == "" {
		return "", errors.New("base_url 为空")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("base_url 必须是绝对 URL：" + base)
	}
	q := u.Query()
	q.Set("start", strconv.Itoa(offset))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
