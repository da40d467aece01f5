package page

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/John-Robertt/doubantop/internal/infra/httpx"
)

// Kind 是单次抓取结果的分类。
type Kind int

const (
	Success Kind = iota
	HTTPError
	TransportFailure
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case HTTPError:
		return "http_error"
	case TransportFailure:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Outcome 是 Fetch 的结果，三选一：
// - Success：Body 为响应体
// - HTTPError：StatusCode 为非 200 状态码
// - TransportFailure：Cause 为底层错误
type Outcome struct {
	Kind       Kind
	URL        string
	Body       []byte
	StatusCode int
	Cause      error
	Duration   time.Duration
}

// Err 把非 Success 的结果转换为可归类的 error；Success 时返回 nil。
func (o Outcome) Err() error {
	switch o.Kind {
	case HTTPError:
		return &HTTPStatusError{URL: o.URL, StatusCode: o.StatusCode}
	case TransportFailure:
		return &TransportError{URL: o.URL, Err: o.Cause}
	default:
		return nil
	}
}

// Fetcher 对每个 URL 发一次 GET，并把结果归类为 Outcome。
//
// 约束：
// - 不做状态码重试、不做限速（由 collect 统一控制）
// - 不保留请求间状态
// - 任何错误都被归类返回，不向上抛出
type Fetcher struct {
	client  *resty.Client
	headers httpx.HeaderSource
}

// NewFetcher 基于 httpx 构造的 *http.Client 创建 Fetcher。
//
// headers 只在这里生成：每个请求调用一次 Build，重试沿用同一组头。
// 必须在请求层设置（resty 会为缺失的 User-Agent 填入自己的默认值）。
// timeout>0 时覆盖 client 的总超时。
func NewFetcher(c *http.Client, headers httpx.HeaderSource, timeout time.Duration) *Fetcher {
	if c == nil {
		c = &http.Client{}
	}
	rc := resty.NewWithClient(c)
	if timeout > 0 {
		rc.SetTimeout(timeout)
	}
	rc.SetRetryCount(0)
	return &Fetcher{client: rc, headers: headers}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) Outcome {
	started := time.Now()
	out := f.fetch(ctx, url)
	out.URL = url
	out.Duration = time.Since(started)
	return out
}

func (f *Fetcher) fetch(ctx context.Context, url string) Outcome {
	if f == nil || f.client == nil {
		return Outcome{Kind: TransportFailure, Cause: errors.New("nil fetcher")}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	req := f.client.R().SetContext(ctx)
	if f.headers != nil {
		h := f.headers.Build()
		for k := range h {
			req.SetHeader(k, h.Get(k))
		}
	}
	resp, err := req.Get(url)
	if err != nil {
		return Outcome{Kind: TransportFailure, Cause: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return Outcome{Kind: HTTPError, StatusCode: resp.StatusCode()}
	}
	return Outcome{Kind: Success, StatusCode: resp.StatusCode(), Body: resp.Body()}
}
