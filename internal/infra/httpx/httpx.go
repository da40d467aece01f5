package httpx

import (
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
)

const (
	// DefaultTimeout 是单个页面请求的总超时。
	DefaultTimeout = 10 * time.Second
)

// Transport 把“gzip 解码 + keep-alive 策略 + 有界重试”固化为统一策略。
//
// 浏览器请求头由调用方（page.Fetcher）每个请求生成一次；这里只在缺少 User-Agent 时补默认值，
// 重试沿用同一组请求头。
type Transport struct {
	Base http.RoundTripper

	// RetryMax 表示传输层失败（拿不到响应）时的最大重试次数（不含首次尝试）。
	// 任何 HTTP 状态码都不重试，由上层决定。
	RetryMax int

	// DisableKeepAlives 决定是否对 Request 设置 Close=true（额外保险）。
	// 真正禁用 keep-alive 依赖 Base 的 DisableKeepAlives。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只对“可重放”的请求做重试：GET/HEAD 且无 body。
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 {
		max = 0
	}
	if !canRetry {
		max = 0
	}

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		r := req.Clone(req.Context())
		t.applyHeaders(r)

		resp, err := t.Base.RoundTrip(r)
		if err == nil {
			return decodeBody(resp)
		}
		lastErr = err
		if req.Context().Err() != nil {
			// ctx 已取消/超时：不再重试，直接返回最后错误。
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func (t *Transport) applyHeaders(r *http.Request) {
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", DefaultUserAgents[0])
	}
	if t.DisableKeepAlives {
		// 每请求新连接：不能再声明 keep-alive。
		r.Header.Del("Connection")
		r.Close = true
	}
}

// decodeBody 解开 gzip 响应，使上层拿到的始终是明文。
// Accept-Encoding 由我们显式声明后，net/http 不再自动解压，所以这里必须处理。
func decodeBody(resp *http.Response) (*http.Response, error) {
	if !strings.EqualFold(strings.TrimSpace(resp.Header.Get("Content-Encoding")), "gzip") {
		return resp, nil
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	resp.Body = &gzipBody{zr: zr, body: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

type gzipBody struct {
	zr   *gzip.Reader
	body io.ReadCloser
}

func (g *gzipBody) Read(p []byte) (int, error) { return g.zr.Read(p) }

func (g *gzipBody) Close() error {
	zerr := g.zr.Close()
	if err := g.body.Close(); err != nil {
		return err
	}
	return zerr
}

// Options 描述页面抓取 client 的网络策略。
type Options struct {
	ProxyURL string
	Timeout  time.Duration
	RetryMax int

	// CloudflareBypass 为底层连接套用浏览器风格的 TLS 配置与补齐请求头。
	CloudflareBypass bool
}

// NewClient 构造用于页面抓取的 HTTP client。
//
// 规则：
// - ProxyURL 非空：必须走代理，且禁用 keep-alive（每请求新连接）
// - 有界重试 + 总超时（Timeout<=0 时使用 DefaultTimeout）
func NewClient(opts Options) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}

	disableKeepAlives := false
	proxyURL := strings.TrimSpace(opts.ProxyURL)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(u)
		// proxy 模式强制每请求新连接（代理池轮换依赖该行为）。
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	var rt http.RoundTripper = base
	if opts.CloudflareBypass {
		rt = cloudflarebp.AddCloudFlareByPass(base)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	tr := &Transport{
		Base:              rt,
		RetryMax:          opts.RetryMax,
		DisableKeepAlives: disableKeepAlives,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}
