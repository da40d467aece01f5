package httpx

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
)

const (
	acceptValue         = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	acceptLanguageValue = "zh-CN,zh;q=0.9,en;q=0.8"
	// 只声明 Transport 能解码的压缩算法（见 decodeBody）。
	acceptEncodingValue = "gzip"

	// DefaultReferer 是无法从 base URL 推导时使用的来源页。
	DefaultReferer = "https://movie.douban.com/"
)

// HeaderSource 为每个请求生成一组请求头。
type HeaderSource interface {
	Build() http.Header
}

// HeaderFactory 构造“像浏览器”的请求头。
//
// - Rotate=true：每次 Build 都向 Identity 取一个新的 UA
// - Rotate=false：首次 Build 取一次 UA，之后复用
// - Identity 不可用：返回 DefaultHeaders()
type HeaderFactory struct {
	Identity Identity
	Referer  string
	Rotate   bool

	once    sync.Once
	fixedUA string
	fixedOK bool
}

// NewHeaderFactory 以 baseURL 的站点首页作为 Referer。
func NewHeaderFactory(id Identity, baseURL string, rotate bool) *HeaderFactory {
	return &HeaderFactory{
		Identity: id,
		Referer:  RefererFor(baseURL),
		Rotate:   rotate,
	}
}

func (f *HeaderFactory) Build() http.Header {
	ua, ok := f.userAgent()
	if !ok {
		return DefaultHeaders()
	}
	referer := strings.TrimSpace(f.Referer)
	if referer == "" {
		referer = DefaultReferer
	}
	return browserHeaders(ua, referer)
}

func (f *HeaderFactory) userAgent() (string, bool) {
	if f.Identity == nil {
		return "", false
	}
	if f.Rotate {
		return f.Identity.UserAgent()
	}
	f.once.Do(func() {
		f.fixedUA, f.fixedOK = f.Identity.UserAgent()
	})
	return f.fixedUA, f.fixedOK
}

// DefaultHeaders 是固定的回退请求头集合。
func DefaultHeaders() http.Header {
	return browserHeaders(DefaultUserAgents[0], DefaultReferer)
}

func browserHeaders(ua, referer string) http.Header {
	h := make(http.Header, 6)
	h.Set("User-Agent", ua)
	h.Set("Accept", acceptValue)
	h.Set("Accept-Language", acceptLanguageValue)
	h.Set("Accept-Encoding", acceptEncodingValue)
	h.Set("Referer", referer)
	h.Set("Connection", "keep-alive")
	return h
}

// RefererFor 返回 rawURL 所在站点的首页（scheme://host/）。
func RefererFor(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return DefaultReferer
	}
	return u.Scheme + "://" + u.Host + "/"
}
