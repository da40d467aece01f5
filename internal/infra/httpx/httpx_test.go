package httpx

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewClient(Options{ProxyURL: "http://127.0.0.1:8080"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	base, ok := tr.Base.(*http.Transport)
	if !ok {
		t.Fatalf("期望 *http.Transport，实际 %T", tr.Base)
	}
	if base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !base.DisableKeepAlives {
		t.Fatalf("期望禁用 keep-alive，但 Base.DisableKeepAlives=false")
	}
	if !tr.DisableKeepAlives {
		t.Fatalf("期望设置 Request.Close=true 的额外保险，但 DisableKeepAlives=false")
	}
}

func TestNewClient_NoProxyKeepsDefault(t *testing.T) {
	c, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*Transport)
	base := tr.Base.(*http.Transport)
	if base.Proxy != nil {
		t.Fatalf("不期望启用代理，但 Proxy!=nil")
	}
	if base.DisableKeepAlives {
		t.Fatalf("不期望禁用 keep-alive，但 Base.DisableKeepAlives=true")
	}
	if c.Timeout != DefaultTimeout {
		t.Fatalf("期望默认超时 %v，实际 %v", DefaultTimeout, c.Timeout)
	}
}

func TestNewClient_CloudflareBypassWrapsBase(t *testing.T) {
	c, err := NewClient(Options{CloudflareBypass: true, Timeout: 3 * time.Second})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*Transport)
	if _, ok := tr.Base.(*http.Transport); ok {
		t.Fatalf("启用 cloudflare_bypass 时 Base 应被包装")
	}
	if c.Timeout != 3*time.Second {
		t.Fatalf("期望超时 3s，实际 %v", c.Timeout)
	}
}

func TestNewClient_InvalidProxyURL(t *testing.T) {
	_, err := NewClient(Options{ProxyURL: "http://[::1"})
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestTransport_FillsDefaultUAOnly(t *testing.T) {
	var got []http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Clone())
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	bare, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(bare)
	if err != nil {
		t.Fatalf("请求失败：%v", err)
	}
	resp.Body.Close()

	custom, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	custom.Header.Set("User-Agent", "UA-1")
	custom.Header.Set("Accept-Language", "en")
	resp, err = c.Do(custom)
	if err != nil {
		t.Fatalf("请求失败：%v", err)
	}
	resp.Body.Close()

	if len(got) != 2 {
		t.Fatalf("期望 2 次请求，实际 %d", len(got))
	}
	if got[0].Get("User-Agent") != DefaultUserAgents[0] {
		t.Fatalf("缺少 UA 时应补默认值：%q", got[0].Get("User-Agent"))
	}
	if got[0].Get("Referer") != "" {
		t.Fatalf("Transport 不应自行生成浏览器头：Referer=%q", got[0].Get("Referer"))
	}
	if got[1].Get("User-Agent") != "UA-1" || got[1].Get("Accept-Language") != "en" {
		t.Fatalf("调用方设置的头不应被覆盖：%v", got[1])
	}
}

func TestTransport_DecodesGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte("<html>肖申克的救赎</html>"))
	_ = zw.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	c, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header = NewHeaderFactory(SharedPool(), srv.URL, true).Build()
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("请求失败：%v", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("读取 body 失败：%v", err)
	}
	if string(b) != "<html>肖申克的救赎</html>" {
		t.Fatalf("gzip 未被解码：%q", string(b))
	}
	if resp.Header.Get("Content-Encoding") != "" {
		t.Fatalf("解码后应移除 Content-Encoding")
	}
}

type flakyRT struct {
	fails int32
	calls int32
}

func (f *flakyRT) RoundTrip(r *http.Request) (*http.Response, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.fails {
		return nil, errors.New("connection reset")
	}
	return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: io.NopCloser(bytes.NewReader(nil)), Request: r}, nil
}

func TestTransport_RetryOnlyTransportErrors(t *testing.T) {
	rt := &flakyRT{fails: 2}
	tr := &Transport{Base: rt, RetryMax: 2}

	req, _ := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	resp, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatalf("期望第 3 次成功，实际 err=%v", err)
	}
	resp.Body.Close()
	if rt.calls != 3 {
		t.Fatalf("期望 3 次尝试，实际 %d", rt.calls)
	}

	rt2 := &flakyRT{fails: 5}
	tr2 := &Transport{Base: rt2, RetryMax: 0}
	if _, err := tr2.RoundTrip(req); err == nil {
		t.Fatalf("RetryMax=0 时期望直接失败")
	}
	if rt2.calls != 1 {
		t.Fatalf("RetryMax=0 时只应尝试 1 次，实际 %d", rt2.calls)
	}
}

func TestTransport_DisableKeepAlivesDropsConnectionHeader(t *testing.T) {
	var seen *http.Request
	tr := &Transport{
		Base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			seen = r
			return &http.Response{StatusCode: 200, Header: http.Header{}, Body: io.NopCloser(bytes.NewReader(nil))}, nil
		}),
		DisableKeepAlives: true,
	}
	req, _ := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	req.Header = NewHeaderFactory(NewPool([]string{"UA"}, 1), "", false).Build()
	if _, err := tr.RoundTrip(req); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !seen.Close {
		t.Fatalf("期望 Request.Close=true")
	}
	if seen.Header.Get("Connection") != "" {
		t.Fatalf("禁用 keep-alive 时不应发送 Connection 头：%q", seen.Header.Get("Connection"))
	}
	if req.Header.Get("Connection") != "keep-alive" || req.Close {
		t.Fatalf("不应修改调用方的 request")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
