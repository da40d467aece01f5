package httpx

import (
	"testing"
)

type countingIdentity struct {
	calls int
	uas   []string
}

func (c *countingIdentity) UserAgent() (string, bool) {
	ua := c.uas[c.calls%len(c.uas)]
	c.calls++
	return ua, true
}

type deadIdentity struct{}

func (deadIdentity) UserAgent() (string, bool) { return "", false }

func TestHeaderFactory_BuildIncludesBrowserHeaders(t *testing.T) {
	hf := NewHeaderFactory(NewPool([]string{"UA-X"}, 1), "https://movie.douban.com/top250?start=0", true)
	h := hf.Build()

	want := map[string]string{
		"User-Agent":      "UA-X",
		"Accept-Encoding": "gzip",
		"Referer":         "https://movie.douban.com/",
		"Connection":      "keep-alive",
	}
	for k, v := range want {
		if h.Get(k) != v {
			t.Fatalf("%s 不符合预期：got=%q want=%q", k, h.Get(k), v)
		}
	}
	if h.Get("Accept") == "" || h.Get("Accept-Language") == "" {
		t.Fatalf("缺少内容协商头：%v", h)
	}
}

func TestHeaderFactory_RotateVsReuse(t *testing.T) {
	id := &countingIdentity{uas: []string{"A", "B"}}
	rot := NewHeaderFactory(id, "", true)
	if rot.Build().Get("User-Agent") != "A" || rot.Build().Get("User-Agent") != "B" {
		t.Fatalf("Rotate=true 应每次取新 UA")
	}

	id2 := &countingIdentity{uas: []string{"A", "B"}}
	fixed := NewHeaderFactory(id2, "", false)
	for i := 0; i < 3; i++ {
		if ua := fixed.Build().Get("User-Agent"); ua != "A" {
			t.Fatalf("Rotate=false 应复用首个 UA，第 %d 次得到 %q", i, ua)
		}
	}
	if id2.calls != 1 {
		t.Fatalf("Rotate=false 只应查询 1 次 Identity，实际 %d", id2.calls)
	}
}

func TestHeaderFactory_FallbackToDefaults(t *testing.T) {
	cases := map[string]*HeaderFactory{
		"nil identity":  NewHeaderFactory(nil, "https://example.test/", true),
		"dead identity": NewHeaderFactory(deadIdentity{}, "https://example.test/", true),
		"empty pool":    NewHeaderFactory(NewPool(nil, 1), "https://example.test/", true),
	}
	def := DefaultHeaders()
	for name, hf := range cases {
		h := hf.Build()
		for k := range def {
			if h.Get(k) != def.Get(k) {
				t.Fatalf("%s：%s 应回退为默认值 %q，实际 %q", name, k, def.Get(k), h.Get(k))
			}
		}
	}
}

func TestPool_SkipsBlankAndIsShared(t *testing.T) {
	p := NewPool([]string{" ", "UA", ""}, 7)
	for i := 0; i < 5; i++ {
		if ua, ok := p.UserAgent(); !ok || ua != "UA" {
			t.Fatalf("空白项应被过滤，第 %d 次得到 %q ok=%v", i, ua, ok)
		}
	}

	if SharedPool() != SharedPool() {
		t.Fatalf("SharedPool 应返回同一实例")
	}
	known := map[string]bool{}
	for _, ua := range DefaultUserAgents {
		known[ua] = true
	}
	for i := 0; i < 50; i++ {
		ua, ok := SharedPool().UserAgent()
		if !ok || !known[ua] {
			t.Fatalf("SharedPool 只应抽取默认 UA，得到 %q ok=%v", ua, ok)
		}
	}
}

func TestRefererFor(t *testing.T) {
	cases := map[string]string{
		"https://movie.douban.com/top250?start=25": "https://movie.douban.com/",
		"http://127.0.0.1:8080/list":               "http://127.0.0.1:8080/",
		"":                                         DefaultReferer,
		"not a url":                                DefaultReferer,
	}
	for in, want := range cases {
		if got := RefererFor(in); got != want {
			t.Fatalf("RefererFor(%q)=%q，期望 %q", in, got, want)
		}
	}
}
