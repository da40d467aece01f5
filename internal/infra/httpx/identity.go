package httpx

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/corpix/uarand"
)

// Identity 提供请求使用的 User-Agent。
// ok=false 表示来源不可用（空池、生成失败等），调用方应回退到固定默认头。
type Identity interface {
	UserAgent() (ua string, ok bool)
}

// DefaultUserAgents 是内置的桌面浏览器 UA 池（Chrome/Firefox/Edge/Safari × Windows/Mac）。
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

// Pool 是静态 UA 轮换池，并发安全。
type Pool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

// NewPool 用 uas 构造轮换池（空白项会被丢弃）。seed 固定时抽取序列可复现，便于测试。
func NewPool(uas []string, seed int64) *Pool {
	clean := make([]string, 0, len(uas))
	for _, ua := range uas {
		ua = strings.TrimSpace(ua)
		if ua != "" {
			clean = append(clean, ua)
		}
	}
	return &Pool{
		rnd: rand.New(rand.NewSource(seed)),
		uas: clean,
	}
}

func (p *Pool) UserAgent() (string, bool) {
	if p == nil {
		return "", false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.uas) == 0 {
		return "", false
	}
	return p.uas[p.rnd.Intn(len(p.uas))], true
}

var (
	sharedOnce sync.Once
	shared     *Pool
)

// SharedPool 返回进程级共享的默认 UA 池（首次调用时初始化，之后复用）。
func SharedPool() *Pool {
	sharedOnce.Do(func() {
		shared = NewPool(DefaultUserAgents, time.Now().UnixNano())
	})
	return shared
}

// FakeIdentity 每次调用从 uarand 内置列表随机抽取一个真实浏览器 UA。
// 列表随包编译，导入与调用都不触发网络或文件读写。
type FakeIdentity struct{}

func (FakeIdentity) UserAgent() (string, bool) {
	ua := strings.TrimSpace(uarand.GetRandom())
	return ua, ua != ""
}
