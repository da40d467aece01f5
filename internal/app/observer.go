// Package app 放置 collect/run 共享的运行期事件约定。
package app

import (
	"github.com/John-Robertt/doubantop/internal/config"
	"github.com/John-Robertt/doubantop/internal/domain"
)

// Observer 把运行进度从核心流程中解耦出来。
//
// 约束：
// - collect/run 只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 事件按发生顺序在同一个 goroutine 中同步调用；实现不应阻塞太久。
type Observer interface {
	// OnStart 在 run 开始、尚未发出任何请求时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPageDone 在每一页（无论成功与否）处理完成后调用；total 为计划页数。
	OnPageDone(res domain.PageResult, total int)
	// OnSinkDone 在每个 sink 处理完成后调用（包括 disabled/skipped）。
	OnSinkDone(res domain.SinkResult)
	// OnFinish 在 RunReport 定稿后调用。
	OnFinish(rr domain.RunReport)
}

// Nop 忽略所有事件。
type Nop struct{}

func (Nop) OnStart(config.EffectiveConfig)    {}
func (Nop) OnPageDone(domain.PageResult, int) {}
func (Nop) OnSinkDone(domain.SinkResult)      {}
func (Nop) OnFinish(domain.RunReport)         {}

// Multi 把事件依次转发给多个 Observer；nil 成员会被跳过。
type Multi []Observer

func (m Multi) OnStart(eff config.EffectiveConfig) {
	for _, o := range m {
		if o != nil {
			o.OnStart(eff)
		}
	}
}

func (m Multi) OnPageDone(res domain.PageResult, total int) {
	for _, o := range m {
		if o != nil {
			o.OnPageDone(res, total)
		}
	}
}

func (m Multi) OnSinkDone(res domain.SinkResult) {
	for _, o := range m {
		if o != nil {
			o.OnSinkDone(res)
		}
	}
}

func (m Multi) OnFinish(rr domain.RunReport) {
	for _, o := range m {
		if o != nil {
			o.OnFinish(rr)
		}
	}
}

// OrNop 让调用方无需判空。
func OrNop(o Observer) Observer {
	if o == nil {
		return Nop{}
	}
	return o
}
