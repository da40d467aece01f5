// Package pace 提供页与页之间的等待策略。
package pace

import (
	"context"
	"time"
)

// Pacer 在相邻两次请求之间阻塞。ctx 取消时立即返回 ctx.Err()。
type Pacer interface {
	Wait(ctx context.Context) error
}

// Fixed 每次等待固定时长；Interval<=0 等同于 None。
type Fixed struct {
	Interval time.Duration
}

func (f Fixed) Wait(ctx context.Context) error {
	if f.Interval <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(f.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// None 不等待（测试用）。
type None struct{}

func (None) Wait(ctx context.Context) error { return ctx.Err() }

// For 按间隔选择策略。
func For(interval time.Duration) Pacer {
	if interval <= 0 {
		return None{}
	}
	return Fixed{Interval: interval}
}
