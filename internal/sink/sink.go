// Package sink 定义记录落盘的公共能力与扇出执行。
package sink

import (
	"context"
	"errors"

	"github.com/John-Robertt/doubantop/internal/domain"
)

// ErrNothingToWrite 表示输入为空、sink 未做任何写入；上报为 skipped 而非失败。
var ErrNothingToWrite = errors.New("没有可写入的记录")

// Sink 把一次 run 的全部记录写到某个目的地。
//
// records 只读；返回写入条数。
type Sink interface {
	Name() string
	Persist(ctx context.Context, records []domain.MovieRecord) (int, error)
}

// Coder 由携带稳定错误码的错误实现。
type Coder interface {
	Code() string
}

// PersistAll 依次调用每个 sink；某个 sink 失败不影响后续 sink。
//
// onDone 可为 nil；每个 sink 完成后立即回调一次。
func PersistAll(ctx context.Context, records []domain.MovieRecord, sinks []Sink, onDone func(domain.SinkResult)) []domain.SinkResult {
	out := make([]domain.SinkResult, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		res := persistOne(ctx, s, records)
		out = append(out, res)
		if onDone != nil {
			onDone(res)
		}
	}
	return out
}

func persistOne(ctx context.Context, s Sink, records []domain.MovieRecord) domain.SinkResult {
	res := domain.SinkResult{Sink: s.Name()}
	n, err := s.Persist(ctx, records)
	res.Written = n
	switch {
	case err == nil:
		res.Status = domain.SinkStatusOK
	case errors.Is(err, ErrNothingToWrite):
		res.Status = domain.SinkStatusSkipped
		res.ErrorMsg = err.Error()
	default:
		res.Status = domain.SinkStatusFailed
		res.ErrorCode = ErrorCode(err)
		res.ErrorMsg = err.Error()
	}
	return res
}

// ErrorCode 取错误链上第一个 Coder 的错误码；没有则为 unknown。
func ErrorCode(err error) string {
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return "unknown"
}

// Disabled 生成未启用 sink 的占位结果。
func Disabled(name string) domain.SinkResult {
	return domain.SinkResult{Sink: name, Status: domain.SinkStatusDisabled}
}
