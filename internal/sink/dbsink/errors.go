package dbsink

import (
	"fmt"

	"github.com/John-Robertt/doubantop/internal/domain"
)

// ConnectError 表示无法建立数据库连接（Open 或 Ping 失败）。
type ConnectError struct {
	Driver string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("连接数据库失败（%s）：%v", e.Driver, e.Err)
}
func (e *ConnectError) Unwrap() error { return e.Err }
func (e *ConnectError) Code() string  { return domain.ErrCodeDBConnectFailed }

// WriteError 表示事务内的写入失败；事务已回滚。
//
// Row 是失败记录的下标；建表/开启事务/提交阶段失败时为 -1。
type WriteError struct {
	Table string
	Row   int
	Err   error
}

func (e *WriteError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("写入表 %s 失败（已回滚）：%v", e.Table, e.Err)
	}
	return fmt.Sprintf("写入表 %s 第 %d 条失败（已回滚）：%v", e.Table, e.Row, e.Err)
}
func (e *WriteError) Unwrap() error { return e.Err }
func (e *WriteError) Code() string  { return domain.ErrCodeDBWriteFailed }
