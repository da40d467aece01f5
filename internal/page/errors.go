package page

import "fmt"

// HTTPStatusError 表示站点返回了非 200 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	return fmt.Sprintf("HTTP %d url=%s", e.StatusCode, e.URL)
}

// TransportError 表示没拿到可用响应：DNS、连接重置、超时、响应格式错误或 body 读取失败。
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e == nil || e.Err == nil {
		return "transport error"
	}
	return fmt.Sprintf("transport url=%s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
