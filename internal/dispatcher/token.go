package dispatcher

import (
	"context"
	"errors"
)

// ErrCancelled 任务在执行过程中观察到取消请求
var ErrCancelled = errors.New("task cancelled")

// CancelToken 协作式取消令牌，任务在安全点轮询
type CancelToken struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newCancelToken() *CancelToken {
	ctx, cancel := context.WithCancel(context.Background())
	return &CancelToken{ctx: ctx, cancel: cancel}
}

// Cancel 设置取消标记，可重复调用
func (t *CancelToken) Cancel() {
	t.cancel()
}

// Cancelled 是否已请求取消
func (t *CancelToken) Cancelled() bool {
	return t.ctx.Err() != nil
}

// Done 取消时关闭的通道
func (t *CancelToken) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Context 与令牌绑定的 context，可直接传给阻塞调用
func (t *CancelToken) Context() context.Context {
	return t.ctx
}

// Check 已取消时返回 ErrCancelled
func (t *CancelToken) Check() error {
	if t.Cancelled() {
		return ErrCancelled
	}
	return nil
}
