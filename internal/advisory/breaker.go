package advisory

import "sync/atomic"

// providerBreaker 按连续失败次数判定 provider 健康度。
// 高频快路径只用原子变量，不加锁。
type providerBreaker struct {
	consecutiveErrors atomic.Int64
	maxErrors         int64
}

func newProviderBreaker(maxErrors int64) *providerBreaker {
	if maxErrors <= 0 {
		maxErrors = 3
	}
	return &providerBreaker{maxErrors: maxErrors}
}

// OnSuccess 一次成功调用后清空连续失败计数
func (b *providerBreaker) OnSuccess() {
	if b == nil {
		return
	}
	b.consecutiveErrors.Store(0)
}

// OnError 一次失败调用后累计连续失败计数
func (b *providerBreaker) OnError() {
	if b == nil {
		return
	}
	b.consecutiveErrors.Add(1)
}

// Healthy 连续失败未达上限即视为健康
func (b *providerBreaker) Healthy() bool {
	if b == nil {
		return true
	}
	return b.consecutiveErrors.Load() < b.maxErrors
}
