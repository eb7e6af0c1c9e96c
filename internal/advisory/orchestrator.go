package advisory

import (
	"context"
	"fmt"
	"time"

	"github.com/betbot/flowsense/internal/domain"
	"github.com/betbot/flowsense/pkg/cache"
	"github.com/betbot/flowsense/pkg/config"
	"github.com/betbot/flowsense/pkg/ratelimit"
)

// provider 名称
const (
	ProviderQuickpath = "quickpath"
	ProviderDeepthink = "deepthink"
)

// ErrRateLimited 咨询调用被限速拒绝（调用方可感知，不会静默丢弃）
var ErrRateLimited = fmt.Errorf("advisory: rate limited")

// CombinedError 两个 provider 都失败时的合并错误（携带双方底层错误）
type CombinedError struct {
	Primary     string
	PrimaryErr  error
	Fallback    string
	FallbackErr error
}

func (e *CombinedError) Error() string {
	return fmt.Sprintf("advisory: 主 provider %s 失败: %v; 备用 %s 失败: %v",
		e.Primary, e.PrimaryErr, e.Fallback, e.FallbackErr)
}

// Result 异步咨询完成后的回调载荷
type Result struct {
	Seq      uint64
	Signal   *domain.Signal
	Decision *Decision
	Err      error
}

// Orchestrator 双 provider 咨询编排：
// 按优先级选 provider（显式偏好 → 内容规则 → 默认），带超时与有限重试，
// 失败时可回退到另一个 provider 一次；双双失败则上抛合并错误，绝不静默丢请求。
type Orchestrator struct {
	cfg   config.AdvisoryConfig
	quick Provider
	deep  Provider

	limiter *ratelimit.TokenBucket
	dedup   *cache.InMemoryCache[string, *Decision]
}

// NewOrchestrator 创建编排器
func NewOrchestrator(cfg config.AdvisoryConfig, quick, deep Provider) *Orchestrator {
	rate := cfg.RatePerSec
	if rate <= 0 {
		rate = 2
	}
	return &Orchestrator{
		cfg:     cfg,
		quick:   quick,
		deep:    deep,
		limiter: ratelimit.NewTokenBucket(rate, rate),
		dedup:   cache.NewInMemoryCache[string, *Decision](cfg.CacheTTL),
	}
}

// Select 按优先级选 provider：
//  1. 显式用户偏好；
//  2. 内容规则：时效性信号类型（幌骗/吸收）或高动量 → 低延迟 provider；
//     多信号冲突或状态切换 → 深度推理 provider；
//  3. 默认低延迟。
//
// 选中的 provider 不健康时换另一个。
func (o *Orchestrator) Select(sig *domain.Signal, mctx *MarketContext) (Provider, Provider) {
	primary := o.selectPrimary(sig, mctx)
	secondary := o.other(primary)
	if !primary.IsHealthy() && secondary.IsHealthy() {
		primary, secondary = secondary, primary
	}
	return primary, secondary
}

func (o *Orchestrator) selectPrimary(sig *domain.Signal, mctx *MarketContext) Provider {
	switch o.cfg.Preference {
	case ProviderQuickpath:
		return o.quick
	case ProviderDeepthink:
		return o.deep
	}

	if sig != nil && (sig.Type == domain.SignalSpoof || sig.Type == domain.SignalAbsorption) {
		return o.quick
	}
	if mctx != nil {
		if mctx.HighMomentum {
			return o.quick
		}
		if mctx.ConflictingSignals || mctx.RegimeChange {
			return o.deep
		}
	}
	return o.quick
}

func (o *Orchestrator) other(p Provider) Provider {
	if p == o.quick {
		return o.deep
	}
	return o.quick
}

// Request 同步执行一次咨询（选择 → 重试 → 回退）。
// 相同信号的近期请求命中去重缓存时直接返回缓存决策。
func (o *Orchestrator) Request(ctx context.Context, sig *domain.Signal, mctx *MarketContext) (*Decision, error) {
	key := dedupKey(sig)
	if d, ok := o.dedup.Get(key); ok {
		return d, nil
	}
	if !o.limiter.Allow() {
		return nil, ErrRateLimited
	}

	primary, fallback := o.Select(sig, mctx)

	d, primaryErr := o.callWithRetry(ctx, primary, sig, mctx)
	if primaryErr == nil {
		o.dedup.Set(key, d, 0)
		return d, nil
	}
	advLog.Warnf("⚠️ 主 provider %s 失败: %v", primary.Name(), primaryErr)

	if !o.cfg.FallbackEnabled {
		return nil, primaryErr
	}

	// 回退只调用一次，不重试
	d, fallbackErr := o.callOnce(ctx, fallback, sig, mctx)
	if fallbackErr == nil {
		o.dedup.Set(key, d, 0)
		return d, nil
	}

	return nil, &CombinedError{
		Primary:     primary.Name(),
		PrimaryErr:  primaryErr,
		Fallback:    fallback.Name(),
		FallbackErr: fallbackErr,
	}
}

// callWithRetry 对首选 provider 最多尝试 1+MaxRetries 次
func (o *Orchestrator) callWithRetry(ctx context.Context, p Provider, sig *domain.Signal, mctx *MarketContext) (*Decision, error) {
	var lastErr error
	attempts := o.cfg.MaxRetries + 1
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		d, err := o.callOnce(ctx, p, sig, mctx)
		if err == nil {
			return d, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (o *Orchestrator) callOnce(ctx context.Context, p Provider, sig *domain.Signal, mctx *MarketContext) (*Decision, error) {
	timeout := o.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.AnalyzeSignal(callCtx, sig, mctx)
}

// Latencies 各 provider 的平滑延迟（状态 API 用）
func (o *Orchestrator) Latencies() map[string]time.Duration {
	return map[string]time.Duration{
		o.quick.Name(): o.quick.Latency(),
		o.deep.Name():  o.deep.Latency(),
	}
}

func dedupKey(sig *domain.Signal) string {
	if sig == nil {
		return "nil"
	}
	return fmt.Sprintf("%s|%s|%d", sig.Type, sig.Direction, sig.Price)
}
