package advisory

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/flowsense/internal/domain"
	"github.com/betbot/flowsense/pkg/config"
)

// fakeProvider 可编程的测试 provider：前 failFirst 次调用返回错误
type fakeProvider struct {
	name      string
	unhealthy bool
	failFirst int
	calls     int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AnalyzeSignal(ctx context.Context, sig *domain.Signal, mctx *MarketContext) (*Decision, error) {
	p.calls++
	if p.calls <= p.failFirst {
		return nil, errors.Errorf("%s 第 %d 次调用失败", p.name, p.calls)
	}
	return &Decision{Action: "approve", Confidence: 0.8, Provider: p.name}, nil
}

func (p *fakeProvider) IsHealthy() bool        { return !p.unhealthy }
func (p *fakeProvider) Latency() time.Duration { return 10 * time.Millisecond }

func advCfg() config.AdvisoryConfig {
	return config.AdvisoryConfig{
		Enabled:         true,
		FallbackEnabled: true,
		Timeout:         time.Second,
		MaxRetries:      2,
		RatePerSec:      100,
		CacheTTL:        time.Minute,
	}
}

func newTestOrchestrator(cfg config.AdvisoryConfig) (*Orchestrator, *fakeProvider, *fakeProvider) {
	quick := &fakeProvider{name: ProviderQuickpath}
	deep := &fakeProvider{name: ProviderDeepthink}
	return NewOrchestrator(cfg, quick, deep), quick, deep
}

func testSignal(typ domain.SignalType, price int64) *domain.Signal {
	return &domain.Signal{Type: typ, Direction: domain.DirectionBuy, Price: price, Size: 50, Time: time.Now()}
}

func TestOrchestrator_SelectionRules(t *testing.T) {
	o, quick, deep := newTestOrchestrator(advCfg())

	// 时效性信号走低延迟 provider
	p, _ := o.Select(testSignal(domain.SignalSpoof, 100), nil)
	assert.Equal(t, quick, p, "幌骗信号应选 quickpath")
	p, _ = o.Select(testSignal(domain.SignalAbsorption, 100), nil)
	assert.Equal(t, quick, p, "吸收信号应选 quickpath")

	// 高动量走低延迟
	p, _ = o.Select(testSignal(domain.SignalIceberg, 100), &MarketContext{HighMomentum: true})
	assert.Equal(t, quick, p)

	// 信号冲突 / 状态切换走深度推理
	p, _ = o.Select(testSignal(domain.SignalIceberg, 100), &MarketContext{ConflictingSignals: true})
	assert.Equal(t, deep, p, "信号冲突应选 deepthink")
	p, _ = o.Select(testSignal(domain.SignalIceberg, 100), &MarketContext{RegimeChange: true})
	assert.Equal(t, deep, p, "状态切换应选 deepthink")

	// 无上下文默认低延迟
	p, _ = o.Select(testSignal(domain.SignalIceberg, 100), &MarketContext{})
	assert.Equal(t, quick, p)
}

func TestOrchestrator_ExplicitPreferenceWins(t *testing.T) {
	cfg := advCfg()
	cfg.Preference = ProviderDeepthink
	o, _, deep := newTestOrchestrator(cfg)

	// 即便是时效性信号，显式偏好优先
	p, _ := o.Select(testSignal(domain.SignalSpoof, 100), &MarketContext{HighMomentum: true})
	assert.Equal(t, deep, p)
}

func TestOrchestrator_UnhealthyPrimarySwapped(t *testing.T) {
	o, quick, deep := newTestOrchestrator(advCfg())
	quick.unhealthy = true

	p, s := o.Select(testSignal(domain.SignalSpoof, 100), nil)
	assert.Equal(t, deep, p, "首选不健康时应换到另一个")
	assert.Equal(t, quick, s)
}

func TestOrchestrator_RequestSuccess(t *testing.T) {
	o, quick, deep := newTestOrchestrator(advCfg())

	d, err := o.Request(context.Background(), testSignal(domain.SignalSpoof, 100), nil)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, ProviderQuickpath, d.Provider)
	assert.Equal(t, 1, quick.calls)
	assert.Equal(t, 0, deep.calls)
}

func TestOrchestrator_RetriesThenFallback(t *testing.T) {
	o, quick, deep := newTestOrchestrator(advCfg())
	quick.failFirst = 100 // 一直失败

	d, err := o.Request(context.Background(), testSignal(domain.SignalSpoof, 100), nil)
	require.NoError(t, err, "回退成功时不应报错")
	assert.Equal(t, ProviderDeepthink, d.Provider)
	assert.Equal(t, 3, quick.calls, "MaxRetries=2 应尝试 3 次")
	assert.Equal(t, 1, deep.calls, "回退只调用一次")
}

func TestOrchestrator_RetrySucceedsWithoutFallback(t *testing.T) {
	o, quick, deep := newTestOrchestrator(advCfg())
	quick.failFirst = 2 // 第三次成功

	d, err := o.Request(context.Background(), testSignal(domain.SignalSpoof, 100), nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderQuickpath, d.Provider)
	assert.Equal(t, 3, quick.calls)
	assert.Equal(t, 0, deep.calls)
}

func TestOrchestrator_BothFailReturnsCombinedError(t *testing.T) {
	o, quick, deep := newTestOrchestrator(advCfg())
	quick.failFirst = 100
	deep.failFirst = 100

	d, err := o.Request(context.Background(), testSignal(domain.SignalSpoof, 100), nil)
	require.Nil(t, d)
	require.Error(t, err)

	var combined *CombinedError
	require.ErrorAs(t, err, &combined)
	assert.Equal(t, ProviderQuickpath, combined.Primary)
	assert.Equal(t, ProviderDeepthink, combined.Fallback)
	assert.Error(t, combined.PrimaryErr)
	assert.Error(t, combined.FallbackErr)
}

func TestOrchestrator_FallbackDisabledReturnsPrimaryError(t *testing.T) {
	cfg := advCfg()
	cfg.FallbackEnabled = false
	o, quick, deep := newTestOrchestrator(cfg)
	quick.failFirst = 100

	_, err := o.Request(context.Background(), testSignal(domain.SignalSpoof, 100), nil)
	require.Error(t, err)
	var combined *CombinedError
	assert.False(t, errors.As(err, &combined), "未启用回退时不应是合并错误")
	assert.Equal(t, 0, deep.calls)
}

func TestOrchestrator_DedupCacheHit(t *testing.T) {
	o, quick, _ := newTestOrchestrator(advCfg())
	sig := testSignal(domain.SignalSpoof, 100)

	d1, err := o.Request(context.Background(), sig, nil)
	require.NoError(t, err)
	d2, err := o.Request(context.Background(), sig, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, quick.calls, "相同信号应命中去重缓存")
	assert.Same(t, d1, d2)
}

func TestOrchestrator_RateLimited(t *testing.T) {
	cfg := advCfg()
	cfg.RatePerSec = 1
	o, _, _ := newTestOrchestrator(cfg)

	_, err := o.Request(context.Background(), testSignal(domain.SignalSpoof, 100), nil)
	require.NoError(t, err)

	// 不同价格绕过去重缓存，触发限速
	_, err = o.Request(context.Background(), testSignal(domain.SignalSpoof, 101), nil)
	assert.ErrorIs(t, err, ErrRateLimited)
}
