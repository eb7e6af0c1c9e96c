package advisory

import (
	"context"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/flowsense/internal/domain"
)

var advLog = logrus.WithField("component", "advisory")

// 延迟指数平滑权重：0.9 旧值 / 0.1 新样本
const latencyDecay = 0.9

// analyzeRequest 发给 provider 的请求体
type analyzeRequest struct {
	Signal struct {
		Type      string `json:"type"`
		Direction string `json:"direction"`
		Price     int64  `json:"price"`
		Size      int64  `json:"size"`
	} `json:"signal"`
	Context *MarketContext `json:"context"`
}

// analyzeResponse provider 返回体
type analyzeResponse struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// httpProvider 基于 resty 的 HTTP 咨询 provider。
// 两个具体 provider（quickpath / deepthink）只差名字、地址和超时档位。
type httpProvider struct {
	name    string
	client  *resty.Client
	breaker *providerBreaker

	latencyMu sync.Mutex
	latencyMs float64
}

func newHTTPProvider(name, baseURL, apiKey string, timeout time.Duration) *httpProvider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "flowsense/1.0")
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &httpProvider{
		name:    name,
		client:  client,
		breaker: newProviderBreaker(3),
	}
}

// Name provider 名
func (p *httpProvider) Name() string { return p.name }

// AnalyzeSignal 调用 provider 的 /analyze 接口
func (p *httpProvider) AnalyzeSignal(ctx context.Context, sig *domain.Signal, mctx *MarketContext) (*Decision, error) {
	if sig == nil {
		return nil, errors.New("signal 为空")
	}

	var req analyzeRequest
	req.Signal.Type = string(sig.Type)
	req.Signal.Direction = string(sig.Direction)
	req.Signal.Price = sig.Price
	req.Signal.Size = sig.Size
	req.Context = mctx

	var out analyzeResponse
	start := time.Now()
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(&req).
		SetResult(&out).
		Post("/analyze")
	elapsed := time.Since(start)
	p.recordLatency(elapsed)

	if err != nil {
		p.breaker.OnError()
		return nil, errors.Wrapf(err, "provider %s 调用失败", p.name)
	}
	if resp.IsError() {
		p.breaker.OnError()
		return nil, errors.Errorf("provider %s 返回 %d: %s", p.name, resp.StatusCode(), resp.String())
	}

	p.breaker.OnSuccess()
	advLog.Debugf("provider %s 响应: action=%s confidence=%.2f latency=%s",
		p.name, out.Action, out.Confidence, elapsed)

	return &Decision{
		Action:     out.Action,
		Confidence: out.Confidence,
		Reasoning:  out.Reasoning,
		Provider:   p.name,
		LatencyMs:  elapsed.Milliseconds(),
	}, nil
}

// IsHealthy 由断路器判定
func (p *httpProvider) IsHealthy() bool { return p.breaker.Healthy() }

// Latency 指数平滑后的延迟
func (p *httpProvider) Latency() time.Duration {
	p.latencyMu.Lock()
	defer p.latencyMu.Unlock()
	return time.Duration(p.latencyMs) * time.Millisecond
}

func (p *httpProvider) recordLatency(d time.Duration) {
	p.latencyMu.Lock()
	defer p.latencyMu.Unlock()
	sample := float64(d.Milliseconds())
	if p.latencyMs == 0 {
		p.latencyMs = sample
		return
	}
	p.latencyMs = p.latencyMs*latencyDecay + sample*(1-latencyDecay)
}

// NewQuickpath 低延迟 provider：时效性信号与高动量场景优先走它
func NewQuickpath(baseURL, apiKey string, timeout time.Duration) Provider {
	return newHTTPProvider(ProviderQuickpath, baseURL, apiKey, timeout)
}

// NewDeepthink 深度推理 provider：多信号冲突与状态切换场景优先走它
func NewDeepthink(baseURL, apiKey string, timeout time.Duration) Provider {
	return newHTTPProvider(ProviderDeepthink, baseURL, apiKey, timeout)
}
