package advisory

import (
	"context"
	"time"

	"github.com/betbot/flowsense/internal/domain"
)

// Decision 咨询 provider 给出的建议（仅供参考，不是权威决策）
type Decision struct {
	Action     string  `json:"action"`     // approve / reject / neutral
	Confidence float64 `json:"confidence"` // 0..1
	Reasoning  string  `json:"reasoning"`
	Provider   string  `json:"provider"`
	LatencyMs  int64   `json:"latency_ms"`
}

// MarketContext 随信号一起发给 provider 的市场上下文快照（按值传递，不共享行情状态）
type MarketContext struct {
	Instrument         string  `json:"instrument"`
	Price              int64   `json:"price"`
	Phase              string  `json:"phase"`
	Score              float64 `json:"score"`
	Threshold          float64 `json:"threshold"`
	DominantSide       string  `json:"dominant_side"`
	SpeedLevel         string  `json:"speed_level"`
	HighMomentum       bool    `json:"high_momentum"`       // 成交带加速中
	ConflictingSignals bool    `json:"conflicting_signals"` // 多信号方向冲突
	RegimeChange       bool    `json:"regime_change"`       // 衰竭等状态切换迹象
}

// Provider 咨询 provider 能力契约。
// 当前只有两个具体实现（quickpath / deepthink），但契约支持替换为其他实现。
type Provider interface {
	Name() string
	AnalyzeSignal(ctx context.Context, sig *domain.Signal, mctx *MarketContext) (*Decision, error)
	IsHealthy() bool
	Latency() time.Duration
}
