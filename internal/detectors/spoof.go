package detectors

import (
	"time"

	"github.com/betbot/flowsense/internal/domain"
	"github.com/betbot/flowsense/pkg/config"
)

// SpoofDetector 识别挂出后迅速撤销的大单。
// 假买单撤掉意味着下方压力消失是假象，反向（做空压力）才是真实意图，
// 因此信号方向取被撤挂单的**相反**方向。
type SpoofDetector struct {
	cfg config.SpoofConfig
}

// NewSpoofDetector 创建幌骗检测器
func NewSpoofDetector(cfg config.SpoofConfig) *SpoofDetector {
	return &SpoofDetector{cfg: cfg}
}

// OnOrderCancel 在挂单被撤销后判定：数量达到下限且存续时间小于上限即触发。
func (d *SpoofDetector) OnOrderCancel(o *domain.Order, now time.Time) (*domain.Signal, bool) {
	if o == nil {
		return nil, false
	}
	age := o.Age(now)
	if o.Size < d.cfg.MinSize || age >= d.cfg.MaxAge {
		return nil, false
	}
	return &domain.Signal{
		Type:      domain.SignalSpoof,
		Direction: domain.DirectionFromSide(o.Side.Opposite()),
		Price:     o.Price,
		Size:      o.Size,
		Time:      now,
	}, true
}
