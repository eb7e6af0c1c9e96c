package detectors

import (
	"github.com/betbot/flowsense/internal/domain"
	"github.com/betbot/flowsense/pkg/config"
)

// AbsorptionDetector 识别被挂单完全吃掉的大额主动成交。
// 大量主动买入被某价位吸收，说明该价位可能反转行情，信号方向取成交的相反方向。
type AbsorptionDetector struct {
	cfg config.AbsorptionConfig
}

// NewAbsorptionDetector 创建吸收检测器
func NewAbsorptionDetector(cfg config.AbsorptionConfig) *AbsorptionDetector {
	return &AbsorptionDetector{cfg: cfg}
}

// OnTrade 成交数量达到下限即触发
func (d *AbsorptionDetector) OnTrade(t domain.Trade) (*domain.Signal, bool) {
	if t.Size < d.cfg.MinSize {
		return nil, false
	}
	return &domain.Signal{
		Type:      domain.SignalAbsorption,
		Direction: domain.DirectionFromSide(t.Side.Opposite()),
		Price:     t.Price,
		Size:      t.Size,
		Time:      t.Time,
	}, true
}
