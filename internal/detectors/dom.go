package detectors

import (
	"math"

	"github.com/betbot/flowsense/internal/domain"
	"github.com/betbot/flowsense/internal/ledger"
	"github.com/betbot/flowsense/pkg/config"
)

// DOMAnalyzer 订单簿扫描器。
// 每次调用都基于当前簿完整重算：总买卖量、失衡比、
// 以及 lookback 范围内当前价下方最大的买墙（最近支撑）和上方最大的卖墙（最近压力）。
type DOMAnalyzer struct {
	cfg config.DomConfig
}

// NewDOMAnalyzer 创建订单簿分析器
func NewDOMAnalyzer(cfg config.DomConfig) *DOMAnalyzer {
	return &DOMAnalyzer{cfg: cfg}
}

// Analyze 全量扫描
func (a *DOMAnalyzer) Analyze(levels []ledger.LevelView, currentPrice int64) domain.DomSnapshot {
	snap := domain.DomSnapshot{}

	var bestBid, bestAsk *domain.Wall
	for _, lv := range levels {
		snap.TotalBidVolume += lv.BidSize
		snap.TotalAskVolume += lv.AskSize

		dist := lv.Price - currentPrice
		if dist < 0 {
			dist = -dist
		}
		if dist > a.cfg.LookbackTicks {
			continue
		}

		// 严格低于当前价的最大买墙
		if lv.Price < currentPrice && lv.BidSize >= a.cfg.MinWallSize {
			if bestBid == nil || lv.BidSize > bestBid.Volume {
				bestBid = &domain.Wall{Price: lv.Price, Volume: lv.BidSize, Side: domain.SideBuy, Distance: dist}
			}
		}
		// 严格高于当前价的最大卖墙
		if lv.Price > currentPrice && lv.AskSize >= a.cfg.MinWallSize {
			if bestAsk == nil || lv.AskSize > bestAsk.Volume {
				bestAsk = &domain.Wall{Price: lv.Price, Volume: lv.AskSize, Side: domain.SideSell, Distance: dist}
			}
		}
	}
	snap.Support = bestBid
	snap.Resistance = bestAsk

	if snap.TotalAskVolume == 0 {
		snap.ImbalanceRatio = math.Inf(1)
	} else {
		snap.ImbalanceRatio = float64(snap.TotalBidVolume) / float64(snap.TotalAskVolume)
	}
	return snap
}

// ScoreAdjustment 把快照折算为带符号的评分贡献：
// 失衡偏多 + 支撑贴近 + 压力远离 → 利多；做空方向对称取反。
func (a *DOMAnalyzer) ScoreAdjustment(snap domain.DomSnapshot, isLong bool) float64 {
	var adj float64

	bullish := snap.ImbalanceRatio > 1.5
	bearish := snap.ImbalanceRatio < 0.67

	if isLong {
		if bullish {
			adj += 3
		} else if bearish {
			adj -= 3
		}
		if snap.Support != nil && snap.Support.Distance <= a.cfg.ProximityTicks {
			adj += 2
		}
		if snap.Resistance != nil && snap.Resistance.Distance <= a.cfg.ProximityTicks {
			adj -= 2
		}
	} else {
		if bearish {
			adj += 3
		} else if bullish {
			adj -= 3
		}
		if snap.Resistance != nil && snap.Resistance.Distance <= a.cfg.ProximityTicks {
			adj += 2
		}
		if snap.Support != nil && snap.Support.Distance <= a.cfg.ProximityTicks {
			adj -= 2
		}
	}
	return adj
}
