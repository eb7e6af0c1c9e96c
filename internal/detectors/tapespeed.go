package detectors

import (
	"sync"
	"time"

	"github.com/betbot/flowsense/internal/domain"
	"github.com/betbot/flowsense/pkg/config"
)

// SpeedLevel 成交带速度档位
type SpeedLevel int

const (
	SpeedVerySlow SpeedLevel = iota
	SpeedSlow
	SpeedNormal
	SpeedHigh
	SpeedVeryHigh
	SpeedExtreme
)

// String 档位名
func (s SpeedLevel) String() string {
	switch s {
	case SpeedVerySlow:
		return "VERY_SLOW"
	case SpeedSlow:
		return "SLOW"
	case SpeedNormal:
		return "NORMAL"
	case SpeedHigh:
		return "HIGH"
	case SpeedVeryHigh:
		return "VERY_HIGH"
	default:
		return "EXTREME"
	}
}

// 主导方判定比：买/卖 > 1.5 为买方主导，< 0.67 为卖方主导
const (
	DominanceBuyers   = "BUYERS"
	DominanceSellers  = "SELLERS"
	DominanceBalanced = "BALANCED"
)

// ewmaAlpha 基线平滑系数（朝当前值移动 5%）
const ewmaAlpha = 0.05

// tapeEvent 窗口内的单笔成交
type tapeEvent struct {
	at    time.Time
	price int64
	size  int64
	side  domain.Side
}

// TapeAnalysis 一次成交带分析的输出
type TapeAnalysis struct {
	TradesPerSec      float64
	VolumePerSec      float64
	AvgTradeSize      float64
	BuyTradesPerSec   float64
	SellTradesPerSec  float64
	Dominance         float64 // 买/卖笔数比
	DominantSide      string  // BUYERS / SELLERS / BALANCED
	SpeedLevel        SpeedLevel
	IsHighSpeed       bool
	ShortTradesPerSec float64
	Acceleration      bool // 短窗速率超过主窗 1.5 倍
	Exhaustion        bool // 极高速且单笔均量萎缩到基线一半以下
	BaselineTPS       float64
	BaselineVPS       float64
	At                time.Time
}

// TapeSpeedMeter 滚动成交带速度/量能分类器。
// 窗口按「2×分析窗口」的时间和最大条数双重裁剪（参照滑动窗口速度跟踪的复用底层数组写法）；
// Analyze 结果在短有效期内缓存，限制每事件重算成本。
type TapeSpeedMeter struct {
	cfg config.TapeConfig

	mu          sync.Mutex
	events      []tapeEvent
	baselineTPS float64
	baselineVPS float64
	cached      *TapeAnalysis
	cachedAt    time.Time
}

// NewTapeSpeedMeter 创建成交带速度计
func NewTapeSpeedMeter(cfg config.TapeConfig) *TapeSpeedMeter {
	return &TapeSpeedMeter{
		cfg:    cfg,
		events: make([]tapeEvent, 0, 256),
	}
}

// Record 记录一笔成交并裁剪窗口
func (m *TapeSpeedMeter) Record(t domain.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, tapeEvent{at: t.Time, price: t.Price, size: t.Size, side: t.Side})
	m.pruneLocked(t.Time)
}

// pruneLocked 双重裁剪：超过 2×窗口时长的事件、超出最大条数的最老事件
func (m *TapeSpeedMeter) pruneLocked(now time.Time) {
	cutoff := now.Add(-2 * m.cfg.Window)
	i := 0
	for i < len(m.events) && m.events[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		// 复用底层数组，避免频繁分配
		copy(m.events, m.events[i:])
		m.events = m.events[:len(m.events)-i]
	}
	if max := m.cfg.MaxEvents; max > 0 && len(m.events) > max {
		copy(m.events, m.events[len(m.events)-max:])
		m.events = m.events[:max]
	}
}

// Analyze 计算当前窗口的速度指标；短有效期内返回缓存结果。
func (m *TapeSpeedMeter) Analyze(now time.Time) TapeAnalysis {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil && now.Sub(m.cachedAt) < m.cfg.CacheValidity {
		return *m.cached
	}

	a := m.computeLocked(now)
	m.cached = &a
	m.cachedAt = now
	return a
}

func (m *TapeSpeedMeter) computeLocked(now time.Time) TapeAnalysis {
	window := m.cfg.Window
	short := window / 5
	winStart := now.Add(-window)
	shortStart := now.Add(-short)

	var trades, buyTrades, sellTrades int
	var volume int64
	var shortTrades int
	for _, e := range m.events {
		if e.at.Before(winStart) || e.at.After(now) {
			continue
		}
		trades++
		volume += e.size
		if e.side == domain.SideBuy {
			buyTrades++
		} else {
			sellTrades++
		}
		if !e.at.Before(shortStart) {
			shortTrades++
		}
	}

	sec := window.Seconds()
	a := TapeAnalysis{
		TradesPerSec:      float64(trades) / sec,
		VolumePerSec:      float64(volume) / sec,
		BuyTradesPerSec:   float64(buyTrades) / sec,
		SellTradesPerSec:  float64(sellTrades) / sec,
		ShortTradesPerSec: float64(shortTrades) / short.Seconds(),
		At:                now,
	}
	if trades > 0 {
		a.AvgTradeSize = float64(volume) / float64(trades)
	}

	// 主导方
	if sellTrades == 0 {
		if buyTrades > 0 {
			a.Dominance = float64(buyTrades)
			a.DominantSide = DominanceBuyers
		} else {
			a.Dominance = 1
			a.DominantSide = DominanceBalanced
		}
	} else {
		a.Dominance = float64(buyTrades) / float64(sellTrades)
		switch {
		case a.Dominance > 1.5:
			a.DominantSide = DominanceBuyers
		case a.Dominance < 0.67:
			a.DominantSide = DominanceSellers
		default:
			a.DominantSide = DominanceBalanced
		}
	}

	// 指数平滑基线（α=0.05 朝当前值）
	if m.baselineTPS == 0 {
		m.baselineTPS = a.TradesPerSec
		m.baselineVPS = a.VolumePerSec
	} else {
		m.baselineTPS = m.baselineTPS*(1-ewmaAlpha) + a.TradesPerSec*ewmaAlpha
		m.baselineVPS = m.baselineVPS*(1-ewmaAlpha) + a.VolumePerSec*ewmaAlpha
	}
	a.BaselineTPS = m.baselineTPS
	a.BaselineVPS = m.baselineVPS

	a.SpeedLevel = classifySpeed(a.TradesPerSec, m.cfg.HighSpeed, m.cfg.VeryHighSpeed)
	a.IsHighSpeed = a.SpeedLevel >= SpeedHigh

	// 加速：短窗速率超过主窗 1.5 倍
	a.Acceleration = a.ShortTradesPerSec > 1.5*a.TradesPerSec

	// 衰竭：极高速但单笔均量萎缩到基线隐含均量的一半以下
	if a.SpeedLevel >= SpeedVeryHigh && m.baselineTPS > 0 {
		baselineAvg := m.baselineVPS / m.baselineTPS
		if baselineAvg > 0 && a.AvgTradeSize < 0.5*baselineAvg {
			a.Exhaustion = true
		}
	}

	return a
}

// classifySpeed 六档分类：档位边界取高速阈值的固定比例
func classifySpeed(tps, high, veryHigh float64) SpeedLevel {
	switch {
	case tps < 0.2*high:
		return SpeedVerySlow
	case tps < 0.5*high:
		return SpeedSlow
	case tps < high:
		return SpeedNormal
	case tps < veryHigh:
		return SpeedHigh
	case tps < 2*veryHigh:
		return SpeedVeryHigh
	default:
		return SpeedExtreme
	}
}

// IsFavorableForDirection 成交带是否支持该方向。
// 主导方同向且未衰竭为有利；衰竭时反向（衰竭预示主导方反转）为有利。
func (m *TapeSpeedMeter) IsFavorableForDirection(isLong bool, now time.Time) bool {
	a := m.Analyze(now)
	aligned := (isLong && a.DominantSide == DominanceBuyers) ||
		(!isLong && a.DominantSide == DominanceSellers)
	if a.Exhaustion {
		// 衰竭的是当前主导方，反向占优
		return !aligned && a.DominantSide != DominanceBalanced
	}
	return aligned
}

// SpeedScoreAdjustment 把分析结果折算为带符号的评分贡献。
// 基础分 −5..+8，同向主导 +3，衰竭反转 +5。
func (m *TapeSpeedMeter) SpeedScoreAdjustment(isLong bool, now time.Time) float64 {
	a := m.Analyze(now)

	var score float64
	switch a.SpeedLevel {
	case SpeedVerySlow:
		score = -5
	case SpeedSlow:
		score = -2
	case SpeedNormal:
		score = 0
	case SpeedHigh:
		score = 3
	case SpeedVeryHigh:
		score = 6
	default:
		score = 8
	}

	if (isLong && a.DominantSide == DominanceBuyers) || (!isLong && a.DominantSide == DominanceSellers) {
		score += 3
	}
	if a.Exhaustion {
		if (isLong && a.DominantSide == DominanceSellers) || (!isLong && a.DominantSide == DominanceBuyers) {
			score += 5
		}
	}
	return score
}
