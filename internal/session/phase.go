package session

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/flowsense/pkg/config"
)

var sessionLog = logrus.WithField("component", "session")

// Phase 日内时段
type Phase string

const (
	PhasePreMarket    Phase = "PRE_MARKET"
	PhaseOpeningRange Phase = "OPENING_RANGE"
	PhaseMorning      Phase = "MORNING"
	PhaseLunch        Phase = "LUNCH"
	PhaseAfternoon    Phase = "AFTERNOON"
	PhaseClose        Phase = "CLOSE"
	PhaseAfterHours   Phase = "AFTER_HOURS"
)

// 时段边界（市场时区的「零点起分钟数」，六个边界切出七个时段）
const (
	boundaryOpen      = 9*60 + 30  // 09:30 开盘
	boundaryOpenRange = 10 * 60    // 10:00 开盘区间结束
	boundaryLunch     = 12 * 60    // 12:00 午间
	boundaryAfternoon = 13*60 + 30 // 13:30 午后
	boundaryClose     = 15*60 + 45 // 15:45 尾盘
	boundaryAfterHrs  = 16 * 60    // 16:00 收盘
)

// PhaseOf 按零点起分钟数判定时段（纯函数，回放与实时共用）
func PhaseOf(minutesSinceMidnight int) Phase {
	switch {
	case minutesSinceMidnight < boundaryOpen:
		return PhasePreMarket
	case minutesSinceMidnight < boundaryOpenRange:
		return PhaseOpeningRange
	case minutesSinceMidnight < boundaryLunch:
		return PhaseMorning
	case minutesSinceMidnight < boundaryAfternoon:
		return PhaseLunch
	case minutesSinceMidnight < boundaryClose:
		return PhaseAfternoon
	case minutesSinceMidnight < boundaryAfterHrs:
		return PhaseClose
	default:
		return PhaseAfterHours
	}
}

// ThresholdMultiplier 时段对置信阈值的调整：
// 开盘/尾盘波动大要求更严，午间流动性差放宽。
func (p Phase) ThresholdMultiplier() float64 {
	switch p {
	case PhaseOpeningRange, PhaseClose:
		return 1.2
	case PhaseLunch:
		return 0.9
	case PhasePreMarket, PhaseAfterHours:
		return 1.5
	default:
		return 1.0
	}
}

// Clock 时段状态机 + 预热闸门。
// 预热计数器只增不减；warmupComplete 一旦为 true 永不回退（只写 true 的 atomic.Bool）。
type Clock struct {
	cfg config.SessionConfig
	loc *time.Location

	startedAt    time.Time
	trades       atomic.Int64
	priceUpdates atomic.Int64
	warmupDone   atomic.Bool
}

// NewClock 创建时段时钟；时区解析失败时回退 UTC（不致命）。
func NewClock(cfg config.SessionConfig, startedAt time.Time) *Clock {
	loc, err := time.LoadLocation(cfg.MarketTimezone)
	if err != nil {
		sessionLog.Warnf("时区 %s 解析失败，回退 UTC: %v", cfg.MarketTimezone, err)
		loc = time.UTC
	}
	return &Clock{cfg: cfg, loc: loc, startedAt: startedAt}
}

// PhaseAt 返回给定时间（墙钟或回放数据时间均可）对应的时段
func (c *Clock) PhaseAt(t time.Time) Phase {
	local := t.In(c.loc)
	return PhaseOf(local.Hour()*60 + local.Minute())
}

// RecordTrade 计入一笔已处理成交
func (c *Clock) RecordTrade(now time.Time) {
	c.trades.Add(1)
	c.checkWarmup(now)
}

// RecordPriceUpdate 计入一次价格更新
func (c *Clock) RecordPriceUpdate(now time.Time) {
	c.priceUpdates.Add(1)
	c.checkWarmup(now)
}

// checkWarmup 三个独立条件任一满足即完成预热（单调，之后不再检查）
func (c *Clock) checkWarmup(now time.Time) {
	if c.warmupDone.Load() {
		return
	}
	elapsed := now.Sub(c.startedAt)
	if elapsed >= time.Duration(c.cfg.WarmupMinutes)*time.Minute ||
		c.trades.Load() >= c.cfg.WarmupTrades ||
		c.priceUpdates.Load() >= c.cfg.WarmupPriceUpdates {
		c.warmupDone.Store(true)
		sessionLog.Infof("✅ 预热完成: elapsed=%s trades=%d updates=%d",
			elapsed.Truncate(time.Second), c.trades.Load(), c.priceUpdates.Load())
	}
}

// WarmupComplete 预热是否完成（单调）
func (c *Clock) WarmupComplete() bool {
	return c.warmupDone.Load()
}

// Stats 预热进度（状态 API 用）
func (c *Clock) Stats(now time.Time) string {
	return fmt.Sprintf("phase=%s warmup=%v trades=%d updates=%d elapsed=%s",
		c.PhaseAt(now), c.warmupDone.Load(), c.trades.Load(), c.priceUpdates.Load(),
		now.Sub(c.startedAt).Truncate(time.Second))
}

// Trades 已处理成交笔数
func (c *Clock) Trades() int64 { return c.trades.Load() }

// PriceUpdates 已处理价格更新次数
func (c *Clock) PriceUpdates() int64 { return c.priceUpdates.Load() }
