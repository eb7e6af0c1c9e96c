package session

import (
	"testing"
	"time"

	"github.com/betbot/flowsense/pkg/config"
)

func sessionCfg() config.SessionConfig {
	return config.SessionConfig{
		MarketTimezone:     "America/New_York",
		WarmupMinutes:      5,
		WarmupTrades:       10,
		WarmupPriceUpdates: 50,
	}
}

func TestPhaseOf_Boundaries(t *testing.T) {
	// 每个边界分钟数落在右侧时段，边界前一分钟落在左侧时段
	cases := []struct {
		minutes int
		want    Phase
	}{
		{0, PhasePreMarket},
		{569, PhasePreMarket},    // 09:29
		{570, PhaseOpeningRange}, // 09:30
		{599, PhaseOpeningRange}, // 09:59
		{600, PhaseMorning},      // 10:00
		{719, PhaseMorning},      // 11:59
		{720, PhaseLunch},        // 12:00
		{809, PhaseLunch},        // 13:29
		{810, PhaseAfternoon},    // 13:30
		{944, PhaseAfternoon},    // 15:44
		{945, PhaseClose},        // 15:45
		{959, PhaseClose},        // 15:59
		{960, PhaseAfterHours},   // 16:00
		{1439, PhaseAfterHours},  // 23:59
	}
	for _, c := range cases {
		if got := PhaseOf(c.minutes); got != c.want {
			t.Fatalf("PhaseOf(%d) = %s, 期望 %s", c.minutes, got, c.want)
		}
	}
}

func TestPhase_ThresholdMultiplier(t *testing.T) {
	cases := []struct {
		phase Phase
		want  float64
	}{
		{PhaseOpeningRange, 1.2},
		{PhaseClose, 1.2},
		{PhaseLunch, 0.9},
		{PhasePreMarket, 1.5},
		{PhaseAfterHours, 1.5},
		{PhaseMorning, 1.0},
		{PhaseAfternoon, 1.0},
	}
	for _, c := range cases {
		if got := c.phase.ThresholdMultiplier(); got != c.want {
			t.Fatalf("%s 的阈值系数 = %v, 期望 %v", c.phase, got, c.want)
		}
	}
}

func TestClock_PhaseAtUsesMarketTimezone(t *testing.T) {
	clock := NewClock(sessionCfg(), time.Now())

	// 14:30 UTC = 10:30 美东（夏令时），应为 MORNING
	ts := time.Date(2026, 6, 15, 14, 30, 0, 0, time.UTC)
	if got := clock.PhaseAt(ts); got != PhaseMorning {
		t.Fatalf("14:30 UTC 对应时段 = %s, 期望 MORNING", got)
	}
}

func TestClock_BadTimezoneFallsBackToUTC(t *testing.T) {
	cfg := sessionCfg()
	cfg.MarketTimezone = "Mars/Olympus"
	clock := NewClock(cfg, time.Now())

	// 回退 UTC 后 10:30 UTC 直接按本地分钟数判定
	ts := time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)
	if got := clock.PhaseAt(ts); got != PhaseMorning {
		t.Fatalf("UTC 回退后 10:30 对应时段 = %s, 期望 MORNING", got)
	}
}

func TestClock_WarmupByTradeCount(t *testing.T) {
	start := time.Date(2026, 6, 15, 14, 0, 0, 0, time.UTC)
	clock := NewClock(sessionCfg(), start)

	now := start.Add(time.Second)
	for i := 0; i < 9; i++ {
		clock.RecordTrade(now)
	}
	if clock.WarmupComplete() {
		t.Fatalf("9 笔成交不应完成预热")
	}
	clock.RecordTrade(now)
	if !clock.WarmupComplete() {
		t.Fatalf("第 10 笔成交应完成预热")
	}
	if clock.Trades() != 10 {
		t.Fatalf("成交计数 = %d, 期望 10", clock.Trades())
	}
}

func TestClock_WarmupByElapsedTime(t *testing.T) {
	start := time.Date(2026, 6, 15, 14, 0, 0, 0, time.UTC)
	clock := NewClock(sessionCfg(), start)

	clock.RecordPriceUpdate(start.Add(4 * time.Minute))
	if clock.WarmupComplete() {
		t.Fatalf("4 分钟不应完成预热")
	}
	clock.RecordPriceUpdate(start.Add(5 * time.Minute))
	if !clock.WarmupComplete() {
		t.Fatalf("满 5 分钟应完成预热")
	}
}

func TestClock_WarmupIsMonotonic(t *testing.T) {
	start := time.Date(2026, 6, 15, 14, 0, 0, 0, time.UTC)
	clock := NewClock(sessionCfg(), start)

	clock.RecordTrade(start.Add(6 * time.Minute))
	if !clock.WarmupComplete() {
		t.Fatalf("超时条件应触发预热完成")
	}
	// 之后任何更新（包括回放中时间倒退）都不能回退预热状态
	clock.RecordTrade(start)
	clock.RecordPriceUpdate(start)
	if !clock.WarmupComplete() {
		t.Fatalf("预热完成后不应回退")
	}
}
