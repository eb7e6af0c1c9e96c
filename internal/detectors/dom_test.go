package detectors

import (
	"math"
	"testing"

	"github.com/betbot/flowsense/internal/ledger"
	"github.com/betbot/flowsense/pkg/config"
)

func domCfg() config.DomConfig {
	return config.DomConfig{MinWallSize: 100, LookbackTicks: 50, ProximityTicks: 20}
}

func TestDOM_WallsAndImbalance(t *testing.T) {
	a := NewDOMAnalyzer(domCfg())
	levels := []ledger.LevelView{
		{Price: 95, BidSize: 300},
		{Price: 98, BidSize: 150},
		{Price: 100, BidSize: 50, AskSize: 40}, // 当前价，不计墙
		{Price: 103, AskSize: 200},
		{Price: 110, AskSize: 500},
	}

	snap := a.Analyze(levels, 100)
	if snap.TotalBidVolume != 500 || snap.TotalAskVolume != 740 {
		t.Fatalf("totals wrong: bid=%d ask=%d", snap.TotalBidVolume, snap.TotalAskVolume)
	}
	if snap.Support == nil || snap.Support.Price != 95 || snap.Support.Volume != 300 {
		t.Fatalf("support wrong: %+v", snap.Support)
	}
	if snap.Support.Distance != 5 {
		t.Fatalf("support distance = %d", snap.Support.Distance)
	}
	if snap.Resistance == nil || snap.Resistance.Price != 110 || snap.Resistance.Volume != 500 {
		t.Fatalf("resistance wrong: %+v", snap.Resistance)
	}
}

func TestDOM_SmallWallsIgnored(t *testing.T) {
	a := NewDOMAnalyzer(domCfg())
	levels := []ledger.LevelView{
		{Price: 99, BidSize: 99}, // < MinWallSize
		{Price: 101, AskSize: 99},
	}
	snap := a.Analyze(levels, 100)
	if snap.Support != nil || snap.Resistance != nil {
		t.Fatalf("sub-floor walls should not be reported")
	}
}

func TestDOM_LookbackExcludesFarWalls(t *testing.T) {
	a := NewDOMAnalyzer(domCfg())
	levels := []ledger.LevelView{
		{Price: 40, BidSize: 9999}, // 距离 60 > 50
	}
	snap := a.Analyze(levels, 100)
	if snap.Support != nil {
		t.Fatalf("wall outside lookback reported")
	}
	// 总量仍然统计
	if snap.TotalBidVolume != 9999 {
		t.Fatalf("totals should include far levels")
	}
}

func TestDOM_EmptyAskIsInfiniteImbalance(t *testing.T) {
	a := NewDOMAnalyzer(domCfg())
	snap := a.Analyze([]ledger.LevelView{{Price: 99, BidSize: 500}}, 100)
	if !math.IsInf(snap.ImbalanceRatio, 1) {
		t.Fatalf("imbalance = %v, want +Inf", snap.ImbalanceRatio)
	}
}

func TestDOM_ScoreAdjustmentSymmetry(t *testing.T) {
	a := NewDOMAnalyzer(domCfg())
	levels := []ledger.LevelView{
		{Price: 95, BidSize: 600},
		{Price: 130, AskSize: 200}, // 压力在贴近范围外
	}
	snap := a.Analyze(levels, 100)

	// 失衡偏多(3.0) +3，支撑贴近 +2 → 多头 +5
	if got := a.ScoreAdjustment(snap, true); got != 5 {
		t.Fatalf("long adjustment = %v, want 5", got)
	}
	// 空头对称：-3 -2 = -5
	if got := a.ScoreAdjustment(snap, false); got != -5 {
		t.Fatalf("short adjustment = %v, want -5", got)
	}
}
