package ledger

import (
	"testing"
	"time"

	"github.com/betbot/flowsense/internal/domain"
	"github.com/betbot/flowsense/pkg/config"
)

func deltaCfg() config.DeltaConfig {
	return config.DeltaConfig{
		OutlierThreshold:      500,
		BigFishThreshold:      2000,
		LevelExpiry:           30 * time.Minute,
		SweepEvery:            1000,
		DefenseProximityTicks: 2,
		DefenseMinDelta:       100,
		LookbackTicks:         10,
		RecentWindow:          100,
	}
}

func trade(price, size int64, side domain.Side, at time.Time) domain.Trade {
	return domain.Trade{Price: price, Size: size, Side: side, Time: at}
}

func TestDeltaLedger_CumulativeDelta(t *testing.T) {
	d := NewDeltaLedger(deltaCfg())
	now := time.Now()

	d.OnTrade(trade(100, 300, domain.SideBuy, now))
	d.OnTrade(trade(100, 100, domain.SideSell, now))
	d.OnTrade(trade(100, 50, domain.SideBuy, now))

	lv, ok := d.Level(100)
	if !ok {
		t.Fatalf("level missing")
	}
	if lv.Delta != 250 {
		t.Fatalf("delta = %d, want 250", lv.Delta)
	}
	if lv.BuyVolume != 350 || lv.SellVolume != 100 || lv.Trades != 3 {
		t.Fatalf("volumes wrong: %+v", lv)
	}
	if lv.Outlier {
		t.Fatalf("|250| < 500 should not be outlier")
	}

	d.OnTrade(trade(100, 400, domain.SideBuy, now))
	lv, _ = d.Level(100)
	if !lv.Outlier {
		t.Fatalf("|650| >= 500 should be outlier")
	}
}

func TestDeltaLedger_PromoteExactlyOnce(t *testing.T) {
	d := NewDeltaLedger(deltaCfg())
	now := time.Now()

	var promotions []domain.BigFishLevel
	d.OnPromote(func(lv domain.BigFishLevel) {
		promotions = append(promotions, lv)
	})

	d.OnTrade(trade(100, 1500, domain.SideSell, now))
	if len(promotions) != 0 {
		t.Fatalf("promoted too early")
	}
	d.OnTrade(trade(100, 600, domain.SideSell, now))
	if len(promotions) != 1 {
		t.Fatalf("promotions = %d, want 1", len(promotions))
	}
	if promotions[0].Side != domain.SideSell || promotions[0].Delta != -2100 {
		t.Fatalf("unexpected promotion: %+v", promotions[0])
	}

	// 继续加仓不会重复晋升
	d.OnTrade(trade(100, 5000, domain.SideSell, now))
	if len(promotions) != 1 {
		t.Fatalf("level promoted twice")
	}
	if got := len(d.ActiveBigFish()); got != 1 {
		t.Fatalf("active big fish = %d, want 1", got)
	}
}

func TestDeltaLedger_SweepRetainsBigFish(t *testing.T) {
	cfg := deltaCfg()
	cfg.LevelExpiry = time.Minute
	d := NewDeltaLedger(cfg)
	start := time.Now()

	d.OnTrade(trade(100, 2500, domain.SideBuy, start)) // 晋升
	d.OnTrade(trade(105, 50, domain.SideBuy, start))   // 普通价位

	// 过期后普通价位删除，大资金价位保留
	d.Sweep(start.Add(2 * time.Minute))
	if _, ok := d.Level(105); ok {
		t.Fatalf("idle plain level should be swept")
	}
	if _, ok := d.Level(100); !ok {
		t.Fatalf("big fish level must survive expiry")
	}
	if len(d.ActiveBigFish()) != 1 {
		t.Fatalf("big fish should stay active within 2x expiry")
	}

	// 超过 2×过期：失效，差额条目回收，档案保留
	d.Sweep(start.Add(3 * time.Minute))
	if len(d.ActiveBigFish()) != 0 {
		t.Fatalf("big fish should deactivate past 2x expiry")
	}
	if _, ok := d.Level(100); ok {
		t.Fatalf("deactivated big fish delta level should be reclaimed")
	}
	if got := d.NumBigFish(); got != 1 {
		t.Fatalf("deactivated big fish record must persist, archive size = %d", got)
	}

	// 后续清扫不会删除失活档案，也不会再视作防守
	d.Sweep(start.Add(10 * time.Minute))
	if got := d.NumBigFish(); got != 1 {
		t.Fatalf("archive size after repeated sweeps = %d, want 1", got)
	}
	if ds, ok := d.AnalyzeForBigFish(100, start.Add(10*time.Minute)); ok {
		t.Fatalf("inactive big fish still matching: %+v", ds)
	}
}

func TestDeltaLedger_DefenseRequiresContinuation(t *testing.T) {
	d := NewDeltaLedger(deltaCfg())
	now := time.Now()

	d.OnTrade(trade(100, 2500, domain.SideBuy, now)) // 买方大资金 @100

	// 贴近但当前价位差额不延续（卖压）：不触发
	d.OnTrade(trade(101, 50, domain.SideSell, now))
	if _, ok := d.AnalyzeForBigFish(101, now); ok {
		t.Fatalf("defense fired without continuation")
	}

	// 当前价位出现同向差额且达到下限：触发
	d.OnTrade(trade(101, 200, domain.SideBuy, now))
	ds, ok := d.AnalyzeForBigFish(101, now)
	if !ok {
		t.Fatalf("defense should fire")
	}
	if ds.Level.Price != 100 || ds.Distance != 1 {
		t.Fatalf("unexpected defense: %+v", ds)
	}
	if ds.Level.DefenseCount != 1 {
		t.Fatalf("defense count = %d, want 1", ds.Level.DefenseCount)
	}
	if ds.CurrentDelta != 150 {
		t.Fatalf("current delta = %d, want 150", ds.CurrentDelta)
	}
}

func TestDeltaLedger_DefenseOutOfProximity(t *testing.T) {
	d := NewDeltaLedger(deltaCfg())
	now := time.Now()

	d.OnTrade(trade(100, 2500, domain.SideBuy, now))
	d.OnTrade(trade(105, 500, domain.SideBuy, now))

	// 距离 5 > DefenseProximityTicks=2
	if _, ok := d.AnalyzeForBigFish(105, now); ok {
		t.Fatalf("defense fired outside proximity")
	}
}

func TestDeltaLedger_SeedBigFish(t *testing.T) {
	d := NewDeltaLedger(deltaCfg())
	now := time.Now()

	d.SeedBigFish([]domain.BigFishLevel{
		{Price: 200, Delta: 3000, Side: domain.SideBuy, FirstSeen: now, Active: true},
	})
	if len(d.ActiveBigFish()) != 1 {
		t.Fatalf("seeded level not active")
	}

	// 恢复后的价位同样参与防守判定
	d.OnTrade(trade(200, 150, domain.SideBuy, now))
	if _, ok := d.AnalyzeForBigFish(200, now); !ok {
		t.Fatalf("seeded big fish should defend")
	}
}
