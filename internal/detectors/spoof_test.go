package detectors

import (
	"testing"
	"time"

	"github.com/betbot/flowsense/internal/domain"
	"github.com/betbot/flowsense/pkg/config"
)

func TestSpoof_QuickCancelFades(t *testing.T) {
	d := NewSpoofDetector(config.SpoofConfig{MinSize: 5, MaxAge: 500 * time.Millisecond})
	created := time.Now()

	// 卖单 50ms 后撤销 → 反向（做多）信号
	o := &domain.Order{ID: "D", Side: domain.SideSell, Price: 200, Size: 20, CreatedAt: created}
	sig, fired := d.OnOrderCancel(o, created.Add(50*time.Millisecond))
	if !fired {
		t.Fatalf("expected spoof signal")
	}
	if sig.Type != domain.SignalSpoof {
		t.Fatalf("type = %s", sig.Type)
	}
	if sig.Direction != domain.DirectionBuy {
		t.Fatalf("direction = %s, want BUY (opposite of ask)", sig.Direction)
	}
	if sig.Price != 200 || sig.Size != 20 {
		t.Fatalf("unexpected signal: %+v", sig)
	}
}

func TestSpoof_OldOrSmallOrdersIgnored(t *testing.T) {
	d := NewSpoofDetector(config.SpoofConfig{MinSize: 5, MaxAge: 500 * time.Millisecond})
	created := time.Now()

	// 存续太久
	o := &domain.Order{ID: "a", Side: domain.SideBuy, Price: 100, Size: 20, CreatedAt: created}
	if _, fired := d.OnOrderCancel(o, created.Add(time.Second)); fired {
		t.Fatalf("aged order should not fire")
	}
	// 数量太小
	o = &domain.Order{ID: "b", Side: domain.SideBuy, Price: 100, Size: 4, CreatedAt: created}
	if _, fired := d.OnOrderCancel(o, created.Add(50*time.Millisecond)); fired {
		t.Fatalf("small order should not fire")
	}
	// nil 容错
	if _, fired := d.OnOrderCancel(nil, created); fired {
		t.Fatalf("nil order should not fire")
	}
}
