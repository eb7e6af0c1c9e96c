package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromFile_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadFromFile("")
	if err != nil {
		t.Fatalf("空路径不应报错: %v", err)
	}
	if cfg.Instrument != "UNKNOWN" || cfg.TickSize != "1" {
		t.Fatalf("默认品种不对: %s / %s", cfg.Instrument, cfg.TickSize)
	}
	if cfg.Iceberg.MinOrders != 3 || cfg.Iceberg.MinSize != 50 {
		t.Fatalf("冰山默认值不对: %+v", cfg.Iceberg)
	}
	if cfg.Delta.BigFishThreshold != FloorBigFishThreshold {
		t.Fatalf("大资金默认阈值 = %d", cfg.Delta.BigFishThreshold)
	}
	if cfg.Session.MarketTimezone != "America/New_York" {
		t.Fatalf("默认时区 = %s", cfg.Session.MarketTimezone)
	}
	if cfg.Advisory.Enabled {
		t.Fatalf("咨询默认应关闭")
	}
	if cfg.Relay.PollInterval != 200*time.Millisecond {
		t.Fatalf("中继默认轮询间隔 = %s", cfg.Relay.PollInterval)
	}
}

func TestLoadFromFile_YAMLOverridesAndFloors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	yaml := `
instrument: ES
tick_size: "0.25"
feed_url: wss://feed.example.com/v1
iceberg:
  min_orders: 5
  min_size: 80
  cooldown_ms: 2000
spoof:
  max_age_ms: 100
delta:
  big_fish_threshold: 500
tape:
  high_speed: 20
advisory:
  enabled: true
  preference: deepthink
  timeout_ms: 5000
relay:
  path: /tmp/relay.txt
  poll_interval_ms: 50
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("写配置文件失败: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Instrument != "ES" || cfg.TickSize != "0.25" {
		t.Fatalf("品种覆盖失败: %s / %s", cfg.Instrument, cfg.TickSize)
	}
	if cfg.Iceberg.MinOrders != 5 || cfg.Iceberg.MinSize != 80 {
		t.Fatalf("冰山覆盖失败: %+v", cfg.Iceberg)
	}
	if cfg.Tape.HighSpeed != 20 {
		t.Fatalf("成交带覆盖失败: %v", cfg.Tape.HighSpeed)
	}
	if !cfg.Advisory.Enabled || cfg.Advisory.Preference != "deepthink" || cfg.Advisory.Timeout != 5*time.Second {
		t.Fatalf("咨询覆盖失败: %+v", cfg.Advisory)
	}

	// 低于下限的值被钳制
	if cfg.Iceberg.Cooldown != FloorIcebergCooldownMs*time.Millisecond {
		t.Fatalf("冰山冷却应钳到下限, 实际 %s", cfg.Iceberg.Cooldown)
	}
	if cfg.Spoof.MaxAge != FloorSpoofMaxAgeMs*time.Millisecond {
		t.Fatalf("幌骗时限应钳到下限, 实际 %s", cfg.Spoof.MaxAge)
	}
	if cfg.Delta.BigFishThreshold != FloorBigFishThreshold {
		t.Fatalf("大资金阈值应钳到下限, 实际 %d", cfg.Delta.BigFishThreshold)
	}
	if cfg.Relay.PollInterval != 100*time.Millisecond {
		t.Fatalf("轮询间隔应钳到 100ms, 实际 %s", cfg.Relay.PollInterval)
	}
	// 未配置的项保持默认
	if cfg.Dom.MinWallSize != FloorMinWallSize {
		t.Fatalf("未配置项不应被改动: %d", cfg.Dom.MinWallSize)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.json")
	if err := os.WriteFile(path, []byte(`{"instrument":"NQ","dom":{"min_wall_size":300}}`), 0o644); err != nil {
		t.Fatalf("写配置文件失败: %v", err)
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Instrument != "NQ" || cfg.Dom.MinWallSize != 300 {
		t.Fatalf("JSON 覆盖失败: %s / %d", cfg.Instrument, cfg.Dom.MinWallSize)
	}
}

func TestLoadFromFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	if err := os.WriteFile(path, []byte("instrument = \"ES\""), 0o644); err != nil {
		t.Fatalf("写配置文件失败: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Fatalf("不支持的扩展名应报错")
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("文件不存在应报错")
	}
}

func TestLoadFromFile_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte("instrument: ES\n"), 0o644); err != nil {
		t.Fatalf("写配置文件失败: %v", err)
	}
	t.Setenv("FLOWSENSE_INSTRUMENT", "CL")
	t.Setenv("FLOWSENSE_LOG_LEVEL", "debug")
	t.Setenv("FLOWSENSE_ADVISORY_ENABLED", "true")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Instrument != "CL" {
		t.Fatalf("环境变量应覆盖文件: %s", cfg.Instrument)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("日志级别覆盖失败: %s", cfg.Log.Level)
	}
	if !cfg.Advisory.Enabled {
		t.Fatalf("FLOWSENSE_ADVISORY_ENABLED=true 应打开咨询")
	}
}

func TestClampFloors_WarningsListComplete(t *testing.T) {
	cfg := Default()
	cfg.Dom.MinWallSize = 1
	cfg.Delta.OutlierThreshold = 1
	cfg.Tape.Window = time.Millisecond

	warns := cfg.ClampFloors()
	if len(warns) != 3 {
		t.Fatalf("警告条数 = %d, 期望 3: %v", len(warns), warns)
	}
	if cfg.Dom.MinWallSize != FloorMinWallSize ||
		cfg.Delta.OutlierThreshold != FloorOutlierThreshold ||
		cfg.Tape.Window != FloorTapeWindowMs*time.Millisecond {
		t.Fatalf("钳制未生效: %+v", cfg)
	}
}
