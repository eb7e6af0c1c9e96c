package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 各阈值的下限（配置低于下限时会被钳制到下限，不致命）。
// 同时也是未配置时的默认值。
const (
	FloorMinWallSize         = 100
	FloorOutlierThreshold    = 500
	FloorBigFishThreshold    = 2000
	FloorLevelExpiryMs       = 1_800_000
	FloorIcebergCooldownMs   = 10_000
	FloorDirectionCooldownMs = 30_000
	FloorSpoofMaxAgeMs       = 500
	FloorTapeWindowMs        = 5_000
)

// IcebergConfig 冰山检测配置
type IcebergConfig struct {
	MinOrders         int           // 最小挂单数阈值下限
	MinSize           int64         // 最小聚合数量阈值下限
	HistoryWindow     int           // 滚动观察窗口长度（默认 100）
	Cooldown          time.Duration // 同价位冷却
	DirectionCooldown time.Duration // 反向信号锁定
}

// SpoofConfig 幌骗检测配置
type SpoofConfig struct {
	MinSize int64         // 触发的最小挂单数量
	MaxAge  time.Duration // 触发的最大存续时间
}

// AbsorptionConfig 吸收检测配置
type AbsorptionConfig struct {
	MinSize int64 // 触发的最小成交数量
}

// DeltaConfig 差额账本配置
type DeltaConfig struct {
	OutlierThreshold      int64         // 离群阈值
	BigFishThreshold      int64         // 大资金晋升阈值
	LevelExpiry           time.Duration // 普通价位过期时间（大资金价位保留 2 倍）
	SweepEvery            int           // 每 N 笔成交触发一次清扫
	SweepInterval         time.Duration // 后台清扫间隔
	DefenseProximityTicks int64         // 防守判定的贴近范围（tick）
	DefenseMinDelta       int64         // 防守判定的最小同向差额
	LookbackTicks         int64         // 大资金搜索范围（tick）
	RecentWindow          int           // 单笔差额滚动列表长度（统计用）
}

// TapeConfig 成交带速度配置
type TapeConfig struct {
	Window        time.Duration // 主分析窗口
	MaxEvents     int           // 窗口内事件数上限
	HighSpeed     float64       // 高速阈值（笔/秒）
	VeryHighSpeed float64       // 极高速阈值（笔/秒）
	CacheValidity time.Duration // analyze 结果缓存有效期
}

// DomConfig 订单簿分析配置
type DomConfig struct {
	MinWallSize    int64 // 报告墙体的最小挂单量
	LookbackTicks  int64 // 搜索支撑/压力的范围（tick）
	ProximityTicks int64 // 加减分的贴近范围（tick）
}

// SessionConfig 时段与预热配置
type SessionConfig struct {
	MarketTimezone     string // 市场时区（默认 America/New_York）
	WarmupMinutes      int    // 预热完成条件一：经过分钟数
	WarmupTrades       int64  // 预热完成条件二：处理成交笔数
	WarmupPriceUpdates int64  // 预热完成条件三：处理价格更新次数
}

// ConfluenceConfig 置信评分配置
type ConfluenceConfig struct {
	LongThreshold    float64       // 做多触发阈值
	ShortThreshold   float64       // 做空触发阈值
	RecencyWindow    time.Duration // 信号计入评分的新鲜度窗口
	IcebergPoints    float64
	SpoofPoints      float64
	AbsorptionPoints float64
	DefensePoints    float64
	EvalMinInterval  time.Duration // 评估节流（防止每个 BBO 都全量评估）
	BorderlineMargin float64       // 与阈值差距在此范围内视为边界决策，转咨询
}

// AdvisoryConfig 咨询编排配置
type AdvisoryConfig struct {
	Enabled         bool
	Preference      string // 显式偏好：quickpath / deepthink / 空=按内容规则
	FallbackEnabled bool
	Timeout         time.Duration // 单次调用超时（默认 30s）
	MaxRetries      int           // 对首选 provider 的最大重试次数
	RatePerSec      int           // provider 调用限速（令牌桶）
	CacheTTL        time.Duration // 相同请求去重缓存
	QuickpathURL    string
	QuickpathKey    string
	DeepthinkURL    string
	DeepthinkKey    string
}

// RelayConfig 信号中继配置
type RelayConfig struct {
	Path         string        // 中继文件路径（空=不写中继）
	PollInterval time.Duration // 读取端轮询间隔（下限 100ms）
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Config 引擎配置（单交易品种一份）
type Config struct {
	Instrument string // 品种标识
	TickSize   string // 行情小数价 -> tick 的换算单位（如 "0.25"）

	Log        LogConfig
	Iceberg    IcebergConfig
	Spoof      SpoofConfig
	Absorption AbsorptionConfig
	Delta      DeltaConfig
	Tape       TapeConfig
	Dom        DomConfig
	Session    SessionConfig
	Confluence ConfluenceConfig
	Advisory   AdvisoryConfig
	Relay      RelayConfig

	FeedURL     string // 行情 websocket 地址
	JournalPath string // sqlite 决策日志路径（空=不落库）
	LevelDBPath string // badger 大资金价位档案路径（空=不归档）
	SnapshotDir string // 引擎快照目录（空=不快照）
	StatusAddr  string // 状态 API 监听地址（空=不开启）
	MetricsAddr string // 指标监听地址（空=不开启）
}

// configFile YAML/JSON 配置文件结构
type configFile struct {
	Instrument string `yaml:"instrument" json:"instrument"`
	TickSize   string `yaml:"tick_size" json:"tick_size"`
	FeedURL    string `yaml:"feed_url" json:"feed_url"`

	Log struct {
		Level      string `yaml:"level" json:"level"`
		File       string `yaml:"file" json:"file"`
		MaxSize    int    `yaml:"max_size" json:"max_size"`
		MaxBackups int    `yaml:"max_backups" json:"max_backups"`
		MaxAge     int    `yaml:"max_age" json:"max_age"`
		Compress   bool   `yaml:"compress" json:"compress"`
	} `yaml:"log" json:"log"`

	Iceberg struct {
		MinOrders           int   `yaml:"min_orders" json:"min_orders"`
		MinSize             int64 `yaml:"min_size" json:"min_size"`
		HistoryWindow       int   `yaml:"history_window" json:"history_window"`
		CooldownMs          int   `yaml:"cooldown_ms" json:"cooldown_ms"`
		DirectionCooldownMs int   `yaml:"direction_cooldown_ms" json:"direction_cooldown_ms"`
	} `yaml:"iceberg" json:"iceberg"`

	Spoof struct {
		MinSize  int64 `yaml:"min_size" json:"min_size"`
		MaxAgeMs int   `yaml:"max_age_ms" json:"max_age_ms"`
	} `yaml:"spoof" json:"spoof"`

	Absorption struct {
		MinSize int64 `yaml:"min_size" json:"min_size"`
	} `yaml:"absorption" json:"absorption"`

	Delta struct {
		OutlierThreshold      int64 `yaml:"outlier_threshold" json:"outlier_threshold"`
		BigFishThreshold      int64 `yaml:"big_fish_threshold" json:"big_fish_threshold"`
		LevelExpiryMs         int   `yaml:"level_expiry_ms" json:"level_expiry_ms"`
		SweepEvery            int   `yaml:"sweep_every" json:"sweep_every"`
		SweepIntervalMs       int   `yaml:"sweep_interval_ms" json:"sweep_interval_ms"`
		DefenseProximityTicks int64 `yaml:"defense_proximity_ticks" json:"defense_proximity_ticks"`
		DefenseMinDelta       int64 `yaml:"defense_min_delta" json:"defense_min_delta"`
		LookbackTicks         int64 `yaml:"lookback_ticks" json:"lookback_ticks"`
		RecentWindow          int   `yaml:"recent_window" json:"recent_window"`
	} `yaml:"delta" json:"delta"`

	Tape struct {
		WindowMs        int     `yaml:"window_ms" json:"window_ms"`
		MaxEvents       int     `yaml:"max_events" json:"max_events"`
		HighSpeed       float64 `yaml:"high_speed" json:"high_speed"`
		VeryHighSpeed   float64 `yaml:"very_high_speed" json:"very_high_speed"`
		CacheValidityMs int     `yaml:"cache_validity_ms" json:"cache_validity_ms"`
	} `yaml:"tape" json:"tape"`

	Dom struct {
		MinWallSize    int64 `yaml:"min_wall_size" json:"min_wall_size"`
		LookbackTicks  int64 `yaml:"lookback_ticks" json:"lookback_ticks"`
		ProximityTicks int64 `yaml:"proximity_ticks" json:"proximity_ticks"`
	} `yaml:"dom" json:"dom"`

	Session struct {
		MarketTimezone     string `yaml:"market_timezone" json:"market_timezone"`
		WarmupMinutes      int    `yaml:"warmup_minutes" json:"warmup_minutes"`
		WarmupTrades       int64  `yaml:"warmup_trades" json:"warmup_trades"`
		WarmupPriceUpdates int64  `yaml:"warmup_price_updates" json:"warmup_price_updates"`
	} `yaml:"session" json:"session"`

	Confluence struct {
		LongThreshold     float64 `yaml:"long_threshold" json:"long_threshold"`
		ShortThreshold    float64 `yaml:"short_threshold" json:"short_threshold"`
		RecencyWindowMs   int     `yaml:"recency_window_ms" json:"recency_window_ms"`
		IcebergPoints     float64 `yaml:"iceberg_points" json:"iceberg_points"`
		SpoofPoints       float64 `yaml:"spoof_points" json:"spoof_points"`
		AbsorptionPoints  float64 `yaml:"absorption_points" json:"absorption_points"`
		DefensePoints     float64 `yaml:"defense_points" json:"defense_points"`
		EvalMinIntervalMs int     `yaml:"eval_min_interval_ms" json:"eval_min_interval_ms"`
		BorderlineMargin  float64 `yaml:"borderline_margin" json:"borderline_margin"`
	} `yaml:"confluence" json:"confluence"`

	Advisory struct {
		Enabled         bool   `yaml:"enabled" json:"enabled"`
		Preference      string `yaml:"preference" json:"preference"`
		FallbackEnabled bool   `yaml:"fallback_enabled" json:"fallback_enabled"`
		TimeoutMs       int    `yaml:"timeout_ms" json:"timeout_ms"`
		MaxRetries      int    `yaml:"max_retries" json:"max_retries"`
		RatePerSec      int    `yaml:"rate_per_sec" json:"rate_per_sec"`
		CacheTTLMs      int    `yaml:"cache_ttl_ms" json:"cache_ttl_ms"`
		QuickpathURL    string `yaml:"quickpath_url" json:"quickpath_url"`
		QuickpathKey    string `yaml:"quickpath_key" json:"quickpath_key"`
		DeepthinkURL    string `yaml:"deepthink_url" json:"deepthink_url"`
		DeepthinkKey    string `yaml:"deepthink_key" json:"deepthink_key"`
	} `yaml:"advisory" json:"advisory"`

	Relay struct {
		Path           string `yaml:"path" json:"path"`
		PollIntervalMs int    `yaml:"poll_interval_ms" json:"poll_interval_ms"`
	} `yaml:"relay" json:"relay"`

	JournalPath string `yaml:"journal_path" json:"journal_path"`
	LevelDBPath string `yaml:"leveldb_path" json:"leveldb_path"`
	SnapshotDir string `yaml:"snapshot_dir" json:"snapshot_dir"`
	StatusAddr  string `yaml:"status_addr" json:"status_addr"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// Default 返回带默认值的配置
func Default() *Config {
	return &Config{
		Instrument: "UNKNOWN",
		TickSize:   "1",
		Log: LogConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		Iceberg: IcebergConfig{
			MinOrders:         3,
			MinSize:           50,
			HistoryWindow:     100,
			Cooldown:          FloorIcebergCooldownMs * time.Millisecond,
			DirectionCooldown: FloorDirectionCooldownMs * time.Millisecond,
		},
		Spoof: SpoofConfig{
			MinSize: 50,
			MaxAge:  FloorSpoofMaxAgeMs * time.Millisecond,
		},
		Absorption: AbsorptionConfig{
			MinSize: 100,
		},
		Delta: DeltaConfig{
			OutlierThreshold:      FloorOutlierThreshold,
			BigFishThreshold:      FloorBigFishThreshold,
			LevelExpiry:           FloorLevelExpiryMs * time.Millisecond,
			SweepEvery:            50,
			SweepInterval:         time.Minute,
			DefenseProximityTicks: 3,
			DefenseMinDelta:       100,
			LookbackTicks:         50,
			RecentWindow:          200,
		},
		Tape: TapeConfig{
			Window:        FloorTapeWindowMs * time.Millisecond,
			MaxEvents:     1000,
			HighSpeed:     10,
			VeryHighSpeed: 25,
			CacheValidity: 250 * time.Millisecond,
		},
		Dom: DomConfig{
			MinWallSize:    FloorMinWallSize,
			LookbackTicks:  50,
			ProximityTicks: 20,
		},
		Session: SessionConfig{
			MarketTimezone:     "America/New_York",
			WarmupMinutes:      5,
			WarmupTrades:       500,
			WarmupPriceUpdates: 1000,
		},
		Confluence: ConfluenceConfig{
			LongThreshold:    10,
			ShortThreshold:   10,
			RecencyWindow:    10 * time.Second,
			IcebergPoints:    5,
			SpoofPoints:      3,
			AbsorptionPoints: 3,
			DefensePoints:    6,
			EvalMinInterval:  100 * time.Millisecond,
			BorderlineMargin: 2,
		},
		Advisory: AdvisoryConfig{
			Enabled:         false,
			FallbackEnabled: true,
			Timeout:         30 * time.Second,
			MaxRetries:      2,
			RatePerSec:      2,
			CacheTTL:        5 * time.Second,
		},
		Relay: RelayConfig{
			PollInterval: 200 * time.Millisecond,
		},
	}
}

// LoadFromFile 从 YAML/JSON 文件加载配置并套用默认值、环境变量与下限钳制。
// filePath 为空时只用默认值 + 环境变量。
func LoadFromFile(filePath string) (*Config, error) {
	cfg := Default()

	if filePath != "" {
		cf, err := parseConfigFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
		applyFile(cfg, cf)
	}

	applyEnv(cfg)
	warnings := cfg.ClampFloors()
	for _, w := range warnings {
		// logger 可能尚未初始化，直接写 stderr
		fmt.Fprintln(os.Stderr, "[config] "+w)
	}
	return cfg, nil
}

func parseConfigFile(filePath string) (*configFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cf configFile
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("解析 YAML 失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("解析 JSON 失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置格式: %s", ext)
	}
	return &cf, nil
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// applyFile 把文件里非零字段套到配置上
func applyFile(cfg *Config, cf *configFile) {
	if cf.Instrument != "" {
		cfg.Instrument = cf.Instrument
	}
	if cf.TickSize != "" {
		cfg.TickSize = cf.TickSize
	}
	if cf.FeedURL != "" {
		cfg.FeedURL = cf.FeedURL
	}

	if cf.Log.Level != "" {
		cfg.Log.Level = cf.Log.Level
	}
	if cf.Log.File != "" {
		cfg.Log.File = cf.Log.File
	}
	if cf.Log.MaxSize > 0 {
		cfg.Log.MaxSize = cf.Log.MaxSize
	}
	if cf.Log.MaxBackups > 0 {
		cfg.Log.MaxBackups = cf.Log.MaxBackups
	}
	if cf.Log.MaxAge > 0 {
		cfg.Log.MaxAge = cf.Log.MaxAge
	}
	if cf.Log.Compress {
		cfg.Log.Compress = true
	}

	if cf.Iceberg.MinOrders > 0 {
		cfg.Iceberg.MinOrders = cf.Iceberg.MinOrders
	}
	if cf.Iceberg.MinSize > 0 {
		cfg.Iceberg.MinSize = cf.Iceberg.MinSize
	}
	if cf.Iceberg.HistoryWindow > 0 {
		cfg.Iceberg.HistoryWindow = cf.Iceberg.HistoryWindow
	}
	if cf.Iceberg.CooldownMs > 0 {
		cfg.Iceberg.Cooldown = ms(cf.Iceberg.CooldownMs)
	}
	if cf.Iceberg.DirectionCooldownMs > 0 {
		cfg.Iceberg.DirectionCooldown = ms(cf.Iceberg.DirectionCooldownMs)
	}

	if cf.Spoof.MinSize > 0 {
		cfg.Spoof.MinSize = cf.Spoof.MinSize
	}
	if cf.Spoof.MaxAgeMs > 0 {
		cfg.Spoof.MaxAge = ms(cf.Spoof.MaxAgeMs)
	}

	if cf.Absorption.MinSize > 0 {
		cfg.Absorption.MinSize = cf.Absorption.MinSize
	}

	if cf.Delta.OutlierThreshold > 0 {
		cfg.Delta.OutlierThreshold = cf.Delta.OutlierThreshold
	}
	if cf.Delta.BigFishThreshold > 0 {
		cfg.Delta.BigFishThreshold = cf.Delta.BigFishThreshold
	}
	if cf.Delta.LevelExpiryMs > 0 {
		cfg.Delta.LevelExpiry = ms(cf.Delta.LevelExpiryMs)
	}
	if cf.Delta.SweepEvery > 0 {
		cfg.Delta.SweepEvery = cf.Delta.SweepEvery
	}
	if cf.Delta.SweepIntervalMs > 0 {
		cfg.Delta.SweepInterval = ms(cf.Delta.SweepIntervalMs)
	}
	if cf.Delta.DefenseProximityTicks > 0 {
		cfg.Delta.DefenseProximityTicks = cf.Delta.DefenseProximityTicks
	}
	if cf.Delta.DefenseMinDelta > 0 {
		cfg.Delta.DefenseMinDelta = cf.Delta.DefenseMinDelta
	}
	if cf.Delta.LookbackTicks > 0 {
		cfg.Delta.LookbackTicks = cf.Delta.LookbackTicks
	}
	if cf.Delta.RecentWindow > 0 {
		cfg.Delta.RecentWindow = cf.Delta.RecentWindow
	}

	if cf.Tape.WindowMs > 0 {
		cfg.Tape.Window = ms(cf.Tape.WindowMs)
	}
	if cf.Tape.MaxEvents > 0 {
		cfg.Tape.MaxEvents = cf.Tape.MaxEvents
	}
	if cf.Tape.HighSpeed > 0 {
		cfg.Tape.HighSpeed = cf.Tape.HighSpeed
	}
	if cf.Tape.VeryHighSpeed > 0 {
		cfg.Tape.VeryHighSpeed = cf.Tape.VeryHighSpeed
	}
	if cf.Tape.CacheValidityMs > 0 {
		cfg.Tape.CacheValidity = ms(cf.Tape.CacheValidityMs)
	}

	if cf.Dom.MinWallSize > 0 {
		cfg.Dom.MinWallSize = cf.Dom.MinWallSize
	}
	if cf.Dom.LookbackTicks > 0 {
		cfg.Dom.LookbackTicks = cf.Dom.LookbackTicks
	}
	if cf.Dom.ProximityTicks > 0 {
		cfg.Dom.ProximityTicks = cf.Dom.ProximityTicks
	}

	if cf.Session.MarketTimezone != "" {
		cfg.Session.MarketTimezone = cf.Session.MarketTimezone
	}
	if cf.Session.WarmupMinutes > 0 {
		cfg.Session.WarmupMinutes = cf.Session.WarmupMinutes
	}
	if cf.Session.WarmupTrades > 0 {
		cfg.Session.WarmupTrades = cf.Session.WarmupTrades
	}
	if cf.Session.WarmupPriceUpdates > 0 {
		cfg.Session.WarmupPriceUpdates = cf.Session.WarmupPriceUpdates
	}

	if cf.Confluence.LongThreshold > 0 {
		cfg.Confluence.LongThreshold = cf.Confluence.LongThreshold
	}
	if cf.Confluence.ShortThreshold > 0 {
		cfg.Confluence.ShortThreshold = cf.Confluence.ShortThreshold
	}
	if cf.Confluence.RecencyWindowMs > 0 {
		cfg.Confluence.RecencyWindow = ms(cf.Confluence.RecencyWindowMs)
	}
	if cf.Confluence.IcebergPoints > 0 {
		cfg.Confluence.IcebergPoints = cf.Confluence.IcebergPoints
	}
	if cf.Confluence.SpoofPoints > 0 {
		cfg.Confluence.SpoofPoints = cf.Confluence.SpoofPoints
	}
	if cf.Confluence.AbsorptionPoints > 0 {
		cfg.Confluence.AbsorptionPoints = cf.Confluence.AbsorptionPoints
	}
	if cf.Confluence.DefensePoints > 0 {
		cfg.Confluence.DefensePoints = cf.Confluence.DefensePoints
	}
	if cf.Confluence.EvalMinIntervalMs > 0 {
		cfg.Confluence.EvalMinInterval = ms(cf.Confluence.EvalMinIntervalMs)
	}
	if cf.Confluence.BorderlineMargin > 0 {
		cfg.Confluence.BorderlineMargin = cf.Confluence.BorderlineMargin
	}

	if cf.Advisory.Enabled {
		cfg.Advisory.Enabled = true
	}
	if cf.Advisory.Preference != "" {
		cfg.Advisory.Preference = cf.Advisory.Preference
	}
	cfg.Advisory.FallbackEnabled = cf.Advisory.FallbackEnabled || cfg.Advisory.FallbackEnabled
	if cf.Advisory.TimeoutMs > 0 {
		cfg.Advisory.Timeout = ms(cf.Advisory.TimeoutMs)
	}
	if cf.Advisory.MaxRetries > 0 {
		cfg.Advisory.MaxRetries = cf.Advisory.MaxRetries
	}
	if cf.Advisory.RatePerSec > 0 {
		cfg.Advisory.RatePerSec = cf.Advisory.RatePerSec
	}
	if cf.Advisory.CacheTTLMs > 0 {
		cfg.Advisory.CacheTTL = ms(cf.Advisory.CacheTTLMs)
	}
	if cf.Advisory.QuickpathURL != "" {
		cfg.Advisory.QuickpathURL = cf.Advisory.QuickpathURL
	}
	if cf.Advisory.QuickpathKey != "" {
		cfg.Advisory.QuickpathKey = cf.Advisory.QuickpathKey
	}
	if cf.Advisory.DeepthinkURL != "" {
		cfg.Advisory.DeepthinkURL = cf.Advisory.DeepthinkURL
	}
	if cf.Advisory.DeepthinkKey != "" {
		cfg.Advisory.DeepthinkKey = cf.Advisory.DeepthinkKey
	}

	if cf.Relay.Path != "" {
		cfg.Relay.Path = cf.Relay.Path
	}
	if cf.Relay.PollIntervalMs > 0 {
		cfg.Relay.PollInterval = ms(cf.Relay.PollIntervalMs)
	}

	if cf.JournalPath != "" {
		cfg.JournalPath = cf.JournalPath
	}
	if cf.LevelDBPath != "" {
		cfg.LevelDBPath = cf.LevelDBPath
	}
	if cf.SnapshotDir != "" {
		cfg.SnapshotDir = cf.SnapshotDir
	}
	if cf.StatusAddr != "" {
		cfg.StatusAddr = cf.StatusAddr
	}
	if cf.MetricsAddr != "" {
		cfg.MetricsAddr = cf.MetricsAddr
	}
}

// applyEnv 环境变量覆盖（优先级最高，只覆盖少数运行时常改的项）
func applyEnv(cfg *Config) {
	if v := os.Getenv("FLOWSENSE_INSTRUMENT"); v != "" {
		cfg.Instrument = v
	}
	if v := os.Getenv("FLOWSENSE_FEED_URL"); v != "" {
		cfg.FeedURL = v
	}
	if v := os.Getenv("FLOWSENSE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FLOWSENSE_RELAY_PATH"); v != "" {
		cfg.Relay.Path = v
	}
	if v := os.Getenv("FLOWSENSE_ADVISORY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Advisory.Enabled = b
		}
	}
	if v := os.Getenv("FLOWSENSE_QUICKPATH_KEY"); v != "" {
		cfg.Advisory.QuickpathKey = v
	}
	if v := os.Getenv("FLOWSENSE_DEEPTHINK_KEY"); v != "" {
		cfg.Advisory.DeepthinkKey = v
	}
}

// ClampFloors 把低于下限的阈值钳到下限，返回警告列表（不致命）。
func (c *Config) ClampFloors() []string {
	var warns []string
	clampI64 := func(name string, v *int64, floor int64) {
		if *v < floor {
			warns = append(warns, fmt.Sprintf("%s=%d 低于下限 %d，已钳制", name, *v, floor))
			*v = floor
		}
	}
	clampDur := func(name string, v *time.Duration, floor time.Duration) {
		if *v < floor {
			warns = append(warns, fmt.Sprintf("%s=%s 低于下限 %s，已钳制", name, *v, floor))
			*v = floor
		}
	}

	clampI64("dom.min_wall_size", &c.Dom.MinWallSize, FloorMinWallSize)
	clampI64("delta.outlier_threshold", &c.Delta.OutlierThreshold, FloorOutlierThreshold)
	clampI64("delta.big_fish_threshold", &c.Delta.BigFishThreshold, FloorBigFishThreshold)
	clampDur("delta.level_expiry", &c.Delta.LevelExpiry, FloorLevelExpiryMs*time.Millisecond)
	clampDur("iceberg.cooldown", &c.Iceberg.Cooldown, FloorIcebergCooldownMs*time.Millisecond)
	clampDur("iceberg.direction_cooldown", &c.Iceberg.DirectionCooldown, FloorDirectionCooldownMs*time.Millisecond)
	clampDur("spoof.max_age", &c.Spoof.MaxAge, FloorSpoofMaxAgeMs*time.Millisecond)
	clampDur("tape.window", &c.Tape.Window, FloorTapeWindowMs*time.Millisecond)

	// 中继读取端轮询间隔下限 100ms（线路契约）
	clampDur("relay.poll_interval", &c.Relay.PollInterval, 100*time.Millisecond)

	return warns
}
