package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/betbot/flowsense/internal/advisory"
	"github.com/betbot/flowsense/internal/engine"
	"github.com/betbot/flowsense/internal/feed"
	"github.com/betbot/flowsense/internal/journal"
	"github.com/betbot/flowsense/internal/metrics"
	"github.com/betbot/flowsense/internal/relay"
	"github.com/betbot/flowsense/internal/status"
	"github.com/betbot/flowsense/pkg/config"
	"github.com/betbot/flowsense/pkg/levelstore"
	"github.com/betbot/flowsense/pkg/logger"
	"github.com/betbot/flowsense/pkg/persistence"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（支持 .yaml, .yml, .json）")
	flag.Parse()

	// .env 不存在不是错误
	_ = godotenv.Load()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		logrus.Fatalf("加载配置失败: %v", err)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		logrus.Fatalf("初始化日志失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := engine.Options{}

	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			logrus.Fatalf("打开决策日志库失败: %v", err)
		}
		defer j.Close()
		opts.Journal = j
	}

	if cfg.LevelDBPath != "" {
		ls, err := levelstore.Open(cfg.LevelDBPath)
		if err != nil {
			logrus.Fatalf("打开价位档案失败: %v", err)
		}
		defer ls.Close()
		opts.LevelStore = ls
	}

	if cfg.Relay.Path != "" {
		w, err := relay.NewWriter(cfg.Relay.Path)
		if err != nil {
			logrus.Fatalf("打开信号中继失败: %v", err)
		}
		defer w.Close()
		opts.Relay = w
	}

	if cfg.Advisory.Enabled {
		quick := advisory.NewQuickpath(cfg.Advisory.QuickpathURL, cfg.Advisory.QuickpathKey, cfg.Advisory.Timeout)
		deep := advisory.NewDeepthink(cfg.Advisory.DeepthinkURL, cfg.Advisory.DeepthinkKey, cfg.Advisory.Timeout)
		opts.Orchestrator = advisory.NewOrchestrator(cfg.Advisory, quick, deep)
	}

	eng := engine.New(*cfg, opts)
	eng.RestoreBigFish(time.Now())

	tickSize, err := decimal.NewFromString(cfg.TickSize)
	if err != nil || tickSize.IsZero() {
		logrus.Fatalf("非法 tick size: %q", cfg.TickSize)
	}
	stream := feed.NewStream(cfg.FeedURL, cfg.Instrument, tickSize, eng)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		eng.Run(gctx)
		return nil
	})

	if cfg.SnapshotDir != "" {
		store := persistence.NewJSONFileService(cfg.SnapshotDir).
			NewStore("engine", cfg.Instrument, "snapshot")
		if snap, ok := engine.LoadSnapshot(store); ok {
			logrus.Infof("上次快照: price=%d trades=%d saved=%s",
				snap.LastPrice, snap.Trades, snap.SavedAt.Format(time.RFC3339))
		}
		g.Go(func() error {
			eng.RunSnapshots(gctx, store)
			return nil
		})
	}

	g.Go(func() error {
		if err := stream.Connect(gctx); err != nil {
			logrus.Warnf("行情流首次连接失败: %v，交给重连器处理", err)
			stream.Reconnect()
		}
		<-gctx.Done()
		return stream.Close()
	})

	if cfg.StatusAddr != "" {
		srv := status.NewServer(eng)
		if _, err := srv.StartAsync(gctx, cfg.StatusAddr); err != nil {
			logrus.Fatalf("启动状态 API 失败: %v", err)
		}
		logrus.Infof("状态 API 监听: %s", cfg.StatusAddr)
	}

	if cfg.MetricsAddr != "" {
		if _, err := metrics.StartAsync(gctx, cfg.MetricsAddr); err != nil {
			logrus.Fatalf("启动 metrics 服务失败: %v", err)
		}
		logrus.Infof("metrics 监听: %s", cfg.MetricsAddr)
	}

	logrus.Infof("🚀 flowsense 引擎已启动: instrument=%s feed=%s", cfg.Instrument, cfg.FeedURL)

	if err := g.Wait(); err != nil {
		logrus.Errorf("引擎退出: %v", err)
		os.Exit(1)
	}
	logrus.Info("引擎已正常退出")
}
