package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/betbot/flowsense/internal/relay"
)

// relay-tail 轮询读取信号中继文件并打印新信号（读取端进程）。
func main() {
	path := flag.String("file", "", "中继文件路径")
	interval := flag.Duration("interval", 200*time.Millisecond, "轮询间隔（下限 100ms）")
	flag.Parse()

	_ = godotenv.Load()

	if *path == "" {
		if env := os.Getenv("FLOWSENSE_RELAY_PATH"); env != "" {
			*path = env
		} else {
			fmt.Fprintln(os.Stderr, "用法: relay-tail -file <中继文件> [-interval 200ms]")
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := relay.NewReader(*path, *interval)
	fmt.Printf("跟踪中继: %s (间隔 %s)\n", *path, *interval)

	r.Run(ctx, func(entries []relay.Entry) {
		for _, e := range entries {
			fmt.Printf("%s  %-10s %-4s price=%d size=%d\n",
				time.Now().Format("15:04:05.000"), e.Type, e.Direction, e.Price, e.Size)
		}
	})
}
