package relay

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/betbot/flowsense/internal/domain"
)

// 轮询间隔下限，配置更小值会被抬到该值
const MinPollInterval = 100 * time.Millisecond

// Entry 中继文件中的一条已解析信号
type Entry struct {
	Type      domain.SignalType
	Direction domain.Direction
	Price     int64
	Size      int64
}

// ParseLine 解析一行中继记录，格式错误返回 false（调用方跳过该行）
func ParseLine(line string) (Entry, bool) {
	parts := strings.Split(strings.TrimSpace(line), "|")
	if len(parts) != 4 {
		return Entry{}, false
	}
	t := domain.SignalType(parts[0])
	if !relayable(t) {
		return Entry{}, false
	}
	d := domain.Direction(parts[1])
	switch d {
	case domain.DirectionBuy, domain.DirectionSell, domain.DirectionFade:
	default:
		return Entry{}, false
	}
	price, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Entry{}, false
	}
	size, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil || size < 0 {
		return Entry{}, false
	}
	return Entry{Type: t, Direction: d, Price: price, Size: size}, true
}

// Reader 轮询读取中继文件。
// 游标记录已消费的行号，单调递增：文件被截断重建时不回退，只消费新行。
type Reader struct {
	path     string
	interval time.Duration
	cursor   int // 已消费行数
}

// NewReader 创建轮询读取器，间隔低于下限时抬到下限
func NewReader(path string, interval time.Duration) *Reader {
	if interval < MinPollInterval {
		interval = MinPollInterval
	}
	return &Reader{path: path, interval: interval}
}

// Cursor 当前游标（已消费行数）
func (r *Reader) Cursor() int {
	return r.cursor
}

// Poll 读一轮：返回游标之后的新信号并推进游标。
// 文件不存在视为暂无数据。格式错误的行跳过但仍计入游标。
func (r *Reader) Poll() ([]Entry, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Entry
	lineNo := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lineNo++
		if lineNo <= r.cursor {
			continue
		}
		e, ok := ParseLine(sc.Text())
		if !ok {
			relayLog.Warnf("中继第 %d 行格式错误，跳过: %q", lineNo, sc.Text())
			continue
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return out, err
	}
	// 游标只进不退
	if lineNo > r.cursor {
		r.cursor = lineNo
	}
	return out, nil
}

// Run 周期轮询直到 ctx 取消，每批新信号回调一次
func (r *Reader) Run(ctx context.Context, fn func([]Entry)) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entries, err := r.Poll()
			if err != nil {
				relayLog.Warnf("中继轮询失败: %v", err)
				continue
			}
			if len(entries) > 0 && fn != nil {
				fn(entries)
			}
		}
	}
}
