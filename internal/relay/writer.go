// Package relay 实现信号中继的文件线格式：
// 每行 TYPE|DIRECTION|PRICE|SIZE，追加写入，读取端按行号游标轮询。
package relay

import (
	"fmt"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/flowsense/internal/domain"
)

var relayLog = logrus.WithField("component", "relay")

// 中继只传播三类探测信号，防守信号（本地确认用）不出站
func relayable(t domain.SignalType) bool {
	switch t {
	case domain.SignalIceberg, domain.SignalSpoof, domain.SignalAbsorption:
		return true
	}
	return false
}

// Writer 追加写中继文件，进程内串行化写入
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// NewWriter 以 O_APPEND 打开（不存在则创建）
func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "打开中继文件 %s 失败", path)
	}
	return &Writer{f: f, path: path}, nil
}

// Append 写入一条信号，非中继类型静默忽略
func (w *Writer) Append(sig *domain.Signal) error {
	if w == nil || sig == nil {
		return nil
	}
	if !relayable(sig.Type) {
		return nil
	}
	line := fmt.Sprintf("%s|%s|%d|%d\n", sig.Type, sig.Direction, sig.Price, sig.Size)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.f.WriteString(line); err != nil {
		return errors.Wrap(err, "写入中继失败")
	}
	relayLog.Debugf("📤 中继写出: %s", line[:len(line)-1])
	return nil
}

// Close 关闭底层文件
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}
