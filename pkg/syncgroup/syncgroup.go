// Package syncgroup 封装 sync.WaitGroup 的注册/启动/回收模式：
// 先 Add 注册函数，Run 统一拉起 goroutine，WaitAndClear 等待并复位，
// 避免散落的 wg.Add / wg.Done 配对遗漏。
package syncgroup

import "sync"

// SyncGroup 一组受管 goroutine 的生命周期
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	pending []func()
	running int
}

// NewSyncGroup 创建空组
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add 注册一个待启动函数。组内仍有 goroutine 在运行时忽略本次注册，
// 调用方需先 WaitAndClear 回收上一轮。
func (g *SyncGroup) Add(fn func()) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running > 0 {
		return
	}
	g.pending = append(g.pending, fn)
}

// Run 启动所有已注册函数并清空注册列表；上一轮未回收时跳过
func (g *SyncGroup) Run() {
	g.mu.Lock()
	if g.running > 0 {
		g.mu.Unlock()
		return
	}
	fns := g.pending
	g.pending = nil
	g.running = len(fns)
	g.mu.Unlock()

	for _, fn := range fns {
		g.wg.Add(1)
		go func(fn func()) {
			defer func() {
				g.wg.Done()
				g.mu.Lock()
				g.running--
				g.mu.Unlock()
			}()
			fn()
		}(fn)
	}
}

// Wait 等待本轮所有 goroutine 退出（不复位）
func (g *SyncGroup) Wait() {
	g.wg.Wait()
}

// WaitAndClear 等待本轮所有 goroutine 退出并复位，之后可开始下一轮
func (g *SyncGroup) WaitAndClear() {
	g.wg.Wait()
	g.mu.Lock()
	g.pending = nil
	g.running = 0
	g.mu.Unlock()
}
