// Package status 暴露引擎运行状态的只读 JSON API。
package status

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/betbot/flowsense/internal/domain"
)

// Source 引擎侧提供的状态查询接口
type Source interface {
	Overview() Overview
	RecentSignals(n int) []*domain.Signal
	BigFishLevels() []*domain.BigFishLevel
	LastEvaluation() *domain.ConfluenceResult
}

// Overview 顶层状态摘要
type Overview struct {
	Instrument      string                   `json:"instrument"`
	Phase           string                   `json:"phase"`
	WarmupComplete  bool                     `json:"warmup_complete"`
	Trades          int64                    `json:"trades"`
	PriceUpdates    int64                    `json:"price_updates"`
	TrackedOrders   int                      `json:"tracked_orders"`
	TrackedLevels   int                      `json:"tracked_levels"`
	ActiveBigFish   int                      `json:"active_big_fish"`
	ProviderLatency map[string]time.Duration `json:"provider_latency,omitempty"`
	StartedAt       time.Time                `json:"started_at"`
}

// Server 状态 API 服务
type Server struct {
	src Source
}

func NewServer(src Source) *Server {
	return &Server{src: src}
}

// Router 组装路由
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/status", s.handleStatus)
	r.GET("/signals", s.handleSignals)
	r.GET("/levels", s.handleLevels)
	r.GET("/evaluation", s.handleEvaluation)
	return r
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.src.Overview())
}

func (s *Server) handleSignals(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || n <= 0 {
		n = 50
	}
	sigs := s.src.RecentSignals(n)
	if sigs == nil {
		sigs = []*domain.Signal{}
	}
	c.JSON(http.StatusOK, gin.H{"signals": sigs})
}

func (s *Server) handleLevels(c *gin.Context) {
	levels := s.src.BigFishLevels()
	if levels == nil {
		levels = []*domain.BigFishLevel{}
	}
	c.JSON(http.StatusOK, gin.H{"levels": levels})
}

func (s *Server) handleEvaluation(c *gin.Context) {
	res := s.src.LastEvaluation()
	if res == nil {
		c.JSON(http.StatusOK, gin.H{"evaluation": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"evaluation": res})
}

// StartAsync 非阻塞启动，ctx 取消时优雅关闭
func (s *Server) StartAsync(ctx context.Context, addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = err
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv, nil
}
