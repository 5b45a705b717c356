package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/RecoveryAshes/MovieCrawler/internal/core"
	"github.com/RecoveryAshes/MovieCrawler/internal/utils"
	"golang.org/x/net/netutil"
)

// Server 控制面板HTTP API
type Server struct {
	dash    *core.Dashboard
	config  core.ServerConfig
	router  *http.ServeMux
	handler http.Handler

	// baseCtx 分析任务的上下文,服务关闭时取消
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewServer 创建HTTP服务
func NewServer(dash *core.Dashboard, config core.ServerConfig) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		dash:       dash,
		config:     config,
		router:     http.NewServeMux(),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	s.routes()

	// recoverer 在压缩层之内,错误响应同样经过编码器
	var h http.Handler = recoverer(s.router)
	if config.Compression {
		h = compress(h)
	}
	s.handler = requestID(accessLog(h))
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealthz)
	s.router.HandleFunc("GET /api/dashboard", s.handleDashboard)

	s.router.HandleFunc("GET /api/tasks", s.handleListTasks)
	s.router.HandleFunc("POST /api/tasks", s.handleCreateTask)
	s.router.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	s.router.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)
	s.router.HandleFunc("POST /api/tasks/{id}/toggle", s.handleToggleTask)
	s.router.HandleFunc("POST /api/tasks/{id}/retry", s.handleRetryTask)

	s.router.HandleFunc("POST /api/analyze", s.handleAnalyze)
	s.router.HandleFunc("GET /api/analysis", s.handleGetAnalysis)
	s.router.HandleFunc("DELETE /api/analysis", s.handleCancelAnalysis)
	s.router.HandleFunc("POST /api/analysis/links/{index}/task", s.handleCreateFromLink)

	s.router.HandleFunc("GET /api/stats", s.handleStats)
	s.router.HandleFunc("GET /api/monitoring", s.handleMonitoring)

	s.router.HandleFunc("GET /api/anticrawler", s.handleGetAntiCrawler)
	s.router.HandleFunc("PUT /api/anticrawler", s.handleSaveAntiCrawler)
	s.router.HandleFunc("POST /api/anticrawler/reset", s.handleResetAntiCrawler)
	s.router.HandleFunc("GET /api/anticrawler/headers", s.handleHeaders)
}

// Handler 返回带中间件的处理器
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run 启动服务,ctx取消后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	defer s.cancelBase()

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("监听 %s 失败: %w", s.config.Addr, err)
	}
	if s.config.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.config.MaxConnections)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Logger.Info().
			Str("addr", ln.Addr().String()).
			Int("max_connections", s.config.MaxConnections).
			Bool("compression", s.config.Compression).
			Msg("🚀 HTTP服务已启动")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP服务异常退出: %w", err)
	case <-ctx.Done():
	}

	utils.Info("正在关闭HTTP服务...")
	s.dash.CancelAnalysis()

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("关闭HTTP服务失败: %w", err)
	}

	utils.Info("HTTP服务已关闭")
	return nil
}
