package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/finlink-next/internal/config"
	"github.com/finlink-next/internal/logger"
)

// HTTPService 追踪与管理端 API 的 HTTP 服务
type HTTPService struct {
	server *http.Server
	listen func(network, addr string) (net.Listener, error)
}

// NewHTTPService 按服务器配置创建 HTTP 服务，超时未配置时使用默认值
func NewHTTPService(cfg config.ServerConfig, handler http.Handler) *HTTPService {
	return &HTTPService{
		server: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       secondsOr(cfg.ReadTimeoutSeconds, 15*time.Second),
			WriteTimeout:      secondsOr(cfg.WriteTimeoutSeconds, 30*time.Second),
			IdleTimeout:       secondsOr(cfg.IdleTimeoutSeconds, 60*time.Second),
		},
		listen: net.Listen,
	}
}

// Name 服务名称
func (s *HTTPService) Name() string {
	return "http"
}

// Start 先绑定端口再开始服务，绑定失败立即返回
func (s *HTTPService) Start(ctx context.Context) error {
	if s == nil || s.server == nil {
		return errors.New("http server not initialized")
	}
	ln, err := s.listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s failed: %w", s.server.Addr, err)
	}
	logger.Infow("http_server_listening", "addr", ln.Addr().String())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 优雅关闭，等待进行中的请求完成或 ctx 到期
func (s *HTTPService) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
