// Package dashboard serves a JSON status API for the running exchange
// adapters: lifecycle state, sequence gaps, recent logs and host resources.
package dashboard

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	appconfig "cryptobridge/config"
	"cryptobridge/logger"
	"cryptobridge/reader"
)

const defaultPort = "8080"

// Server hosts the status API.
type Server struct {
	cfg        appconfig.DashboardConfig
	log        *logger.Log
	sources    *sourceStore
	logStore   *logStore
	sampler    *resourceSampler
	httpServer *http.Server
}

// NewServer returns nil when the dashboard is disabled. Enabling it attaches
// a log capture hook to log.
func NewServer(cfg appconfig.DashboardConfig, log *logger.Log) *Server {
	if !cfg.Enabled {
		return nil
	}
	cfg.Address = normalizeAddress(cfg.Address)

	logs := newLogStore(cfg.LogHistory)
	log.AddHook(logs)

	return &Server{
		cfg:      cfg,
		log:      log,
		sources:  newSourceStore(),
		logStore: logs,
		sampler:  newResourceSampler(cfg.LogHistory, 5*time.Second, "/", log),
	}
}

// Register exposes src under name. Registering the same name replaces it.
func (s *Server) Register(name string, src Source) {
	if s == nil || src == nil {
		return
	}
	s.sources.register(name, src)
}

// Address reports the address the server listens on.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

// Run serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}
	defer s.cleanup()

	router, err := s.buildRouter()
	if err != nil {
		return err
	}
	s.sampler.start(ctx)

	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.WithComponent("dashboard").WithFields(logger.Fields{"addr": s.cfg.Address}).Info("serving status api")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) cleanup() {
	s.logStore.close()
	s.sampler.stop()
}

func (s *Server) buildRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	// 200 only while every registered session is streaming.
	router.GET("/healthz", func(c *gin.Context) {
		statuses := s.sources.snapshot()
		code := http.StatusOK
		for _, st := range statuses {
			if st.State != reader.StateStreaming.String() {
				code = http.StatusServiceUnavailable
				break
			}
		}
		c.JSON(code, gin.H{"sources": statuses})
	})

	router.GET("/api/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sources": s.sources.snapshot()})
	})

	router.GET("/api/logs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"logs": s.logStore.snapshot()})
	})

	router.GET("/api/resources", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"resources": s.sampler.snapshot(),
			"report":    logger.Snapshot(),
		})
	})

	return router, nil
}

// normalizeAddress turns host, host:port, :port or URL forms into a
// listen address, defaulting to all interfaces on port 8080.
func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return net.JoinHostPort("0.0.0.0", defaultPort)
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			switch {
			case parsed.Host != "":
				addr = parsed.Host
			case parsed.Opaque != "":
				addr = parsed.Opaque
			}
		}
	}

	if host, port, err := net.SplitHostPort(addr); err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = defaultPort
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil || !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}
