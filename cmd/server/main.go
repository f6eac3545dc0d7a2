// Package main runs the TCP entrypoint for the HTTP exchange server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	httpadapter "github.com/jamalishaq/wayx/internal/adapter/http"
	"github.com/jamalishaq/wayx/internal/adapter/lifecycle"
	logadapter "github.com/jamalishaq/wayx/internal/adapter/logging"
	"github.com/jamalishaq/wayx/internal/adapter/spool"
	"github.com/jamalishaq/wayx/internal/usecase"
)

const (
	defaultPort             = 8080
	defaultReadTimeout      = 5 * time.Second
	defaultWriteTimeout     = 5 * time.Second
	defaultShutdownDeadline = 10 * time.Second
	defaultRequestTimeout   = 2 * time.Second
	defaultBufferInitial    = 1024
	defaultBufferMax        = 16384
	uringEntries            = 32
)

// serverConfig configures runtime behavior from environment values.
type serverConfig struct {
	ListenAddress    string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	ShutdownDeadline time.Duration
	RequestTimeout   time.Duration
	BufferInitial    int
	BufferMax        int
	TempDir          string
	SpoolURing       bool
	LogLevel         logadapter.Level
}

// main starts the TCP listener and accepts incoming HTTP connections.
func main() {
	cfg, err := loadServerConfigFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	structuredLogger := logadapter.NewLeveledStdLogger(log.Default(), cfg.LogLevel)

	var hooks lifecycle.Hooks
	writer := newSpoolWriter(cfg.SpoolURing, structuredLogger)

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}

	structuredLogger.Info("http exchange server listening",
		"address", cfg.ListenAddress,
		"buffer_initial", cfg.BufferInitial,
		"buffer_max", cfg.BufferMax,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runtime := newServerRuntime(
		listener,
		structuredLogger,
		newRouter(structuredLogger, cfg.RequestTimeout),
		exchangeConfig(cfg, writer, structuredLogger),
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownDeadline,
	)

	_ = hooks.RegisterFunc("listener", func() error {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	})
	_ = hooks.RegisterFunc("connections", func() error {
		runtime.closeTrackedConns()
		return nil
	})
	_ = hooks.Register("spool", writer)

	serveErr := runtime.serve(ctx)
	if err := hooks.Run(structuredLogger); err != nil {
		structuredLogger.Error("shutdown hooks failed", "error", err)
	}
	if serveErr != nil {
		log.Fatalf("serve: %v", serveErr)
	}
}

// exchangeConfig builds the per-connection exchange configuration.
func exchangeConfig(cfg serverConfig, writer spool.Writer, logger usecase.Logger) httpadapter.Config {
	exchange := httpadapter.DefaultConfig()
	exchange.BufferSizeInitial = cfg.BufferInitial
	exchange.BufferSizeMax = cfg.BufferMax
	exchange.TempDir = cfg.TempDir
	exchange.Spool = writer
	exchange.Logger = logger
	return exchange
}

// newSpoolWriter selects the body spool backend, falling back to plain file
// writes when io_uring cannot be set up.
func newSpoolWriter(useURing bool, logger usecase.Logger) spool.Writer {
	if !useURing {
		return spool.FileWriter{}
	}
	writer, err := spool.NewURingWriter(uringEntries)
	if err != nil {
		logRuntimeWarn(logger, "io_uring spool unavailable, using file writes", "error", err)
		return spool.FileWriter{}
	}
	return writer
}

// loadServerConfigFromEnv loads runtime configuration from LIGHT_SERVE_* vars.
func loadServerConfigFromEnv() (serverConfig, error) {
	port, err := parsePortEnv("LIGHT_SERVE_PORT", defaultPort)
	if err != nil {
		return serverConfig{}, err
	}

	readTimeout, err := parseDurationEnv("LIGHT_SERVE_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		return serverConfig{}, err
	}
	writeTimeout, err := parseDurationEnv("LIGHT_SERVE_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		return serverConfig{}, err
	}
	shutdownDeadline, err := parseDurationEnv("LIGHT_SERVE_SHUTDOWN_DEADLINE", defaultShutdownDeadline)
	if err != nil {
		return serverConfig{}, err
	}
	requestTimeout, err := parseDurationEnv("LIGHT_SERVE_REQUEST_TIMEOUT", defaultRequestTimeout)
	if err != nil {
		return serverConfig{}, err
	}

	bufferInitial, err := parseSizeEnv("LIGHT_SERVE_BUFFER_INITIAL", defaultBufferInitial)
	if err != nil {
		return serverConfig{}, err
	}
	bufferMax, err := parseSizeEnv("LIGHT_SERVE_BUFFER_MAX", defaultBufferMax)
	if err != nil {
		return serverConfig{}, err
	}
	bounds := httpadapter.Config{BufferSizeInitial: bufferInitial, BufferSizeMax: bufferMax}
	if err := bounds.Validate(); err != nil {
		return serverConfig{}, fmt.Errorf("LIGHT_SERVE_BUFFER_*: %w", err)
	}

	spoolURing, err := parseBoolEnv("LIGHT_SERVE_SPOOL_URING", false)
	if err != nil {
		return serverConfig{}, err
	}
	level, err := logadapter.ParseLevel(os.Getenv("LIGHT_SERVE_LOG_LEVEL"))
	if err != nil {
		return serverConfig{}, fmt.Errorf("LIGHT_SERVE_LOG_LEVEL: %w", err)
	}

	return serverConfig{
		ListenAddress:    ":" + strconv.Itoa(port),
		ReadTimeout:      readTimeout,
		WriteTimeout:     writeTimeout,
		ShutdownDeadline: shutdownDeadline,
		RequestTimeout:   requestTimeout,
		BufferInitial:    bufferInitial,
		BufferMax:        bufferMax,
		TempDir:          strings.TrimSpace(os.Getenv("LIGHT_SERVE_TEMP_DIR")),
		SpoolURing:       spoolURing,
		LogLevel:         level,
	}, nil
}

// parseDurationEnv reads a duration env var with fallback default.
func parseDurationEnv(envKey string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", envKey, raw, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s: duration must be > 0", envKey)
	}
	return value, nil
}

// parseSizeEnv reads a positive byte count env var.
func parseSizeEnv(envKey string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid size %q", envKey, raw)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s: size must be > 0", envKey)
	}
	return value, nil
}

// parseBoolEnv reads a boolean env var.
func parseBoolEnv(envKey string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", envKey, raw)
	}
	return value, nil
}

// parsePortEnv reads and validates a TCP port env var.
func parsePortEnv(envKey string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return fallback, nil
	}

	raw = strings.TrimPrefix(raw, ":")
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid port %q", envKey, raw)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("%s: port must be between 1 and 65535", envKey)
	}
	return port, nil
}

// serverRuntime owns the accept loop and graceful shutdown lifecycle.
type serverRuntime struct {
	listener         net.Listener
	logger           usecase.Logger
	router           *httpadapter.Router
	exchange         httpadapter.Config
	readTimeout      time.Duration
	writeTimeout     time.Duration
	shutdownDeadline time.Duration

	wg    sync.WaitGroup
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// newServerRuntime constructs a runtime with routing, exchange and timeout settings.
func newServerRuntime(
	listener net.Listener,
	logger usecase.Logger,
	router *httpadapter.Router,
	exchange httpadapter.Config,
	readTimeout, writeTimeout, shutdownDeadline time.Duration,
) *serverRuntime {
	return &serverRuntime{
		listener:         listener,
		logger:           logger,
		router:           router,
		exchange:         exchange,
		readTimeout:      readTimeout,
		writeTimeout:     writeTimeout,
		shutdownDeadline: shutdownDeadline,
		conns:            make(map[net.Conn]struct{}),
	}
}

// serve accepts connections until context cancellation, then drains active work.
func (s *serverRuntime) serve(ctx context.Context) error {
	defer s.listener.Close()

	go func() {
		<-ctx.Done()
		logRuntimeInfo(s.logger, "shutdown signal received", "action", "stop_accepts")
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			logRuntimeError(s.logger, "accept failed", "error", err)
			continue
		}

		s.trackConn(conn)
		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}

	logRuntimeInfo(s.logger, "waiting for in-flight connections")
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logRuntimeInfo(s.logger, "shutdown complete")
	case <-time.After(s.shutdownDeadline):
		logRuntimeError(s.logger, "shutdown deadline reached", "deadline", s.shutdownDeadline.String(), "action", "force_close_active_connections")
		s.closeTrackedConns()
		<-done
		logRuntimeInfo(s.logger, "shutdown complete after forced close")
	}

	return nil
}

// handleConn sets per-connection deadlines and runs the exchange loop.
func (s *serverRuntime) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrackConn(conn)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	if s.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}
	if s.writeTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}

	if err := httpadapter.ServeConn(ctx, conn, s.router, s.exchange); err != nil {
		var cfgErr *httpadapter.ConfigError
		if errors.As(err, &cfgErr) {
			logRuntimeError(s.logger, "exchange config rejected", "error", err)
			return
		}
		logRuntimeWarn(s.logger, "connection ended with error", "remote", conn.RemoteAddr().String(), "error", err)
	}
}

// trackConn adds a connection to the active set.
func (s *serverRuntime) trackConn(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
}

// untrackConn removes a connection from the active set.
func (s *serverRuntime) untrackConn(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

// closeTrackedConns force closes all currently tracked active connections.
func (s *serverRuntime) closeTrackedConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

func logRuntimeInfo(logger usecase.Logger, msg string, keysAndValues ...any) {
	if logger == nil {
		return
	}
	logger.Info(msg, keysAndValues...)
}

func logRuntimeWarn(logger usecase.Logger, msg string, keysAndValues ...any) {
	if logger == nil {
		return
	}
	logger.Warn(msg, keysAndValues...)
}

func logRuntimeError(logger usecase.Logger, msg string, keysAndValues ...any) {
	if logger == nil {
		return
	}
	logger.Error(msg, keysAndValues...)
}
