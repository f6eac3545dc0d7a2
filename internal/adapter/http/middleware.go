package http

import (
	"context"
	"errors"
	"time"

	"github.com/jamalishaq/wayx/internal/usecase"
)

// LoggingMiddleware logs method, path, status code, and request duration.
// Request values are captured before the handler runs because request
// accessors are unavailable once the response is sent.
func LoggingMiddleware(logger usecase.Logger) Middleware {
	return func(next Handler) Handler {
		return func(x *Exchange) {
			startedAt := time.Now()
			method := x.Method()
			path := x.Path()
			requestID, correlationID := requestIdentifiers(x)

			safeInvoke(next, x)

			statusCode := x.status
			if statusCode == 0 {
				statusCode = 200
			}
			logInfo(logger, "http request",
				"method", method,
				"path", path,
				"status", statusCode,
				"duration", time.Since(startedAt).String(),
				"keep_alive", x.KeepAlive(),
				"request_id", requestID,
				"correlation_id", correlationID,
			)
		}
	}
}

// RecoveryMiddleware recovers panics from downstream handlers and sends a 500
// when the response is still unsent.
func RecoveryMiddleware(logger usecase.Logger) Middleware {
	return func(next Handler) Handler {
		return func(x *Exchange) {
			method := x.Method()
			path := x.Path()
			requestID, correlationID := requestIdentifiers(x)

			defer func() {
				if recovered := recover(); recovered != nil {
					logError(logger, "panic recovered",
						"method", method,
						"path", path,
						"panic", recovered,
						"request_id", requestID,
						"correlation_id", correlationID,
					)
					if !x.sent && x.state != stateError {
						_ = x.SendInternalServerError()
					}
				}
			}()

			safeInvoke(next, x)
		}
	}
}

// TimeoutMiddleware gives the handler a context deadline and sends 408 when
// the handler returns unsent after the deadline passed. The handler runs on
// the connection goroutine and must observe x.Context() to stop early.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(x *Exchange) {
			if timeout <= 0 {
				safeInvoke(next, x)
				return
			}

			parent := x.Context()
			timeoutCtx, cancel := context.WithTimeout(parent, timeout)
			defer cancel()

			x.ctx = timeoutCtx
			defer func() { x.ctx = parent }()

			safeInvoke(next, x)

			if x.sent || x.state == stateError {
				return
			}
			if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
				_ = x.SendRequestTimeout()
			}
		}
	}
}

// safeInvoke executes the next handler, sending a 500 for a nil handler.
func safeInvoke(next Handler, x *Exchange) {
	if next == nil {
		_ = x.SendInternalServerError()
		return
	}
	next(x)
}

// requestIdentifiers extracts request/correlation IDs from headers.
func requestIdentifiers(x *Exchange) (string, string) {
	return x.Header("X-Request-Id"), x.Header("X-Correlation-Id")
}

// logDebug logs a debug event when a logger is provided.
func logDebug(logger usecase.Logger, msg string, keysAndValues ...any) {
	if logger == nil {
		return
	}
	logger.Debug(msg, keysAndValues...)
}

// logInfo logs an info event when a logger is provided.
func logInfo(logger usecase.Logger, msg string, keysAndValues ...any) {
	if logger == nil {
		return
	}
	logger.Info(msg, keysAndValues...)
}

// logWarn logs a warning when a logger is provided.
func logWarn(logger usecase.Logger, msg string, keysAndValues ...any) {
	if logger == nil {
		return
	}
	logger.Warn(msg, keysAndValues...)
}

// logError logs an error event when a logger is provided.
func logError(logger usecase.Logger, msg string, keysAndValues ...any) {
	if logger == nil {
		return
	}
	logger.Error(msg, keysAndValues...)
}
