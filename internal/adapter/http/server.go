// Package http provides the HTTP/1.1 exchange engine: an in-place request
// parser and response writer bound to one connection, plus the router,
// middleware and handler adapters layered on top. Part of the Interface
// Adapters layer.
package http

import (
	"context"
	"net"
)

var defaultRouter = NewRouter()

// HandleConn serves requests on a connection until it should close.
func HandleConn(conn net.Conn) {
	HandleConnWithContext(conn, context.Background())
}

// HandleConnWithContext serves requests with an explicit connection context.
func HandleConnWithContext(conn net.Conn, ctx context.Context) {
	HandleConnWithRouterAndContext(conn, defaultRouter, ctx)
}

// HandleConnWithRouter serves requests on a connection and routes them.
func HandleConnWithRouter(conn net.Conn, router *Router) {
	HandleConnWithRouterAndContext(conn, router, context.Background())
}

// HandleConnWithRouterAndContext serves requests and routes them with context.
func HandleConnWithRouterAndContext(conn net.Conn, router *Router, ctx context.Context) {
	_ = ServeConn(ctx, conn, router, DefaultConfig())
}

// ServeConn runs the exchange loop: parse, dispatch, and repeat while the
// connection is kept alive. The connection is always closed on return. The
// returned error is the configuration or transport error that ended the loop.
func ServeConn(ctx context.Context, conn net.Conn, router *Router, cfg Config) error {
	x, err := NewExchange(conn, cfg)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer x.Close()
	if ctx != nil {
		x.ctx = ctx
	}

	for x.ShouldHandle() {
		dispatch(router, x)

		if !x.sent && x.state != stateError {
			logWarn(cfg.Logger, "handler returned without a response", "method", x.method)
			_ = x.SendInternalServerError()
		}
	}
	return x.Err()
}

// RegisterRoute registers a METHOD:PATH handler on the default router.
func RegisterRoute(method, path string, handler Handler) {
	defaultRouter.Register(method, path, handler)
}

// UseMiddleware registers middleware on the default router.
func UseMiddleware(middlewares ...Middleware) {
	defaultRouter.Use(middlewares...)
}

// dispatch routes a parsed request, answering 404 or 405 on a miss.
func dispatch(router *Router, x *Exchange) {
	if router == nil {
		_ = x.SendNotFound()
		return
	}

	path := x.Path()
	handler, ok := router.Resolve(x.method, path)
	if !ok || handler == nil {
		if allowed := router.AllowedMethods(path); len(allowed) > 0 {
			_ = x.SendMethodNotAllowed(allowed...)
			return
		}
		_ = x.SendNotFound()
		return
	}

	handler(x)
}
