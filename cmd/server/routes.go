package main

import (
	"errors"
	"strings"
	"time"

	httpadapter "github.com/jamalishaq/wayx/internal/adapter/http"
	"github.com/jamalishaq/wayx/internal/usecase"
)

const textPlain = "text/plain; charset=utf-8"

// newRouter wires the demo routes and middleware chain.
func newRouter(logger usecase.Logger, requestTimeout time.Duration) *httpadapter.Router {
	router := httpadapter.NewRouter()
	router.Use(
		httpadapter.LoggingMiddleware(logger),
		httpadapter.TimeoutMiddleware(requestTimeout),
		httpadapter.RecoveryMiddleware(logger),
	)

	router.Register("GET", "/health", func(x *httpadapter.Exchange) {
		_ = x.OK(textPlain, []byte("ok"))
	})
	router.Register("GET", "/hello", func(x *httpadapter.Exchange) {
		_ = x.OK(textPlain, []byte("hello"))
	})
	router.Register("POST", "/form", handleFormEcho)
	router.Register("GET", "/search", httpadapter.AdaptUseCaseHandler(usecase.EchoHandler{}))
	return router
}

// handleFormEcho echoes url-encoded form fields one per line.
func handleFormEcho(x *httpadapter.Exchange) {
	form, err := x.Form()
	if err != nil {
		var mediaErr *httpadapter.UnsupportedMediaTypeError
		switch {
		case errors.As(err, &mediaErr):
			_ = x.SendUnsupportedMediaType()
		case errors.Is(err, httpadapter.ErrInvalidForm):
			_ = x.SendBadRequest("Invalid application/x-www-form-urlencoded content in request body.")
		default:
			_ = x.SendBadRequest("Invalid request body.")
		}
		return
	}

	var b strings.Builder
	for _, name := range form.Names() {
		for _, value := range form.All(name) {
			b.WriteString(name)
			b.WriteByte('=')
			b.WriteString(value)
			b.WriteByte('\n')
		}
	}
	_ = x.OK(textPlain, []byte(b.String()))
}
