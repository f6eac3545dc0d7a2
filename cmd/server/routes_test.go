package main

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/jamalishaq/wayx/internal/adapter/http"
	"github.com/jamalishaq/wayx/internal/adapter/spool"
)

// roundTrip writes raw on a pipe served by the demo router and returns the response bytes.
func roundTrip(t *testing.T, raw string) string {
	t.Helper()

	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	logger := discardLogger()
	cfg := exchangeConfig(serverConfig{BufferInitial: 128, BufferMax: 256, TempDir: t.TempDir()}, spool.FileWriter{}, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = httpadapter.ServeConn(context.Background(), serverConn, newRouter(logger, time.Second), cfg)
	}()

	go func() {
		_, _ = clientConn.Write([]byte(raw))
	}()

	response, err := io.ReadAll(clientConn)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}
	<-done
	return string(response)
}

// TestRoutes_Health verifies the health route answers and the connection closes on request.
func TestRoutes_Health(t *testing.T) {
	response := roundTrip(t, "GET /health HTTP/1.1\r\nHost: example\r\nConnection: close\r\n\r\n")

	if !strings.HasPrefix(response, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected status line: %q", response)
	}
	if !strings.HasSuffix(response, "\r\n\r\nok") {
		t.Fatalf("expected ok body, got %q", response)
	}
}

// TestRoutes_FormEcho verifies url-encoded fields are decoded and echoed in order.
func TestRoutes_FormEcho(t *testing.T) {
	body := "name=caf%C3%A9&tag=a+b&tag=c"
	response := roundTrip(t, "POST /form HTTP/1.1\r\nHost: example\r\nConnection: close\r\n"+
		"Content-Type: application/x-www-form-urlencoded\r\n"+
		"Content-Length: 28\r\n\r\n"+body)

	if len(body) != 28 {
		t.Fatalf("fixture body length changed: %d", len(body))
	}
	if !strings.HasPrefix(response, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected status line: %q", response)
	}
	if !strings.HasSuffix(response, "\r\n\r\nname=café\ntag=a b\ntag=c\n") {
		t.Fatalf("unexpected form echo: %q", response)
	}
}

// TestRoutes_FormRejectsOtherMediaTypes verifies non-form bodies get 415.
func TestRoutes_FormRejectsOtherMediaTypes(t *testing.T) {
	response := roundTrip(t, "POST /form HTTP/1.1\r\nHost: example\r\n"+
		"Content-Type: application/json\r\nContent-Length: 2\r\n\r\n{}")

	if !strings.HasPrefix(response, "HTTP/1.1 415 Unsupported Media Type\r\n") {
		t.Fatalf("unexpected response: %q", response)
	}
	if !strings.Contains(response, "Connection: close\r\n") {
		t.Fatalf("expected connection close, got %q", response)
	}
}

// TestRoutes_FormRejectsInvalidContent verifies bytes outside the form grammar get 400.
func TestRoutes_FormRejectsInvalidContent(t *testing.T) {
	response := roundTrip(t, "POST /form HTTP/1.1\r\nHost: example\r\n"+
		"Content-Type: application/x-www-form-urlencoded\r\nContent-Length: 5\r\n\r\na=b c")

	if !strings.HasPrefix(response, "HTTP/1.1 400 Bad Request\r\n") {
		t.Fatalf("unexpected response: %q", response)
	}
	if !strings.HasSuffix(response, "Invalid application/x-www-form-urlencoded content in request body.\n") {
		t.Fatalf("unexpected body: %q", response)
	}
}

// TestRoutes_SearchUseCase verifies the use-case route renders decoded query values.
func TestRoutes_SearchUseCase(t *testing.T) {
	response := roundTrip(t, "GET /search?q=caf%C3%A9&lang=pt HTTP/1.1\r\nHost: example\r\nConnection: close\r\n\r\n")

	if !strings.HasPrefix(response, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected status line: %q", response)
	}
	if !strings.HasSuffix(response, "GET /search\nlang=pt\nq=café\n") {
		t.Fatalf("unexpected body: %q", response)
	}
}

// TestRoutes_SearchWithoutQuery verifies the use-case domain error maps to 400.
func TestRoutes_SearchWithoutQuery(t *testing.T) {
	response := roundTrip(t, "GET /search HTTP/1.1\r\nHost: example\r\nConnection: close\r\n\r\n")

	if !strings.HasPrefix(response, "HTTP/1.1 400 Bad Request\r\n") {
		t.Fatalf("unexpected response: %q", response)
	}
}

// TestRoutes_KeepAliveServesPipelinedRequests verifies two requests share one connection.
func TestRoutes_KeepAliveServesPipelinedRequests(t *testing.T) {
	response := roundTrip(t,
		"GET /hello HTTP/1.1\r\nHost: example\r\n\r\n"+
			"GET /health HTTP/1.1\r\nHost: example\r\nConnection: close\r\n\r\n")

	if strings.Count(response, "HTTP/1.1 200 OK\r\n") != 2 {
		t.Fatalf("expected two responses, got %q", response)
	}
	if !strings.Contains(response, "hello") || !strings.HasSuffix(response, "ok") {
		t.Fatalf("unexpected bodies: %q", response)
	}
}
