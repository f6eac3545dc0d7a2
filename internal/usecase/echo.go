package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jamalishaq/wayx/internal/domain"
)

// EchoHandler describes the request it received. It rejects requests without
// a "q" query parameter.
type EchoHandler struct{}

// Handle renders method, path and sorted query parameters as plain text.
func (EchoHandler) Handle(_ context.Context, input RequestInput) (ResponseOutput, error) {
	if len(input.Query["q"]) == 0 {
		return ResponseOutput{}, fmt.Errorf("echo: missing q: %w", domain.ErrBadRequest)
	}

	names := make([]string, 0, len(input.Query))
	for name := range input.Query {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", input.Method, input.Path)
	for _, name := range names {
		for _, value := range input.Query[name] {
			fmt.Fprintf(&b, "%s=%s\n", name, value)
		}
	}
	return ResponseOutput{Body: []byte(b.String())}, nil
}
