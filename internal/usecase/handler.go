package usecase

import "context"

// Handler is a transport-agnostic handler interface.
// HTTP adapters translate between HTTP and this interface.
type Handler interface {
	Handle(ctx context.Context, input RequestInput) (ResponseOutput, error)
}

// HandlerFunc lets an ordinary function act as a Handler.
type HandlerFunc func(ctx context.Context, input RequestInput) (ResponseOutput, error)

// Handle calls f(ctx, input).
func (f HandlerFunc) Handle(ctx context.Context, input RequestInput) (ResponseOutput, error) {
	return f(ctx, input)
}

// RequestInput is the input to a use case. Transport-agnostic.
type RequestInput struct {
	Method  string
	Path    string
	Query   map[string][]string
	Headers map[string]string
	Body    []byte
}

// ResponseOutput is the output from a use case. Transport-agnostic.
// A zero Status means success and an empty ContentType means plain text.
type ResponseOutput struct {
	Status      int
	ContentType string
	Body        []byte
}
