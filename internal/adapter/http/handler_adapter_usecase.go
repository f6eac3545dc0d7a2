package http

import (
	"errors"
	"io"

	"github.com/jamalishaq/wayx/internal/domain"
	"github.com/jamalishaq/wayx/internal/usecase"
)

// AdaptUseCaseHandler translates an exchange into use case input and the use
// case output back into a response.
func AdaptUseCaseHandler(handler usecase.Handler) Handler {
	return func(x *Exchange) {
		if handler == nil {
			_ = x.SendInternalServerError()
			return
		}

		input, err := toUseCaseInput(x)
		if err != nil {
			// the body could not be read; the connection loop closes
			logWarn(x.logger, "use case input failed", "error", err)
			return
		}

		output, err := handler.Handle(x.Context(), input)
		if err != nil {
			mapUseCaseError(x, err)
			return
		}

		status := output.Status
		if status == 0 {
			status = 200
		}
		contentType := output.ContentType
		if contentType == "" {
			contentType = textPlainUTF8
		}
		_ = x.Respond(status, contentType, output.Body)
	}
}

// toUseCaseInput copies request state into transport-agnostic use case input.
// Header keys are lower-cased and hold the first value.
func toUseCaseInput(x *Exchange) (usecase.RequestInput, error) {
	input := usecase.RequestInput{
		Method:  x.Method(),
		Path:    x.Path(),
		Query:   x.queryParams().toMap(),
		Headers: make(map[string]string, len(x.headers.first)),
	}
	for key, idx := range x.headers.first {
		input.Headers[key] = string(x.headerBytes(idx))
	}

	body, err := x.Body()
	if err != nil {
		return usecase.RequestInput{}, err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return usecase.RequestInput{}, err
	}
	input.Body = data
	return input, nil
}

// mapUseCaseError maps domain and application errors to HTTP responses.
func mapUseCaseError(x *Exchange, err error) {
	var mediaErr *UnsupportedMediaTypeError
	switch {
	case errors.Is(err, ErrInvalidForm):
		_ = x.SendBadRequest("Invalid application/x-www-form-urlencoded content in request body.")
	case errors.As(err, &mediaErr), errors.Is(err, domain.ErrUnsupportedMediaType):
		_ = x.SendUnsupportedMediaType()
	case errors.Is(err, domain.ErrBadRequest):
		_ = x.Respond(400, textPlainUTF8, []byte("Bad Request\n"))
	case errors.Is(err, domain.ErrUnauthorized):
		_ = x.Respond(401, textPlainUTF8, []byte("Unauthorized\n"))
	case errors.Is(err, domain.ErrNotFound):
		_ = x.Respond(404, textPlainUTF8, []byte("Not Found\n"))
	default:
		_ = x.SendInternalServerError()
	}
}
