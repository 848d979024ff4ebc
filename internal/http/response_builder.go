// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing responses. JSON
// bodies carry resources, plain text bodies carry error messages.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"minhasfinancas/internal/core"
	"minhasfinancas/internal/log"
)

const (
	contentTypeJSON  = "application/json"
	contentTypePlain = "text/plain; charset=utf-8"
)

// ResponseBuilder provides a fluent API for building responses.
type ResponseBuilder struct {
	statusCode  int
	contentType string
	body        []byte
	headers     map[string]string
	err         error
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON encodes v as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	body, err := json.Marshal(v)
	if err != nil {
		b.err = err
		return b
	}
	b.contentType = contentTypeJSON
	b.body = body
	return b
}

// Text sets a plain text body.
func (b *ResponseBuilder) Text(msg string) *ResponseBuilder {
	b.contentType = contentTypePlain
	b.body = []byte(msg)
	return b
}

// Write sends the response. An encoding failure turns into a 500.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	if b.err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.contentType != "" {
		w.Header().Set("Content-Type", b.contentType)
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates a plain text error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).Text(message)
}

// BadRequestError creates a 400 response carrying message.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// InternalServerError creates a 500 response with a generic message.
func InternalServerError() *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal server error")
}

// writeError maps domain errors to 400 with their message and everything
// else to a logged 500.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if msg, ok := core.IsUserFacing(err); ok {
		BadRequestError(msg).Write(w)
		return
	}

	fields := log.NewFields()
	if errors.Is(err, core.ErrMissingID) {
		fields["contract_violation"] = true
	}
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogError(r.Context(), "Request failed", err, op, fields)
	InternalServerError().Write(w)
}
