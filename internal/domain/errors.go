package domain

import "errors"

var (
	// ErrUnsupportedFormat signals a file extension outside the allow-list.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrPayloadTooLarge signals an upload exceeding the size limit.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrParse signals a file that could not be decoded despite an allowed extension.
	ErrParse = errors.New("parse error")
	// ErrEmptyDocument signals a file that decoded to zero usable chunks.
	ErrEmptyDocument = errors.New("document contains no usable content")
	// ErrEmbeddingUnavailable signals an embedding provider failure.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrModelUnavailable signals a chat model provider failure.
	ErrModelUnavailable = errors.New("chat model unavailable")
	// ErrRoomNotFound signals an unknown room identifier.
	ErrRoomNotFound = errors.New("room not found")
)
