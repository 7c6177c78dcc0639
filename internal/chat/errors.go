package chat

import "errors"

var (
	// ErrInvalidInput rejects malformed usernames and room names before
	// any state is touched.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyMessage rejects messages that are blank after trimming.
	ErrEmptyMessage = errors.New("empty message")
	// ErrRoomNotFound means the operation referenced a room no join has
	// ever created.
	ErrRoomNotFound = errors.New("room not found")
	// ErrPersistence means the durable store rejected the write; the
	// operation aborted and nothing was broadcast.
	ErrPersistence = errors.New("persistence failure")
	// ErrPersistenceTimeout is the bounded-timeout variant of
	// ErrPersistence.
	ErrPersistenceTimeout = errors.New("persistence timeout")
)
