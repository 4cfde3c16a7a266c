package errors

import "fmt"

var (
	ErrUnknownMessageType = fmt.Errorf("unknown message type")
	ErrDuplicateHandler   = fmt.Errorf("command handler already registered")
	ErrDuplicateSchema    = fmt.Errorf("schema already registered")
	ErrRegistryFrozen     = fmt.Errorf("registry is frozen")
	ErrInvalidEnvelope    = fmt.Errorf("invalid message envelope")
	ErrNotFound           = fmt.Errorf("not found")
	ErrHandlerPanic       = fmt.Errorf("handler panic")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)
