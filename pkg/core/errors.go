package core

import (
	"errors"
	"fmt"

	"golang.org/x/net/http2"
)

// Sentinel errors
var (
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrConnectionTerminated = errors.New("connection terminated")
	ErrStreamClosed         = errors.New("stream closed")
)

// ConfigError represents configuration-related errors
type ConfigError struct {
	Field string
	Value any
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in field %s (value: %v): %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match any ConfigError against ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ProtocolError represents protocol-level errors. Code may be outside the
// registered HTTP/2 error code set.
type ProtocolError struct {
	Operation string
	Code      http2.ErrCode
	Err       error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error in %s (code: %s): %v", e.Operation, e.Code, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
