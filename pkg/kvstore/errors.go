package kvstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is logged when a key is absent or has expired.
	ErrNotFound = errors.New("key does not exist or expired")
	// ErrConflict is logged when Set targets a key that already exists.
	ErrConflict = errors.New("key already exists")
)

// ValidationError reports an invalid argument. The operation that returned it
// made no changes to the document.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ConfigError reports an unusable store configuration.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid store config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// CapacityError is returned by Set when the document is still larger than the
// configured ceiling after a cleanup.
type CapacityError struct {
	Size  int64
	Limit int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("store size %d exceeds %d bytes; further writes refused until space is freed", e.Size, e.Limit)
}
