package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/hay-kot/criterio"
)

// MaxKeyLength is the longest key, in characters, that the store accepts.
const MaxKeyLength = 32

// Key validates a store key: non-empty and at most MaxKeyLength characters.
func Key(key string) error {
	if key == "" {
		return errors.New("key is required")
	}
	if n := utf8.RuneCountInString(key); n > MaxKeyLength {
		return fmt.Errorf("key is %d characters, must be <= %d", n, MaxKeyLength)
	}
	return nil
}

// TTL validates a time-to-live: it must be positive.
func TTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be > 0, got %s", ttl)
	}
	return nil
}

func validateKey(key string) error {
	return asValidationError(criterio.Run("key", key, Key))
}

func validateTTL(ttl time.Duration) error {
	if err := TTL(ttl); err != nil {
		return asValidationError(criterio.NewFieldErrors("ttl", err))
	}
	return nil
}

func validateValue(value any, limit int) (json.RawMessage, error) {
	canonical, err := Sanitize(value)
	if err != nil {
		return nil, &ValidationError{Field: "value", Err: err}
	}
	if SizeExceeded(canonical, limit) {
		return nil, &ValidationError{
			Field: "value",
			Err:   fmt.Errorf("serialized size %d exceeds %d bytes", len(canonical), limit),
		}
	}
	return canonical, nil
}

// asValidationError converts criterio field errors into a *ValidationError
// carrying the first offending field.
func asValidationError(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return &ValidationError{Field: fieldErrs[0].Field, Err: fieldErrs[0].Err}
	}
	return &ValidationError{Field: "argument", Err: err}
}
