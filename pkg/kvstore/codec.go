package kvstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultMaxValueSize is the largest canonical value accepted by Set.
	DefaultMaxValueSize = 16 * 1024 // 16 KiB
	// DefaultMaxDocumentSize is the document size above which Set runs a cleanup.
	DefaultMaxDocumentSize = 1 << 30 // 1 GiB

	never = "never"

	// expiryLayout matches the ISO-8601 form with millisecond precision.
	expiryLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Expiry is the expiresIn field of an entry: either "never" or an absolute
// point in time. A timestamp that fails to parse keeps its raw text and never
// expires.
type Expiry struct {
	At  time.Time
	raw string
}

// Never returns the non-expiring Expiry.
func Never() Expiry {
	return Expiry{raw: never}
}

// ExpiresAt returns an Expiry for the given instant.
func ExpiresAt(t time.Time) Expiry {
	return Expiry{At: t.UTC(), raw: t.UTC().Format(expiryLayout)}
}

// IsNever reports whether the entry never expires.
func (e Expiry) IsNever() bool {
	return e.raw == never || e.raw == ""
}

// String returns the persisted form.
func (e Expiry) String() string {
	if e.raw == "" {
		return never
	}
	return e.raw
}

func (e Expiry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e *Expiry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expiresIn must be a string: %w", err)
	}

	*e = Expiry{raw: s}
	if s == never {
		return nil
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		e.At = t
	}
	return nil
}

// Entry is a stored value plus its expiry metadata.
type Entry struct {
	Value     json.RawMessage `json:"value"`
	ExpiresIn Expiry          `json:"expiresIn"`
}

// Document is the persisted mapping of key to raw entry. Entries are decoded
// only when inspected so that unknown content survives a rewrite unchanged.
type Document map[string]json.RawMessage

var errUnusableValue = errors.New("value must be a non-empty string, an object or an array")

// Sanitize canonicalizes value through a JSON marshal/unmarshal round-trip and
// returns its canonical encoding. Only non-empty strings, objects and arrays
// are usable; anything else, including values that cannot be marshaled, is an
// error.
func Sanitize(value any) (json.RawMessage, error) {
	data, err := marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}

	switch v := decoded.(type) {
	case string:
		if v == "" {
			return nil, errUnusableValue
		}
	case map[string]any, []any:
	default:
		return nil, errUnusableValue
	}

	canonical, err := marshal(decoded)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return canonical, nil
}

// SizeExceeded reports whether the canonical value is larger than limit bytes.
func SizeExceeded(value json.RawMessage, limit int) bool {
	return len(value) > limit
}

// Wrap builds the entry for value. A ttl of zero means the entry never
// expires; otherwise the expiry is fixed at now+ttl.
func Wrap(value json.RawMessage, ttl time.Duration, now time.Time) Entry {
	if ttl == 0 {
		return Entry{Value: value, ExpiresIn: Never()}
	}
	return Entry{Value: value, ExpiresIn: ExpiresAt(now.Add(ttl))}
}

// IsExpired reports whether e has a parsed expiry strictly before now.
func IsExpired(e Entry, now time.Time) bool {
	if e.ExpiresIn.IsNever() || e.ExpiresIn.At.IsZero() {
		return false
	}
	return e.ExpiresIn.At.Before(now)
}

func decodeEntry(raw json.RawMessage) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, fmt.Errorf("decode entry: %w", err)
	}
	return e, nil
}

func encodeEntry(e Entry) (json.RawMessage, error) {
	data, err := marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}
	return data, nil
}

func decodeDocument(data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if doc == nil {
		// a literal null
		return nil, errors.New("parse document: not an object")
	}
	return doc, nil
}

// marshal encodes v compactly without HTML escaping so the canonical form is
// the same text that lands in the document.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
