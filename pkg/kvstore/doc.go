// Package kvstore is a small persistent key-value store that keeps every entry
// in one JSON document on disk.
//
// Each entry is stored as
//
//	{"value": <json>, "expiresIn": "never" | "2006-01-02T15:04:05.000Z"}
//
// Keys are 1-32 characters and are unique: Set on an existing key fails
// instead of overwriting. Expiry is evaluated lazily when an entry is read by
// Get or swept by CleanUp; Has only checks presence. When the document grows
// past its size ceiling, Set runs CleanUp before writing and refuses the write
// if that was not enough.
//
// Errors come in two tiers. Bad arguments, bad configuration and a full store
// are returned as *ValidationError, *ConfigError or *CapacityError with no
// side effects. Everything else (I/O, parse failures, missing or duplicate
// keys) is logged and reported as a false result.
//
//	s, err := kvstore.Open(kvstore.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	ok, err := s.SetTTL(ctx, "session", map[string]any{"user": 1}, time.Hour)
package kvstore
