package auth

import "log/slog"

// Secret holds a signing key. String, GoString, MarshalText and LogValue
// all return a placeholder, so a Secret printed with fmt, serialised to
// JSON or YAML, or passed to slog never shows its value. Use
// [Secret.Value] only where the raw key is needed.
type Secret string

const secretRedacted = "[REDACTED]"

// String returns the redacted placeholder.
func (s Secret) String() string { return secretRedacted }

// GoString returns the redacted placeholder for %#v.
func (s Secret) GoString() string { return secretRedacted }

// Value returns the raw secret.
func (s Secret) Value() string { return string(s) }

// MarshalText implements [encoding.TextMarshaler] with the placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte(secretRedacted), nil }

// LogValue implements [slog.LogValuer] with the placeholder.
func (s Secret) LogValue() slog.Value { return slog.StringValue(secretRedacted) }

// IsSet reports whether the secret is non-empty.
func (s Secret) IsSet() bool { return s != "" }
