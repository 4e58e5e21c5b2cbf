// Package secrets holds short-lived secret material in wipeable buffers.
//
// Go strings are immutable and cannot be zeroed, so every field that ever
// carries a password, refresh token or access token is stored as a Secret
// backed by a byte slice. Wipe overwrites the backing array; replacing a
// Secret wipes the old buffer first, so rotated or overwritten secrets leave
// no retrievable trace in this process.
package secrets

import "crypto/subtle"

// Secret is a wipeable container for a single secret value.
// The zero value is an unset secret.
type Secret struct {
	b []byte
}

// New copies value into a fresh buffer. The caller's string cannot be wiped;
// prefer constructing Secrets as close to the input source as possible.
func New(value string) Secret {
	if value == "" {
		return Secret{}
	}
	return Secret{b: []byte(value)}
}

// FromBytes takes ownership of b. The caller must not reuse the slice.
func FromBytes(b []byte) Secret {
	if len(b) == 0 {
		return Secret{}
	}
	return Secret{b: b}
}

// Value returns the secret as a string. The returned string shares no memory
// with the buffer and must not outlive its use.
func (s Secret) Value() string {
	return string(s.b)
}

// IsSet reports whether the secret holds a non-empty value.
func (s Secret) IsSet() bool {
	return len(s.b) > 0
}

// Equal compares two secrets in constant time.
func (s Secret) Equal(other Secret) bool {
	return subtle.ConstantTimeCompare(s.b, other.b) == 1
}

// Wipe zeroes the backing buffer and unsets the secret.
func (s *Secret) Wipe() {
	for i := range s.b {
		s.b[i] = 0
	}
	s.b = nil
}

// Replace wipes the current value and installs newValue.
func (s *Secret) Replace(newValue string) {
	s.Wipe()
	*s = New(newValue)
}

// UnmarshalYAML decodes a YAML scalar into the secret.
func (s *Secret) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v string
	if err := unmarshal(&v); err != nil {
		return err
	}
	s.Replace(v)
	return nil
}

// MarshalYAML never serialises the value. Persisting secrets is the
// responsibility of the encrypted store, not of this process.
func (s Secret) MarshalYAML() (interface{}, error) {
	return "", nil
}

// WipeBytes zeroes an arbitrary buffer that held secret material.
func WipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
