package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Buffer capacities, including the terminating NUL.
const (
	SSIDCapacity     = 32
	PasswordCapacity = 64

	// MaxSSIDLen is the longest SSID a Store accepts.
	MaxSSIDLen = SSIDCapacity - 1

	// MaxPasswordLen is the longest passphrase a Store accepts.
	MaxPasswordLen = PasswordCapacity - 1
)

// ErrSize is matched by every *SizeError.
var ErrSize = errors.New("credential does not fit its buffer")

// Field names a credential field.
type Field string

const (
	FieldSSID     Field = "ssid"
	FieldPassword Field = "password"
)

// SizeError reports a credential that would be truncated when copied into
// its fixed-capacity buffer.
type SizeError struct {
	Field  Field
	Length int // length of the supplied value
	Copied int // bytes that fit before truncation
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%s: %d bytes supplied, only %d stored", e.Field, e.Length, e.Copied)
}

// Is reports whether target is ErrSize.
func (e *SizeError) Is(target error) bool {
	return target == ErrSize
}

// Store holds the station SSID and passphrase.
// The zero value is an empty store ready for use.
type Store struct {
	mu       sync.RWMutex
	ssid     [SSIDCapacity]byte
	password [PasswordCapacity]byte
}

// New returns a Store populated with ssid and password.
func New(ssid, password string) (*Store, error) {
	s := &Store{}
	if err := s.Set(ssid, password); err != nil {
		return nil, err
	}
	return s, nil
}

// Set copies ssid and password into the store, replacing previous values.
//
// The SSID is written first. If the password is then rejected the SSID
// buffer keeps the new value; a failed Set must be treated as fatal to the
// connection attempt that needed it.
func (s *Store) Set(ssid, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := copyTerminated(s.ssid[:], ssid, FieldSSID); err != nil {
		return err
	}
	return copyTerminated(s.password[:], password, FieldPassword)
}

// SSID returns the stored SSID.
func (s *Store) SSID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return terminated(s.ssid[:])
}

// Password returns the stored passphrase.
func (s *Store) Password() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return terminated(s.password[:])
}

// IsSet reports whether an SSID has been stored.
func (s *Store) IsSet() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ssid[0] != 0
}

// Redacted returns "ssid:****" for log output. The passphrase length is not
// revealed.
func (s *Store) Redacted() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.password[0] == 0 {
		return terminated(s.ssid[:]) + ":<open>"
	}
	return terminated(s.ssid[:]) + ":****"
}

// copyTerminated behaves like snprintf(dst, len(dst), "%s", src) and reports
// a SizeError when fewer than len(src) bytes were stored. An embedded NUL
// ends the C string early and counts as truncation.
func copyTerminated(dst []byte, src string, field Field) error {
	n := len(src)
	if n > len(dst)-1 {
		n = len(dst) - 1
	}
	if i := strings.IndexByte(src[:n], 0); i >= 0 {
		n = i
	}
	copy(dst, src[:n])
	clear(dst[n:])
	if n != len(src) {
		return &SizeError{Field: field, Length: len(src), Copied: n}
	}
	return nil
}

func terminated(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// File is the on-disk representation read by Load.
type File struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
}

// Load reads a YAML credentials file and stores its contents in s.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read credentials: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse credentials %s: %w", path, err)
	}
	if f.SSID == "" {
		return fmt.Errorf("parse credentials %s: ssid is required", path)
	}
	return s.Set(f.SSID, f.Password)
}
