package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when a destroyed buffer is read
var ErrDestroyed = errors.New("secure buffer destroyed")

// SecureBuffer provides memory-safe storage for sensitive data.
// An empty buffer holds no enclave; memguard refuses zero-length enclaves.
type SecureBuffer struct {
	enclave   *memguard.Enclave
	size      int
	mu        sync.RWMutex
	destroyed bool
}

// NewSecureBuffer creates a protected buffer from a copy of data.
// The caller's slice is left untouched.
func NewSecureBuffer(data []byte) (*SecureBuffer, error) {
	buf := &SecureBuffer{size: len(data)}
	if len(data) == 0 {
		return buf, nil
	}

	// memguard wipes the source it is given
	src := make([]byte, len(data))
	copy(src, data)
	buf.enclave = memguard.NewEnclave(src)
	return buf, nil
}

// NewSecureString is NewSecureBuffer for passwords
func NewSecureString(s string) (*SecureBuffer, error) {
	return NewSecureBuffer([]byte(s))
}

// Open decrypts the data into a locked buffer.
// The caller must Destroy the returned buffer.
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return nil, ErrDestroyed
	}
	if s.enclave == nil {
		return memguard.NewBuffer(0), nil
	}
	return s.enclave.Open()
}

// Bytes returns a plain copy of the protected data
func (s *SecureBuffer) Bytes() ([]byte, error) {
	locked, err := s.Open()
	if err != nil {
		return nil, err
	}
	defer locked.Destroy()

	out := make([]byte, len(locked.Bytes()))
	copy(out, locked.Bytes())
	return out, nil
}

// String returns the protected data as a string
func (s *SecureBuffer) String() (string, error) {
	b, err := s.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Len returns the size of the protected data
func (s *SecureBuffer) Len() int {
	return s.size
}

// Destroy drops the enclave. It is safe to call more than once.
// memguard.Purge at exit wipes the enclave key.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	s.enclave = nil
	s.destroyed = true
}
