package secrets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/systmms/afipws/internal/secure"
)

// FileSource reads the key store from a local file on every load.
type FileSource struct {
	path string
}

// NewFileSource fails with a NotFoundError when path does not exist.
func NewFileSource(path string) (*FileSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Kind: "keystore", Alias: path}
		}
		return nil, fmt.Errorf("failed to stat key store: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("key store path %s is a directory", path)
	}
	return &FileSource{path: path}, nil
}

func (s *FileSource) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Kind: "keystore", Alias: s.path}
		}
		return nil, fmt.Errorf("failed to read key store: %w", err)
	}
	return decodePayload(data), nil
}

func (s *FileSource) Describe() string {
	return "file:" + s.path
}

// BytesSource serves a key store held in memory. The bytes live in a
// memguard enclave between loads.
type BytesSource struct {
	buf *secure.SecureBuffer
}

// NewBytesSource copies data into an enclave. The caller keeps ownership of
// data.
func NewBytesSource(data []byte) (*BytesSource, error) {
	if len(data) == 0 {
		return nil, &NotFoundError{Kind: "keystore"}
	}
	buf, err := secure.NewSecureBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("failed to protect key store: %w", err)
	}
	return &BytesSource{buf: buf}, nil
}

// NewStreamSource reads r to the end once and serves the result like
// NewBytesSource.
func NewStreamSource(r io.Reader) (*BytesSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read key store stream: %w", err)
	}
	defer wipe(data)
	return NewBytesSource(data)
}

func (s *BytesSource) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.buf.Bytes()
	if err != nil {
		return nil, err
	}
	return decodePayload(data), nil
}

func (s *BytesSource) Describe() string {
	return "bytes"
}

// Close destroys the enclave.
func (s *BytesSource) Close() error {
	s.buf.Destroy()
	return nil
}
