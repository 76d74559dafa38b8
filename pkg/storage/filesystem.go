package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage persists files on disk under a base directory and serves them
// through HMAC signed download links.
type LocalStorage struct {
	baseDir string
	baseURL string
	signer  *SignedURLSigner
}

// NewLocalStorage ensures the base directory exists and returns a handle.
// baseURL is the public prefix of the download route, e.g. /api/v1/files.
func NewLocalStorage(baseDir, baseURL string, signer *SignedURLSigner) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, baseURL: strings.TrimRight(baseURL, "/"), signer: signer}, nil
}

// Put copies r into the file addressed by key.
func (s *LocalStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("prepare storage directory: %w", err)
	}
	file, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create stored file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("write stored file: %w", err)
	}
	return nil
}

// URL returns a signed download link for key.
func (s *LocalStorage) URL(ctx context.Context, key string) (string, time.Time, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", time.Time{}, err
	}
	if s.signer == nil {
		return "", time.Time{}, fmt.Errorf("signed url signer not configured")
	}
	token, expiresAt, err := s.signer.Generate("file", cleaned)
	if err != nil {
		return "", time.Time{}, err
	}
	return fmt.Sprintf("%s/%s", s.baseURL, token), expiresAt, nil
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete stored file: %w", err)
	}
	return nil
}

// OpenSigned validates a download token and opens the referenced file.
func (s *LocalStorage) OpenSigned(token string) (*os.File, string, error) {
	if s.signer == nil {
		return nil, "", fmt.Errorf("signed url signer not configured")
	}
	_, key, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", err
	}
	target, err := s.resolve(key)
	if err != nil {
		return nil, "", err
	}
	file, err := os.Open(target)
	if err != nil {
		return nil, "", fmt.Errorf("open stored file: %w", err)
	}
	return file, key, nil
}

func (s *LocalStorage) resolve(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(cleaned)), nil
}
