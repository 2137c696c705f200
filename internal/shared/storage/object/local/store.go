package local

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"docvault-backend/internal/shared/storage/object"
)

// Store implements object.Store on the local filesystem. Signed URLs point
// at the app's own file-serving endpoint and carry an HMAC token so they can
// be verified without any per-request state.
type Store struct {
	baseDir string
	baseURL string
	secret  []byte
	now     func() time.Time
}

// New creates a local object store rooted at baseDir. baseURL is the public
// prefix of the file-serving endpoint, e.g. "http://localhost:8080/api/v1/files".
func New(baseDir, baseURL string, secret []byte) *Store {
	if len(secret) == 0 {
		secret = []byte("dev-secret")
	}
	return &Store{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		now:     time.Now,
	}
}

// Upload writes the blob to disk at the given key.
func (s *Store) Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := cleanStorageKey(key)
	if err != nil {
		return "", err
	}
	_ = contentType // the filesystem has no content-type metadata

	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}

	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return cleanKey, nil
}

// SignedURL produces a time-limited link to the file-serving endpoint.
func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := cleanStorageKey(key)
	if err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(cleanKey))
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("local signed url key=%s: %w", cleanKey, object.ErrNotFound)
		}
		return "", fmt.Errorf("stat file: %w", err)
	}

	exp := s.now().Add(ttl).Unix()
	sig := s.signKey(cleanKey, exp)

	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", sig)
	return s.baseURL + "/" + cleanKey + "?" + q.Encode(), nil
}

// Delete removes the file; a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cleanKey, err := cleanStorageKey(key)
	if err != nil {
		return err
	}
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(cleanKey))
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// Verify checks the signature and expiry of a signed-URL token for key.
func (s *Store) Verify(key string, exp int64, sig string) bool {
	if exp < s.now().Unix() {
		return false
	}
	cleanKey, err := cleanStorageKey(key)
	if err != nil {
		return false
	}
	expected := s.signKey(cleanKey, exp)
	return hmac.Equal([]byte(sig), []byte(expected))
}

// Open returns the file contents for a verified key.
func (s *Store) Open(key string) (io.ReadCloser, error) {
	cleanKey, err := cleanStorageKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.baseDir, filepath.FromSlash(cleanKey)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, object.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *Store) signKey(key string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%d", key, exp)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func cleanStorageKey(key string) (string, error) {
	trimmed := strings.Trim(strings.TrimSpace(key), "/")
	if trimmed == "" || strings.Contains(trimmed, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return trimmed, nil
}

var _ object.Store = (*Store)(nil)
