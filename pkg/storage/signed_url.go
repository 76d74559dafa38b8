package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignedURLSigner creates and validates signed download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a token binding the scope and object key to an expiry.
func (s *SignedURLSigner) Generate(scope, key string) (string, time.Time, error) {
	if scope == "" || key == "" {
		return "", time.Time{}, fmt.Errorf("scope and key required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl)
	encodedKey := base64.RawURLEncoding.EncodeToString([]byte(key))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{scope, ts, encodedKey, s.sign(scope, ts, encodedKey)}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded metadata.
// When allowExpired is true, the timestamp check is skipped.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (scope, key string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, fmt.Errorf("invalid token format")
	}
	scope, ts, encodedKey, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(scope, ts, encodedKey)), []byte(signature)) {
		return "", "", time.Time{}, fmt.Errorf("invalid token signature")
	}

	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("invalid timestamp")
	}
	expiresAt = time.Unix(expUnix, 0)

	rawKey, err := base64.RawURLEncoding.DecodeString(encodedKey)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("decode key: %w", err)
	}
	if !allowExpired && s.now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}
	return scope, string(rawKey), expiresAt, nil
}

func (s *SignedURLSigner) sign(scope, ts, encodedKey string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(scope + "|" + ts + "|" + encodedKey))
	return hex.EncodeToString(mac.Sum(nil))
}
