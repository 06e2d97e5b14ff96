package identity

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrBadEnrollment is returned when an enrollment exchange fails. It does
// not distinguish an unknown dni from a wrong secret.
var ErrBadEnrollment = errors.New("unknown dni or wrong enrollment secret")

// EnrollmentStore holds one-time enrollment secrets for participants.
// A secret is generated when an administrator registers the participant,
// returned exactly once, and kept only as a bcrypt hash. Exchanging
// dni+secret at the token endpoint yields a participant token.
type EnrollmentStore struct {
	mu     sync.RWMutex
	hashes map[string][]byte // dni → bcrypt hash
	logger *zap.Logger
}

// NewEnrollmentStore creates an empty EnrollmentStore.
func NewEnrollmentStore(logger *zap.Logger) *EnrollmentStore {
	return &EnrollmentStore{
		hashes: make(map[string][]byte),
		logger: logger,
	}
}

// Enroll generates and registers a fresh secret for dni, replacing any
// previous one, and returns the secret in clear. It is not stored in clear.
func (s *EnrollmentStore) Enroll(dni string) (string, error) {
	secret, err := generateSecureToken(24)
	if err != nil {
		return "", fmt.Errorf("generate enrollment secret: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash enrollment secret: %w", err)
	}

	s.mu.Lock()
	s.hashes[dni] = hash
	s.mu.Unlock()

	s.logger.Info("participant enrolled", zap.String("dni", dni))
	return secret, nil
}

// Verify checks dni+secret against the stored hash.
func (s *EnrollmentStore) Verify(dni, secret string) error {
	s.mu.RLock()
	hash, ok := s.hashes[dni]
	s.mu.RUnlock()
	if !ok {
		return ErrBadEnrollment
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(secret)); err != nil {
		return ErrBadEnrollment
	}
	return nil
}

// generateSecureToken returns a hex-encoded random token of the given byte length.
func generateSecureToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
