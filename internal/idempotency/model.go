// Package idempotency provides models and services for idempotency key management.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Status constants for idempotency keys. StatusCompleted is the only status
// written today; StatusProcessing is reserved for marking a key while the
// first request is still in flight.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Common errors for idempotency key operations.
var (
	ErrKeyNotFound = errors.New("idempotency key not found")
	ErrKeyExists   = errors.New("idempotency key already exists")
	ErrInvalidKey  = errors.New("invalid idempotency key")
	ErrKeyTooLong  = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// MaxKeyLength bounds client-supplied keys.
const MaxKeyLength = 64

// IdempotencyKey is a stored key with the response it should replay.
type IdempotencyKey struct {
	Key                string    `json:"key"`
	Method             string    `json:"method"`
	Route              string    `json:"route"`
	CreatedAt          time.Time `json:"created_at"`
	ResponseHash       string    `json:"response_hash"`
	Status             string    `json:"status"`
	ResponseBody       string    `json:"response_body"`
	ResponseStatusCode int       `json:"response_status_code"`
}

// ValidateKey rejects empty keys and keys over MaxKeyLength.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// ComputeResponseHash hashes the response body so replayed responses can be
// integrity-checked.
func ComputeResponseHash(responseBody string) string {
	hash := sha256.Sum256([]byte(responseBody))
	return hex.EncodeToString(hash[:])
}

// Repository defines idempotency key persistence.
type Repository interface {
	// Get retrieves a key. Returns ErrKeyNotFound if absent.
	Get(key string) (*IdempotencyKey, error)

	// Store saves a new key. Returns ErrKeyExists on duplicates.
	Store(record *IdempotencyKey) error

	// DeleteOlderThan removes keys older than the duration, bounding growth.
	DeleteOlderThan(duration time.Duration) (int64, error)
}
