// Package auth verifies the shared API credential presented by clients.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/alexedwards/argon2id"
)

// argon2idParams follows OWASP minimum parameters for Argon2id.
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Verifier checks a presented credential against the configured expected
// value. The expected value may be a raw key, a "sha256:<hex>" digest, or an
// Argon2id PHC hash. An empty expected value means no credential is
// configured (insecure mode) and every request is allowed.
type Verifier struct {
	expected string
}

// NewVerifier creates a Verifier for the configured credential value.
func NewVerifier(expected string) *Verifier {
	return &Verifier{expected: expected}
}

// Configured reports whether a credential is configured at all.
func (v *Verifier) Configured() bool {
	return v.expected != ""
}

// Verify reports whether the presented credential matches. Comparison of raw
// and sha256-hashed values is constant-time; Argon2id verification is
// delegated to the argon2id package.
func (v *Verifier) Verify(presented string) bool {
	switch {
	case strings.HasPrefix(v.expected, "$argon2id$"):
		match, err := argon2id.ComparePasswordAndHash(presented, v.expected)
		return err == nil && match
	case strings.HasPrefix(v.expected, "sha256:"):
		want := strings.TrimPrefix(v.expected, "sha256:")
		got := HashKeySHA256(presented)
		return subtle.ConstantTimeCompare([]byte(got), []byte(strings.ToLower(want))) == 1
	default:
		return subtle.ConstantTimeCompare([]byte(presented), []byte(v.expected)) == 1
	}
}

// HashKeySHA256 returns the lowercase SHA-256 hex digest of the raw key.
func HashKeySHA256(rawKey string) string {
	hash := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(hash[:])
}

// HashKeyArgon2id returns an Argon2id hash of the raw key in PHC format
// ($argon2id$v=19$m=...,t=...,p=...$<salt>$<hash>).
func HashKeyArgon2id(rawKey string) (string, error) {
	return argon2id.CreateHash(rawKey, argon2idParams)
}
