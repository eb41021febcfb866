package auth

import (
	"strings"
	"testing"
)

func TestVerifier_PlainKey(t *testing.T) {
	t.Parallel()

	v := NewVerifier("my-secret-key")

	if !v.Configured() {
		t.Error("Configured() = false, want true")
	}
	if !v.Verify("my-secret-key") {
		t.Error("Verify() with correct key = false, want true")
	}
	if v.Verify("wrong-key") {
		t.Error("Verify() with wrong key = true, want false")
	}
	if v.Verify("") {
		t.Error("Verify() with empty key = true, want false")
	}
}

func TestVerifier_SHA256Hash(t *testing.T) {
	t.Parallel()

	v := NewVerifier("sha256:" + HashKeySHA256("my-secret-key"))

	if !v.Verify("my-secret-key") {
		t.Error("Verify() with correct key = false, want true")
	}
	if v.Verify("wrong-key") {
		t.Error("Verify() with wrong key = true, want false")
	}
}

func TestVerifier_SHA256HashUppercase(t *testing.T) {
	t.Parallel()

	// Digest case from the config must not matter.
	v := NewVerifier("sha256:" + strings.ToUpper(HashKeySHA256("my-secret-key")))

	if !v.Verify("my-secret-key") {
		t.Error("Verify() with uppercase configured digest = false, want true")
	}
}

func TestVerifier_Argon2idHash(t *testing.T) {
	t.Parallel()

	hash, err := HashKeyArgon2id("my-secret-key")
	if err != nil {
		t.Fatalf("HashKeyArgon2id() error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("hash = %q, want $argon2id$ prefix", hash)
	}

	v := NewVerifier(hash)
	if !v.Verify("my-secret-key") {
		t.Error("Verify() with correct key = false, want true")
	}
	if v.Verify("wrong-key") {
		t.Error("Verify() with wrong key = true, want false")
	}
}

func TestVerifier_Unconfigured(t *testing.T) {
	t.Parallel()

	v := NewVerifier("")
	if v.Configured() {
		t.Error("Configured() = true, want false")
	}
}

func TestHashKeySHA256_Deterministic(t *testing.T) {
	t.Parallel()

	a := HashKeySHA256("key")
	b := HashKeySHA256("key")
	if a != b {
		t.Errorf("HashKeySHA256 not deterministic: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a))
	}
}
