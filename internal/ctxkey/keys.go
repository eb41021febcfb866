// Package ctxkey defines shared context key types used across multiple packages.
// This package should have no dependencies on other internal packages to avoid import cycles.
package ctxkey

// LoggerKey is the context key type for the request-enriched logger.
type LoggerKey struct{}

// CredentialKey is the context key type for the presented API credential.
// Set by the access guard; read by the rate limiter for per-key accounting.
type CredentialKey struct{}
