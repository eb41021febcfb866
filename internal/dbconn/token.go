// Package dbconn owns the single shared database connection and the bearer
// token that authenticates it.
package dbconn

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// DefaultTokenScope is the resource scope tokens are requested for.
const DefaultTokenScope = "https://database.windows.net/.default"

// Token is an opaque bearer token plus its expiry instant.
type Token struct {
	Value     string
	ExpiresOn time.Time
}

// TokenProvider supplies bearer tokens for the fixed target resource scope.
type TokenProvider interface {
	Token(ctx context.Context) (Token, error)
}

// AzureTokenProvider fetches tokens from whatever ambient Azure identity
// DefaultAzureCredential resolves in the deployment environment (managed
// identity, workload identity, environment or CLI credentials).
type AzureTokenProvider struct {
	cred  *azidentity.DefaultAzureCredential
	scope string
}

// NewAzureTokenProvider builds a provider for the given scope.
// An empty scope selects DefaultTokenScope.
func NewAzureTokenProvider(scope string) (*AzureTokenProvider, error) {
	if scope == "" {
		scope = DefaultTokenScope
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create azure credential: %w", err)
	}
	return &AzureTokenProvider{cred: cred, scope: scope}, nil
}

// Token requests a fresh access token for the configured scope.
func (p *AzureTokenProvider) Token(ctx context.Context) (Token, error) {
	tok, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{p.scope}})
	if err != nil {
		return Token{}, err
	}
	return Token{Value: tok.Token, ExpiresOn: tok.ExpiresOn}, nil
}
