package users

import (
	"context"

	"github.com/odyssey-erp/odyssey-starter/internal/platform/db"
)

// Provider builds the per-request session → repository → service graph.
// It is constructed once at start-up and shares nothing between requests
// except the connection pool behind sessions.
type Provider struct {
	sessions *db.Sessions
	hasher   Hasher
	tokens   Tokens
}

// NewProvider constructs a Provider.
func NewProvider(sessions *db.Sessions, hasher Hasher, tokens Tokens) *Provider {
	return &Provider{sessions: sessions, hasher: hasher, tokens: tokens}
}

// Scope opens a fresh session, hands fn a Service bound to it, and closes the
// session when fn returns or panics.
func (p *Provider) Scope(ctx context.Context, fn func(ctx context.Context, svc *Service) error) error {
	session := p.sessions.Open()
	defer session.Close()
	return fn(ctx, NewService(NewRepository(session), p.hasher, p.tokens))
}
