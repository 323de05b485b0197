package chats

import (
	"context"

	"github.com/odyssey-erp/odyssey-starter/internal/platform/db"
)

// Provider builds the per-request session → repository → service graph.
type Provider struct {
	sessions *db.Sessions
}

// NewProvider constructs a Provider.
func NewProvider(sessions *db.Sessions) *Provider {
	return &Provider{sessions: sessions}
}

// Scope opens a fresh session, hands fn a Service bound to it, and closes the
// session when fn returns or panics.
func (p *Provider) Scope(ctx context.Context, fn func(ctx context.Context, svc *Service) error) error {
	session := p.sessions.Open()
	defer session.Close()
	return fn(ctx, NewService(NewRepository(session)))
}
