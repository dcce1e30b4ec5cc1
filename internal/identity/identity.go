// Package identity issues the stable per-installation user id attached to
// signals and remote ranking requests.
package identity

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/matthewjhunter/chapterverse/internal/logging"
	"github.com/matthewjhunter/chapterverse/internal/storage"
)

// Provider returns the same id for the life of an installation. The first
// call reads storage.KeyUserID, generating and persisting a UUID when none
// is stored.
type Provider struct {
	kv storage.KV

	mu sync.Mutex
	id string
}

func NewProvider(kv storage.KV) *Provider {
	return &Provider{kv: kv}
}

// UserID never fails: if storage is unreadable or unwritable the generated id
// is kept in memory for this process.
func (p *Provider) UserID(ctx context.Context) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.id != "" {
		return p.id
	}

	log := logging.Component("identity")

	data, err := p.kv.Get(ctx, storage.KeyUserID)
	switch {
	case err == nil && strings.TrimSpace(string(data)) != "":
		p.id = strings.TrimSpace(string(data))
		return p.id
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		log.Warn().Err(err).Msg("reading stored user id failed; issuing a new one")
	}

	p.id = uuid.NewString()
	if err := p.kv.Set(ctx, storage.KeyUserID, []byte(p.id)); err != nil {
		log.Warn().Err(err).Msg("persisting user id failed; id is valid for this session only")
	}
	return p.id
}
