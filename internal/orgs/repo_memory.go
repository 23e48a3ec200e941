package orgs

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu            sync.Mutex
	organizations map[int64]Organization
	platforms     map[int64]Platform
	twilio        map[int64]TwilioAccount
	// Saves counts SaveTokens calls.
	Saves int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{organizations: map[int64]Organization{}, platforms: map[int64]Platform{}, twilio: map[int64]TwilioAccount{}}
}

func (r *MemoryRepo) PutOrganization(o Organization) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.organizations[o.ID] = o
}

func (r *MemoryRepo) PutPlatform(p Platform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.platforms[p.ID] = p
}

func (r *MemoryRepo) GetOrganization(_ context.Context, id int64) (Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.organizations[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return o, nil
}

func (r *MemoryRepo) GetPlatform(_ context.Context, id int64) (Platform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.platforms[id]
	if !ok {
		return Platform{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) SaveTokens(_ context.Context, platformID int64, t Tokens, now time.Time) (Platform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.platforms[platformID]
	if !ok {
		return Platform{}, ErrNotFound
	}
	exp := t.ExpiresAt
	p.AccessToken = t.AccessToken
	p.RefreshToken = t.RefreshToken
	p.TokenType = t.TokenType
	p.ExpiresAt = &exp
	p.IsConnected = true
	p.ConnectedAt = &now
	p.UpdatedAt = now
	r.platforms[platformID] = p
	r.Saves++
	return p, nil
}

func (r *MemoryRepo) MarkSynced(_ context.Context, platformID int64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.platforms[platformID]
	if !ok {
		return ErrNotFound
	}
	p.LastSyncedAt = &now
	r.platforms[platformID] = p
	return nil
}

func (r *MemoryRepo) PutTwilioAccount(a TwilioAccount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.twilio[a.OrganizationID] = a
}

func (r *MemoryRepo) TwilioAccount(_ context.Context, organizationID int64) (TwilioAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.twilio[organizationID]
	if !ok {
		return TwilioAccount{}, ErrNotFound
	}
	return a, nil
}
