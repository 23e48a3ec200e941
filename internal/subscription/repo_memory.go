package subscription

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu   sync.Mutex
	subs []Subscription
}

func NewMemoryRepo(subs ...Subscription) *MemoryRepo {
	return &MemoryRepo{subs: subs}
}

func (r *MemoryRepo) Add(s Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, s)
}

func (r *MemoryRepo) EntitledOrganizations(_ context.Context, feature FeatureType) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[int64]struct{}{}
	var out []int64
	for _, s := range r.subs {
		if !s.Entitles(feature) {
			continue
		}
		if _, ok := seen[s.OrganizationID]; ok {
			continue
		}
		seen[s.OrganizationID] = struct{}{}
		out = append(out, s.OrganizationID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (r *MemoryRepo) ListForOrganization(_ context.Context, organizationID int64) ([]Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Subscription
	for _, s := range r.subs {
		if s.OrganizationID == organizationID {
			out = append(out, s)
		}
	}
	return out, nil
}
