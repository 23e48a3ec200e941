package subscription

import (
	"context"
	"errors"
)

// Service answers entitlement questions. It never mutates quotas; usage
// accounting belongs to the subscription owner.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CallingOrganizations lists organizations allowed to run AI call campaigns.
func (s *Service) CallingOrganizations(ctx context.Context) ([]int64, error) {
	if s.repo == nil {
		return nil, errors.New("subscription: repository not configured")
	}
	return s.repo.EntitledOrganizations(ctx, FeatureAICall)
}

// HasFeature reports whether organizationID currently holds feature with remaining quota.
func (s *Service) HasFeature(ctx context.Context, organizationID int64, feature FeatureType) (bool, error) {
	if organizationID <= 0 || feature == "" {
		return false, ErrInvalidArgument
	}
	if s.repo == nil {
		return false, errors.New("subscription: repository not configured")
	}
	subs, err := s.repo.ListForOrganization(ctx, organizationID)
	if err != nil {
		return false, err
	}
	for _, sub := range subs {
		if sub.Entitles(feature) {
			return true, nil
		}
	}
	return false, nil
}
