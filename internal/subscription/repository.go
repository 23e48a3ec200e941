package subscription

import (
	"context"
	"database/sql"
)

type Repository interface {
	// EntitledOrganizations lists organizations holding at least one subscription that entitles feature.
	EntitledOrganizations(ctx context.Context, feature FeatureType) ([]int64, error)
	ListForOrganization(ctx context.Context, organizationID int64) ([]Subscription, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) EntitledOrganizations(ctx context.Context, feature FeatureType) ([]int64, error) {
	const q = `
SELECT DISTINCT s.organization_id
FROM subscriptions s
JOIN plan_features pf ON pf.id = s.plan_feature_id
JOIN features f ON f.id = pf.feature_id
WHERE s.status = 'ACTIVE'
  AND s.available_limit > 0
  AND f.type = $1
ORDER BY s.organization_id
`
	rows, err := r.db.QueryContext(ctx, q, string(feature))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListForOrganization(ctx context.Context, organizationID int64) ([]Subscription, error) {
	const q = `
SELECT s.id, s.organization_id, s.available_limit, s.status, s.created_at,
       pf.id, pf.plan_name, pf.quota, f.id, f.name, f.type
FROM subscriptions s
JOIN plan_features pf ON pf.id = s.plan_feature_id
JOIN features f ON f.id = pf.feature_id
WHERE s.organization_id = $1
ORDER BY s.created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		var s Subscription
		var ft string
		if err := rows.Scan(
			&s.ID,
			&s.OrganizationID,
			&s.AvailableLimit,
			&s.Status,
			&s.CreatedAt,
			&s.PlanFeature.ID,
			&s.PlanFeature.PlanName,
			&s.PlanFeature.Quota,
			&s.PlanFeature.Feature.ID,
			&s.PlanFeature.Feature.Name,
			&ft,
		); err != nil {
			return nil, err
		}
		s.PlanFeature.Feature.Type = FeatureType(ft)
		out = append(out, s)
	}
	return out, rows.Err()
}
