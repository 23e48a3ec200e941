package orgs

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository is the persistence contract for organizations and their ATS connections.
type Repository interface {
	GetOrganization(ctx context.Context, id int64) (Organization, error)
	GetPlatform(ctx context.Context, id int64) (Platform, error)
	SaveTokens(ctx context.Context, platformID int64, t Tokens, now time.Time) (Platform, error)
	MarkSynced(ctx context.Context, platformID int64, now time.Time) error
	TwilioAccount(ctx context.Context, organizationID int64) (TwilioAccount, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) GetOrganization(ctx context.Context, id int64) (Organization, error) {
	const q = `
SELECT id, name, status, created_at
FROM organizations
WHERE id = $1
`
	var o Organization
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&o.ID, &o.Name, &o.Status, &o.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Organization{}, ErrNotFound
		}
		return Organization{}, err
	}
	return o, nil
}

const platformColumns = `id, organization_id, platform, access_token, refresh_token, token_type, base_url,
       expires_at, is_connected, connected_at, last_synced_at, status, updated_at`

func scanPlatform(row interface{ Scan(...any) error }) (Platform, error) {
	var p Platform
	var expires, connected, synced sql.NullTime
	if err := row.Scan(
		&p.ID,
		&p.OrganizationID,
		&p.Platform,
		&p.AccessToken,
		&p.RefreshToken,
		&p.TokenType,
		&p.BaseURL,
		&expires,
		&p.IsConnected,
		&connected,
		&synced,
		&p.Status,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Platform{}, ErrNotFound
		}
		return Platform{}, err
	}
	p.ExpiresAt = nullTime(expires)
	p.ConnectedAt = nullTime(connected)
	p.LastSyncedAt = nullTime(synced)
	return p, nil
}

func (r *PostgresRepo) GetPlatform(ctx context.Context, id int64) (Platform, error) {
	q := `SELECT ` + platformColumns + ` FROM organization_platforms WHERE id = $1`
	return scanPlatform(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) SaveTokens(ctx context.Context, platformID int64, t Tokens, now time.Time) (Platform, error) {
	q := `
UPDATE organization_platforms
SET access_token = $2,
    refresh_token = $3,
    token_type = $4,
    expires_at = $5,
    is_connected = true,
    connected_at = $6,
    updated_at = $6
WHERE id = $1
RETURNING ` + platformColumns
	return scanPlatform(r.db.QueryRowContext(ctx, q, platformID, t.AccessToken, t.RefreshToken, t.TokenType, t.ExpiresAt, now))
}

func (r *PostgresRepo) MarkSynced(ctx context.Context, platformID int64, now time.Time) error {
	const q = `UPDATE organization_platforms SET last_synced_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, platformID, now)
	return err
}

func (r *PostgresRepo) TwilioAccount(ctx context.Context, organizationID int64) (TwilioAccount, error) {
	const q = `SELECT organization_id, account_sid, auth_token FROM twilio_subaccounts WHERE organization_id = $1`
	var a TwilioAccount
	if err := r.db.QueryRowContext(ctx, q, organizationID).Scan(&a.OrganizationID, &a.AccountSID, &a.AuthToken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TwilioAccount{}, ErrNotFound
		}
		return TwilioAccount{}, err
	}
	return a, nil
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
