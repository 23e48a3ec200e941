package orgs

import (
	"errors"
	"time"
)

const (
	StatusActive = "ACTIVE"
	StatusHidden = "HIDDEN"
)

var ErrNotFound = errors.New("orgs: not found")

type Organization struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Platform is an organization's connection to its ATS.
// Token fields are written only by the ATS token refresh path.
type Platform struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organization_id"`
	Platform       string     `json:"platform"`
	AccessToken    string     `json:"-"`
	RefreshToken   string     `json:"-"`
	TokenType      string     `json:"token_type"`
	BaseURL        string     `json:"base_url"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	IsConnected    bool       `json:"is_connected"`
	ConnectedAt    *time.Time `json:"connected_at,omitempty"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
	Status         string     `json:"status"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Tokens is the result of a successful refresh-token grant.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

// TwilioAccount is the Twilio subaccount an organization sends SMS from.
// The organization's from-numbers are provisioned on it.
type TwilioAccount struct {
	OrganizationID int64  `json:"organization_id"`
	AccountSID     string `json:"account_sid"`
	AuthToken      string `json:"-"`
}
