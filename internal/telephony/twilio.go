package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"callpilot/internal/config"
	"callpilot/internal/orgs"
	"callpilot/pkg/logger"
)

const twilioDefaultBaseURL = "https://api.twilio.com"

// TwilioError is the error document Twilio returns with a non-2xx status.
type TwilioError struct {
	Status  int    `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *TwilioError) Error() string {
	return fmt.Sprintf("twilio: %d (code %d): %s", e.Status, e.Code, e.Message)
}

// Accounts resolves the Twilio subaccount that owns an organization's numbers.
type Accounts interface {
	TwilioAccount(ctx context.Context, organizationID int64) (orgs.TwilioAccount, error)
}

// TwilioSMS sends messages through the Twilio Messages REST resource.
// With Accounts set, each message is sent with its organization's subaccount credentials;
// the configured account is used only for organizations without one.
type TwilioSMS struct {
	accountSID string
	authToken  string
	baseURL    string
	timeout    time.Duration
	http       *http.Client
	accounts   Accounts
}

func NewTwilioSMS(cfg config.TwilioConfig, client *http.Client) *TwilioSMS {
	if client == nil {
		client = &http.Client{}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = twilioDefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &TwilioSMS{accountSID: cfg.AccountSID, authToken: cfg.AuthToken, baseURL: base, timeout: timeout, http: client}
}

func (p *TwilioSMS) WithAccounts(a Accounts) *TwilioSMS {
	p.accounts = a
	return p
}

func (p *TwilioSMS) credentials(ctx context.Context, organizationID int64) (sid, token string, err error) {
	if p.accounts != nil {
		acct, err := p.accounts.TwilioAccount(ctx, organizationID)
		switch {
		case err == nil:
			return acct.AccountSID, acct.AuthToken, nil
		case !errors.Is(err, orgs.ErrNotFound):
			return "", "", fmt.Errorf("twilio: load subaccount: %w", err)
		}
		logger.From(ctx).Debug("no twilio subaccount, using platform account", "organization_id", organizationID)
	}
	if p.accountSID == "" || p.authToken == "" {
		return "", "", errors.New("telephony: twilio credentials not configured")
	}
	return p.accountSID, p.authToken, nil
}

func (p *TwilioSMS) Name() string { return "twilio" }

func (p *TwilioSMS) SendSMS(ctx context.Context, msg Message) (SendResult, error) {
	if err := msg.Validate(); err != nil {
		return SendResult{}, err
	}
	sid, token, err := p.credentials(ctx, msg.OrganizationID)
	if err != nil {
		return SendResult{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", msg.From)
	form.Set("Body", msg.Body)

	endpoint := p.baseURL + "/2010-04-01/Accounts/" + url.PathEscape(sid) + "/Messages.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SendResult{}, err
	}
	req.SetBasicAuth(sid, token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("twilio: send sms: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		terr := &TwilioError{Status: resp.StatusCode}
		if json.Unmarshal(body, terr) != nil || terr.Message == "" {
			terr.Message = http.StatusText(resp.StatusCode)
		}
		terr.Status = resp.StatusCode
		return SendResult{}, terr
	}

	var out struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return SendResult{}, fmt.Errorf("twilio: decode response: %w", err)
	}
	return SendResult{ProviderMessageID: out.SID, Status: out.Status}, nil
}
