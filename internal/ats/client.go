// Package ats talks to the JobAdder API on behalf of an organization's platform connection.
package ats

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"callpilot/internal/config"
	"callpilot/internal/metrics"
	"callpilot/internal/orgs"
	"callpilot/internal/phone"
	"callpilot/pkg/logger"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

var (
	ErrTokenRefresh = errors.New("ats: token refresh failed")
	// ErrUnauthorized is the cause recorded when the ATS still answers 401 after a refresh.
	ErrUnauthorized = errors.New("ats: unauthorized after token refresh")
	// ErrRefreshInProgress is the cause when another worker held the refresh lock and no new token appeared.
	ErrRefreshInProgress = errors.New("ats: token refresh held by another worker")
)

// TokenRefreshError means the access token could not be renewed or was rejected after renewal.
type TokenRefreshError struct {
	PlatformID int64
	Cause      error
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("ats: token refresh failed for platform %d: %v", e.PlatformID, e.Cause)
}

func (e *TokenRefreshError) Unwrap() error { return e.Cause }

func (e *TokenRefreshError) Is(target error) bool { return target == ErrTokenRefresh }

// StatusError is a non-2xx answer other than the handled 401.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ats: %s returned %d: %s", e.Op, e.Code, e.Body)
}

// Store is the slice of the organization repository the gateway needs.
type Store interface {
	GetPlatform(ctx context.Context, id int64) (orgs.Platform, error)
	SaveTokens(ctx context.Context, platformID int64, t orgs.Tokens, now time.Time) (orgs.Platform, error)
	MarkSynced(ctx context.Context, platformID int64, now time.Time) error
}

// Locker serializes token refreshes across worker processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// Client is shared by every organization. Sessions carry the per-platform token.
type Client struct {
	store   Store
	http    *http.Client
	oauth   *oauth2.Config
	limiter *rate.Limiter
	locker  Locker
	policy  phone.Policy

	requestTimeout time.Duration
	statusTimeout  time.Duration
	lockTTL        time.Duration
	lockPoll       time.Duration

	clock func() time.Time
}

func NewClient(cfg config.ATSConfig, store Store, httpClient *http.Client, policy phone.Policy) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if policy == nil {
		policy = phone.UK
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	c := &Client{
		store:   store,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
		policy:  policy,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		requestTimeout: cfg.RequestTimeout,
		statusTimeout:  cfg.StatusTimeout,
		lockTTL:        cfg.RefreshLockTTL,
		lockPoll:       250 * time.Millisecond,
		clock:          time.Now,
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = 30 * time.Second
	}
	if c.statusTimeout <= 0 {
		c.statusTimeout = 10 * time.Second
	}
	if c.lockTTL <= 0 {
		c.lockTTL = 15 * time.Second
	}
	return c
}

// WithLocker enables cross-process refresh serialization.
func (c *Client) WithLocker(l Locker) *Client {
	c.locker = l
	return c
}

// Session binds the client to one platform connection. A Session is safe for concurrent use.
func (c *Client) Session(ctx context.Context, platformID int64) (*Session, error) {
	p, err := c.store.GetPlatform(ctx, platformID)
	if err != nil {
		return nil, fmt.Errorf("load platform %d: %w", platformID, err)
	}
	return &Session{c: c, platform: p}, nil
}

type Session struct {
	c *Client

	mu       sync.Mutex
	platform orgs.Platform
}

func (s *Session) snapshot() orgs.Platform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.platform
}

func (s *Session) adopt(p orgs.Platform) {
	s.mu.Lock()
	s.platform = p
	s.mu.Unlock()
}

func (s *Session) resolve(link string) string {
	if strings.HasPrefix(link, "/") {
		return strings.TrimRight(s.snapshot().BaseURL, "/") + link
	}
	return link
}

// call performs one ATS request with the 401 protocol: refresh once and repeat once.
// out may be nil.
func (s *Session) call(ctx context.Context, op, method, url string, body any, timeout time.Duration, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}

	token := s.snapshot().AccessToken
	code, data, err := s.send(ctx, op, method, url, payload, token, timeout)
	if err != nil {
		return err
	}
	if code == http.StatusUnauthorized {
		logger.From(ctx).Info("ats access token rejected, refreshing", "platform_id", s.snapshot().ID, "op", op)
		if err := s.refresh(ctx, token); err != nil {
			return err
		}
		code, data, err = s.send(ctx, op, method, url, payload, s.snapshot().AccessToken, timeout)
		if err != nil {
			return err
		}
		if code == http.StatusUnauthorized {
			return &TokenRefreshError{PlatformID: s.snapshot().ID, Cause: ErrUnauthorized}
		}
	}
	if code < 200 || code >= 300 {
		return &StatusError{Op: op, Code: code, Body: truncate(string(data), 256)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("ats: decode %s: %w", op, err)
	}
	return nil
}

func (s *Session) send(ctx context.Context, op, method, url string, payload []byte, token string, timeout time.Duration) (int, []byte, error) {
	if err := s.c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(rctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.c.http.Do(req)
	if err != nil {
		metrics.ATSRequests.WithLabelValues(op, metrics.StatusClass(0)).Inc()
		return 0, nil, fmt.Errorf("ats: %s: %w", op, err)
	}
	defer resp.Body.Close()
	metrics.ATSRequests.WithLabelValues(op, metrics.StatusClass(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("ats: read %s: %w", op, err)
	}
	return resp.StatusCode, data, nil
}

// refresh renews the access token that was just rejected. stale is that token; if the stored
// token already differs, another worker refreshed first and the stored one is adopted.
func (s *Session) refresh(ctx context.Context, stale string) error {
	p := s.snapshot()
	log := logger.From(ctx).With("platform_id", p.ID)

	if s.c.locker != nil {
		release, ok, err := s.c.locker.Acquire(ctx, "ats:refresh:"+strconv.FormatInt(p.ID, 10), s.c.lockTTL)
		switch {
		case err != nil:
			log.Warn("refresh lock unavailable, refreshing without it", "err", err)
		case !ok:
			return s.awaitRefresh(ctx, stale)
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					log.Warn("refresh lock release failed", "err", err)
				}
			}()
			if fresh, err := s.c.store.GetPlatform(ctx, p.ID); err == nil && fresh.AccessToken != "" && fresh.AccessToken != stale {
				s.adopt(fresh)
				metrics.TokenRefreshes.WithLabelValues("reused").Inc()
				return nil
			}
		}
	}

	// The exchange must finish while the lease is still held, or a peer could replay the rotated refresh token.
	octx, cancel := context.WithTimeout(ctx, s.c.lockTTL*2/3)
	defer cancel()
	octx = context.WithValue(octx, oauth2.HTTPClient, s.c.http)
	tok, err := s.c.oauth.TokenSource(octx, &oauth2.Token{RefreshToken: p.RefreshToken}).Token()
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		log.Error("ats token refresh failed", "err", err)
		return &TokenRefreshError{PlatformID: p.ID, Cause: err}
	}

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	saved, err := s.c.store.SaveTokens(ctx, p.ID, orgs.Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tokenType,
		ExpiresAt:    tok.Expiry,
	}, s.c.clock().UTC())
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		return &TokenRefreshError{PlatformID: p.ID, Cause: fmt.Errorf("persist tokens: %w", err)}
	}
	s.adopt(saved)
	metrics.TokenRefreshes.WithLabelValues("ok").Inc()
	log.Info("ats token refreshed")
	return nil
}

// awaitRefresh waits for the lock holder to store a new token.
func (s *Session) awaitRefresh(ctx context.Context, stale string) error {
	id := s.snapshot().ID
	deadline := time.NewTimer(s.c.lockTTL)
	defer deadline.Stop()
	for {
		p, err := s.c.store.GetPlatform(ctx, id)
		if err == nil && p.AccessToken != "" && p.AccessToken != stale {
			s.adopt(p)
			metrics.TokenRefreshes.WithLabelValues("reused").Inc()
			return nil
		}
		select {
		case <-ctx.Done():
			return &TokenRefreshError{PlatformID: id, Cause: ctx.Err()}
		case <-deadline.C:
			return &TokenRefreshError{PlatformID: id, Cause: ErrRefreshInProgress}
		case <-time.After(s.c.lockPoll):
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
