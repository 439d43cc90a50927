package vaultclient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Login authenticates via AppRole and replaces the client token. Safe to call
// again after a failed renewal; it starts a fresh lease.
func (c *Client) Login(ctx context.Context) error {
	if c.roleID == "" || c.secretID == "" {
		return errors.New("approle credentials not configured")
	}
	var resp struct {
		Auth struct {
			ClientToken   string `json:"client_token"`
			LeaseDuration int    `json:"lease_duration"`
			Renewable     bool   `json:"renewable"`
		} `json:"auth"`
	}
	body := map[string]any{"role_id": c.roleID, "secret_id": c.secretID}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/approle/login", body, &resp); err != nil {
		return err
	}
	if resp.Auth.ClientToken == "" {
		return errors.New("approle login returned no token")
	}
	c.setToken(resp.Auth.ClientToken)
	c.logger.Info("authenticated with transit service",
		zap.Int("lease_duration", resp.Auth.LeaseDuration),
		zap.Bool("renewable", resp.Auth.Renewable),
	)
	return nil
}

// RenewLease renews the current token lease, falling back to a fresh login
// when renewal fails. Concurrent callers coalesce: only one renewal runs at a
// time and late arrivals return immediately.
func (c *Client) RenewLease(ctx context.Context) error {
	c.renewMu.Lock()
	if c.renewing {
		c.renewMu.Unlock()
		return nil
	}
	c.renewing = true
	c.renewMu.Unlock()

	defer func() {
		c.renewMu.Lock()
		c.renewing = false
		c.renewMu.Unlock()
	}()

	if err := c.do(ctx, http.MethodPost, "/v1/auth/token/renew-self", map[string]any{}, nil); err != nil {
		c.logger.Warn("lease renewal failed, re-authenticating", zap.Error(err))
		if c.roleID == "" {
			return err
		}
		return c.Login(ctx)
	}
	return nil
}

// StartRenewal runs lease renewal on a timer until Close is called. A zero
// interval disables the loop (static-token mode).
func (c *Client) StartRenewal(interval time.Duration) {
	if interval <= 0 {
		return
	}
	c.renewMu.Lock()
	if c.stopRenew != nil {
		c.renewMu.Unlock()
		return
	}
	c.stopRenew = make(chan struct{})
	c.renewDone = make(chan struct{})
	stop := c.stopRenew
	done := c.renewDone
	c.renewMu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), c.httpClient.Timeout)
				if err := c.RenewLease(ctx); err != nil {
					c.logger.Error("lease renewal and re-authentication failed", zap.Error(err))
				}
				cancel()
			}
		}
	}()
}

// Close stops the renewal loop and revokes the lease best-effort. Revocation
// failure is logged, never fatal: the lease expires on its own.
func (c *Client) Close(ctx context.Context) {
	c.renewMu.Lock()
	if c.stopRenew != nil {
		close(c.stopRenew)
		done := c.renewDone
		c.stopRenew = nil
		c.renewDone = nil
		c.renewMu.Unlock()
		<-done
	} else {
		c.renewMu.Unlock()
	}

	if c.roleID == "" {
		// Static tokens are managed by the operator, not revoked here.
		return
	}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/token/revoke-self", map[string]any{}, nil); err != nil {
		c.logger.Warn("lease revocation failed", zap.Error(err))
	}
}
