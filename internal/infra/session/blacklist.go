package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dhis2/certification-app-sub003/internal/domain"
	"github.com/dhis2/certification-app-sub003/internal/infra/encryption"
)

const blacklistKeyPrefix = "token:blacklist:"

// Blacklist is the access-token revocation store. Reads fail closed: if the
// backing store is unreachable and the token is unknown to the local cache,
// the token is treated as revoked. Writes fail loudly instead, because a
// revocation that silently no-ops leaves a stolen token usable.
type Blacklist struct {
	store   Store
	breaker *Breaker
	cache   *localCache
	enc     encryption.Service
	logger  *zap.Logger
}

type BlacklistConfig struct {
	Store         Store
	Breaker       *Breaker
	CacheMax      int
	SweepInterval time.Duration
	Encryptor     encryption.Service
	Logger        *zap.Logger
	Now           func() time.Time
}

func NewBlacklist(cfg BlacklistConfig) *Blacklist {
	if cfg.Breaker == nil {
		cfg.Breaker = NewBreaker(0, 0, cfg.Now)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	cache := newLocalCache(cfg.CacheMax, cfg.Now)
	if cfg.SweepInterval > 0 {
		cache.startSweeper(cfg.SweepInterval)
	}
	return &Blacklist{
		store:   cfg.Store,
		breaker: cfg.Breaker,
		cache:   cache,
		enc:     cfg.Encryptor,
		logger:  cfg.Logger,
	}
}

// Blacklist revokes a token for ttl. The local cache is updated first so the
// revocation holds on this node even when the store write fails.
func (b *Blacklist) Blacklist(ctx context.Context, jti, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	b.cache.put(jti, ttl)

	// Encryption runs before the breaker is consulted: a failure here is not
	// a store failure and must not consume the half-open trial slot.
	value := userID
	if b.enc != nil {
		encrypted, err := b.enc.Encrypt(ctx, []byte(userID))
		if err != nil {
			return fmt.Errorf("encrypt blacklist payload: %w", err)
		}
		value = encrypted
	}

	if !b.breaker.Allow() {
		b.logger.Error("blacklist write rejected, breaker open",
			zap.String("jti", jti))
		return domain.ErrBreakerOpen
	}

	if err := b.store.SetWithTTL(ctx, blacklistKeyPrefix+jti, value, ttl); err != nil {
		b.breaker.Failure()
		b.logger.Error("blacklist write failed",
			zap.String("jti", jti), zap.Error(err))
		return fmt.Errorf("blacklist token: %w", err)
	}
	b.breaker.Success()
	return nil
}

// IsBlacklisted answers the gate consulted on every authenticated request.
// Cache hits avoid the store entirely; a store outage yields true, and the
// caller rejects the request the same way it rejects a revoked token.
func (b *Blacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	if b.cache.contains(jti) {
		return true, nil
	}
	if !b.breaker.Allow() {
		b.logger.Warn("blacklist read degraded to cache only, breaker open",
			zap.String("jti", jti))
		return true, nil
	}
	exists, err := b.store.Exists(ctx, blacklistKeyPrefix+jti)
	if err != nil {
		b.breaker.Failure()
		b.logger.Warn("blacklist read failed, denying token",
			zap.String("jti", jti), zap.Error(err))
		return true, nil
	}
	b.breaker.Success()
	return exists, nil
}

// BreakerState exposes the breaker for health reporting.
func (b *Blacklist) BreakerState() domain.BreakerState {
	return b.breaker.State()
}
