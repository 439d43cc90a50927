package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dhis2/certification-app-sub003/internal/domain"
)

const refreshKeyPrefix = "session:refresh:"

// RefreshSessions tracks the refresh-token identifiers active for each user
// in a bounded, sliding-expiry set. Eviction past the cap is best-effort LRU:
// members come back in enumeration order, which approximates insertion order.
type RefreshSessions struct {
	store      Store
	ttl        time.Duration
	maxPerUser int
	logger     *zap.Logger
}

type RefreshSessionsConfig struct {
	Store      Store
	TTL        time.Duration
	MaxPerUser int
	Logger     *zap.Logger
}

func NewRefreshSessions(cfg RefreshSessionsConfig) *RefreshSessions {
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	if cfg.MaxPerUser <= 0 {
		cfg.MaxPerUser = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &RefreshSessions{
		store:      cfg.Store,
		ttl:        cfg.TTL,
		maxPerUser: cfg.MaxPerUser,
		logger:     cfg.Logger,
	}
}

// Insert adds a token identifier and refreshes the set TTL in one pipelined
// write, then trims the set back to the cap if the insert overflowed it.
func (s *RefreshSessions) Insert(ctx context.Context, userID, tokenID string) error {
	key := refreshKeyPrefix + userID
	if err := s.store.SetAdd(ctx, key, tokenID, s.ttl); err != nil {
		return fmt.Errorf("track refresh session: %w", err)
	}

	card, err := s.store.SetCard(ctx, key)
	if err != nil {
		return fmt.Errorf("count refresh sessions: %w", err)
	}
	if card <= int64(s.maxPerUser) {
		return nil
	}

	members, err := s.store.SetMembers(ctx, key)
	if err != nil {
		return fmt.Errorf("enumerate refresh sessions: %w", err)
	}
	for _, member := range members {
		if member == tokenID {
			continue
		}
		if err := s.store.SetRemove(ctx, key, member); err != nil {
			return fmt.Errorf("evict refresh session: %w", err)
		}
		s.logger.Info("evicted refresh session past cap",
			zap.String("user_id", userID), zap.String("token_id", member))
		break
	}
	return nil
}

// Remove drops a single token identifier, e.g. on ordinary logout.
func (s *RefreshSessions) Remove(ctx context.Context, userID, tokenID string) error {
	if err := s.store.SetRemove(ctx, refreshKeyPrefix+userID, tokenID); err != nil {
		return fmt.Errorf("remove refresh session: %w", err)
	}
	return nil
}

// Validate checks membership. A missing identifier surfaces as
// ErrSessionInvalidated so callers can log revoked-token reuse distinctly
// from tokens that never existed.
func (s *RefreshSessions) Validate(ctx context.Context, userID, tokenID string) error {
	ok, err := s.store.SetIsMember(ctx, refreshKeyPrefix+userID, tokenID)
	if err != nil {
		return fmt.Errorf("validate refresh session: %w", err)
	}
	if !ok {
		return domain.ErrSessionInvalidated
	}
	return nil
}

// InvalidateAll drops every session for the user. Used on theft detection
// and global logout.
func (s *RefreshSessions) InvalidateAll(ctx context.Context, userID string) error {
	if err := s.store.Del(ctx, refreshKeyPrefix+userID); err != nil {
		return fmt.Errorf("invalidate refresh sessions: %w", err)
	}
	return nil
}
