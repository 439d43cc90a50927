package usecase

import (
	"context"
	"time"

	"github.com/dhis2/certification-app-sub003/internal/domain"
)

type Clock func() time.Time

// DocumentCanonicalizer produces the stable byte form of a credential body.
type DocumentCanonicalizer interface {
	Document(doc any) ([]byte, error)
}

// CredentialRepository persists issued credentials together with the raw
// hash and signature recorded at issuance time.
type CredentialRepository interface {
	Save(ctx context.Context, cred domain.StoredCredential) error
	GetByCode(ctx context.Context, code string) (domain.StoredCredential, error)
	GetByID(ctx context.Context, id string) (domain.StoredCredential, error)
}

// StatusList answers revocation for a credential's status-list index and
// allocates indexes for new credentials. Reclaim takes back an index whose
// credential was never persisted.
type StatusList interface {
	Allocate(ctx context.Context) (int, error)
	Reclaim(ctx context.Context, index int) error
	Revoke(ctx context.Context, index int) error
	IsRevoked(ctx context.Context, index int) (bool, error)
}

// AuditRepository appends entries in chain order and lists them back in the
// same order. Append assigns Seq, PrevHash, CurrHash and Signature.
type AuditRepository interface {
	Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error)
	List(ctx context.Context) ([]domain.AuditEntry, error)
}

// MAC is the keyed-digest capability behind audit signatures: a local
// symmetric key or the transit service's HMAC endpoint.
type MAC interface {
	Sum(ctx context.Context, input []byte) ([]byte, error)
	Configured() bool
}

// TokenBlacklist is the gate consulted on every authenticated request.
type TokenBlacklist interface {
	Blacklist(ctx context.Context, jti, userID string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}
