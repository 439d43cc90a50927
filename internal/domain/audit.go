package domain

import (
	"encoding/json"
	"time"
)

const (
	// AuditChainVersion tags the canonical form the chain hash is computed
	// over, so a future format change cannot silently reinterpret old rows.
	AuditChainVersion = "audit_chain_v1"

	// ZeroAuditHash is the prev-hash sentinel for the first entry of a chain.
	ZeroAuditHash = "0000000000000000000000000000000000000000000000000000000000000000"
)

type AuditEventType string

const (
	AuditEventCredentialIssued  AuditEventType = "credential_issued"
	AuditEventCredentialRevoked AuditEventType = "credential_revoked"
	AuditEventKeyRotated        AuditEventType = "key_rotated"
	AuditEventSessionRevoked    AuditEventType = "session_revoked"
	AuditEventLogout            AuditEventType = "logout"
)

// AuditEntry is an append-only record. CurrHash covers the canonical field
// subset including PrevHash, so the sequence forms a hash chain; Signature is
// an HMAC over the same subset. Chain order is assigned by the repository in
// the order entries are persisted; the caller serializes writes per chain.
type AuditEntry struct {
	ID         string
	Seq        int64
	EventType  AuditEventType
	Action     string
	EntityType string
	EntityID   string
	ActorID    string
	ActorIP    string
	OldValues  json.RawMessage
	NewValues  json.RawMessage
	PrevHash   string
	CurrHash   string
	Signature  string
	CreatedAt  time.Time
}

// AuditVerification is the structured result of an integrity check. Mismatches
// are reported here rather than as errors so callers can alert on tampering
// distinctly from ordinary failures.
type AuditVerification struct {
	Valid        bool
	ErrorMessage string
}

// AuditBatchReport counts mismatches over a sequence without short-circuiting,
// so one corrupted entry cannot hide later corruption.
type AuditBatchReport struct {
	Checked  int
	Invalid  int
	Failures []AuditBatchFailure
}

type AuditBatchFailure struct {
	Seq     int64
	EntryID string
	Reason  string
}
