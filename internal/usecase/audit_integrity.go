package usecase

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dhis2/certification-app-sub003/internal/domain"
	"github.com/dhis2/certification-app-sub003/internal/infra/canonical"
)

// AuditIntegrity signs audit entries and verifies them later. Signatures are
// HMACs over a fixed canonical subset of entry fields; entries additionally
// chain through CurrHash/PrevHash so removal or reordering is detectable.
type AuditIntegrity struct {
	mac MAC
}

func NewAuditIntegrity(mac MAC) *AuditIntegrity {
	return &AuditIntegrity{mac: mac}
}

// Configured reports whether a signing key is available. An unconfigured
// service refuses to sign or vouch for anything.
func (s *AuditIntegrity) Configured() bool {
	return s != nil && s.mac != nil && s.mac.Configured()
}

// chainFields is the canonical subset CurrHash is computed over. PrevHash is
// included, which is what links the chain.
type chainFields struct {
	V          string          `json:"v"`
	Seq        int64           `json:"seq"`
	EventType  string          `json:"event_type"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	ActorID    string          `json:"actor_id"`
	ActorIP    string          `json:"actor_ip"`
	OldValues  json.RawMessage `json:"old_values"`
	NewValues  json.RawMessage `json:"new_values"`
	PrevHash   string          `json:"prev_hash"`
	CreatedAt  string          `json:"created_at"`
}

// signedFields is the canonical subset the HMAC covers. It includes both
// hashes, so changing PrevHash alone invalidates the signature.
type signedFields struct {
	EventType  string          `json:"event_type"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	ActorID    string          `json:"actor_id"`
	ActorIP    string          `json:"actor_ip"`
	OldValues  json.RawMessage `json:"old_values"`
	NewValues  json.RawMessage `json:"new_values"`
	PrevHash   string          `json:"prev_hash"`
	CurrHash   string          `json:"curr_hash"`
}

// ComputeChainHash derives CurrHash from the entry's canonical fields. Seq,
// PrevHash and CreatedAt must already be assigned.
func (s *AuditIntegrity) ComputeChainHash(entry domain.AuditEntry) (string, error) {
	if entry.EventType == "" || entry.Action == "" {
		return "", errors.New("audit entry missing event_type or action")
	}
	if entry.PrevHash == "" {
		return "", errors.New("audit entry missing prev_hash")
	}
	if entry.CreatedAt.IsZero() {
		return "", errors.New("audit entry missing created_at")
	}
	payload := chainFields{
		V:          domain.AuditChainVersion,
		Seq:        entry.Seq,
		EventType:  string(entry.EventType),
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		ActorID:    entry.ActorID,
		ActorIP:    entry.ActorIP,
		OldValues:  entry.OldValues,
		NewValues:  entry.NewValues,
		PrevHash:   entry.PrevHash,
		CreatedAt:  entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	canonicalBytes, err := canonical.JSON(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonicalBytes)
	return hex.EncodeToString(sum[:]), nil
}

// GenerateSignature computes the HMAC over the signed subset. CurrHash must
// already be set; use Seal to do both in one step.
func (s *AuditIntegrity) GenerateSignature(ctx context.Context, entry domain.AuditEntry) (string, error) {
	if !s.Configured() {
		return "", domain.ErrAuditKeyMissing
	}
	canonicalBytes, err := signedCanonical(entry)
	if err != nil {
		return "", err
	}
	mac, err := s.mac.Sum(ctx, canonicalBytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(mac), nil
}

// Seal assigns CurrHash and Signature to an entry whose Seq, PrevHash and
// CreatedAt are already fixed by the repository.
func (s *AuditIntegrity) Seal(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	currHash, err := s.ComputeChainHash(entry)
	if err != nil {
		return domain.AuditEntry{}, err
	}
	entry.CurrHash = currHash
	signature, err := s.GenerateSignature(ctx, entry)
	if err != nil {
		return domain.AuditEntry{}, err
	}
	entry.Signature = signature
	return entry, nil
}

// VerifySignature recomputes the HMAC and compares in constant time. The
// comparison hashes both candidates to fixed-length digests first, so its
// timing does not depend on where the signatures diverge or on their lengths.
func (s *AuditIntegrity) VerifySignature(ctx context.Context, entry domain.AuditEntry) domain.AuditVerification {
	if !s.Configured() {
		return domain.AuditVerification{Valid: false, ErrorMessage: domain.ErrAuditKeyMissing.Error()}
	}
	if entry.Signature == "" {
		return domain.AuditVerification{Valid: false, ErrorMessage: "entry has no signature"}
	}
	expected, err := s.GenerateSignature(ctx, entry)
	if err != nil {
		return domain.AuditVerification{Valid: false, ErrorMessage: err.Error()}
	}
	if !constantTimeEqual(expected, entry.Signature) {
		return domain.AuditVerification{Valid: false, ErrorMessage: "signature mismatch"}
	}
	return domain.AuditVerification{Valid: true}
}

// VerifyBatch checks every entry's chain hash, linkage and signature without
// short-circuiting, so one corrupted entry cannot mask later corruption.
func (s *AuditIntegrity) VerifyBatch(ctx context.Context, entries []domain.AuditEntry) domain.AuditBatchReport {
	report := domain.AuditBatchReport{}
	prevHash := domain.ZeroAuditHash
	for _, entry := range entries {
		report.Checked++
		reasons := []string{}

		if entry.PrevHash != prevHash {
			reasons = append(reasons, fmt.Sprintf("prev hash mismatch: expected %s", prevHash))
		}
		currHash, err := s.ComputeChainHash(entry)
		switch {
		case err != nil:
			reasons = append(reasons, "chain hash: "+err.Error())
		case currHash != entry.CurrHash:
			reasons = append(reasons, "chain hash mismatch")
		}
		if verdict := s.VerifySignature(ctx, entry); !verdict.Valid {
			reasons = append(reasons, verdict.ErrorMessage)
		}

		if len(reasons) > 0 {
			report.Invalid++
			for _, reason := range reasons {
				report.Failures = append(report.Failures, domain.AuditBatchFailure{
					Seq:     entry.Seq,
					EntryID: entry.ID,
					Reason:  reason,
				})
			}
		}
		// Continue the walk from the recorded hash either way: a single bad
		// entry should surface once, not cascade into every successor.
		prevHash = entry.CurrHash
	}
	return report
}

func signedCanonical(entry domain.AuditEntry) ([]byte, error) {
	if entry.CurrHash == "" || entry.PrevHash == "" {
		return nil, errors.New("audit entry missing chain hashes")
	}
	payload := signedFields{
		EventType:  string(entry.EventType),
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		ActorID:    entry.ActorID,
		ActorIP:    entry.ActorIP,
		OldValues:  entry.OldValues,
		NewValues:  entry.NewValues,
		PrevHash:   entry.PrevHash,
		CurrHash:   entry.CurrHash,
	}
	return canonical.JSON(payload)
}

func constantTimeEqual(a, b string) bool {
	da := sha256.Sum256([]byte(a))
	db := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(da[:], db[:]) == 1
}
