package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/dhis2/certification-app-sub003/internal/domain"
	"github.com/dhis2/certification-app-sub003/internal/infra/audithmac"
)

func newTestIntegrity(t *testing.T) *AuditIntegrity {
	t.Helper()
	mac, err := audithmac.NewLocal("8b5f0c2f4a1e9d3c7b6a5f4e3d2c1b0a8b5f0c2f4a1e9d3c7b6a5f4e3d2c1b0a")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return NewAuditIntegrity(mac)
}

func sampleEntry() domain.AuditEntry {
	return domain.AuditEntry{
		ID:         "ae-1",
		Seq:        1,
		EventType:  domain.AuditEventCredentialIssued,
		Action:     "issue",
		EntityType: "credential",
		EntityID:   "cred-42",
		ActorID:    "admin-7",
		ActorIP:    "10.0.0.5",
		NewValues:  json.RawMessage(`{"code":"CERT-42"}`),
		PrevHash:   domain.ZeroAuditHash,
		CreatedAt:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestSealProducesVerifiableEntry(t *testing.T) {
	svc := newTestIntegrity(t)
	sealed, err := svc.Seal(context.Background(), sampleEntry())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed.CurrHash == "" || sealed.Signature == "" {
		t.Fatal("Seal left hash or signature empty")
	}
	if verdict := svc.VerifySignature(context.Background(), sealed); !verdict.Valid {
		t.Fatalf("sealed entry did not verify: %s", verdict.ErrorMessage)
	}
}

func TestChainHashDeterministic(t *testing.T) {
	svc := newTestIntegrity(t)
	a, err := svc.ComputeChainHash(sampleEntry())
	if err != nil {
		t.Fatalf("ComputeChainHash: %v", err)
	}
	b, err := svc.ComputeChainHash(sampleEntry())
	if err != nil {
		t.Fatalf("ComputeChainHash: %v", err)
	}
	if a != b {
		t.Fatalf("chain hash not deterministic: %s vs %s", a, b)
	}
}

func TestPrevHashChangeInvalidatesSignature(t *testing.T) {
	svc := newTestIntegrity(t)
	sealed, err := svc.Seal(context.Background(), sampleEntry())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	tampered := sealed
	tampered.PrevHash = "1111111111111111111111111111111111111111111111111111111111111111"

	if verdict := svc.VerifySignature(context.Background(), tampered); verdict.Valid {
		t.Fatal("signature still valid after prev hash change")
	}
}

func TestConstantTimeEqualHandlesLengths(t *testing.T) {
	if !constantTimeEqual("abc", "abc") {
		t.Fatal("equal strings compared unequal")
	}
	if constantTimeEqual("abc", "abd") {
		t.Fatal("equal-length mismatch compared equal")
	}
	// Length differences go through the same digest compare as any other
	// mismatch instead of bailing out early.
	if constantTimeEqual("abc", "abcabc") {
		t.Fatal("different-length strings compared equal")
	}
	if constantTimeEqual("abc", "") {
		t.Fatal("empty candidate compared equal")
	}
}

func TestVerifySignatureRejectsMalformedSignatures(t *testing.T) {
	svc := newTestIntegrity(t)
	sealed, err := svc.Seal(context.Background(), sampleEntry())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	// Equal-length corruption: flip the last hex digit.
	wrong := sealed
	last := wrong.Signature[len(wrong.Signature)-1]
	flip := byte('0')
	if last == '0' {
		flip = '1'
	}
	wrong.Signature = wrong.Signature[:len(wrong.Signature)-1] + string(flip)
	verdict := svc.VerifySignature(context.Background(), wrong)
	if verdict.Valid {
		t.Fatal("equal-length wrong signature verified")
	}
	if verdict.ErrorMessage != "signature mismatch" {
		t.Fatalf("unexpected verdict: %s", verdict.ErrorMessage)
	}

	// Truncated and over-long signatures get the same verdict, not an error.
	truncated := sealed
	truncated.Signature = sealed.Signature[:8]
	if verdict := svc.VerifySignature(context.Background(), truncated); verdict.Valid || verdict.ErrorMessage != "signature mismatch" {
		t.Fatalf("truncated signature: valid=%v message=%q", verdict.Valid, verdict.ErrorMessage)
	}
	extended := sealed
	extended.Signature = sealed.Signature + "00"
	if verdict := svc.VerifySignature(context.Background(), extended); verdict.Valid || verdict.ErrorMessage != "signature mismatch" {
		t.Fatalf("over-long signature: valid=%v message=%q", verdict.Valid, verdict.ErrorMessage)
	}
}

func TestUnconfiguredServiceRefusesEverything(t *testing.T) {
	mac, err := audithmac.NewLocal("")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	svc := NewAuditIntegrity(mac)

	if _, err := svc.GenerateSignature(context.Background(), sampleEntry()); err != domain.ErrAuditKeyMissing {
		t.Fatalf("expected ErrAuditKeyMissing, got %v", err)
	}
	verdict := svc.VerifySignature(context.Background(), sampleEntry())
	if verdict.Valid {
		t.Fatal("verification passed without a key")
	}
}

func TestVerifyBatchCountsAllFailures(t *testing.T) {
	svc := newTestIntegrity(t)
	ctx := context.Background()

	entries := make([]domain.AuditEntry, 0, 4)
	prev := domain.ZeroAuditHash
	for i := 0; i < 4; i++ {
		entry := sampleEntry()
		entry.ID = fmt.Sprintf("ae-%d", i+1)
		entry.Seq = int64(i + 1)
		entry.EntityID = entry.ID
		entry.PrevHash = prev
		sealed, err := svc.Seal(ctx, entry)
		if err != nil {
			t.Fatalf("Seal %d: %v", i, err)
		}
		entries = append(entries, sealed)
		prev = sealed.CurrHash
	}

	report := svc.VerifyBatch(ctx, entries)
	if report.Checked != 4 || report.Invalid != 0 {
		t.Fatalf("clean chain reported checked=%d invalid=%d", report.Checked, report.Invalid)
	}

	// Corrupt entries 1 and 3; verification must flag both.
	entries[1].ActorID = "intruder"
	entries[3].Signature = entries[0].Signature

	report = svc.VerifyBatch(ctx, entries)
	if report.Checked != 4 {
		t.Fatalf("checked = %d, want 4", report.Checked)
	}
	if report.Invalid != 2 {
		t.Fatalf("invalid = %d, want 2", report.Invalid)
	}
	seen := map[int64]bool{}
	for _, f := range report.Failures {
		seen[f.Seq] = true
	}
	if !seen[2] || !seen[4] {
		t.Fatalf("failures did not cover both corrupted entries: %+v", report.Failures)
	}
}

func TestVerifyBatchDetectsBrokenLinkage(t *testing.T) {
	svc := newTestIntegrity(t)
	ctx := context.Background()

	first, err := svc.Seal(ctx, sampleEntry())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	second := sampleEntry()
	second.Seq = 2
	second.PrevHash = "2222222222222222222222222222222222222222222222222222222222222222"
	second, err = svc.Seal(ctx, second)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	report := svc.VerifyBatch(ctx, []domain.AuditEntry{first, second})
	if report.Invalid != 1 {
		t.Fatalf("invalid = %d, want 1", report.Invalid)
	}
	if report.Failures[0].Seq != 2 {
		t.Fatalf("failure seq = %d, want 2", report.Failures[0].Seq)
	}
}
