package usecase

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"strings"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/dhis2/certification-app-sub003/internal/config"
	"github.com/dhis2/certification-app-sub003/internal/domain"
	"github.com/dhis2/certification-app-sub003/internal/infra/canonical"
	"github.com/dhis2/certification-app-sub003/internal/infra/keys/local"
)

const testSeedHex = "4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d"

func testClock() time.Time {
	return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
}

type memCredentialRepo struct {
	byCode map[string]domain.StoredCredential
}

func newMemCredentialRepo() *memCredentialRepo {
	return &memCredentialRepo{byCode: map[string]domain.StoredCredential{}}
}

func (r *memCredentialRepo) Save(_ context.Context, cred domain.StoredCredential) error {
	r.byCode[cred.Code] = cred
	return nil
}

func (r *memCredentialRepo) GetByCode(_ context.Context, code string) (domain.StoredCredential, error) {
	cred, ok := r.byCode[code]
	if !ok {
		return domain.StoredCredential{}, domain.ErrNotFound
	}
	return cred, nil
}

func (r *memCredentialRepo) GetByID(_ context.Context, id string) (domain.StoredCredential, error) {
	for _, cred := range r.byCode {
		if cred.ID == id {
			return cred, nil
		}
	}
	return domain.StoredCredential{}, domain.ErrNotFound
}

func newIssuePipeline(t *testing.T, repo CredentialRepository) (*IssueCredential, *local.Manager) {
	t.Helper()
	signer, err := local.NewManager(config.Config{
		SigningKeySeedHex: testSeedHex,
		SigningKeyVersion: 1,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("local.NewManager: %v", err)
	}
	loader, err := canonical.NewContextLoader(false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewContextLoader: %v", err)
	}
	return &IssueCredential{
		Signer:      signer,
		Docs:        canonical.NewDocumentCanonicalizer(loader),
		Credentials: repo,
		Clock:       testClock,
		IssuerID:    "did:web:certification.dhis2.org",
		IssuerName:  "DHIS2 Certification Authority",
		BaseURL:     "https://certification.dhis2.org",
		TTL:         365 * 24 * time.Hour,
	}, signer
}

func TestIssueCredentialShape(t *testing.T) {
	repo := newMemCredentialRepo()
	uc, _ := newIssuePipeline(t, repo)

	issued, err := uc.Execute(context.Background(), IssueRequest{
		Subject:         map[string]any{"score": 92.5, "result": "pass"},
		StatusListIndex: 7,
		Code:            "CERT-2026-0007",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	cred := issued.Credential
	if !strings.HasPrefix(cred.ID, "urn:uuid:") {
		t.Errorf("credential id = %q, want urn:uuid prefix", cred.ID)
	}
	if len(cred.Type) != 3 || cred.Type[0] != domain.TypeVerifiableCredential {
		t.Errorf("unexpected type array: %v", cred.Type)
	}
	if cred.CredentialStatus == nil {
		t.Fatal("credentialStatus missing")
	}
	if cred.CredentialStatus.StatusListIndex != 7 {
		t.Errorf("statusListIndex = %d, want 7", cred.CredentialStatus.StatusListIndex)
	}
	if cred.CredentialStatus.StatusPurpose != domain.StatusPurposeRevocation {
		t.Errorf("statusPurpose = %q", cred.CredentialStatus.StatusPurpose)
	}
	if cred.Proof == nil || cred.Proof.Cryptosuite != domain.CryptosuiteEddsaRdfc {
		t.Fatalf("unexpected proof: %+v", cred.Proof)
	}
	if !strings.HasPrefix(cred.Proof.ProofValue, "z") {
		t.Errorf("proofValue = %q, want multibase z prefix", cred.Proof.ProofValue)
	}

	stored, err := repo.GetByCode(context.Background(), "CERT-2026-0007")
	if err != nil {
		t.Fatalf("GetByCode: %v", err)
	}
	if stored.KeyVersion != 1 || stored.StatusListIndex != 7 {
		t.Errorf("stored = %+v", stored)
	}
}

func TestIssueCredentialProofVerifies(t *testing.T) {
	uc, signer := newIssuePipeline(t, nil)

	issued, err := uc.Execute(context.Background(), IssueRequest{
		Subject:         map[string]any{"achievement": "DHIS2 Analytics"},
		StatusListIndex: 0,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Recompute the signing input from the issued document the way a relying
	// party would and check the stored signature against it.
	canonicalDoc, err := uc.Docs.Document(issued.Credential.WithoutProof())
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	docHash := sha256.Sum256(canonicalDoc)
	signingInput, err := SigningInput(*issued.Credential.Proof, docHash[:])
	if err != nil {
		t.Fatalf("SigningInput: %v", err)
	}
	sig, err := base58.Decode(issued.Credential.Proof.ProofValue[1:])
	if err != nil {
		t.Fatalf("decode proofValue: %v", err)
	}
	if !ed25519.Verify(signer.PublicKeyRaw(), signingInput, sig) {
		t.Fatal("issued proof does not verify")
	}
}

func TestIssueCredentialRejectsBadInput(t *testing.T) {
	uc, _ := newIssuePipeline(t, nil)

	if _, err := uc.Execute(context.Background(), IssueRequest{StatusListIndex: 1}); err == nil {
		t.Error("empty subject accepted")
	}
	if _, err := uc.Execute(context.Background(), IssueRequest{
		Subject:         map[string]any{"result": "pass"},
		StatusListIndex: -1,
	}); err == nil {
		t.Error("negative status list index accepted")
	}
}

func TestIssueCredentialDeterministicSigningInput(t *testing.T) {
	uc, _ := newIssuePipeline(t, nil)

	issued, err := uc.Execute(context.Background(), IssueRequest{
		Subject:         map[string]any{"b": 2, "a": 1},
		StatusListIndex: 3,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	a, err := SigningInput(*issued.Credential.Proof, issued.Hash)
	if err != nil {
		t.Fatalf("SigningInput: %v", err)
	}
	b, err := SigningInput(*issued.Credential.Proof, issued.Hash)
	if err != nil {
		t.Fatalf("SigningInput: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("signing input not deterministic")
	}
	if len(a) != 64 {
		t.Fatalf("signing input length = %d, want 64", len(a))
	}
}
