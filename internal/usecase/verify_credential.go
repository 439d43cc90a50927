package usecase

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/dhis2/certification-app-sub003/internal/domain"
)

// VerifyCredential is the read path. It repeats canonicalize-hash-verify
// against a persisted credential and reports independent booleans so callers
// can distinguish tampering from routine revocation or expiry.
type VerifyCredential struct {
	Signer      domain.Signer
	Docs        DocumentCanonicalizer
	Credentials CredentialRepository
	Status      StatusList
	Clock       Clock
	Logger      *zap.Logger
}

// Execute looks up a credential by its opaque code (or id) and verifies it.
// A missing credential yields a zero report with Found=false and no error;
// infrastructure failures are returned as errors.
func (uc *VerifyCredential) Execute(ctx context.Context, code string) (domain.VerificationReport, *domain.Credential, error) {
	if uc == nil || uc.Docs == nil || uc.Credentials == nil {
		return domain.VerificationReport{}, nil, errors.New("verification pipeline not configured")
	}
	stored, err := uc.Credentials.GetByCode(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.VerificationReport{}, nil, nil
	}
	if err != nil {
		return domain.VerificationReport{}, nil, err
	}

	report := domain.VerificationReport{Found: true}
	report.NotExpired = uc.checkExpiry(stored.Credential)
	report.NotRevoked = uc.checkRevocation(ctx, stored)
	report.IntegrityValid, report.SignatureValid = uc.checkProof(stored)

	cred := stored.Credential
	return report, &cred, nil
}

func (uc *VerifyCredential) checkExpiry(cred domain.Credential) bool {
	validUntil, err := time.Parse(time.RFC3339, cred.ValidUntil)
	if err != nil {
		return false
	}
	return uc.now().UTC().Before(validUntil)
}

func (uc *VerifyCredential) checkRevocation(ctx context.Context, stored domain.StoredCredential) bool {
	if uc.Status == nil {
		return true
	}
	revoked, err := uc.Status.IsRevoked(ctx, stored.StatusListIndex)
	if err != nil {
		// Revocation status unknown: report revoked rather than vouch for a
		// credential we cannot check.
		uc.logger().Warn("status list unavailable during verification",
			zap.String("credential_id", stored.ID), zap.Error(err))
		return false
	}
	return !revoked
}

// checkProof reports hash integrity and signature validity separately. Both
// are computed without throwing; a mangled proof simply verifies as invalid.
func (uc *VerifyCredential) checkProof(stored domain.StoredCredential) (integrityValid, signatureValid bool) {
	canonicalDoc, err := uc.Docs.Document(stored.Credential.WithoutProof())
	if err != nil {
		uc.logger().Warn("canonicalization failed during verification",
			zap.String("credential_id", stored.ID), zap.Error(err))
		return false, false
	}
	docHash := sha256.Sum256(canonicalDoc)
	integrityValid = subtle.ConstantTimeCompare(docHash[:], stored.Hash) == 1

	proof := stored.Credential.Proof
	if proof == nil || uc.Signer == nil || !uc.Signer.Initialized() {
		return integrityValid, false
	}
	if proof.VerificationMethod != domain.VerificationMethod(issuerOf(stored.Credential), uc.Signer.KeyVersion()) {
		// Signed under a key version that is no longer active.
		return integrityValid, false
	}
	signature, err := decodeMultibase(proof.ProofValue)
	if err != nil || len(signature) != ed25519.SignatureSize {
		return integrityValid, false
	}
	signingInput, err := SigningInput(*proof, docHash[:])
	if err != nil {
		return integrityValid, false
	}
	pub := uc.Signer.PublicKeyRaw()
	if len(pub) != ed25519.PublicKeySize {
		return integrityValid, false
	}
	signatureValid = ed25519.Verify(pub, signingInput, signature)
	return integrityValid, signatureValid
}

func issuerOf(cred domain.Credential) string {
	return cred.Issuer.ID
}

func decodeMultibase(value string) ([]byte, error) {
	if !strings.HasPrefix(value, "z") || len(value) < 2 {
		return nil, errors.New("unsupported multibase prefix")
	}
	return base58.Decode(value[1:])
}

func (uc *VerifyCredential) now() time.Time {
	if uc != nil && uc.Clock != nil {
		return uc.Clock()
	}
	return time.Now().UTC()
}

func (uc *VerifyCredential) logger() *zap.Logger {
	if uc != nil && uc.Logger != nil {
		return uc.Logger
	}
	return zap.NewNop()
}
