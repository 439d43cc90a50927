package usecase

import (
	"context"
	"crypto/sha256"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"

	"github.com/dhis2/certification-app-sub003/internal/domain"
	"github.com/dhis2/certification-app-sub003/internal/infra/canonical"
)

// IssueCredential orchestrates the issuance pipeline: assemble the credential
// document, canonicalize, hash, sign, attach the proof. Every step is a hard
// gate; a failure anywhere aborts the issuance.
type IssueCredential struct {
	Signer      domain.Signer
	Docs        DocumentCanonicalizer
	Credentials CredentialRepository
	Clock       Clock

	IssuerID   string
	IssuerName string
	BaseURL    string
	TTL        time.Duration
}

type IssueRequest struct {
	Subject         map[string]any
	StatusListIndex int
	Code            string
}

func (uc *IssueCredential) Execute(ctx context.Context, req IssueRequest) (domain.IssuedCredential, error) {
	if uc == nil || uc.Signer == nil || uc.Docs == nil {
		return domain.IssuedCredential{}, errors.New("issuance pipeline not configured")
	}
	if !uc.Signer.Initialized() {
		return domain.IssuedCredential{}, domain.ErrSignerUninitialized
	}
	if len(req.Subject) == 0 {
		return domain.IssuedCredential{}, errors.New("credential subject is required")
	}
	if req.StatusListIndex < 0 {
		return domain.IssuedCredential{}, errors.New("status list index must be non-negative")
	}

	now := uc.now().UTC()
	cred := uc.buildCredential(req, now)

	canonicalDoc, err := uc.Docs.Document(cred.WithoutProof())
	if err != nil {
		return domain.IssuedCredential{}, err
	}
	docHash := sha256.Sum256(canonicalDoc)

	keyVersion := uc.Signer.KeyVersion()
	proof := domain.Proof{
		Type:               domain.ProofTypeDataIntegrity,
		Cryptosuite:        domain.CryptosuiteEddsaRdfc,
		Created:            now.Format(time.RFC3339),
		VerificationMethod: domain.VerificationMethod(uc.IssuerID, keyVersion),
		ProofPurpose:       domain.ProofPurposeAssertion,
	}
	signingInput, err := SigningInput(proof, docHash[:])
	if err != nil {
		return domain.IssuedCredential{}, err
	}

	signature, err := uc.Signer.Sign(ctx, signingInput)
	if err != nil {
		return domain.IssuedCredential{}, err
	}

	proof.ProofValue = "z" + base58.Encode(signature)
	cred.Proof = &proof

	issued := domain.IssuedCredential{
		Credential: cred,
		Hash:       docHash[:],
		Signature:  signature,
		KeyVersion: keyVersion,
	}

	if uc.Credentials != nil {
		stored := domain.StoredCredential{
			ID:              cred.ID,
			Code:            req.Code,
			Credential:      cred,
			Hash:            issued.Hash,
			Signature:       issued.Signature,
			KeyVersion:      keyVersion,
			StatusListIndex: req.StatusListIndex,
			CreatedAt:       now,
		}
		if stored.Code == "" {
			stored.Code = cred.ID
		}
		if err := uc.Credentials.Save(ctx, stored); err != nil {
			return domain.IssuedCredential{}, err
		}
	}
	return issued, nil
}

func (uc *IssueCredential) buildCredential(req IssueRequest, now time.Time) domain.Credential {
	ttl := uc.TTL
	if ttl <= 0 {
		ttl = 3 * 365 * 24 * time.Hour
	}
	statusList := uc.BaseURL + "/v1/status/revocation"
	return domain.Credential{
		Context: []string{
			domain.CredentialContextCore,
			domain.CredentialContextCertification,
		},
		ID: "urn:uuid:" + uuid.NewString(),
		Type: []string{
			domain.TypeVerifiableCredential,
			domain.TypeCertificationCredential,
			domain.TypeOpenBadgeCredential,
		},
		Issuer: domain.Issuer{
			ID:   uc.IssuerID,
			Type: "Profile",
			Name: uc.IssuerName,
		},
		ValidFrom:         now.Format(time.RFC3339),
		ValidUntil:        now.Add(ttl).Format(time.RFC3339),
		CredentialSubject: req.Subject,
		CredentialStatus: &domain.CredentialStatus{
			ID:                   statusList + "#" + strconv.Itoa(req.StatusListIndex),
			Type:                 domain.StatusListEntryType,
			StatusPurpose:        domain.StatusPurposeRevocation,
			StatusListIndex:      req.StatusListIndex,
			StatusListCredential: statusList,
		},
	}
}

// SigningInput combines the canonical proof-options digest with the document
// digest. Both sides recompute the same pair, so a change to either the
// document or the proof metadata invalidates the signature.
func SigningInput(proof domain.Proof, docHash []byte) ([]byte, error) {
	options := proof
	options.ProofValue = ""
	canonicalOptions, err := canonical.ProofOptions(proofOptionsView(options))
	if err != nil {
		return nil, err
	}
	optionsHash := sha256.Sum256(canonicalOptions)
	input := make([]byte, 0, len(optionsHash)+len(docHash))
	input = append(input, optionsHash[:]...)
	input = append(input, docHash...)
	return input, nil
}

// proofOptionsView drops the empty proofValue so the canonical form covers
// exactly the metadata that existed at signing time.
func proofOptionsView(p domain.Proof) map[string]any {
	return map[string]any{
		"type":               p.Type,
		"cryptosuite":        p.Cryptosuite,
		"created":            p.Created,
		"verificationMethod": p.VerificationMethod,
		"proofPurpose":       p.ProofPurpose,
	}
}

func (uc *IssueCredential) now() time.Time {
	if uc != nil && uc.Clock != nil {
		return uc.Clock()
	}
	return time.Now().UTC()
}
