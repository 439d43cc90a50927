package domain

import "time"

const (
	// CredentialContextCore is the base verifiable-credential vocabulary.
	CredentialContextCore = "https://www.w3.org/ns/credentials/v2"
	// CredentialContextCertification is the portal's own vocabulary.
	CredentialContextCertification = "https://certification.dhis2.org/credentials/v1"

	TypeVerifiableCredential    = "VerifiableCredential"
	TypeCertificationCredential = "CertificationCredential"
	TypeOpenBadgeCredential     = "OpenBadgeCredential"

	ProofTypeDataIntegrity = "DataIntegrityProof"
	CryptosuiteEddsaRdfc   = "eddsa-rdfc-2022"
	ProofPurposeAssertion  = "assertionMethod"

	StatusListEntryType     = "BitstringStatusListEntry"
	StatusPurposeRevocation = "revocation"
)

type Issuer struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// CredentialStatus points at one bit of a published bitstring status list.
type CredentialStatus struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	StatusPurpose        string `json:"statusPurpose"`
	StatusListIndex      int    `json:"statusListIndex"`
	StatusListCredential string `json:"statusListCredential"`
}

type Proof struct {
	Type               string `json:"type"`
	Cryptosuite        string `json:"cryptosuite"`
	Created            string `json:"created"`
	VerificationMethod string `json:"verificationMethod"`
	ProofPurpose       string `json:"proofPurpose"`
	ProofValue         string `json:"proofValue"`
}

// Credential is the issued document. Immutable after issuance; revocation
// happens externally through the status list, never by mutating the document.
type Credential struct {
	Context           []string          `json:"@context"`
	ID                string            `json:"id"`
	Type              []string          `json:"type"`
	Issuer            Issuer            `json:"issuer"`
	ValidFrom         string            `json:"validFrom"`
	ValidUntil        string            `json:"validUntil"`
	CredentialSubject map[string]any    `json:"credentialSubject"`
	CredentialStatus  *CredentialStatus `json:"credentialStatus,omitempty"`
	Proof             *Proof            `json:"proof,omitempty"`
}

// WithoutProof returns a copy with the proof block stripped, which is the
// form canonicalization and hashing operate on.
func (c Credential) WithoutProof() Credential {
	c.Proof = nil
	return c
}

// IssuedCredential carries the signed document plus the raw hash and
// signature so callers can persist them for independent re-verification.
type IssuedCredential struct {
	Credential Credential
	Hash       []byte
	Signature  []byte
	KeyVersion int
}

// VerificationReport holds independent verification outcomes. The booleans
// are never collapsed: a revoked credential still has a valid signature, and
// a tampered one is distinguishable from an expired one.
type VerificationReport struct {
	Found          bool `json:"found"`
	NotRevoked     bool `json:"notRevoked"`
	NotExpired     bool `json:"notExpired"`
	IntegrityValid bool `json:"integrityValid"`
	SignatureValid bool `json:"signatureValid"`
}

func (r VerificationReport) Valid() bool {
	return r.Found && r.NotRevoked && r.NotExpired && r.IntegrityValid && r.SignatureValid
}

// StoredCredential is the persisted issuance record.
type StoredCredential struct {
	ID              string
	Code            string
	Credential      Credential
	Hash            []byte
	Signature       []byte
	KeyVersion      int
	StatusListIndex int
	CreatedAt       time.Time
}
