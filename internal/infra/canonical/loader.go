package canonical

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/piprate/json-gold/ld"
	"go.uber.org/zap"

	"github.com/dhis2/certification-app-sub003/internal/domain"
)

// ContextLoader resolves JSON-LD contexts from a fixed in-process table.
// Unknown contexts fail closed unless a network fallback was explicitly
// enabled; hardened deployments keep it off so canonicalization can never
// depend on a remote document changing under us.
type ContextLoader struct {
	docs     map[string]*ld.RemoteDocument
	fallback ld.DocumentLoader
	logger   *zap.Logger
}

func NewContextLoader(allowRemote bool, logger *zap.Logger) (*ContextLoader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	docs := make(map[string]*ld.RemoteDocument, len(builtinContexts))
	for url, body := range builtinContexts {
		var parsed any
		if err := json.Unmarshal([]byte(body), &parsed); err != nil {
			return nil, fmt.Errorf("parse builtin context %s: %w", url, err)
		}
		docs[url] = &ld.RemoteDocument{DocumentURL: url, Document: parsed}
	}
	l := &ContextLoader{docs: docs, logger: logger}
	if allowRemote {
		l.fallback = ld.NewDefaultDocumentLoader(http.DefaultClient)
	}
	return l, nil
}

func (l *ContextLoader) LoadDocument(u string) (*ld.RemoteDocument, error) {
	if doc, ok := l.docs[u]; ok {
		return doc, nil
	}
	if l.fallback != nil {
		l.logger.Warn("resolving unknown JSON-LD context over the network", zap.String("url", u))
		return l.fallback.LoadDocument(u)
	}
	return nil, fmt.Errorf("%w: unknown context %q", domain.ErrCanonicalization, u)
}

// builtinContexts pins the vocabularies the issuance pipeline emits. Both the
// issue and verify paths resolve through the same table, so recomputing a
// proof is deterministic for the life of the deployment.
var builtinContexts = map[string]string{
	domain.CredentialContextCore: `{
  "@context": {
    "@protected": true,
    "id": "@id",
    "type": "@type",
    "cred": "https://www.w3.org/2018/credentials#",
    "sec": "https://w3id.org/security#",
    "xsd": "http://www.w3.org/2001/XMLSchema#",
    "VerifiableCredential": {
      "@id": "cred:VerifiableCredential",
      "@context": {
        "@protected": true,
        "id": "@id",
        "type": "@type",
        "issuer": {"@id": "cred:issuer", "@type": "@id"},
        "validFrom": {"@id": "cred:validFrom", "@type": "xsd:dateTime"},
        "validUntil": {"@id": "cred:validUntil", "@type": "xsd:dateTime"},
        "credentialSubject": {"@id": "cred:credentialSubject", "@type": "@id"},
        "credentialStatus": {"@id": "cred:credentialStatus", "@type": "@id"},
        "name": "https://schema.org/name"
      }
    },
    "BitstringStatusListEntry": {
      "@id": "https://www.w3.org/ns/credentials/status#BitstringStatusListEntry",
      "@context": {
        "@protected": true,
        "id": "@id",
        "type": "@type",
        "statusPurpose": "https://www.w3.org/ns/credentials/status#statusPurpose",
        "statusListIndex": "https://www.w3.org/ns/credentials/status#statusListIndex",
        "statusListCredential": {
          "@id": "https://www.w3.org/ns/credentials/status#statusListCredential",
          "@type": "@id"
        }
      }
    },
    "DataIntegrityProof": {
      "@id": "sec:DataIntegrityProof",
      "@context": {
        "@protected": true,
        "id": "@id",
        "type": "@type",
        "cryptosuite": "sec:cryptosuite",
        "created": {"@id": "http://purl.org/dc/terms/created", "@type": "xsd:dateTime"},
        "verificationMethod": {"@id": "sec:verificationMethod", "@type": "@id"},
        "proofPurpose": {"@id": "sec:proofPurpose", "@type": "@vocab"},
        "proofValue": {"@id": "sec:proofValue", "@type": "sec:multibase"},
        "assertionMethod": {"@id": "sec:assertionMethod", "@type": "@id"}
      }
    },
    "proof": {"@id": "sec:proof", "@type": "@id", "@container": "@graph"}
  }
}`,
	domain.CredentialContextCertification: `{
  "@context": {
    "@version": 1.1,
    "@vocab": "https://certification.dhis2.org/vocab#",
    "id": "@id",
    "type": "@type",
    "CertificationCredential": "https://certification.dhis2.org/vocab#CertificationCredential",
    "OpenBadgeCredential": "https://certification.dhis2.org/vocab#OpenBadgeCredential"
  }
}`,
}
