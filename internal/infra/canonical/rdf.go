package canonical

import (
	"encoding/json"
	"fmt"

	"github.com/piprate/json-gold/ld"

	"github.com/dhis2/certification-app-sub003/internal/domain"
)

// DocumentCanonicalizer canonicalizes a credential document's expanded
// linked-data graph so the byte form is stable regardless of key order or
// blank-node labels.
type DocumentCanonicalizer struct {
	proc *ld.JsonLdProcessor
	opts *ld.JsonLdOptions
}

func NewDocumentCanonicalizer(loader ld.DocumentLoader) *DocumentCanonicalizer {
	opts := ld.NewJsonLdOptions("")
	opts.Format = "application/n-quads"
	opts.Algorithm = ld.AlgorithmURDNA2015
	opts.DocumentLoader = loader
	return &DocumentCanonicalizer{
		proc: ld.NewJsonLdProcessor(),
		opts: opts,
	}
}

// Document canonicalizes a credential (or any JSON-LD document). The input
// may be a struct, a map, or encoded JSON; it is round-tripped through JSON
// first because json-gold operates on generic maps.
func (c *DocumentCanonicalizer) Document(doc any) ([]byte, error) {
	m, err := toGeneric(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCanonicalization, err)
	}
	normalized, err := c.proc.Normalize(m, c.opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCanonicalization, err)
	}
	quads, ok := normalized.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected normalization output %T", domain.ErrCanonicalization, normalized)
	}
	return []byte(quads), nil
}

func toGeneric(doc any) (any, error) {
	switch v := doc.(type) {
	case map[string]any:
		return v, nil
	case json.RawMessage:
		return decodeGeneric([]byte(v))
	case []byte:
		return decodeGeneric(v)
	default:
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		return decodeGeneric(b)
	}
}

func decodeGeneric(b []byte) (any, error) {
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
