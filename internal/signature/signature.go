// Package signature implements the signed-parameter protocol shared with the
// merchant platform. The same codec authenticates inbound requests and signs
// outbound callbacks; the canonicalization is a wire contract and must not
// change.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/paybridge/paybridge/internal/domain"
)

const (
	// ParamPrefix marks the keys that participate in signing.
	ParamPrefix = "x_"

	// SignatureParam carries the detachable signature and is excluded from
	// the canonical string.
	SignatureParam = "x_signature"
)

// Params is a flat mapping of prefixed string keys to string values - the
// in-flight authentication envelope. It is never persisted.
type Params map[string]string

// Signature returns the detached signature field, if present.
func (p Params) Signature() string {
	return p[SignatureParam]
}

// CanonicalString builds the string the HMAC is computed over: the prefixed
// keys (signature excluded) sorted byte-wise, each key joined to its value
// with "+" and successive pairs joined with "+" as well. The separator is
// deliberately the same in both positions - the concatenation is purely
// sequential with no pair-grouping delimiter.
func CanonicalString(p Params) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		if strings.HasPrefix(k, ParamPrefix) && k != SignatureParam {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	segments := make([]string, 0, len(keys))
	for _, k := range keys {
		segments = append(segments, k+"+"+p[k])
	}
	return strings.Join(segments, "+")
}

// Signer computes and verifies HMAC-SHA256 signatures over canonicalized
// parameter sets. Secrets are distinct per direction, so the process holds
// one Signer for inbound verification and one for outbound callbacks.
type Signer struct {
	secret []byte
}

// NewSigner returns a Signer for the given shared secret. An empty secret is
// a configuration error: signing or verifying without one must be impossible,
// never silently skipped.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, domain.NewPaymentError(domain.ErrNotConfigured,
			"signing secret is not configured", "SECRET_MISSING")
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign returns the lowercase hexadecimal HMAC-SHA256 digest of the canonical
// string for p.
func (s *Signer) Sign(p Params) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(CanonicalString(p)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over p and compares it against the supplied
// signature field. A missing signature is a verification failure; any
// mismatch is a hard rejection. The comparison is constant-time.
func (s *Signer) Verify(p Params) bool {
	supplied := p.Signature()
	if supplied == "" {
		return false
	}
	expected := s.Sign(p)
	return hmac.Equal([]byte(supplied), []byte(expected))
}
