// Package canonicalize computes the deterministic revision hash of an EDL:
// SHA-256 over the RFC 8785 JSON Canonicalization Scheme form of the
// document with its revision field cleared, truncated to the first 12
// hex characters.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/edl"
)

// RevisionLength is the number of hex characters kept from the SHA-256
// digest of the canonical form.
const RevisionLength = 12

// Revision returns the deterministic revision hash for e. e.Revision is
// cleared before canonicalization so re-stamping a snapshot never changes
// its own identity.
func Revision(e edl.Edl) (string, error) {
	e.Revision = ""
	raw, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("canonicalize: marshal: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize: JCS transform: %w", err)
	}
	digest := sha256.Sum256(canonical)
	return hex.EncodeToString(digest[:])[:RevisionLength], nil
}

// CanonicalBytes returns the RFC 8785 canonical JSON form used to derive
// the revision, exposed for golden-fixture tests that pin exact bytes.
func CanonicalBytes(e edl.Edl) ([]byte, error) {
	e.Revision = ""
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal: %w", err)
	}
	return jcs.Transform(raw)
}
