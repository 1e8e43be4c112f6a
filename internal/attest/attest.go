// Package attest computes and verifies plan digests. The digest is taken
// over an explicit whitelist of plan fields (contract v1) rather than the
// whole document, so auxiliary top-level metadata added after approval
// never invalidates an attestation. Producer (Stamp) and verifier (Verify)
// share one hashing routine so the two sides cannot drift.
package attest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/planseal/planseal/internal/canonical"
	"github.com/planseal/planseal/internal/plan"
)

// ContractV1 names the digest field contract: the canonical serialization
// of exactly these top-level fields, as a sorted-key JSON object. The
// attestation block itself is never part of the digest input.
const ContractV1 = "plan-digest/v1"

// ContractV1Fields lists the hash-relevant plan fields under ContractV1.
var ContractV1Fields = []string{
	"plan_id",
	"skill_id",
	"skill_version",
	"inputs",
	"constraints",
	"steps",
}

// ErrMissingAttestation indicates the plan carries no attestation block
// (or an empty digest) and therefore was never approved for execution.
var ErrMissingAttestation = errors.New("attest: plan has no attestation")

// MismatchError reports a digest disagreement: the plan was modified after
// approval, or corrupted. Both digests are carried for forensic diffing.
type MismatchError struct {
	PlanID   string
	Expected string
	Stored   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("attest: plan %s digest mismatch: expected %s, stored %s", e.PlanID, e.Expected, e.Stored)
}

// ExpectedHash recomputes the ContractV1 digest for a plan: canonical
// serialization of the whitelisted fields, SHA-256, lowercase hex.
func ExpectedHash(p *plan.Plan) (string, error) {
	doc := map[string]any{
		"plan_id":       p.PlanID,
		"skill_id":      p.SkillID,
		"skill_version": p.SkillVersion,
		"inputs":        normalizeMap(p.Inputs),
		"constraints":   normalizeMap(p.Constraints),
		"steps":         p.Steps,
	}
	encoded, err := canonical.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("attest: serialize plan %s: %w", p.PlanID, err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// normalizeMap maps absent and nil the same way so a plan with
// `"inputs": {}` and one with no inputs key hash identically.
func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// Verify checks the stored digest against the recomputed one. On success
// it returns the verified digest (lowercase) for downstream logging.
// Comparison is case-insensitive; the stored casing is never trusted.
func Verify(p *plan.Plan) (string, error) {
	if p.Attestation == nil || strings.TrimSpace(p.Attestation.PlanHash) == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingAttestation, p.PlanID)
	}
	expected, err := ExpectedHash(p)
	if err != nil {
		return "", err
	}
	stored := strings.ToLower(strings.TrimSpace(p.Attestation.PlanHash))
	if stored != expected {
		return "", &MismatchError{PlanID: p.PlanID, Expected: expected, Stored: stored}
	}
	return expected, nil
}

// Stamp computes the ContractV1 digest and writes it into the plan's
// attestation block. This is the producing side of the contract, used by
// the standalone hash utility before a plan is handed to the pipeline.
func Stamp(p *plan.Plan) (string, error) {
	digest, err := ExpectedHash(p)
	if err != nil {
		return "", err
	}
	p.Attestation = &plan.Attestation{PlanHash: digest}
	return digest, nil
}
