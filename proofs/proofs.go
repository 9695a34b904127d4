// Package proofs decides whether an address carries enough verified social
// proofs to be allowed to write.
//
// Proof records come from a Source: the SQL proof table (database package),
// a remote hub over gRPC (GRPCSource), or either of those behind a Redis
// read-through cache (CachedSource).
package proofs

import (
	"context"
	"fmt"

	"github.com/sagarc03/hubstore"
)

// Proof is one piece of social-proof evidence for an address.
type Proof struct {
	Service    string `json:"service"`
	Identifier string `json:"identifier"`
	Valid      bool   `json:"valid"`
}

// Source returns the proofs recorded for an address.
type Source interface {
	Proofs(ctx context.Context, address string) ([]Proof, error)
}

// Policy configures the proof requirement for writes.
type Policy struct {
	Enabled         bool     `mapstructure:"enabled"`
	MinProofs       int      `mapstructure:"min_proofs" validate:"gte=0"`
	TrustedServices []string `mapstructure:"trusted_services"`
}

// Checker enforces a Policy against a Source.
// It implements hubstore.ProofChecker.
type Checker struct {
	policy  Policy
	source  Source
	trusted map[string]struct{}
}

// NewChecker creates a Checker. source may be nil only when the policy is disabled.
func NewChecker(policy Policy, source Source) (*Checker, error) {
	if policy.MinProofs < 0 {
		return nil, fmt.Errorf("new proof checker: %w: min proofs must not be negative", hubstore.ErrConfig)
	}
	if policy.Enabled && source == nil {
		return nil, fmt.Errorf("new proof checker: %w: proof source is required when proofs are enabled", hubstore.ErrConfig)
	}

	var trusted map[string]struct{}
	if len(policy.TrustedServices) > 0 {
		trusted = make(map[string]struct{}, len(policy.TrustedServices))
		for _, s := range policy.TrustedServices {
			trusted[s] = struct{}{}
		}
	}

	return &Checker{policy: policy, source: source, trusted: trusted}, nil
}

// CheckProofs returns hubstore.ErrNotEnoughProof when address has fewer
// countable proofs than the policy requires. A disabled policy never
// consults the source.
func (c *Checker) CheckProofs(ctx context.Context, address string) error {
	if !c.policy.Enabled || c.policy.MinProofs == 0 {
		return nil
	}

	list, err := c.source.Proofs(ctx, address)
	if err != nil {
		return fmt.Errorf("check proofs %s: %w", address, err)
	}

	if n := c.Count(list); n < c.policy.MinProofs {
		return fmt.Errorf("check proofs %s: %w: have %d, need %d", address, hubstore.ErrNotEnoughProof, n, c.policy.MinProofs)
	}

	return nil
}

// Count returns how many proofs in list satisfy the policy: valid, from a
// trusted service when a trust list is set, one per service and identifier.
func (c *Checker) Count(list []Proof) int {
	type key struct{ service, identifier string }
	seen := make(map[key]struct{}, len(list))

	for _, p := range list {
		if !p.Valid {
			continue
		}
		if c.trusted != nil {
			if _, ok := c.trusted[p.Service]; !ok {
				continue
			}
		}
		seen[key{p.Service, p.Identifier}] = struct{}{}
	}

	return len(seen)
}

// StaticSource serves proofs from a fixed map. Unknown addresses have no proofs.
type StaticSource map[string][]Proof

// Proofs implements Source.
func (s StaticSource) Proofs(_ context.Context, address string) ([]Proof, error) {
	return s[address], nil
}
