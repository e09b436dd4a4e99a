// Package authz maps a role set to the operations it may invoke.
package authz

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/casbin/casbin/v3"
)

//go:embed model.conf policy.csv
var embedFS embed.FS

// Role names recognised by the policy. Matching is case-sensitive.
const (
	RoleAdmin       = "admin"
	RoleUser        = "user"
	RoleGeneralUser = "generalUser"
	RoleReadonly    = "readonly"
)

// tiers in precedence order; the first tier whose roles intersect the
// caller's roles decides the whole allow-list.
var tiers = []struct {
	subject string
	roles   []string
}{
	{subject: "admin", roles: []string{RoleAdmin}},
	{subject: "user", roles: []string{RoleUser, RoleGeneralUser}},
	{subject: "readonly", roles: []string{RoleReadonly}},
}

// Policy holds the per-tier allow-lists, resolved once from the embedded
// casbin model. After construction it is read-only and safe for concurrent use.
type Policy struct {
	byTier map[string]OperationSet
}

// NewPolicy loads the embedded model and policy and resolves every tier.
func NewPolicy() (*Policy, error) {
	dir, err := os.MkdirTemp("", "passprotect-casbin-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create policy dir: %w", err)
	}
	defer os.RemoveAll(dir)

	for _, name := range []string{"model.conf", "policy.csv"} {
		data, err := embedFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0600); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	enforcer, err := casbin.NewEnforcer(
		filepath.Join(dir, "model.conf"),
		filepath.Join(dir, "policy.csv"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	p := &Policy{byTier: make(map[string]OperationSet, len(tiers))}
	for _, tier := range tiers {
		set := NewOperationSet()
		for _, op := range Catalog {
			ok, err := enforcer.Enforce(tier.subject, string(op))
			if err != nil {
				return nil, fmt.Errorf("failed to evaluate %s/%s: %w", tier.subject, op, err)
			}
			if ok {
				set[op] = struct{}{}
			}
		}
		p.byTier[tier.subject] = set
	}

	return p, nil
}

// AllowedOperations returns the operations the role set may invoke. The
// result is a fresh set owned by the caller. Unrecognised roles are ignored;
// no recognised role yields an empty set.
func (p *Policy) AllowedOperations(roles []string) OperationSet {
	for _, tier := range tiers {
		for _, r := range tier.roles {
			if slices.Contains(roles, r) {
				return p.byTier[tier.subject].clone()
			}
		}
	}
	return NewOperationSet()
}

// Allows reports whether the role set may invoke op.
func (p *Policy) Allows(roles []string, op Operation) bool {
	return p.AllowedOperations(roles).Has(op)
}
