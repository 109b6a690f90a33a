package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy defines per-role tenant-access defaults, loaded from YAML. It
// answers the question the data alone cannot: what an empty tenant_access
// list means for a given role.
type Policy struct {
	// TenantAccessDefaults maps a role name to "all" or "assigned".
	// "all": an empty tenant_access list expands to every active tenant.
	// "assigned": an empty list means no tenant access.
	TenantAccessDefaults map[string]string `yaml:"tenantAccessDefaults"`
}

// DefaultPolicy grants owners implicit access to every tenant and everyone
// else only what they were explicitly assigned.
func DefaultPolicy() *Policy {
	return &Policy{
		TenantAccessDefaults: map[string]string{
			RoleOwner: "all",
		},
	}
}

// LoadPolicy reads and validates a policy file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	for role, def := range p.TenantAccessDefaults {
		if def != "all" && def != "assigned" {
			return nil, fmt.Errorf("policy: role %q has invalid tenant-access default %q (want all or assigned)", role, def)
		}
	}
	return &p, nil
}

// defaultsToAll reports whether an empty tenant_access list for the role
// should expand to all active tenants.
func (p *Policy) defaultsToAll(roleName string) bool {
	if p == nil {
		return false
	}
	return p.TenantAccessDefaults[roleName] == "all"
}
