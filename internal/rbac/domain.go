package rbac

import (
	"fmt"
	"sort"
	"strings"
)

// Capabilities checked by the quotation desk.
const (
	PermQuotationView     = "quotation.view"
	PermQuotationEdit     = "quotation.edit"
	PermQuotationFinalize = "quotation.finalize"
)

// DefaultPolicy grants the desk capabilities to the stock sales roles.
const DefaultPolicy = "sales_manager=quotation.view,quotation.edit,quotation.finalize;sales_rep=quotation.view,quotation.edit;viewer=quotation.view"

// Policy maps a role name to the permissions it grants.
type Policy map[string][]string

// ParsePolicy reads a policy written as "role=perm,perm;role=perm".
func ParsePolicy(raw string) (Policy, error) {
	policy := Policy{}
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		role, perms, ok := strings.Cut(entry, "=")
		role = strings.TrimSpace(strings.ToLower(role))
		if !ok || role == "" {
			return nil, fmt.Errorf("rbac: malformed policy entry %q", entry)
		}
		policy[role] = normalizePermissions(append(policy[role], strings.Split(perms, ",")...))
	}
	return policy, nil
}

// Roles lists the role names in the policy.
func (p Policy) Roles() []string {
	roles := make([]string, 0, len(p))
	for role := range p {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}
