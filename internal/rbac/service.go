package rbac

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// ErrUnknownRole indicates a principal whose role is not in the policy.
var ErrUnknownRole = errors.New("rbac: unknown role")

// Service resolves permissions from a static role policy.
type Service struct {
	policy Policy
}

// NewService constructs a Service for policy.
func NewService(policy Policy) *Service {
	return &Service{policy: policy}
}

// EffectivePermissions returns the permissions granted to the principal.
func (s *Service) EffectivePermissions(_ context.Context, p shared.Principal) ([]string, error) {
	perms, ok := s.policy[strings.ToLower(strings.TrimSpace(p.Role))]
	if !ok {
		return nil, ErrUnknownRole
	}
	out := append([]string(nil), perms...)
	sort.Strings(out)
	return out, nil
}
